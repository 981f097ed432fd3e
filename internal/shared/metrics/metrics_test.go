package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncUploadCountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(uploadsTotal.WithLabelValues("too_large"))
	IncUpload("too_large")
	IncUpload("too_large")
	after := testutil.ToFloat64(uploadsTotal.WithLabelValues("too_large"))
	if after-before != 2 {
		t.Fatalf("expected counter to grow by 2, grew by %v", after-before)
	}
}

func TestHandlerRendersExposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ObserveExtraction("pdf", true, 0.3)

	r := gin.New()
	r.GET("/metrics", Handler())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, want := range []string{
		"tcontas_text_extractions_total",
		"tcontas_text_extraction_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}
