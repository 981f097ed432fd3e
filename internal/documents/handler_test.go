package documents_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"tcontas-backend/internal/bootstrap"
	"tcontas-backend/internal/documents"
	sharedauth "tcontas-backend/internal/shared/auth"
	"tcontas-backend/internal/shared/config"
)

const processNumber = "TC 001/2024"

type testEnv struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "handler-test-secret")

	app, err := bootstrap.Build(config.Config{
		Env:             "dev",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		PublicBaseURL:   "http://localhost:8080",
		SigningSecret:   "files-secret",
		MaxUploadBytes:  maxUpload,
		SearchMinChars:  3,
	})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	t.Cleanup(app.Close)

	token, err := sharedauth.SignJWT(sharedauth.Claims{
		Email:            "analista@tce.gov.br",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "google:analista"},
	})
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	env := &testEnv{t: t, router: app.Router, token: token}
	env.createProcess(processNumber)
	return env
}

func (e *testEnv) do(req *http.Request, authed bool) *httptest.ResponseRecorder {
	if authed {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createProcess(numero string) {
	e.t.Helper()
	body := fmt.Sprintf(`{"numero":%q,"kind":"prestacao_contas","subject":"Contas anuais 2023"}`, numero)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/processes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if w := e.do(req, true); w.Code != http.StatusCreated {
		e.t.Fatalf("create process: status %d body %s", w.Code, w.Body.String())
	}
}

func documentsPath(numero string) string {
	return "/api/v1/processes/" + url.PathEscape(numero) + "/documents"
}

func uploadRequest(t *testing.T, numero, fileName, docType string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_ = writer.WriteField("documentType", docType)
	_ = writer.WriteField("description", "Balancete do exercício")
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, documentsPath(numero), body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// samplePDF builds a one-page PDF whose text is text, padded with a leading
// comment to roughly padTo bytes.
func samplePDF(text string, padTo int) []byte {
	var buf bytes.Buffer
	var offsets []int
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}
	buf.WriteString("%PDF-1.4\n")
	if padTo > 0 {
		buf.WriteString("%")
		buf.Write(bytes.Repeat([]byte("x"), padTo))
		buf.WriteString("\n")
	}
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj("<< /Type /Pages /Kids [4 0 R] /Count 1 >>")
	writeObj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	writeObj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents 5 0 R >>")
	writeObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}](t, w)
	return body.Error.Code
}

func TestUploadPDFExtractsAndSearches(t *testing.T) {
	env := newTestEnv(t, 0)

	pdf := samplePDF("Relatorio de orcamento anual", 2<<20)
	w := env.do(uploadRequest(t, processNumber, "relatorio.pdf", "Main Report", pdf), true)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: status %d body %s", w.Code, w.Body.String())
	}
	created := decode[documents.UploadResponse](t, w)
	doc := created.Document
	if !created.ExtractionAttempted || !created.ExtractionSucceeded {
		t.Fatalf("expected successful extraction, got %+v", created)
	}
	if doc.ExtractedText == nil || !strings.Contains(*doc.ExtractedText, "orcamento") {
		t.Fatalf("unexpected extracted text %v", doc.ExtractedText)
	}
	if doc.Status != documents.StatusPending || doc.DocumentType != documents.TypeMainReport || !doc.OCRProcessed {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.ProcessNumber != processNumber || !strings.Contains(doc.StoragePath, "TC_001-2024/") || !strings.HasSuffix(doc.StoragePath, ".pdf") {
		t.Fatalf("unexpected storage path %q", doc.StoragePath)
	}

	list := decode[documents.ListResponse](t, env.do(httptest.NewRequest(http.MethodGet, documentsPath(processNumber), nil), true))
	if len(list.Items) != 1 || list.Items[0].ID != doc.ID || list.Searched {
		t.Fatalf("unexpected list %+v", list)
	}

	search := decode[documents.ListResponse](t, env.do(httptest.NewRequest(http.MethodGet, documentsPath(processNumber)+"?q=ORÇAMENTO", nil), true))
	if len(search.Items) != 1 || !search.Searched {
		t.Fatalf("expected accent-insensitive hit, got %+v", search)
	}
	miss := decode[documents.ListResponse](t, env.do(httptest.NewRequest(http.MethodGet, documentsPath(processNumber)+"?q=licitacao", nil), true))
	if len(miss.Items) != 0 {
		t.Fatalf("expected no hits, got %+v", miss)
	}
	short := decode[documents.ListResponse](t, env.do(httptest.NewRequest(http.MethodGet, documentsPath(processNumber)+"?q=xy", nil), true))
	if len(short.Items) != 1 || short.Searched {
		t.Fatalf("short query should list everything, got %+v", short)
	}
}

func TestUploadRejectsOversizedByHeader(t *testing.T) {
	env := newTestEnv(t, 0)

	req := uploadRequest(t, processNumber, "grande.pdf", "outro", samplePDF("x", 0))
	req.ContentLength = 60 << 20
	w := env.do(req, false)
	if w.Code != http.StatusRequestEntityTooLarge || errorCode(t, w) != "file_too_large" {
		t.Fatalf("expected 413 file_too_large before auth, got %d %s", w.Code, w.Body.String())
	}
}

func TestUploadRejectsOversizedStream(t *testing.T) {
	env := newTestEnv(t, 512<<10)

	req := uploadRequest(t, processNumber, "grande.pdf", "outro", samplePDF("x", 2<<20))
	req.ContentLength = -1
	w := env.do(req, true)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d %s", w.Code, w.Body.String())
	}
}

func TestUploadRequiresLogin(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(uploadRequest(t, processNumber, "a.pdf", "outro", samplePDF("x", 0)), false)
	if w.Code != http.StatusUnauthorized || errorCode(t, w) != "unauthorized" {
		t.Fatalf("expected 401, got %d %s", w.Code, w.Body.String())
	}
}

func TestReadsRequireLogin(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(uploadRequest(t, processNumber, "relatorio.pdf", "outro", samplePDF("Relatorio", 0)), true)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}
	doc := decode[documents.UploadResponse](t, w).Document

	paths := []string{
		"/api/v1/document-types",
		documentsPath(processNumber),
		documentsPath(processNumber) + "?q=relatorio",
		"/api/v1/documents/" + doc.ID,
		"/api/v1/documents/" + doc.ID + "/url?purpose=download",
		"/api/v1/processes",
		"/api/v1/processes/" + url.PathEscape(processNumber),
	}
	for _, path := range paths {
		w := env.do(httptest.NewRequest(http.MethodGet, path, nil), false)
		if w.Code != http.StatusUnauthorized || errorCode(t, w) != "unauthorized" {
			t.Fatalf("GET %s anonymous: expected 401, got %d %s", path, w.Code, w.Body.String())
		}
	}
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t, 0)

	tests := []struct {
		name     string
		numero   string
		fileName string
		docType  string
		status   int
	}{
		{name: "executable", numero: processNumber, fileName: "setup.exe", docType: "outro", status: http.StatusBadRequest},
		{name: "unknown type", numero: processNumber, fileName: "a.pdf", docType: "planilha", status: http.StatusBadRequest},
		{name: "unknown process", numero: "TC 999/2024", fileName: "a.pdf", docType: "outro", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(uploadRequest(t, tt.numero, tt.fileName, tt.docType, samplePDF("x", 0)), true)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d %s", tt.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestUploadZipSkipsExtraction(t *testing.T) {
	env := newTestEnv(t, 0)

	zip := []byte("PK\x03\x04\x14\x00\x00\x00\x00\x00")
	w := env.do(uploadRequest(t, processNumber, "anexos.zip", "anexo_financeiro", zip), true)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload zip: status %d body %s", w.Code, w.Body.String())
	}
	created := decode[documents.UploadResponse](t, w)
	if created.ExtractionAttempted || created.Document.ExtractedText != nil || created.Document.OCRProcessed {
		t.Fatalf("zip must not be extracted: %+v", created)
	}
}

func TestSignedURLServesFileAndDeleteRemovesIt(t *testing.T) {
	env := newTestEnv(t, 0)

	pdf := samplePDF("Parecer tecnico", 0)
	w := env.do(uploadRequest(t, processNumber, "parecer.pdf", "parecer_tecnico", pdf), true)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: status %d body %s", w.Code, w.Body.String())
	}
	doc := decode[documents.UploadResponse](t, w).Document

	link := decode[documents.SignedURL](t, env.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID+"/url?purpose=download", nil), true))
	if link.Purpose != documents.PurposeDownload || link.URL == "" {
		t.Fatalf("unexpected signed url %+v", link)
	}
	u, err := url.Parse(link.URL)
	if err != nil {
		t.Fatalf("parse signed url: %v", err)
	}
	file := env.do(httptest.NewRequest(http.MethodGet, u.RequestURI(), nil), false)
	if file.Code != http.StatusOK || !bytes.Equal(file.Body.Bytes(), pdf) {
		t.Fatalf("fetch file: status %d len %d", file.Code, file.Body.Len())
	}

	q := u.Query()
	q.Set("sig", "tampered")
	u.RawQuery = q.Encode()
	if w := env.do(httptest.NewRequest(http.MethodGet, u.RequestURI(), nil), false); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for tampered signature, got %d", w.Code)
	}

	if w := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+doc.ID, nil), false); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous delete: expected 401, got %d", w.Code)
	}
	if w := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+doc.ID, nil), true); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d %s", w.Code, w.Body.String())
	}
	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID, nil), true); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", w.Code)
	}
	list := decode[documents.ListResponse](t, env.do(httptest.NewRequest(http.MethodGet, documentsPath(processNumber), nil), true))
	if len(list.Items) != 0 {
		t.Fatalf("expected empty list after delete, got %+v", list)
	}
}

func TestStatusReview(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(uploadRequest(t, processNumber, "comprovante.pdf", "comprovante_pagamento", samplePDF("Pago", 0)), true)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: status %d body %s", w.Code, w.Body.String())
	}
	doc := decode[documents.UploadResponse](t, w).Document

	patch := func(status string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/documents/"+doc.ID+"/status", strings.NewReader(`{"status":"`+status+`"}`))
		req.Header.Set("Content-Type", "application/json")
		return env.do(req, true)
	}
	if w := patch("rejected"); w.Code != http.StatusOK {
		t.Fatalf("reject: %d %s", w.Code, w.Body.String())
	}
	if w := patch("validated"); w.Code != http.StatusConflict || errorCode(t, w) != "invalid_transition" {
		t.Fatalf("rejected -> validated should conflict, got %d %s", w.Code, w.Body.String())
	}
	if w := patch("pending"); w.Code != http.StatusOK {
		t.Fatalf("resubmit: %d %s", w.Code, w.Body.String())
	}
	w = patch("validated")
	if w.Code != http.StatusOK || decode[documents.Document](t, w).Status != documents.StatusValidated {
		t.Fatalf("validate: %d %s", w.Code, w.Body.String())
	}
}

func TestDocumentTypes(t *testing.T) {
	env := newTestEnv(t, 0)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/document-types", nil), true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	types := decode[[]documents.TypeOption](t, w)
	if len(types) != len(documents.Types()) {
		t.Fatalf("expected %d types, got %d", len(documents.Types()), len(types))
	}
}
