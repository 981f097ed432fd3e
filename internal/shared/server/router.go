package server

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	googleauth "tcontas-backend/internal/auth"
	"tcontas-backend/internal/documents"
	"tcontas-backend/internal/processes"
	"tcontas-backend/internal/services/health"
	"tcontas-backend/internal/shared/config"
	"tcontas-backend/internal/shared/metrics"
	"tcontas-backend/internal/shared/server/middleware"
	"tcontas-backend/internal/shared/server/respond"
	"tcontas-backend/internal/shared/storage/object"
	localstore "tcontas-backend/internal/shared/storage/object/local"
	"tcontas-backend/internal/users"
)

const (
	rateLimitWindow = time.Second
)

// RouterDeps carries the handlers built by bootstrap. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	DocumentHandler *documents.Handler
	ProcessHandler  *processes.Handler
	UserHandler     *users.Handler
	GoogleAuth      *googleauth.GoogleService
	Files           *localstore.Store
	Redis           *redis.Client
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	// Process numbers may contain "/" and arrive as %2F.
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(),
	)
	if limiter := rateLimiter(deps); limiter != nil {
		r.Use(limiter)
	}

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.Health))
	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.ProcessHandler != nil {
		deps.ProcessHandler.RegisterRoutes(api)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.Files != nil {
		api.GET(strings.TrimPrefix(localstore.FilesRoute, "/api/v1")+"*path", fileHandler(deps.Files))
	}

	return r
}

func rateLimiter(deps RouterDeps) gin.HandlerFunc {
	rps := deps.Config.RateLimitRPS
	burst := deps.Config.RateLimitBurst
	if rps <= 0 {
		return nil
	}
	if deps.Redis != nil {
		return middleware.RedisRateLimit(deps.Redis, rps, burst, rateLimitWindow)
	}
	return middleware.RateLimit(middleware.RateLimitConfig{
		Rules:    middleware.UploadRules(rps, burst),
		GroupFor: middleware.UploadGroupFor,
	})
}

func healthHandler(svc *health.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, ok := svc.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, payload)
	}
}

// fileHandler streams objects of the local store behind a signed URL.
func fileHandler(store *localstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("path"), "/")
		err := store.Verify(key, c.Query("expires"), c.Query("sig"))
		switch {
		case errors.Is(err, localstore.ErrSignatureExpired):
			respond.Error(c, http.StatusForbidden, "url_expired", "signed url expired", nil)
			return
		case err != nil:
			respond.Error(c, http.StatusForbidden, "forbidden", "invalid signature", nil)
			return
		}

		ctx := c.Request.Context()
		info, err := store.Stat(ctx, key)
		if err != nil {
			if errors.Is(err, object.ErrObjectNotFound) {
				respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read file", nil)
			return
		}
		rc, err := store.Open(ctx, key)
		if err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read file", nil)
			return
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(path.Ext(key))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Cache-Control", "private, max-age=60")
		c.DataFromReader(http.StatusOK, info.Size, contentType, rc, nil)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
