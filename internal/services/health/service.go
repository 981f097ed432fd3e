package health

import (
	"context"
	"database/sql"
	"time"

	"tcontas-backend/internal/shared/storage/db"
)

const pingTimeout = 2 * time.Second

// Service reports liveness and the reachability of the metadata database.
type Service struct {
	DB *sql.DB
}

// NewService constructs a new health service. database may be nil when the
// in-memory repositories are in use.
func NewService(database *sql.DB) *Service {
	return &Service{DB: database}
}

// Status returns the health payload and whether every dependency is up.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	payload := map[string]any{"ok": true, "database": "memory"}
	if s == nil || s.DB == nil {
		return payload, true
	}
	if err := db.Ping(ctx, s.DB, pingTimeout); err != nil {
		payload["ok"] = false
		payload["database"] = "unreachable"
		return payload, false
	}
	payload["database"] = "up"
	return payload, true
}
