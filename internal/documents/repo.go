package documents

import "context"

// Repo persists document metadata.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	// ListByProcess returns documents newest first, tie-broken by id.
	ListByProcess(ctx context.Context, processNumber string) ([]Document, error)
	// Search runs the full-text search. An empty processNumber searches every process.
	Search(ctx context.Context, query, processNumber string) ([]Document, error)
	// UpdateStatus moves id from one status to another, failing with ErrConflict if it is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	Delete(ctx context.Context, id string) error
	ExistsByStoragePath(ctx context.Context, storagePath string) (bool, error)
}
