package processes

import "context"

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Kind   Kind
	Status Status
}

// Repo persists processes.
type Repo interface {
	Create(ctx context.Context, p Process) error
	Get(ctx context.Context, numero string) (Process, error)
	List(ctx context.Context, filter ListFilter) ([]Process, error)
	UpdateStatus(ctx context.Context, numero string, from, to Status) error
}
