package documents

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]Document
	byPath map[string]string // storage path -> id
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[string]Document),
		byPath: make(map[string]string),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[doc.ID]; ok {
		return ErrConflict
	}
	if _, ok := r.byPath[doc.StoragePath]; ok {
		return ErrConflict
	}
	r.byID[doc.ID] = doc
	r.byPath[doc.StoragePath] = doc.ID
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (r *MemoryRepo) ListByProcess(ctx context.Context, processNumber string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Document, 0)
	for _, doc := range r.byID {
		if doc.ProcessNumber == processNumber {
			out = append(out, doc)
		}
	}
	r.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

// Search matches the folded query as a substring of the folded extracted text.
// Results are ranked by occurrence count, then newest first.
func (r *MemoryRepo) Search(ctx context.Context, query, processNumber string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := foldText(strings.TrimSpace(query))
	if needle == "" {
		return []Document{}, nil
	}

	type hit struct {
		doc   Document
		count int
	}
	var hits []hit
	r.mu.RLock()
	for _, doc := range r.byID {
		if processNumber != "" && doc.ProcessNumber != processNumber {
			continue
		}
		if doc.ExtractedText == nil {
			continue
		}
		if n := strings.Count(foldText(*doc.ExtractedText), needle); n > 0 {
			hits = append(hits, hit{doc: doc, count: n})
		}
	}
	r.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].count != hits[j].count {
			return hits[i].count > hits[j].count
		}
		return newer(hits[i].doc, hits[j].doc)
	})
	out := make([]Document, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.doc)
	}
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if doc.Status != from {
		return ErrConflict
	}
	doc.Status = to
	r.byID[id] = doc
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byPath, doc.StoragePath)
	return nil
}

func (r *MemoryRepo) ExistsByStoragePath(ctx context.Context, storagePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPath[storagePath]
	return ok, nil
}

func sortNewestFirst(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		return newer(docs[i], docs[j])
	})
}

func newer(a, b Document) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// foldText lower-cases s and strips combining marks so "Orçamento" matches "orcamento".
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

var _ Repo = (*MemoryRepo)(nil)
