package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"tcontas-backend/internal/shared/storage/object"
)

type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      int
	deletes   int
	putErr    error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, key string, r io.Reader, size int64, opts object.PutOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	if _, ok := f.objects[key]; ok && !opts.Upsert {
		return object.ErrObjectExists
	}
	data, _ := io.ReadAll(r)
	f.objects[key] = data
	return nil
}

func (f *fakeStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, object.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.objects[key]; !ok {
		return object.ErrObjectNotFound
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) Stat(ctx context.Context, key string) (object.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return object.ObjectInfo{}, object.ErrObjectNotFound
	}
	return object.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := f.Stat(ctx, key); err != nil {
		return "", err
	}
	return "https://signed.example/" + key + "?ttl=" + ttl.String(), nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]object.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []object.ObjectInfo
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, object.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.calls++
	return f.text, f.err
}

// countingRepo wraps MemoryRepo to count calls and inject failures.
type countingRepo struct {
	*MemoryRepo
	creates   int
	createErr error
	deleteErr error
	searchErr error
}

func (r *countingRepo) Create(ctx context.Context, doc Document) error {
	r.creates++
	if r.createErr != nil {
		return r.createErr
	}
	return r.MemoryRepo.Create(ctx, doc)
}

func (r *countingRepo) Delete(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.MemoryRepo.Delete(ctx, id)
}

func (r *countingRepo) Search(ctx context.Context, query, processNumber string) ([]Document, error) {
	if r.searchErr != nil {
		return nil, r.searchErr
	}
	return r.MemoryRepo.Search(ctx, query, processNumber)
}

type fakeProcesses map[string]bool

func (f fakeProcesses) Exists(ctx context.Context, numero string) (bool, error) {
	return f[numero], nil
}

type fixture struct {
	svc   *Service
	store *fakeStore
	repo  *countingRepo
	ext   *fakeExtractor
	clock time.Time
}

func newFixture() *fixture {
	f := &fixture{
		store: newFakeStore(),
		repo:  &countingRepo{MemoryRepo: NewMemoryRepo()},
		ext:   &fakeExtractor{text: "  Relatório de orçamento  "},
		clock: time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
	}
	f.svc = &Service{
		Store:     f.store,
		Repo:      f.repo,
		Extractor: f.ext,
		Now: func() time.Time {
			f.clock = f.clock.Add(time.Millisecond)
			return f.clock
		},
	}
	return f
}

func pdfUpload(size int) UploadInput {
	return UploadInput{
		UserID:        "google:42",
		ProcessNumber: "0001/2024",
		FileName:      "report.pdf",
		DocumentType:  "Main Report",
		ContentType:   "application/pdf",
		Size:          int64(size),
		Body:          bytes.NewReader(bytes.Repeat([]byte("a"), size)),
	}
}

func TestUploadPDFExtractsText(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Upload(context.Background(), pdfUpload(2<<20))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	doc := res.Document
	if doc.FileName != "report.pdf" || doc.MimeType != "application/pdf" || doc.Status != StatusPending {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.DocumentType != TypeMainReport {
		t.Fatalf("expected main report type, got %s", doc.DocumentType)
	}
	if !doc.OCRProcessed || doc.ExtractedText == nil || *doc.ExtractedText != "Relatório de orçamento" || doc.OCRProcessedAt == nil {
		t.Fatalf("expected extracted text, got %+v", doc)
	}
	if !res.ExtractionAttempted || !res.ExtractionSucceeded || res.Warning != "" {
		t.Fatalf("unexpected result flags %+v", res)
	}
	if !strings.HasPrefix(doc.StoragePath, "google:42/0001-2024/") || !strings.HasSuffix(doc.StoragePath, ".pdf") {
		t.Fatalf("unexpected storage path %s", doc.StoragePath)
	}
	if doc.FileSizeBytes != 2<<20 {
		t.Fatalf("expected size %d, got %d", 2<<20, doc.FileSizeBytes)
	}
	if f.store.puts != 1 || f.repo.creates != 1 {
		t.Fatalf("expected one put and one insert, got %d/%d", f.store.puts, f.repo.creates)
	}
}

func TestUploadTooLargeTouchesNothing(t *testing.T) {
	f := newFixture()
	in := pdfUpload(0)
	in.Size = 60 << 20
	in.UserID = ""

	_, err := f.svc.Upload(context.Background(), in)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge before identity check, got %v", err)
	}
	if f.store.puts != 0 || f.repo.creates != 0 || f.ext.calls != 0 {
		t.Fatalf("expected no I/O, got puts=%d creates=%d extracts=%d", f.store.puts, f.repo.creates, f.ext.calls)
	}
}

func TestUploadBoundaryIsInclusive(t *testing.T) {
	f := newFixture()
	f.svc.MaxUploadBytes = 1024
	if _, err := f.svc.Upload(context.Background(), pdfUpload(1024)); err != nil {
		t.Fatalf("expected exactly-at-limit upload to pass: %v", err)
	}
	if _, err := f.svc.Upload(context.Background(), pdfUpload(1025)); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestUploadUnknownSizeStillGated(t *testing.T) {
	f := newFixture()
	f.svc.MaxUploadBytes = 10
	in := pdfUpload(11)
	in.Size = -1
	if _, err := f.svc.Upload(context.Background(), in); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if f.store.puts != 0 {
		t.Fatalf("expected no storage write")
	}
}

func TestUploadRequiresIdentity(t *testing.T) {
	f := newFixture()
	in := pdfUpload(10)
	in.UserID = "  "
	if _, err := f.svc.Upload(context.Background(), in); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if f.store.puts != 0 {
		t.Fatalf("expected no storage write")
	}
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*UploadInput)
	}{
		{name: "missing type", mutate: func(in *UploadInput) { in.DocumentType = "" }},
		{name: "unknown type", mutate: func(in *UploadInput) { in.DocumentType = "Contrato" }},
		{name: "bad extension", mutate: func(in *UploadInput) { in.FileName = "script.exe" }},
		{name: "no extension", mutate: func(in *UploadInput) { in.FileName = "README" }},
		{name: "missing process", mutate: func(in *UploadInput) { in.ProcessNumber = " " }},
		{name: "missing file", mutate: func(in *UploadInput) { in.Body = nil }},
		{name: "long description", mutate: func(in *UploadInput) { in.Description = strings.Repeat("x", 2001) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			in := pdfUpload(10)
			tt.mutate(&in)
			if _, err := f.svc.Upload(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if f.store.puts != 0 {
				t.Fatalf("expected no storage write")
			}
		})
	}
}

func TestUploadUnknownProcess(t *testing.T) {
	f := newFixture()
	f.svc.Processes = fakeProcesses{"0002/2024": true}
	if _, err := f.svc.Upload(context.Background(), pdfUpload(10)); !errors.Is(err, ErrProcessNotFound) {
		t.Fatalf("expected ErrProcessNotFound, got %v", err)
	}
}

func TestUploadZipSkipsExtraction(t *testing.T) {
	f := newFixture()
	in := pdfUpload(64)
	in.FileName = "anexos.zip"
	in.ContentType = "application/zip"

	res, err := f.svc.Upload(context.Background(), in)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if f.ext.calls != 0 {
		t.Fatalf("extraction must not be attempted for zip")
	}
	if res.ExtractionAttempted || res.Document.ExtractedText != nil || res.Document.OCRProcessed || res.Document.OCRProcessedAt != nil {
		t.Fatalf("unexpected extraction state %+v", res)
	}
}

func TestUploadExtractionFailureIsNonFatal(t *testing.T) {
	f := newFixture()
	f.ext.err = errors.New("malformed pdf")

	res, err := f.svc.Upload(context.Background(), pdfUpload(10))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.ExtractionAttempted || res.ExtractionSucceeded || res.Warning == "" {
		t.Fatalf("unexpected flags %+v", res)
	}
	if res.Document.ExtractedText != nil || res.Document.OCRProcessed || res.Document.OCRProcessedAt != nil {
		t.Fatalf("expected no text, got %+v", res.Document)
	}
	if f.repo.creates != 1 {
		t.Fatalf("expected row to be written")
	}
}

func TestUploadBlankExtractionIsNotProcessed(t *testing.T) {
	f := newFixture()
	f.ext.text = " \n\t "
	res, err := f.svc.Upload(context.Background(), pdfUpload(10))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Document.OCRProcessed || res.Document.ExtractedText != nil {
		t.Fatalf("blank text must not mark the document processed: %+v", res.Document)
	}
}

func TestUploadSniffsGenericMimeType(t *testing.T) {
	f := newFixture()
	in := pdfUpload(0)
	in.ContentType = "application/octet-stream"
	in.Body = strings.NewReader("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")
	res, err := f.svc.Upload(context.Background(), in)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Document.MimeType != "application/pdf" {
		t.Fatalf("expected sniffed application/pdf, got %s", res.Document.MimeType)
	}
	if f.ext.calls != 1 {
		t.Fatalf("expected extraction for sniffed pdf")
	}
}

func TestUploadStorageFailureWritesNoRow(t *testing.T) {
	f := newFixture()
	f.store.putErr = errors.New("bucket unavailable")
	if _, err := f.svc.Upload(context.Background(), pdfUpload(10)); !errors.Is(err, ErrStorageWriteFailed) {
		t.Fatalf("expected ErrStorageWriteFailed, got %v", err)
	}
	if f.repo.creates != 0 || f.ext.calls != 0 {
		t.Fatalf("expected no extraction and no row")
	}
}

func TestUploadMetadataFailureRemovesObject(t *testing.T) {
	f := newFixture()
	f.repo.createErr = errors.New("connection reset")
	if _, err := f.svc.Upload(context.Background(), pdfUpload(10)); !errors.Is(err, ErrMetadataWriteFailed) {
		t.Fatalf("expected ErrMetadataWriteFailed, got %v", err)
	}
	if len(f.store.objects) != 0 || f.store.deletes != 1 {
		t.Fatalf("expected compensating delete, objects=%d deletes=%d", len(f.store.objects), f.store.deletes)
	}
}

func seedDocs(t *testing.T, f *fixture, texts ...string) []Document {
	t.Helper()
	var out []Document
	for i, text := range texts {
		f.ext.text = text
		in := pdfUpload(10 + i)
		res, err := f.svc.Upload(context.Background(), in)
		if err != nil {
			t.Fatalf("seed upload: %v", err)
		}
		out = append(out, res.Document)
	}
	return out
}

func TestSearchShortQueryReturnsList(t *testing.T) {
	f := newFixture()
	seedDocs(t, f, "orçamento", "parecer", "ata")

	list, _ := f.svc.List(context.Background(), "0001/2024")
	for _, q := range []string{"", "  ", "or", "çã"} {
		got, err := f.svc.Search(context.Background(), "0001/2024", q)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(got) != len(list) {
			t.Fatalf("Search(%q) returned %d, want full list %d", q, len(got), len(list))
		}
		for i := range got {
			if got[i].ID != list[i].ID {
				t.Fatalf("Search(%q) order differs from list", q)
			}
		}
	}
}

func TestSearchScenarioOrcament(t *testing.T) {
	f := newFixture()
	docs := seedDocs(t, f,
		"Relatório do orçamento municipal",
		"ata da sessão",
		"Parecer sobre Orçamento e orçamentos anexos",
		"nota de empenho",
		"comprovante",
	)

	got, err := f.svc.Search(context.Background(), "0001/2024", "orçament")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %v", ids(got))
	}
	if got[0].ID != docs[2].ID || got[1].ID != docs[0].ID {
		t.Fatalf("expected repository ranking to be preserved, got %v", ids(got))
	}
}

func TestSearchFailureIsTyped(t *testing.T) {
	f := newFixture()
	f.repo.searchErr = errors.New("function search_documentos does not exist")
	if _, err := f.svc.Search(context.Background(), "P1", "orçamento"); !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("expected ErrSearchFailed, got %v", err)
	}
}

func TestDeleteRoundTrip(t *testing.T) {
	f := newFixture()
	doc := seedDocs(t, f, "texto")[0]

	if err := f.svc.Delete(context.Background(), doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, _ := f.svc.List(context.Background(), doc.ProcessNumber)
	for _, d := range list {
		if d.ID == doc.ID {
			t.Fatalf("deleted document still listed")
		}
	}
	if _, err := f.store.SignedURL(context.Background(), doc.StoragePath, time.Minute); !errors.Is(err, object.ErrObjectNotFound) {
		t.Fatalf("expected storage path to be unreachable, got %v", err)
	}
	if _, err := f.svc.SignedURL(context.Background(), doc.ID, PurposeView); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted document, got %v", err)
	}
}

func TestDeleteStorageFailureKeepsRow(t *testing.T) {
	f := newFixture()
	doc := seedDocs(t, f, "texto")[0]
	f.store.deleteErr = errors.New("timeout")

	if err := f.svc.Delete(context.Background(), doc.ID); !errors.Is(err, ErrDeleteFailed) {
		t.Fatalf("expected ErrDeleteFailed, got %v", err)
	}
	if _, err := f.svc.Get(context.Background(), doc.ID); err != nil {
		t.Fatalf("row must survive a storage failure: %v", err)
	}
}

func TestDeleteMetadataFailureReported(t *testing.T) {
	f := newFixture()
	doc := seedDocs(t, f, "texto")[0]
	f.repo.deleteErr = errors.New("deadlock")

	if err := f.svc.Delete(context.Background(), doc.ID); !errors.Is(err, ErrDeleteFailed) {
		t.Fatalf("expected ErrDeleteFailed, got %v", err)
	}
	if _, ok := f.store.objects[doc.StoragePath]; ok {
		t.Fatalf("storage object should already be gone")
	}
}

func TestSetStatusFollowsWorkflow(t *testing.T) {
	f := newFixture()
	doc := seedDocs(t, f, "texto")[0]
	ctx := context.Background()

	if _, err := f.svc.SetStatus(ctx, doc.ID, "rejected"); err != nil {
		t.Fatalf("pending -> rejected: %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, doc.ID, "validated"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("rejected -> validated should fail, got %v", err)
	}
	if _, err := f.svc.SetStatus(ctx, doc.ID, "pending"); err != nil {
		t.Fatalf("rejected -> pending: %v", err)
	}
	updated, err := f.svc.SetStatus(ctx, doc.ID, "validated")
	if err != nil {
		t.Fatalf("pending -> validated: %v", err)
	}
	if updated.Status != StatusValidated {
		t.Fatalf("expected validated, got %s", updated.Status)
	}
	if _, err := f.svc.SetStatus(ctx, doc.ID, "pending"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("validated is terminal, got %v", err)
	}
}

func TestSignedURLTTLByPurpose(t *testing.T) {
	f := newFixture()
	doc := seedDocs(t, f, "texto")[0]
	ctx := context.Background()

	view, err := f.svc.SignedURL(ctx, doc.ID, "")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Purpose != PurposeView || !strings.HasSuffix(view.URL, "ttl=1h0m0s") {
		t.Fatalf("unexpected view link %+v", view)
	}
	download, err := f.svc.SignedURL(ctx, doc.ID, PurposeDownload)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !strings.HasSuffix(download.URL, "ttl=1m0s") {
		t.Fatalf("unexpected download link %+v", download)
	}
	if _, err := f.svc.SignedURL(ctx, doc.ID, "print"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown purpose, got %v", err)
	}
}

func TestGetRejectsMalformedID(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Get(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
