package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"tcontas-backend/internal/extract"
	"tcontas-backend/internal/shared/metrics"
	"tcontas-backend/internal/shared/storage/object"
	"tcontas-backend/internal/shared/telemetry"
	"tcontas-backend/internal/shared/util"
)

const (
	// MaxUploadBytes is the 50 MiB upload ceiling.
	MaxUploadBytes int64 = 50 << 20

	DefaultSearchMinChars = 3
	DefaultViewTTL        = time.Hour
	DefaultDownloadTTL    = time.Minute

	maxDescriptionRunes   = 2000
	maxProcessNumberRunes = 64
	uploadCacheControl    = "max-age=3600"
)

// TextExtractor turns file bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ProcessLookup confirms that a process number exists.
type ProcessLookup interface {
	Exists(ctx context.Context, numero string) (bool, error)
}

// Service contains business logic for documents.
type Service struct {
	Store     object.ObjectStore
	Repo      Repo
	Extractor TextExtractor
	Processes ProcessLookup

	MaxUploadBytes int64
	SearchMinChars int
	ViewTTL        time.Duration
	DownloadTTL    time.Duration

	Now func() time.Time
}

// UploadInput carries one request's upload fields.
type UploadInput struct {
	UserID        string
	ProcessNumber string
	FileName      string
	DocumentType  string
	Description   string
	ContentType   string
	Size          int64
	Body          io.Reader
}

// Upload runs the upload pipeline: size gate, identity, validation, storage
// write, best-effort extraction, metadata insert.
func (s *Service) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	limit := s.maxUploadBytes()
	if in.Size > limit {
		metrics.IncUpload("too_large")
		return UploadResult{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, in.Size, limit)
	}
	if strings.TrimSpace(in.UserID) == "" {
		metrics.IncUpload("unauthenticated")
		return UploadResult{}, ErrNotAuthenticated
	}

	docType, processNumber, fileName, ext, err := s.validateUpload(ctx, in)
	if err != nil {
		metrics.IncUpload("invalid")
		return UploadResult{}, err
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, limit+1))
	if err != nil {
		metrics.IncUpload("invalid")
		return UploadResult{}, fmt.Errorf("%w: unable to read file: %v", ErrInvalidInput, err)
	}
	if int64(len(data)) > limit {
		metrics.IncUpload("too_large")
		return UploadResult{}, fmt.Errorf("%w: body exceeds %d bytes", ErrFileTooLarge, limit)
	}
	mimeType := resolveMimeType(in.ContentType, data)

	now := s.now()
	storagePath := fmt.Sprintf("%s/%s/%d.%s", util.PathSegment(in.UserID), util.PathSegment(processNumber), now.UnixMilli(), ext)

	err = s.Store.Put(ctx, storagePath, bytes.NewReader(data), int64(len(data)), object.PutOptions{
		ContentType:  mimeType,
		CacheControl: uploadCacheControl,
		Upsert:       false,
	})
	if err != nil {
		metrics.IncUpload("storage_failed")
		telemetry.Error("documents.storage_write_failed", map[string]any{
			"storage_path": storagePath,
			"error":        err,
		})
		return UploadResult{}, fmt.Errorf("%w: %v", ErrStorageWriteFailed, err)
	}

	doc := Document{
		ID:            uuid.NewString(),
		ProcessNumber: processNumber,
		FileName:      fileName,
		DocumentType:  docType,
		Description:   strings.TrimSpace(in.Description),
		FileSizeBytes: int64(len(data)),
		MimeType:      mimeType,
		StoragePath:   storagePath,
		Status:        StatusPending,
		UploadedBy:    in.UserID,
		CreatedAt:     now,
	}

	result := UploadResult{}
	if s.Extractor != nil && extract.Supported(mimeType) {
		result.ExtractionAttempted = true
		text, err := s.runExtraction(ctx, data, mimeType)
		if err != nil {
			telemetry.Warn("documents.extraction_failed", map[string]any{
				"storage_path": storagePath,
				"mime_type":    mimeType,
				"error":        fmt.Errorf("%w: %v", ErrExtractionFailed, err),
			})
			result.Warning = "text extraction failed; the document was saved without searchable text"
		} else {
			result.ExtractionSucceeded = true
			if text != "" {
				processedAt := s.now()
				doc.ExtractedText = &text
				doc.OCRProcessed = true
				doc.OCRProcessedAt = &processedAt
			} else {
				result.Warning = "no text was found in the document"
			}
		}
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		metrics.IncUpload("metadata_failed")
		s.compensate(ctx, storagePath, err)
		return UploadResult{}, fmt.Errorf("%w: %v", ErrMetadataWriteFailed, err)
	}

	metrics.IncUpload("completed")
	telemetry.Info("documents.uploaded", map[string]any{
		"document_id":    doc.ID,
		"process_number": doc.ProcessNumber,
		"mime_type":      doc.MimeType,
		"size_bytes":     doc.FileSizeBytes,
		"ocr_processed":  doc.OCRProcessed,
	})
	result.Document = doc
	return result, nil
}

func (s *Service) validateUpload(ctx context.Context, in UploadInput) (Type, string, string, string, error) {
	processNumber := strings.TrimSpace(in.ProcessNumber)
	if processNumber == "" || utf8.RuneCountInString(processNumber) > maxProcessNumberRunes {
		return "", "", "", "", fmt.Errorf("%w: process number is required", ErrInvalidInput)
	}
	if util.PathSegment(processNumber) == "" {
		return "", "", "", "", fmt.Errorf("%w: invalid process number", ErrInvalidInput)
	}
	if in.Body == nil {
		return "", "", "", "", fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		return "", "", "", "", fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	ext := util.FileExtension(fileName)
	if _, ok := AcceptedExtensions[ext]; !ok {
		return "", "", "", "", fmt.Errorf("%w: file extension %q is not accepted", ErrInvalidInput, ext)
	}
	docType, err := ParseType(in.DocumentType)
	if err != nil {
		return "", "", "", "", err
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionRunes {
		return "", "", "", "", fmt.Errorf("%w: description is too long", ErrInvalidInput)
	}
	if s.Processes != nil {
		exists, err := s.Processes.Exists(ctx, processNumber)
		if err != nil {
			return "", "", "", "", fmt.Errorf("lookup process: %w", err)
		}
		if !exists {
			return "", "", "", "", ErrProcessNotFound
		}
	}
	return docType, processNumber, fileName, ext, nil
}

func (s *Service) runExtraction(ctx context.Context, data []byte, mimeType string) (string, error) {
	started := time.Now()
	text, err := s.Extractor.Extract(ctx, data, mimeType)
	metrics.ObserveExtraction(extract.Kind(mimeType), err == nil, time.Since(started).Seconds())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// compensate removes the object written for an upload whose row could not be inserted.
// Leftovers are reclaimed by the sweeper.
func (s *Service) compensate(ctx context.Context, storagePath string, cause error) {
	fields := map[string]any{
		"storage_path": storagePath,
		"error":        cause,
	}
	if err := s.Store.Delete(context.WithoutCancel(ctx), storagePath); err != nil {
		fields["cleanup_error"] = err
		telemetry.Error("documents.orphan_left", fields)
		return
	}
	telemetry.Warn("documents.orphan_removed", fields)
}

// List returns the documents of a process, newest first.
func (s *Service) List(ctx context.Context, processNumber string) ([]Document, error) {
	processNumber = strings.TrimSpace(processNumber)
	if processNumber == "" {
		return nil, fmt.Errorf("%w: process number is required", ErrInvalidInput)
	}
	return s.Repo.ListByProcess(ctx, processNumber)
}

// Search returns the repository search result for queries that reach the
// minimum length, and the plain process list otherwise.
func (s *Service) Search(ctx context.Context, processNumber, query string) ([]Document, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < s.searchMinChars() {
		return s.List(ctx, processNumber)
	}
	docs, err := s.Repo.Search(ctx, q, strings.TrimSpace(processNumber))
	if err != nil {
		metrics.IncSearch("failed")
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	metrics.IncSearch("ok")
	return docs, nil
}

// Get returns one document.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return Document{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, strings.TrimSpace(id))
}

// Delete removes the stored object first and the row second. A storage failure
// keeps the row; a row failure after the object is gone is reported as ErrDeleteFailed.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, doc.StoragePath); err != nil && !errors.Is(err, object.ErrObjectNotFound) {
		return fmt.Errorf("%w: storage: %v", ErrDeleteFailed, err)
	}
	if err := s.Repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		telemetry.Error("documents.inverse_orphan", map[string]any{
			"document_id":  doc.ID,
			"storage_path": doc.StoragePath,
			"error":        err,
		})
		return fmt.Errorf("%w: metadata: %v", ErrDeleteFailed, err)
	}
	telemetry.Info("documents.deleted", map[string]any{
		"document_id":    doc.ID,
		"process_number": doc.ProcessNumber,
	})
	return nil
}

// SetStatus applies a review decision through Transition.
func (s *Service) SetStatus(ctx context.Context, id, rawStatus string) (Document, error) {
	target, err := ParseStatus(rawStatus)
	if err != nil {
		return Document{}, err
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if err := Transition(doc.Status, target); err != nil {
		return Document{}, err
	}
	if err := s.Repo.UpdateStatus(ctx, doc.ID, doc.Status, target); err != nil {
		return Document{}, err
	}
	telemetry.Info("documents.status_changed", map[string]any{
		"document_id": doc.ID,
		"from":        doc.Status,
		"to":          target,
	})
	doc.Status = target
	return doc, nil
}

// SignedURL issues a time-limited link: one hour to view, one minute to download.
func (s *Service) SignedURL(ctx context.Context, id string, purpose URLPurpose) (SignedURL, error) {
	var ttl time.Duration
	switch purpose {
	case PurposeView, "":
		purpose = PurposeView
		ttl = s.ViewTTL
		if ttl <= 0 {
			ttl = DefaultViewTTL
		}
	case PurposeDownload:
		ttl = s.DownloadTTL
		if ttl <= 0 {
			ttl = DefaultDownloadTTL
		}
	default:
		return SignedURL{}, fmt.Errorf("%w: purpose must be view or download", ErrInvalidInput)
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return SignedURL{}, err
	}
	issued := s.now()
	url, err := s.Store.SignedURL(ctx, doc.StoragePath, ttl)
	if err != nil {
		if errors.Is(err, object.ErrObjectNotFound) {
			return SignedURL{}, ErrNotFound
		}
		return SignedURL{}, fmt.Errorf("sign url: %w", err)
	}
	return SignedURL{URL: url, Purpose: purpose, ExpiresAt: issued.Add(ttl)}, nil
}

func (s *Service) maxUploadBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return MaxUploadBytes
}

func (s *Service) searchMinChars() int {
	if s.SearchMinChars > 0 {
		return s.SearchMinChars
	}
	return DefaultSearchMinChars
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// resolveMimeType keeps the declared type unless it is missing or generic, in which case the bytes are sniffed.
func resolveMimeType(declared string, data []byte) string {
	clean := extract.NormalizeMimeType(declared)
	if clean != "" && clean != "application/octet-stream" {
		return clean
	}
	return extract.NormalizeMimeType(mimetype.Detect(data).String())
}
