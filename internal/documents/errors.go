package documents

import "errors"

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")

	ErrFileTooLarge        = errors.New("file too large")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrStorageWriteFailed  = errors.New("storage write failed")
	ErrExtractionFailed    = errors.New("text extraction failed")
	ErrMetadataWriteFailed = errors.New("metadata write failed")
	ErrDeleteFailed        = errors.New("delete failed")
	ErrSearchFailed        = errors.New("search failed")
	ErrInvalidTransition   = errors.New("invalid status transition")
	// ErrConflict is returned when a concurrent change wins, or a storage path is reused.
	ErrConflict        = errors.New("conflict")
	ErrProcessNotFound = errors.New("process not found")
)
