package documents

import (
	"fmt"
	"strings"
	"time"
)

// Document is one file attached to a process.
type Document struct {
	ID             string     `json:"id"`
	ProcessNumber  string     `json:"processNumber"`
	FileName       string     `json:"fileName"`
	DocumentType   Type       `json:"documentType"`
	Description    string     `json:"description,omitempty"`
	FileSizeBytes  int64      `json:"fileSizeBytes"`
	MimeType       string     `json:"mimeType"`
	StoragePath    string     `json:"storagePath"`
	Status         Status     `json:"status"`
	ExtractedText  *string    `json:"extractedText"`
	OCRProcessed   bool       `json:"ocrProcessed"`
	OCRProcessedAt *time.Time `json:"ocrProcessedAt"`
	UploadedBy     string     `json:"uploadedBy"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Status is the review state of a document.
type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusRejected  Status = "rejected"
)

// transitions lists the allowed review moves. Validated is terminal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusValidated, StatusRejected},
	StatusRejected: {StatusPending},
}

// ParseStatus maps raw input onto a Status.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusValidated, StatusRejected:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
}

// Transition is the single authority for review status changes.
func Transition(from, to Status) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Type classifies a document. Values are stable codes; labels are for display.
type Type string

const (
	TypeMainReport       Type = "relatorio_principal"
	TypeFinancialAnnex   Type = "anexo_financeiro"
	TypeTechnicalOpinion Type = "parecer_tecnico"
	TypeOfficialDocument Type = "documento_oficial"
	TypeProofOfPayment   Type = "comprovante_pagamento"
	TypeOther            Type = "outro"
)

var typeLabels = map[Type][]string{
	TypeMainReport:       {"Relatório Principal", "Main Report"},
	TypeFinancialAnnex:   {"Anexo Financeiro", "Financial Annex"},
	TypeTechnicalOpinion: {"Parecer Técnico", "Technical Opinion"},
	TypeOfficialDocument: {"Documento Oficial", "Official Document"},
	TypeProofOfPayment:   {"Comprovante de Pagamento", "Proof of Payment"},
	TypeOther:            {"Outro", "Other"},
}

// Types returns every document type in display order.
func Types() []Type {
	return []Type{TypeMainReport, TypeFinancialAnnex, TypeTechnicalOpinion, TypeOfficialDocument, TypeProofOfPayment, TypeOther}
}

// Label returns the Portuguese display label.
func (t Type) Label() string {
	if labels, ok := typeLabels[t]; ok {
		return labels[0]
	}
	return string(t)
}

// ParseType accepts a type code or any of its display labels, case-insensitively.
func ParseType(raw string) (Type, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return "", fmt.Errorf("%w: documentType is required", ErrInvalidInput)
	}
	for t, labels := range typeLabels {
		if strings.EqualFold(clean, string(t)) {
			return t, nil
		}
		for _, label := range labels {
			if strings.EqualFold(clean, label) {
				return t, nil
			}
		}
	}
	return "", fmt.Errorf("%w: unknown documentType %q", ErrInvalidInput, raw)
}

// AcceptedExtensions are the file suffixes the upload endpoint takes.
var AcceptedExtensions = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "xls": {}, "xlsx": {},
	"jpg": {}, "jpeg": {}, "png": {}, "zip": {},
}

// URLPurpose selects the signed URL lifetime.
type URLPurpose string

const (
	PurposeView     URLPurpose = "view"
	PurposeDownload URLPurpose = "download"
)

// SignedURL is a time-limited link to a stored document.
type SignedURL struct {
	URL       string     `json:"url"`
	Purpose   URLPurpose `json:"purpose"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// UploadResult reports the persisted document and how extraction went.
type UploadResult struct {
	Document            Document
	ExtractionAttempted bool
	ExtractionSucceeded bool
	Warning             string
}
