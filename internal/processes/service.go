package processes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"tcontas-backend/internal/shared/telemetry"
)

// Service holds process business rules.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// CreateInput is the body of a new process.
type CreateInput struct {
	Numero     string `json:"numero"`
	Kind       string `json:"kind"`
	Subject    string `json:"subject"`
	Interested string `json:"interested"`
	Rapporteur string `json:"rapporteur"`
}

// Create registers a process in the pendente state.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Process, error) {
	numero := strings.TrimSpace(in.Numero)
	if numero == "" || utf8.RuneCountInString(numero) > 64 {
		return Process{}, fmt.Errorf("%w: numero is required (max 64 characters)", ErrInvalidInput)
	}
	kind, err := ParseKind(in.Kind)
	if err != nil {
		return Process{}, err
	}
	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return Process{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	now := s.now()
	p := Process{
		Numero:     numero,
		Kind:       kind,
		Subject:    subject,
		Interested: strings.TrimSpace(in.Interested),
		Rapporteur: strings.TrimSpace(in.Rapporteur),
		Status:     StatusPendente,
		CreatedBy:  userID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		return Process{}, err
	}
	telemetry.Info("processes.created", map[string]any{"numero": p.Numero, "kind": p.Kind})
	return p, nil
}

func (s *Service) Get(ctx context.Context, numero string) (Process, error) {
	return s.Repo.Get(ctx, strings.TrimSpace(numero))
}

// List returns processes filtered by optional kind and status.
func (s *Service) List(ctx context.Context, rawKind, rawStatus string) ([]Process, error) {
	var filter ListFilter
	if strings.TrimSpace(rawKind) != "" {
		kind, err := ParseKind(rawKind)
		if err != nil {
			return nil, err
		}
		filter.Kind = kind
	}
	if strings.TrimSpace(rawStatus) != "" {
		status, err := ParseStatus(rawStatus)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	return s.Repo.List(ctx, filter)
}

// SetStatus moves a process through the workflow.
func (s *Service) SetStatus(ctx context.Context, numero, rawStatus string) (Process, error) {
	target, err := ParseStatus(rawStatus)
	if err != nil {
		return Process{}, err
	}
	p, err := s.Get(ctx, numero)
	if err != nil {
		return Process{}, err
	}
	if err := Transition(p.Status, target); err != nil {
		return Process{}, err
	}
	if err := s.Repo.UpdateStatus(ctx, p.Numero, p.Status, target); err != nil {
		return Process{}, err
	}
	telemetry.Info("processes.status_changed", map[string]any{
		"numero": p.Numero,
		"from":   p.Status,
		"to":     target,
	})
	p.Status = target
	p.UpdatedAt = s.now()
	return p, nil
}

// Exists reports whether numero is registered.
func (s *Service) Exists(ctx context.Context, numero string) (bool, error) {
	_, err := s.Get(ctx, numero)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
