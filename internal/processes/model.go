package processes

import (
	"fmt"
	"strings"
	"time"
)

// Process is a case file tracked by the court.
type Process struct {
	Numero     string    `json:"numero"`
	Kind       Kind      `json:"kind"`
	Subject    string    `json:"subject"`
	Interested string    `json:"interested,omitempty"`
	Rapporteur string    `json:"rapporteur,omitempty"`
	Status     Status    `json:"status"`
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Kind is the case type.
type Kind string

const (
	KindPrestacaoContas  Kind = "prestacao_contas"
	KindVisto            Kind = "visto"
	KindFiscalizacao     Kind = "fiscalizacao"
	KindMulta            Kind = "multa"
	KindRecursoOrdinario Kind = "recurso_ordinario"
)

var kindLabels = map[Kind]string{
	KindPrestacaoContas:  "Prestação de Contas",
	KindVisto:            "Visto",
	KindFiscalizacao:     "Fiscalização",
	KindMulta:            "Multa",
	KindRecursoOrdinario: "Recurso Ordinário",
}

// Label returns the display name of k.
func (k Kind) Label() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return string(k)
}

// ParseKind accepts a kind code or its label.
func ParseKind(raw string) (Kind, error) {
	clean := strings.TrimSpace(raw)
	for k, label := range kindLabels {
		if strings.EqualFold(clean, string(k)) || strings.EqualFold(clean, label) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, raw)
}

// Status is the case workflow state.
type Status string

const (
	StatusPendente  Status = "pendente"
	StatusEmAnalise Status = "em_analise"
	StatusConcluido Status = "concluido"
	StatusArquivado Status = "arquivado"
)

var statusLabels = map[Status]string{
	StatusPendente:  "Pendente",
	StatusEmAnalise: "Em Análise",
	StatusConcluido: "Concluído",
	StatusArquivado: "Arquivado",
}

// ParseStatus accepts a status code or its label ("Em Análise").
func ParseStatus(raw string) (Status, error) {
	clean := strings.TrimSpace(raw)
	for s, label := range statusLabels {
		if strings.EqualFold(clean, string(s)) || strings.EqualFold(clean, label) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
}

var transitions = map[Status][]Status{
	StatusPendente:  {StatusEmAnalise},
	StatusEmAnalise: {StatusConcluido, StatusPendente},
	StatusConcluido: {StatusArquivado, StatusEmAnalise},
}

// Transition is the single authority for process status changes. Arquivado is terminal.
func Transition(from, to Status) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
