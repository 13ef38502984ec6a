package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ventia/crm-ingest/internal/leads"
	"github.com/ventia/crm-ingest/internal/messaging"
	"github.com/ventia/crm-ingest/pkg/logging"
)

// EmailSender delivers an owner notification email. Implementations are
// best-effort; errors are logged and swallowed by the service.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one notification email.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
}

// Service records owner notifications for freshly created leads: a
// notificaciones row always, an email when a sender is configured and the
// tenant has an owner address. Neither failure affects ingestion.
type Service struct {
	pool   messaging.Querier
	email  EmailSender
	logger *logging.Logger
}

func NewService(pool messaging.Querier, email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{pool: pool, email: email, logger: logger}
}

// NewLead records a "lead created" notification for the owning tenant.
func (s *Service) NewLead(ctx context.Context, lead *leads.Lead, source string) {
	titulo := "Nuevo lead recibido"
	mensaje := fmt.Sprintf("Se creó el lead %q desde %s (%s)", lead.NombreCompleto, source, lead.Telefono)

	query := `
		INSERT INTO notificaciones (id, empresa_id, lead_id, tipo, titulo, mensaje)
		VALUES ($1, $2, $3, 'nuevo_lead', $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, uuid.New().String(), lead.EmpresaID, lead.ID, titulo, mensaje); err != nil {
		s.logger.Warn("notification insert failed", "error", err, "lead_id", lead.ID)
		return
	}

	if s.email == nil {
		return
	}
	to, err := s.ownerEmail(ctx, lead.EmpresaID)
	if err != nil || to == "" {
		if err != nil {
			s.logger.Warn("owner email lookup failed", "error", err, "empresa_id", lead.EmpresaID)
		}
		return
	}
	if err := s.email.Send(ctx, EmailMessage{To: to, Subject: titulo, Body: mensaje}); err != nil {
		s.logger.Warn("notification email failed", "error", err, "to", to)
	}
}

func (s *Service) ownerEmail(ctx context.Context, empresaID string) (string, error) {
	query := `SELECT COALESCE(email, '') FROM empresas WHERE id = $1`
	var email string
	if err := s.pool.QueryRow(ctx, query, empresaID).Scan(&email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("notify: owner email: %w", err)
	}
	return email, nil
}
