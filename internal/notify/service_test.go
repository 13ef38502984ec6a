package notify

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ventia/crm-ingest/internal/leads"
	"github.com/ventia/crm-ingest/pkg/logging"
)

type stubEmail struct {
	sent []EmailMessage
	err  error
}

func (s *stubEmail) Send(ctx context.Context, msg EmailMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func testLead() *leads.Lead {
	return &leads.Lead{
		ID:             "lead-1",
		EmpresaID:      "empresa-1",
		NombreCompleto: "Nuevo Lead WhatsApp 5215550100",
		Telefono:       "5215550100",
	}
}

func TestNewLeadInsertsNotification(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO notificaciones").
		WithArgs(pgxmock.AnyArg(), "empresa-1", "lead-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService(mock, nil, logging.Default())
	svc.NewLead(context.Background(), testLead(), "whatsapp")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNewLeadSendsOwnerEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO notificaciones").
		WithArgs(pgxmock.AnyArg(), "empresa-1", "lead-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("empresa-1").
		WillReturnRows(pgxmock.NewRows([]string{"email"}).AddRow("owner@example.com"))

	email := &stubEmail{}
	svc := NewService(mock, email, logging.Default())
	svc.NewLead(context.Background(), testLead(), "whatsapp")

	if len(email.sent) != 1 || email.sent[0].To != "owner@example.com" {
		t.Fatalf("expected owner email, got %+v", email.sent)
	}
}

func TestNewLeadInsertFailureAbsorbed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO notificaciones").
		WithArgs(pgxmock.AnyArg(), "empresa-1", "lead-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("table missing"))

	email := &stubEmail{}
	svc := NewService(mock, email, logging.Default())
	// Must not panic or surface the error; email is skipped after a failed insert.
	svc.NewLead(context.Background(), testLead(), "whatsapp")

	if len(email.sent) != 0 {
		t.Fatal("email must not be sent when the insert fails")
	}
}

func TestNewLeadEmailFailureAbsorbed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO notificaciones").
		WithArgs(pgxmock.AnyArg(), "empresa-1", "lead-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("empresa-1").
		WillReturnRows(pgxmock.NewRows([]string{"email"}).AddRow("owner@example.com"))

	svc := NewService(mock, &stubEmail{err: errors.New("ses down")}, logging.Default())
	svc.NewLead(context.Background(), testLead(), "whatsapp")
}
