package readstate

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ventia/crm-ingest/internal/messaging"
	"github.com/ventia/crm-ingest/pkg/logging"
)

func newPolicy(t *testing.T) (*Policy, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPolicy(mock, messaging.NewStore(mock), logging.Default()), mock
}

func TestNoKeywordsNeverKeepsUnread(t *testing.T) {
	policy, mock := newPolicy(t)

	mock.ExpectQuery("SELECT palabras_clave FROM configuracion_chat").
		WithArgs("empresa-1").
		WillReturnRows(pgxmock.NewRows([]string{"palabras_clave"}).AddRow([]string{"  ", ""}))

	if policy.ShouldKeepUnread(context.Background(), "empresa-1", "lead-1") {
		t.Fatal("blank keyword list must not keep unread")
	}
	// No message query may run when the keyword list is empty.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestKeywordMatchKeepsUnreadAndResurfaces(t *testing.T) {
	policy, mock := newPolicy(t)

	mock.ExpectQuery("SELECT palabras_clave FROM configuracion_chat").
		WithArgs("empresa-1").
		WillReturnRows(pgxmock.NewRows([]string{"palabras_clave"}).AddRow([]string{" Urgente "}))
	mock.ExpectQuery("SELECT id, content, read").
		WithArgs("lead-1", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "content", "read"}).
			AddRow("m1", "Esto es Urgente por favor", true).
			AddRow("m2", "hola", false))
	mock.ExpectExec("UPDATE mensajes SET read = false").
		WithArgs("m1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if !policy.ShouldKeepUnread(context.Background(), "empresa-1", "lead-1") {
		t.Fatal("keyword match must keep unread")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNoMatchReturnsFalse(t *testing.T) {
	policy, mock := newPolicy(t)

	mock.ExpectQuery("SELECT palabras_clave FROM configuracion_chat").
		WithArgs("empresa-1").
		WillReturnRows(pgxmock.NewRows([]string{"palabras_clave"}).AddRow([]string{"urgente"}))
	mock.ExpectQuery("SELECT id, content, read").
		WithArgs("lead-1", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "content", "read"}).
			AddRow("m1", "todo bien", false))

	if policy.ShouldKeepUnread(context.Background(), "empresa-1", "lead-1") {
		t.Fatal("no keyword match must not keep unread")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryFailureDefaultsToMarkRead(t *testing.T) {
	policy, mock := newPolicy(t)

	mock.ExpectQuery("SELECT palabras_clave FROM configuracion_chat").
		WithArgs("empresa-1").
		WillReturnError(errors.New("connection reset"))

	if policy.ShouldKeepUnread(context.Background(), "empresa-1", "lead-1") {
		t.Fatal("config failure must default to false")
	}
}
