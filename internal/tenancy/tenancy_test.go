package tenancy

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/ventia/crm-ingest/pkg/logging"
)

type stubCompanies struct {
	id  string
	err error
}

func (s *stubCompanies) FirstEmpresaID(ctx context.Context) (string, error) {
	return s.id, s.err
}

func TestResolveQueryParamsWin(t *testing.T) {
	r := NewResolver(ResolverConfig{
		TenantsJSON:      `[{"empresa_id":"env-tenant"}]`,
		DefaultEmpresaID: "single-tenant",
		Logger:           logging.Default(),
	})
	q := url.Values{}
	q.Set("empresa_id", "query-tenant")
	q.Set("pipeline_id", "pipe-1")
	q.Set("etapa_id", "stage-1")

	tenants := r.Resolve(context.Background(), q)
	if len(tenants) != 1 {
		t.Fatalf("expected 1 tenant, got %d", len(tenants))
	}
	if tenants[0].EmpresaID != "query-tenant" || tenants[0].PipelineID != "pipe-1" || tenants[0].EtapaID != "stage-1" {
		t.Fatalf("unexpected tenant: %+v", tenants[0])
	}
}

func TestResolveJSONList(t *testing.T) {
	r := NewResolver(ResolverConfig{
		TenantsJSON:      `[{"empresa_id":"a","pipeline_id":"p1"},{"empresa_id":"b"},{"empresa_id":""}]`,
		DefaultEmpresaID: "single-tenant",
		Logger:           logging.Default(),
	})

	tenants := r.Resolve(context.Background(), url.Values{})
	if len(tenants) != 2 {
		t.Fatalf("expected 2 tenants (empty dropped), got %d", len(tenants))
	}
	if tenants[0].EmpresaID != "a" || tenants[1].EmpresaID != "b" {
		t.Fatalf("unexpected tenants: %+v", tenants)
	}
}

func TestResolveMalformedJSONFallsThrough(t *testing.T) {
	r := NewResolver(ResolverConfig{
		TenantsJSON:      `not json`,
		DefaultEmpresaID: "single-tenant",
		DefaultEtapaID:   "stage-x",
		Logger:           logging.Default(),
	})

	tenants := r.Resolve(context.Background(), url.Values{})
	if len(tenants) != 1 || tenants[0].EmpresaID != "single-tenant" || tenants[0].EtapaID != "stage-x" {
		t.Fatalf("expected single-tenant fallback, got %+v", tenants)
	}
}

func TestResolveFirstCompanyFallback(t *testing.T) {
	r := NewResolver(ResolverConfig{
		Companies: &stubCompanies{id: "empresa-1"},
		Logger:    logging.Default(),
	})

	tenants := r.Resolve(context.Background(), url.Values{})
	if len(tenants) != 1 || tenants[0].EmpresaID != "empresa-1" {
		t.Fatalf("expected first-company fallback, got %+v", tenants)
	}
}

func TestResolveNothingConfigured(t *testing.T) {
	r := NewResolver(ResolverConfig{
		Companies: &stubCompanies{err: errors.New("empty table")},
		Logger:    logging.Default(),
	})

	if tenants := r.Resolve(context.Background(), url.Values{}); tenants != nil {
		t.Fatalf("expected nil tenants, got %+v", tenants)
	}
}
