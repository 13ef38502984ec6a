package tenancy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ventia/crm-ingest/pkg/logging"
)

// TenantConfig names one company this webhook endpoint ingests into, plus
// optional pipeline/stage overrides for leads created on its behalf.
type TenantConfig struct {
	EmpresaID  string `json:"empresa_id"`
	PipelineID string `json:"pipeline_id,omitempty"`
	EtapaID    string `json:"etapa_id,omitempty"`
}

// CompanyStore is the datastore subset the resolver needs for its
// last-resort fallback.
type CompanyStore interface {
	FirstEmpresaID(ctx context.Context) (string, error)
}

// PgxCompanyStore reads companies from Postgres.
type PgxCompanyStore struct {
	pool interface {
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	}
}

func NewPgxCompanyStore(pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}) *PgxCompanyStore {
	return &PgxCompanyStore{pool: pool}
}

// FirstEmpresaID returns the oldest-created company id.
func (s *PgxCompanyStore) FirstEmpresaID(ctx context.Context) (string, error) {
	var id string
	query := `SELECT id FROM empresas ORDER BY created_at ASC LIMIT 1`
	if err := s.pool.QueryRow(ctx, query).Scan(&id); err != nil {
		return "", fmt.Errorf("tenancy: first empresa: %w", err)
	}
	return id, nil
}

// Resolver produces the tenant list for one inbound request.
type Resolver struct {
	tenantsJSON       string
	defaultEmpresaID  string
	defaultPipelineID string
	defaultEtapaID    string
	companies         CompanyStore
	logger            *logging.Logger
}

type ResolverConfig struct {
	TenantsJSON       string
	DefaultEmpresaID  string
	DefaultPipelineID string
	DefaultEtapaID    string
	Companies         CompanyStore
	Logger            *logging.Logger
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Resolver{
		tenantsJSON:       cfg.TenantsJSON,
		defaultEmpresaID:  cfg.DefaultEmpresaID,
		defaultPipelineID: cfg.DefaultPipelineID,
		defaultEtapaID:    cfg.DefaultEtapaID,
		companies:         cfg.Companies,
		logger:            cfg.Logger,
	}
}

// Resolve returns the tenants for a request, in priority order: explicit
// query parameters, the multi-tenant JSON environment list, the
// single-tenant environment triple, and finally the first company in the
// store. An empty slice means ingestion has nowhere to land.
func (r *Resolver) Resolve(ctx context.Context, query url.Values) []TenantConfig {
	if empresaID := strings.TrimSpace(query.Get("empresa_id")); empresaID != "" {
		return []TenantConfig{{
			EmpresaID:  empresaID,
			PipelineID: strings.TrimSpace(query.Get("pipeline_id")),
			EtapaID:    strings.TrimSpace(query.Get("etapa_id")),
		}}
	}

	if r.tenantsJSON != "" {
		var tenants []TenantConfig
		if err := json.Unmarshal([]byte(r.tenantsJSON), &tenants); err != nil {
			r.logger.Warn("invalid tenants JSON, ignoring", "error", err)
		} else if cleaned := dropEmpty(tenants); len(cleaned) > 0 {
			return cleaned
		}
	}

	if r.defaultEmpresaID != "" {
		return []TenantConfig{{
			EmpresaID:  r.defaultEmpresaID,
			PipelineID: r.defaultPipelineID,
			EtapaID:    r.defaultEtapaID,
		}}
	}

	if r.companies != nil {
		id, err := r.companies.FirstEmpresaID(ctx)
		if err != nil {
			r.logger.Warn("no tenant configured and company fallback failed", "error", err)
			return nil
		}
		return []TenantConfig{{EmpresaID: id}}
	}

	return nil
}

func dropEmpty(tenants []TenantConfig) []TenantConfig {
	out := tenants[:0]
	for _, t := range tenants {
		if strings.TrimSpace(t.EmpresaID) != "" {
			out = append(out, t)
		}
	}
	return out
}
