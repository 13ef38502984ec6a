package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the pgx surface the repository needs; satisfied by
// pgxpool.Pool and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool Querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(pool Querier) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const leadColumns = `id, empresa_id, nombre_completo, telefono, pipeline_id, etapa_id, prioridad, COALESCE(asignado_a, ''), created_at`

// SearchByPhoneGlobal scans every tenant for leads whose stored phone
// contains the normalized value.
func (r *PostgresRepository) SearchByPhoneGlobal(ctx context.Context, phone string) ([]Lead, error) {
	if phone == "" {
		return nil, nil
	}
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE telefono LIKE '%' || $1 || '%'
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, phone)
	if err != nil {
		return nil, fmt.Errorf("leads: global phone search: %w", err)
	}
	defer rows.Close()
	return scanLeads(rows)
}

// FindInTenant matches by substring containment in either direction: a
// stored phone with a country code matches an inbound value without one
// and vice versa.
func (r *PostgresRepository) FindInTenant(ctx context.Context, empresaID, phone string) (*Lead, error) {
	if phone == "" {
		return nil, ErrLeadNotFound
	}
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE empresa_id = $1
		  AND (telefono LIKE '%' || $2 || '%' OR $2 LIKE '%' || telefono || '%')
		ORDER BY created_at ASC
		LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, empresaID, phone)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: tenant phone lookup: %w", err)
	}
	return lead, nil
}

// Create inserts a new row. A constraint violation from a concurrent
// insert surfaces as an error the resolver recovers from by re-querying.
func (r *PostgresRepository) Create(ctx context.Context, lead *Lead) error {
	if lead.EmpresaID == "" {
		return ErrMissingEmpresaID
	}
	if lead.Telefono == "" {
		return ErrMissingTelefono
	}
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Prioridad == "" {
		lead.Prioridad = "media"
	}
	query := `
		INSERT INTO leads (id, empresa_id, nombre_completo, telefono, pipeline_id, etapa_id, prioridad, asignado_a)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''))
		RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		lead.ID,
		lead.EmpresaID,
		lead.NombreCompleto,
		lead.Telefono,
		lead.PipelineID,
		lead.EtapaID,
		lead.Prioridad,
		lead.AsignadoA,
	).Scan(&lead.CreatedAt); err != nil {
		return fmt.Errorf("leads: insert failed: %w", err)
	}
	return nil
}

// UpdateName backfills the display name once a real contact name is known.
func (r *PostgresRepository) UpdateName(ctx context.Context, id, name string) error {
	query := `UPDATE leads SET nombre_completo = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, name); err != nil {
		return fmt.Errorf("leads: update name: %w", err)
	}
	return nil
}

func scanLeads(rows pgx.Rows) ([]Lead, error) {
	var out []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("leads: scan row: %w", err)
		}
		out = append(out, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: iterate rows: %w", err)
	}
	return out, nil
}

func scanLead(row pgx.Row) (*Lead, error) {
	var lead Lead
	var pipelineID, etapaID *string
	if err := row.Scan(
		&lead.ID,
		&lead.EmpresaID,
		&lead.NombreCompleto,
		&lead.Telefono,
		&pipelineID,
		&etapaID,
		&lead.Prioridad,
		&lead.AsignadoA,
		&lead.CreatedAt,
	); err != nil {
		return nil, err
	}
	if pipelineID != nil {
		lead.PipelineID = *pipelineID
	}
	if etapaID != nil {
		lead.EtapaID = *etapaID
	}
	return &lead, nil
}

// PostgresCatalog resolves pipeline/stage defaults from the datastore.
type PostgresCatalog struct {
	pool Querier
}

func NewPostgresCatalog(pool Querier) *PostgresCatalog {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresCatalog{pool: pool}
}

// OldestPipelineID returns the tenant's oldest-created pipeline.
func (c *PostgresCatalog) OldestPipelineID(ctx context.Context, empresaID string) (string, error) {
	query := `SELECT id FROM pipelines WHERE empresa_id = $1 ORDER BY created_at ASC LIMIT 1`
	var id string
	if err := c.pool.QueryRow(ctx, query, empresaID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("leads: oldest pipeline: %w", err)
	}
	return id, nil
}

// DefaultEtapaID picks the pipeline's entry stage.
func (c *PostgresCatalog) DefaultEtapaID(ctx context.Context, pipelineID string) (string, error) {
	if pipelineID == "" {
		return "", nil
	}
	named := `
		SELECT id FROM etapas
		WHERE pipeline_id = $1
		  AND (LOWER(nombre) LIKE '%inicial%' OR LOWER(nombre) LIKE '%nuevo%' OR LOWER(nombre) LIKE '%new%')
		ORDER BY orden ASC NULLS LAST
		LIMIT 1
	`
	var id string
	err := c.pool.QueryRow(ctx, named, pipelineID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("leads: named stage lookup: %w", err)
	}

	lowest := `
		SELECT id FROM etapas
		WHERE pipeline_id = $1
		ORDER BY orden ASC NULLS LAST
		LIMIT 1
	`
	if err := c.pool.QueryRow(ctx, lowest, pipelineID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("leads: lowest stage lookup: %w", err)
	}
	return id, nil
}
