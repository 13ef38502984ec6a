package leads

import "context"

// Repository defines the interface for lead storage.
type Repository interface {
	// SearchByPhoneGlobal returns every lead, across all tenants, whose
	// stored phone contains the normalized value.
	SearchByPhoneGlobal(ctx context.Context, phone string) ([]Lead, error)
	// FindInTenant returns the lead in one tenant whose phone matches the
	// value by substring containment in either direction, or
	// ErrLeadNotFound.
	FindInTenant(ctx context.Context, empresaID, phone string) (*Lead, error)
	// Create inserts a new lead row. The unique constraint on
	// (empresa_id, telefono) surfaces concurrent duplicate creation as an
	// insert error.
	Create(ctx context.Context, lead *Lead) error
	// UpdateName backfills the display name.
	UpdateName(ctx context.Context, id, name string) error
}

// Catalog resolves tenant pipeline/stage defaults for freshly created leads.
type Catalog interface {
	// OldestPipelineID returns the tenant's oldest-created pipeline.
	OldestPipelineID(ctx context.Context, empresaID string) (string, error)
	// DefaultEtapaID picks the entry stage of a pipeline: the
	// lowest-ordered stage named like inicial/nuevo/new, else the
	// lowest-ordered stage outright.
	DefaultEtapaID(ctx context.Context, pipelineID string) (string, error)
}
