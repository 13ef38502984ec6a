package leads

import "errors"

var (
	// ErrLeadNotFound is returned when no lead matches the lookup.
	ErrLeadNotFound = errors.New("leads: lead not found")
	// ErrMissingEmpresaID is returned when a lead is created without a tenant.
	ErrMissingEmpresaID = errors.New("leads: empresa_id is required")
	// ErrMissingTelefono is returned when a lead is created without a phone.
	ErrMissingTelefono = errors.New("leads: telefono is required")
)
