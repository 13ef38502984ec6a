package leads

import "time"

// Lead is a contact record in a tenant's pipeline. Telefono is stored
// normalized (no provider suffixes, no leading +) and is matched by
// substring containment, so differently formatted inbound identifiers
// resolve to the same lead.
type Lead struct {
	ID             string    `json:"id"`
	EmpresaID      string    `json:"empresa_id"`
	NombreCompleto string    `json:"nombre_completo"`
	Telefono       string    `json:"telefono"`
	PipelineID     string    `json:"pipeline_id"`
	EtapaID        string    `json:"etapa_id"`
	Prioridad      string    `json:"prioridad"`
	AsignadoA      string    `json:"asignado_a,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
