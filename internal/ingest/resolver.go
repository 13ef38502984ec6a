package ingest

import (
	"context"
	"errors"
	"strings"

	"github.com/ventia/crm-ingest/internal/leads"
	"github.com/ventia/crm-ingest/internal/messaging"
	"github.com/ventia/crm-ingest/internal/tenancy"
	"github.com/ventia/crm-ingest/pkg/logging"
)

type messageStore interface {
	Insert(ctx context.Context, rec messaging.MessageRecord) (string, error)
	MarkConversationRead(ctx context.Context, leadID string) error
}

type mediaRelocator interface {
	Enabled() bool
	Relocate(ctx context.Context, sourceURL, leadID, fileName, mimeType string) (string, bool)
}

type nameLookup interface {
	Enabled() bool
	FetchName(ctx context.Context, chatID string) (string, bool)
}

type readPolicy interface {
	ShouldKeepUnread(ctx context.Context, empresaID, leadID string) bool
}

type leadNotifier interface {
	NewLead(ctx context.Context, lead *leads.Lead, source string)
}

// Resolver matches inbound events to leads and creates leads on demand,
// fanning one event out to every tenant whose configuration it lands in.
type Resolver struct {
	leads    leads.Repository
	catalog  leads.Catalog
	messages messageStore
	media    mediaRelocator
	profile  nameLookup
	policy   readPolicy
	notify   leadNotifier
	logger   *logging.Logger
}

type ResolverConfig struct {
	Leads    leads.Repository
	Catalog  leads.Catalog
	Messages messageStore
	Media    mediaRelocator
	Profile  nameLookup
	Policy   readPolicy
	Notify   leadNotifier
	Logger   *logging.Logger
}

func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Resolver{
		leads:    cfg.Leads,
		catalog:  cfg.Catalog,
		messages: cfg.Messages,
		media:    cfg.Media,
		profile:  cfg.Profile,
		policy:   cfg.Policy,
		notify:   cfg.Notify,
		logger:   cfg.Logger,
	}
}

// Result summarizes one ingestion for logging and metrics.
type Result struct {
	MatchedLeads int
	CreatedLeads int
	Messages     int
}

// Ingest runs both resolution passes for one normalized event: a global
// match-and-append across all tenants, then a per-tenant ensure-and-create
// over the configured tenant list.
func (r *Resolver) Ingest(ctx context.Context, evt *InboundEvent, tenants []tenancy.TenantConfig) Result {
	var res Result
	r.matchAndAppend(ctx, evt, &res)
	r.ensurePerTenant(ctx, evt, tenants, &res)
	return res
}

// matchAndAppend is Pass A: scan phone candidates in order and, for the
// first candidate matching any lead anywhere, append the message to every
// matched lead. Hits are never merged across candidates.
func (r *Resolver) matchAndAppend(ctx context.Context, evt *InboundEvent, res *Result) {
	for _, cand := range evt.Candidates {
		phone := NormalizePhone(cand.Value)
		if phone == "" {
			continue
		}
		matches, err := r.leads.SearchByPhoneGlobal(ctx, phone)
		if err != nil {
			r.logger.Error("global lead search failed", "error", err, "phone", phone)
			continue
		}
		if len(matches) == 0 {
			continue
		}
		for i := range matches {
			if r.persistMessage(ctx, evt, &matches[i], cand.Role, phone) {
				res.Messages++
			}
		}
		res.MatchedLeads += len(matches)
		return
	}
}

// ensurePerTenant is Pass B: every configured tenant ends up with a lead
// for the inbound phone, created on demand with a lock-free double-check.
func (r *Resolver) ensurePerTenant(ctx context.Context, evt *InboundEvent, tenants []tenancy.TenantConfig, res *Result) {
	cand, ok := evt.LeadCandidate()
	if !ok {
		return
	}
	phone := NormalizePhone(cand.Value)
	if phone == "" {
		return
	}

	for _, tenant := range tenants {
		existing, err := r.leads.FindInTenant(ctx, tenant.EmpresaID, phone)
		if err == nil {
			// Pass A already appended the message where applicable; only
			// a placeholder display name may need backfilling.
			r.maybeBackfillName(ctx, existing, evt)
			continue
		}
		if !errors.Is(err, leads.ErrLeadNotFound) {
			r.logger.Error("tenant lead lookup failed", "error", err, "empresa_id", tenant.EmpresaID)
			continue
		}

		lead, fresh := r.createLead(ctx, evt, tenant, phone)
		if lead == nil {
			continue
		}
		if fresh {
			res.CreatedLeads++
			if r.persistMessage(ctx, evt, lead, cand.Role, phone) {
				res.Messages++
			}
			r.notify.NewLead(ctx, lead, InferChannel(phone))
		}
	}
}

// createLead inserts a lead for the tenant, surviving concurrent webhook
// deliveries with a double-check before the insert and a re-query after a
// failed one. fresh is false whenever another delivery won the race; those
// paths skip message persistence and owner notification.
func (r *Resolver) createLead(ctx context.Context, evt *InboundEvent, tenant tenancy.TenantConfig, phone string) (*leads.Lead, bool) {
	lead := &leads.Lead{
		EmpresaID:      tenant.EmpresaID,
		NombreCompleto: r.resolveName(ctx, evt, phone),
		Telefono:       phone,
		PipelineID:     tenant.PipelineID,
		EtapaID:        tenant.EtapaID,
	}

	if lead.PipelineID == "" {
		pipelineID, err := r.catalog.OldestPipelineID(ctx, tenant.EmpresaID)
		if err != nil {
			r.logger.Warn("pipeline default lookup failed", "error", err, "empresa_id", tenant.EmpresaID)
		}
		lead.PipelineID = pipelineID
	}
	if lead.EtapaID == "" {
		etapaID, err := r.catalog.DefaultEtapaID(ctx, lead.PipelineID)
		if err != nil {
			r.logger.Warn("stage default lookup failed", "error", err, "pipeline_id", lead.PipelineID)
		}
		lead.EtapaID = etapaID
	}

	// Double-check: a concurrent delivery may have created the lead since
	// the first lookup.
	if raced, err := r.leads.FindInTenant(ctx, tenant.EmpresaID, phone); err == nil {
		return raced, false
	}

	if err := r.leads.Create(ctx, lead); err != nil {
		// A lost insert race surfaces as a constraint violation; the lead
		// that beat us must now exist.
		if raced, findErr := r.leads.FindInTenant(ctx, tenant.EmpresaID, phone); findErr == nil {
			return raced, false
		}
		r.logger.Error("lead creation failed", "error", err, "empresa_id", tenant.EmpresaID, "phone", phone)
		return nil, false
	}
	return lead, true
}

// persistMessage relocates media, assembles content, and inserts one
// message row on the lead. For automated responses it then applies the
// read-state policy. Returns false when the insert failed.
func (r *Resolver) persistMessage(ctx context.Context, evt *InboundEvent, lead *leads.Lead, sender, phone string) bool {
	mediaURL := evt.MediaURL
	var stored bool
	if mediaURL != "" && r.media != nil && r.media.Enabled() {
		if url, ok := r.media.Relocate(ctx, evt.MediaURL, lead.ID, evt.MediaFileName, evt.MediaMIME); ok {
			mediaURL = url
			stored = true
		}
	}

	metadata := map[string]any{"raw": evt.Raw}
	if evt.MediaURL != "" || evt.MediaType != "" {
		metadata["media"] = map[string]any{
			"source_url": evt.MediaURL,
			"stored_url": mediaURL,
			"stored":     stored,
			"type":       evt.MediaType,
			"mimetype":   evt.MediaMIME,
			"filename":   evt.MediaFileName,
		}
	}

	rec := messaging.MessageRecord{
		LeadID:     lead.ID,
		Content:    AssembleContent(evt.Text, mediaURL, evt.MediaType),
		Sender:     sender,
		Channel:    InferChannel(phone),
		ExternalID: evt.ExternalID,
		Metadata:   metadata,
		Read:       sender == SenderTeam,
	}
	if _, err := r.messages.Insert(ctx, rec); err != nil {
		r.logger.Error("message insert failed", "error", err, "lead_id", lead.ID)
		return false
	}

	if evt.IsAIResponse() && r.policy != nil {
		if !r.policy.ShouldKeepUnread(ctx, lead.EmpresaID, lead.ID) {
			if err := r.messages.MarkConversationRead(ctx, lead.ID); err != nil {
				r.logger.Warn("mark conversation read failed", "error", err, "lead_id", lead.ID)
			}
		}
	}
	return true
}

// resolveName picks the display name for a new lead: a usable contact name
// from the payload, then the chat-profile API, then the placeholder.
func (r *Resolver) resolveName(ctx context.Context, evt *InboundEvent, phone string) string {
	if name := usableContactName(evt); name != "" {
		return name
	}
	if r.profile != nil && r.profile.Enabled() {
		if name, ok := r.profile.FetchName(ctx, phone); ok {
			return name
		}
	}
	return PlaceholderName(phone)
}

// maybeBackfillName replaces an auto-generated placeholder with a real
// contact name carried by the payload.
func (r *Resolver) maybeBackfillName(ctx context.Context, lead *leads.Lead, evt *InboundEvent) {
	name := usableContactName(evt)
	if name == "" || !IsPlaceholderName(lead.NombreCompleto) || name == lead.NombreCompleto {
		return
	}
	if err := r.leads.UpdateName(ctx, lead.ID, name); err != nil {
		r.logger.Warn("name backfill failed", "error", err, "lead_id", lead.ID)
	}
}

// usableContactName returns the payload's contact name when it is present,
// not an address-like handle, and the event is not an automated response.
func usableContactName(evt *InboundEvent) string {
	if evt.IsAIResponse() {
		return ""
	}
	name := strings.TrimSpace(evt.ContactName)
	if name == "" || strings.Contains(name, "@") {
		return ""
	}
	return name
}
