package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ventia/crm-ingest/internal/ingest"
	"github.com/ventia/crm-ingest/internal/observability/metrics"
	"github.com/ventia/crm-ingest/internal/tenancy"
	"github.com/ventia/crm-ingest/pkg/logging"
)

type deduplicator interface {
	Seen(ctx context.Context, externalID string) (bool, error)
	Remember(ctx context.Context, externalID string)
}

type tenantResolver interface {
	Resolve(ctx context.Context, query url.Values) []tenancy.TenantConfig
}

type eventResolver interface {
	Ingest(ctx context.Context, evt *ingest.InboundEvent, tenants []tenancy.TenantConfig) ingest.Result
}

// Handler is the single webhook endpoint: subscription handshake on GET,
// message ingestion on POST.
type Handler struct {
	verifier *Verifier
	dedup    deduplicator
	tenants  tenantResolver
	resolver eventResolver
	metrics  *metrics.IngestMetrics
	logger   *logging.Logger
}

type HandlerConfig struct {
	Verifier *Verifier
	Dedup    deduplicator
	Tenants  tenantResolver
	Resolver eventResolver
	Metrics  *metrics.IngestMetrics
	Logger   *logging.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Handler{
		verifier: cfg.Verifier,
		dedup:    cfg.Dedup,
		tenants:  cfg.Tenants,
		resolver: cfg.Resolver,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	case http.MethodGet:
		h.handleVerification(w, r)
	case http.MethodPost:
		h.handleDelivery(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleVerification answers the provider's subscription handshake.
func (h *Handler) handleVerification(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	if token == "" {
		token = query.Get("x-webhook-verify-token")
	}
	challenge := query.Get("hub.challenge")

	if mode == "" || token == "" || challenge == "" {
		http.Error(w, "missing verification parameters", http.StatusBadRequest)
		return
	}
	if mode != "subscribe" || !h.verifier.VerifyToken(token) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, challenge)
}

// handleDelivery ingests one inbound delivery. The provider must see a 200
// even for internally degraded outcomes; only parse failures surface as 400.
func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	evt := ingest.Normalize(payload)

	if !h.verifier.SignatureValid(body, ExtractSignature(r)) {
		if !h.verifier.AcceptUnsigned(payload) {
			h.metrics.ObserveInbound(evt.EventType, "ignored")
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Ignored - wrong phone number"})
			return
		}
	}

	if evt.ExternalID != "" {
		seen, err := h.dedup.Seen(ctx, evt.ExternalID)
		if err != nil {
			h.logger.Error("dedup check failed", "error", err, "external_id", evt.ExternalID)
		} else if seen {
			h.metrics.ObserveDuplicate()
			h.metrics.ObserveInbound(evt.EventType, "duplicate")
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Duplicate"})
			return
		}
	}

	tenants := h.tenants.Resolve(ctx, r.URL.Query())
	res := h.resolver.Ingest(ctx, evt, tenants)

	if evt.ExternalID != "" && res.Messages > 0 {
		h.dedup.Remember(ctx, evt.ExternalID)
	}
	if cand, ok := evt.LeadCandidate(); ok {
		channel := ingest.InferChannel(ingest.NormalizePhone(cand.Value))
		for i := 0; i < res.CreatedLeads; i++ {
			h.metrics.ObserveLeadCreated(channel)
		}
	}
	h.metrics.ObserveInbound(evt.EventType, "accepted")
	h.metrics.ObserveLatency(evt.EventType, time.Since(start).Seconds())

	h.logger.Info("webhook processed",
		"event_type", evt.EventType,
		"matched_leads", res.MatchedLeads,
		"created_leads", res.CreatedLeads,
		"messages", res.Messages,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"matched_leads": res.MatchedLeads,
		"created_leads": res.CreatedLeads,
		"messages":      res.Messages,
	})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
