package readstate

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ventia/crm-ingest/internal/messaging"
	"github.com/ventia/crm-ingest/pkg/logging"
)

// recentWindow is how many lead-authored messages the keyword scan covers.
const recentWindow = 10

// Policy decides whether a lead's conversation should stay unread after an
// automated response, based on tenant-configured keywords. It reports and
// re-surfaces; the caller decides whether to mark the conversation read.
type Policy struct {
	pool     messaging.Querier
	messages *messaging.Store
	logger   *logging.Logger
}

func NewPolicy(pool messaging.Querier, messages *messaging.Store, logger *logging.Logger) *Policy {
	if logger == nil {
		logger = logging.Default()
	}
	return &Policy{pool: pool, messages: messages, logger: logger}
}

// ShouldKeepUnread returns true when any of the lead's recent messages
// contains a configured keyword. A matched message that was already marked
// read is flipped back to unread so the team sees it again. Query failures
// default to false: the conversation gets marked read.
func (p *Policy) ShouldKeepUnread(ctx context.Context, empresaID, leadID string) bool {
	keywords := p.keywords(ctx, empresaID)
	if len(keywords) == 0 {
		return false
	}

	msgs, err := p.messages.RecentLeadMessages(ctx, leadID, recentWindow)
	if err != nil {
		p.logger.Warn("read-state message fetch failed", "error", err, "lead_id", leadID)
		return false
	}

	keep := false
	for _, msg := range msgs {
		content := strings.ToLower(msg.Content)
		for _, kw := range keywords {
			if !strings.Contains(content, kw) {
				continue
			}
			keep = true
			if msg.Read {
				if err := p.messages.MarkUnread(ctx, msg.ID); err != nil {
					p.logger.Warn("failed to re-surface message", "error", err, "message_id", msg.ID)
				}
			}
			break
		}
	}
	return keep
}

// keywords fetches the tenant's configured list, trimmed, lower-cased, and
// with empty entries dropped. Failures yield an empty list.
func (p *Policy) keywords(ctx context.Context, empresaID string) []string {
	query := `SELECT palabras_clave FROM configuracion_chat WHERE empresa_id = $1`
	var raw []string
	if err := p.pool.QueryRow(ctx, query, empresaID).Scan(&raw); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			p.logger.Warn("keyword config fetch failed", "error", err, "empresa_id", empresaID)
		}
		return nil
	}
	var out []string
	for _, kw := range raw {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
