package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the pgx surface the store needs; satisfied by pgxpool.Pool,
// pgx.Tx, and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists CRM messages in Postgres.
type Store struct {
	pool Querier
}

func NewStore(pool Querier) *Store {
	if pool == nil {
		return nil
	}
	return &Store{pool: pool}
}

// MessageRecord is one message row to insert.
type MessageRecord struct {
	LeadID     string
	Content    string
	Sender     string
	Channel    string
	ExternalID string
	Metadata   map[string]any
	Read       bool
}

// StoredMessage is the slice of a message row the read-state policy needs.
type StoredMessage struct {
	ID      string
	Content string
	Read    bool
}

// Insert writes a message row and returns its id. ExternalID is stored as
// NULL when empty so the lookup index only covers provider-assigned ids.
func (s *Store) Insert(ctx context.Context, rec MessageRecord) (string, error) {
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return "", fmt.Errorf("messaging: marshal metadata: %w", err)
	}
	id := uuid.New().String()
	query := `
		INSERT INTO mensajes (id, lead_id, content, sender, channel, external_id, metadata, read)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
	`
	if _, err := s.pool.Exec(ctx, query,
		id,
		rec.LeadID,
		rec.Content,
		rec.Sender,
		rec.Channel,
		rec.ExternalID,
		metadata,
		rec.Read,
	); err != nil {
		return "", fmt.Errorf("messaging: insert message: %w", err)
	}
	return id, nil
}

// ExistsByExternalID checks whether a provider message id was already
// recorded.
func (s *Store) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	query := `SELECT 1 FROM mensajes WHERE external_id = $1 LIMIT 1`
	var exists int
	if err := s.pool.QueryRow(ctx, query, externalID).Scan(&exists); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("messaging: check external id: %w", err)
	}
	return true, nil
}

// RecentLeadMessages returns the newest lead-authored messages for a lead,
// regardless of read state.
func (s *Store) RecentLeadMessages(ctx context.Context, leadID string, limit int) ([]StoredMessage, error) {
	query := `
		SELECT id, content, read
		FROM mensajes
		WHERE lead_id = $1 AND sender = 'lead'
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("messaging: recent lead messages: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.Content, &m.Read); err != nil {
			return nil, fmt.Errorf("messaging: scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messaging: iterate messages: %w", err)
	}
	return out, nil
}

// MarkConversationRead flips every unread lead-authored message on the lead
// to read.
func (s *Store) MarkConversationRead(ctx context.Context, leadID string) error {
	query := `UPDATE mensajes SET read = true WHERE lead_id = $1 AND sender = 'lead' AND read = false`
	if _, err := s.pool.Exec(ctx, query, leadID); err != nil {
		return fmt.Errorf("messaging: mark conversation read: %w", err)
	}
	return nil
}

// MarkUnread re-surfaces a single message.
func (s *Store) MarkUnread(ctx context.Context, messageID string) error {
	query := `UPDATE mensajes SET read = false WHERE id = $1`
	if _, err := s.pool.Exec(ctx, query, messageID); err != nil {
		return fmt.Errorf("messaging: mark unread: %w", err)
	}
	return nil
}
