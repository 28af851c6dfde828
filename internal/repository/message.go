package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"libraryconnect.chat/internal/model"
)

const messageColumns = `id, client_msg_id, sender_id, recipient_id, content, read, created_at, updated_at`

// MessageRepository stores direct messages in PostgreSQL.
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a message repository.
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts msg. ID and timestamps are assigned by the caller.
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (id, client_msg_id, sender_id, recipient_id, content, read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		msg.ID,
		msg.ClientMsgID,
		msg.SenderID,
		msg.RecipientID,
		msg.Content,
		msg.Read,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	return err
}

// ListBetween returns every message exchanged by a and b in either direction,
// oldest first. A non-nil since keeps only messages created strictly after it.
func (r *MessageRepository) ListBetween(ctx context.Context, a, b int64, since *time.Time) ([]model.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
		  AND ($3::timestamptz IS NULL OR created_at > $3)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, a, b, since)
	if err != nil {
		return nil, err
	}
	return collectMessages(rows)
}

// MarkRead flips every unread message from partnerID to readerID and returns how many changed.
func (r *MessageRepository) MarkRead(ctx context.Context, readerID, partnerID int64) (int64, error) {
	query := `
		UPDATE messages SET read = true, updated_at = now()
		WHERE recipient_id = $1 AND sender_id = $2 AND read = false
	`
	tag, err := r.db.Exec(ctx, query, readerID, partnerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountUnread counts unread messages addressed to userID.
func (r *MessageRepository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM messages WHERE recipient_id = $1 AND read = false`, userID).Scan(&n)
	return n, err
}

// ListConversations yields one row per partner with the latest message of the pair,
// newest conversation first, ties by partner id.
func (r *MessageRepository) ListConversations(ctx context.Context, userID int64) ([]model.ConversationRow, error) {
	query := `
		SELECT partner_id, ` + messageColumns + `, unread
		FROM (
			SELECT DISTINCT ON (partner_id) m.*,
				(SELECT count(*) FROM messages u
				 WHERE u.recipient_id = $1 AND u.sender_id = m.partner_id AND u.read = false) AS unread
			FROM (
				SELECT ` + messageColumns + `,
					CASE WHEN sender_id = $1 THEN recipient_id ELSE sender_id END AS partner_id
				FROM messages
				WHERE sender_id = $1 OR recipient_id = $1
			) m
			ORDER BY partner_id, created_at DESC, id DESC
		) latest
		ORDER BY created_at DESC, partner_id ASC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ConversationRow
	for rows.Next() {
		var row model.ConversationRow
		m := &row.LastMessage
		if err := rows.Scan(
			&row.PartnerID,
			&m.ID,
			&m.ClientMsgID,
			&m.SenderID,
			&m.RecipientID,
			&m.Content,
			&m.Read,
			&m.CreatedAt,
			&m.UpdatedAt,
			&row.UnreadCount,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func collectMessages(rows pgx.Rows) ([]model.Message, error) {
	defer rows.Close()

	messages := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(
			&m.ID,
			&m.ClientMsgID,
			&m.SenderID,
			&m.RecipientID,
			&m.Content,
			&m.Read,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
