package repository

import (
	"context"
	"fmt"

	"socialbox/models"
)

type mysqlMessageRepo struct {
	q DBTX
}

func (r *mysqlMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, text, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderID, msg.RecipientID, msg.Text, msg.Status, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *mysqlMessageRepo) MarkDelivered(ctx context.Context, id string) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE messages SET status = ? WHERE id = ?", models.MessageDelivered, id)
	if err != nil {
		return fmt.Errorf("mark message delivered: %w", err)
	}
	return nil
}

func (r *mysqlMessageRepo) ListBetween(ctx context.Context, a, b string) ([]models.Message, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, sender_id, recipient_id, text, status, created_at
		FROM messages
		WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
		ORDER BY created_at ASC
	`, a, b, b, a)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Text, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
