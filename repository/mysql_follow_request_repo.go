package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"socialbox/models"
)

const followRequestColumns = "id, sender_id, recipient_id, status, created_at, updated_at"

type mysqlFollowRequestRepo struct {
	q       DBTX
	locking bool
}

func (r *mysqlFollowRequestRepo) lockClause() string {
	if r.locking {
		return " FOR UPDATE"
	}
	return ""
}

func scanFollowRequest(row *sql.Row) (*models.FollowRequest, error) {
	var req models.FollowRequest
	err := row.Scan(&req.ID, &req.SenderID, &req.RecipientID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *mysqlFollowRequestRepo) FindByID(ctx context.Context, id string) (*models.FollowRequest, error) {
	req, err := scanFollowRequest(r.q.QueryRowContext(ctx,
		"SELECT "+followRequestColumns+" FROM follow_requests WHERE id = ?"+r.lockClause(), id))
	if err != nil {
		return nil, fmt.Errorf("find follow request: %w", err)
	}
	return req, nil
}

func (r *mysqlFollowRequestRepo) FindByPair(ctx context.Context, senderID, recipientID string) (*models.FollowRequest, error) {
	req, err := scanFollowRequest(r.q.QueryRowContext(ctx,
		"SELECT "+followRequestColumns+" FROM follow_requests WHERE sender_id = ? AND recipient_id = ?"+r.lockClause(),
		senderID, recipientID))
	if err != nil {
		return nil, fmt.Errorf("find follow request by pair: %w", err)
	}
	return req, nil
}

func (r *mysqlFollowRequestRepo) Create(ctx context.Context, req *models.FollowRequest) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO follow_requests (id, sender_id, recipient_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, req.ID, req.SenderID, req.RecipientID, req.Status, req.CreatedAt, req.UpdatedAt)
	// Two transactions that both found no row for the pair hold gap locks on
	// the unique key, so the losing insert deadlocks instead of reporting 1062.
	if isDuplicate(err) || isDeadlock(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create follow request: %w", err)
	}
	return nil
}

func (r *mysqlFollowRequestRepo) UpdateStatus(ctx context.Context, id string, status models.FollowRequestStatus, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE follow_requests SET status = ?, updated_at = ? WHERE id = ?",
		status, at, id)
	if err != nil {
		return fmt.Errorf("update follow request: %w", err)
	}
	return nil
}

func (r *mysqlFollowRequestRepo) DeleteByPair(ctx context.Context, senderID, recipientID string) (int64, error) {
	result, err := r.q.ExecContext(ctx,
		"DELETE FROM follow_requests WHERE sender_id = ? AND recipient_id = ?",
		senderID, recipientID)
	if err != nil {
		return 0, fmt.Errorf("delete follow request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete follow request: %w", err)
	}
	return n, nil
}

func scanRequestsWithUser(rows *sql.Rows) ([]models.FollowRequestWithUser, error) {
	defer rows.Close()
	list := []models.FollowRequestWithUser{}
	for rows.Next() {
		var item models.FollowRequestWithUser
		if err := rows.Scan(
			&item.ID, &item.SenderID, &item.RecipientID, &item.Status, &item.CreatedAt, &item.UpdatedAt,
			&item.User.ID, &item.User.UserName, &item.User.FullName, &item.User.ProfilePic,
		); err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, rows.Err()
}

func (r *mysqlFollowRequestRepo) ListReceived(ctx context.Context, recipientID string) ([]models.FollowRequestWithUser, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT fr.id, fr.sender_id, fr.recipient_id, fr.status, fr.created_at, fr.updated_at,
			u.id, u.user_name, u.full_name, u.profile_pic
		FROM follow_requests fr
		JOIN users u ON u.id = fr.sender_id
		WHERE fr.recipient_id = ?
		ORDER BY fr.created_at DESC
	`, recipientID)
	if err != nil {
		return nil, fmt.Errorf("list received requests: %w", err)
	}
	list, err := scanRequestsWithUser(rows)
	if err != nil {
		return nil, fmt.Errorf("scan received requests: %w", err)
	}
	return list, nil
}

func (r *mysqlFollowRequestRepo) ListSent(ctx context.Context, senderID string) ([]models.FollowRequestWithUser, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT fr.id, fr.sender_id, fr.recipient_id, fr.status, fr.created_at, fr.updated_at,
			u.id, u.user_name, u.full_name, u.profile_pic
		FROM follow_requests fr
		JOIN users u ON u.id = fr.recipient_id
		WHERE fr.sender_id = ?
		ORDER BY fr.created_at DESC
	`, senderID)
	if err != nil {
		return nil, fmt.Errorf("list sent requests: %w", err)
	}
	list, err := scanRequestsWithUser(rows)
	if err != nil {
		return nil, fmt.Errorf("scan sent requests: %w", err)
	}
	return list, nil
}

func (r *mysqlFollowRequestRepo) PendingRecipientIDs(ctx context.Context, senderID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT recipient_id FROM follow_requests WHERE sender_id = ? AND status = ?",
		senderID, models.FollowRequestPending)
	if err != nil {
		return nil, fmt.Errorf("list pending recipients: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan pending recipients: %w", err)
	}
	return ids, nil
}
