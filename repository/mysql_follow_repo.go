package repository

import (
	"context"
	"fmt"
	"time"
)

type mysqlFollowRepo struct {
	q DBTX
}

func (r *mysqlFollowRepo) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = ? AND followee_id = ?)",
		followerID, followeeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check follow: %w", err)
	}
	return exists, nil
}

func (r *mysqlFollowRepo) Add(ctx context.Context, followerID, followeeID string, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		"INSERT IGNORE INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)",
		followerID, followeeID, at,
	)
	if err != nil {
		return fmt.Errorf("add follow: %w", err)
	}
	return nil
}

func (r *mysqlFollowRepo) Remove(ctx context.Context, followerID, followeeID string) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		"DELETE FROM follows WHERE follower_id = ? AND followee_id = ?",
		followerID, followeeID,
	)
	if err != nil {
		return false, fmt.Errorf("remove follow: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove follow: %w", err)
	}
	return n > 0, nil
}

func (r *mysqlFollowRepo) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT follower_id FROM follows WHERE followee_id = ? ORDER BY created_at", userID)
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan followers: %w", err)
	}
	return ids, nil
}

func (r *mysqlFollowRepo) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT followee_id FROM follows WHERE follower_id = ? ORDER BY created_at", userID)
	if err != nil {
		return nil, fmt.Errorf("list following: %w", err)
	}
	ids, err := scanIDs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan following: %w", err)
	}
	return ids, nil
}
