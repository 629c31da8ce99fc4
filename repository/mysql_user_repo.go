package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"socialbox/models"
)

const userColumns = `id, full_name, user_name, email, password, bio, profile_pic,
	birth_date, gender, location, is_onboarded, created_at, updated_at`

type mysqlUserRepo struct {
	q DBTX
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.FullName, &u.UserName, &u.Email, &u.Password, &u.Bio, &u.ProfilePic,
		&u.BirthDate, &u.Gender, &u.Location, &u.IsOnboarded, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *mysqlUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

func (r *mysqlUserRepo) FindByUserName(ctx context.Context, userName string) (*models.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE user_name = ?", userName))
	if err != nil {
		return nil, fmt.Errorf("find user by user name: %w", err)
	}
	return u, nil
}

func (r *mysqlUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *mysqlUserRepo) FindByLogin(ctx context.Context, emailOrUserName string) (*models.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? OR user_name = ? LIMIT 1",
		emailOrUserName, emailOrUserName))
	if err != nil {
		return nil, fmt.Errorf("find user by login: %w", err)
	}
	return u, nil
}

func (r *mysqlUserRepo) Create(ctx context.Context, u *models.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, full_name, user_name, email, password, bio, profile_pic,
			birth_date, gender, location, is_onboarded, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.FullName, u.UserName, u.Email, u.Password, u.Bio, u.ProfilePic,
		u.BirthDate, u.Gender, u.Location, u.IsOnboarded, u.CreatedAt, u.UpdatedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *mysqlUserRepo) UpdateOnboarding(ctx context.Context, id string, p models.OnboardingProfile, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET user_name = ?, full_name = ?, bio = ?, birth_date = ?, gender = ?,
			location = ?, is_onboarded = TRUE, updated_at = ?
		WHERE id = ?
	`, p.UserName, p.FullName, p.Bio, p.BirthDate, p.Gender, p.Location, at, id)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update onboarding: %w", err)
	}
	return nil
}

func scanProfiles(rows *sql.Rows) ([]models.PublicProfile, error) {
	defer rows.Close()
	profiles := []models.PublicProfile{}
	for rows.Next() {
		var p models.PublicProfile
		if err := rows.Scan(&p.ID, &p.UserName, &p.FullName, &p.ProfilePic); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *mysqlUserRepo) Search(ctx context.Context, query string, limit int) ([]models.PublicProfile, error) {
	pattern := "%" + escapeLikePattern(query) + "%"
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_name, full_name, profile_pic FROM users
		WHERE is_onboarded = TRUE AND (user_name LIKE ? OR full_name LIKE ?)
		ORDER BY user_name
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return profiles, nil
}

func (r *mysqlUserRepo) PublicProfiles(ctx context.Context, ids []string) ([]models.PublicProfile, error) {
	if len(ids) == 0 {
		return []models.PublicProfile{}, nil
	}
	rows, err := r.q.QueryContext(ctx,
		"SELECT id, user_name, full_name, profile_pic FROM users WHERE id IN ("+inClause(len(ids))+") ORDER BY user_name",
		stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, fmt.Errorf("scan profiles: %w", err)
	}
	return profiles, nil
}

func (r *mysqlUserRepo) SampleOnboarded(ctx context.Context, exclude []string, n int) ([]models.PublicProfile, error) {
	query := "SELECT id, user_name, full_name, profile_pic FROM users WHERE is_onboarded = TRUE"
	args := stringArgs(exclude)
	if len(exclude) > 0 {
		query += " AND id NOT IN (" + inClause(len(exclude)) + ")"
	}
	query += " ORDER BY RAND() LIMIT ?"
	args = append(args, n)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sample users: %w", err)
	}
	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, fmt.Errorf("scan sampled users: %w", err)
	}
	return profiles, nil
}
