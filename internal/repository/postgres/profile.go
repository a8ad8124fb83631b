package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventsponsor.messaging/internal/model"
)

// ProfileRepo reads user profiles from PostgreSQL.
type ProfileRepo struct {
	db *pgxpool.Pool
}

// NewProfileRepo creates a profile repository.
func NewProfileRepo(db *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// FindByID returns (nil, nil) when no profile exists for id.
func (r *ProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	query := `
		SELECT id, name, email, role, COALESCE(avatar, ''), COALESCE(company_name, ''), updated_at
		FROM user_profiles WHERE id = $1
	`
	p := &model.Profile{}
	var role string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&role,
		&p.Avatar,
		&p.CompanyName,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.Role = model.Role(role)
	return p, nil
}

// Upsert writes a profile, replacing any existing row.
func (r *ProfileRepo) Upsert(ctx context.Context, p *model.Profile) error {
	query := `
		INSERT INTO user_profiles (id, name, email, role, avatar, company_name, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			avatar = EXCLUDED.avatar,
			company_name = EXCLUDED.company_name,
			updated_at = NOW()
		RETURNING updated_at
	`
	return r.db.QueryRow(ctx, query,
		p.ID,
		p.Name,
		p.Email,
		string(p.Role),
		p.Avatar,
		p.CompanyName,
	).Scan(&p.UpdatedAt)
}
