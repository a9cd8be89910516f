package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waflow/internal/entities"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, tenant_id, phone_number, COALESCE(name, ''), COALESCE(email, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*entities.User, error) {
	var u entities.User
	err := row.Scan(&u.ID, &u.TenantID, &u.PhoneNumber, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreateUser returns the user for (tenant, phone number), creating it
// on first contact; the second return reports creation. A display name
// observed on the webhook is recorded only at creation; later renames never
// overwrite a captured name.
func (r *UserRepository) GetOrCreateUser(ctx context.Context, tenantID, phoneNumber, displayName string) (*entities.User, bool, error) {
	user, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id=$1 AND phone_number=$2 AND deleted_at IS NULL`,
		tenantID, phoneNumber))
	if err != nil {
		return nil, false, fmt.Errorf("lookup user: %w", err)
	}
	if user != nil {
		return user, false, nil
	}

	id := uuid.NewString()
	user, err = scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (id, tenant_id, phone_number, name)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (tenant_id, phone_number) WHERE deleted_at IS NULL DO UPDATE SET updated_at=NOW()
		RETURNING `+userColumns,
		id, tenantID, phoneNumber, displayName))
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

// UpdateUserProfile persists one captured field. Known columns get their
// own column; anything else lands in the metadata blob.
func (r *UserRepository) UpdateUserProfile(ctx context.Context, userID, field, value string) error {
	var err error
	switch field {
	case "name", "nombre":
		_, err = r.db.Exec(ctx,
			`UPDATE users SET name=$2, updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, userID, value)
	case "email":
		_, err = r.db.Exec(ctx,
			`UPDATE users SET email=$2, updated_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, userID, value)
	default:
		_, err = r.db.Exec(ctx, `
			UPDATE users SET metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object($2::text, $3::text), updated_at=NOW()
			WHERE id=$1 AND deleted_at IS NULL`, userID, field, value)
	}
	if err != nil {
		return fmt.Errorf("update user profile field %q: %w", field, err)
	}
	return nil
}
