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

type TenantRepository struct {
	db *pgxpool.Pool
}

func NewTenantRepository(db *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, slug, COALESCE(timezone, 'UTC'),
	COALESCE(default_flow_id::text, ''), COALESCE(new_user_flow_id::text, ''), COALESCE(known_user_flow_id::text, ''),
	COALESCE(welcome_message_new, ''), COALESCE(welcome_message_known, ''),
	COALESCE(reset_keyword, 'MENU'), COALESCE(session_timeout_minutes, 30),
	created_at, updated_at`

func scanTenant(row pgx.Row) (*entities.Tenant, error) {
	var t entities.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Timezone,
		&t.DefaultFlowID, &t.NewUserFlowID, &t.KnownUserFlowID,
		&t.WelcomeMessageNew, &t.WelcomeMessageKnown,
		&t.ResetKeyword, &t.SessionTimeoutMinutes,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepository) GetTenantByID(ctx context.Context, id string) (*entities.Tenant, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanTenant(row)
}

func (r *TenantRepository) GetTenantBySlug(ctx context.Context, slug string) (*entities.Tenant, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug=$1 AND deleted_at IS NULL`, slug)
	return scanTenant(row)
}

func (r *TenantRepository) ListTenants(ctx context.Context) ([]*entities.Tenant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE deleted_at IS NULL ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*entities.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *TenantRepository) CreateTenant(ctx context.Context, t *entities.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.ResetKeyword == "" {
		t.ResetKeyword = "MENU"
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO tenants (id, name, slug, timezone, welcome_message_new, welcome_message_known, reset_keyword, session_timeout_minutes)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)`,
		t.ID, t.Name, t.Slug, t.Timezone, t.WelcomeMessageNew, t.WelcomeMessageKnown, t.ResetKeyword, t.SessionTimeoutMinutes)
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) UpdateTenant(ctx context.Context, t *entities.Tenant) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE tenants SET
			name=$2, timezone=NULLIF($3, ''),
			default_flow_id=NULLIF($4, '')::uuid, new_user_flow_id=NULLIF($5, '')::uuid, known_user_flow_id=NULLIF($6, '')::uuid,
			welcome_message_new=NULLIF($7, ''), welcome_message_known=NULLIF($8, ''),
			reset_keyword=$9, session_timeout_minutes=$10, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL`,
		t.ID, t.Name, t.Timezone, t.DefaultFlowID, t.NewUserFlowID, t.KnownUserFlowID,
		t.WelcomeMessageNew, t.WelcomeMessageKnown, t.ResetKeyword, t.SessionTimeoutMinutes)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant %s not found", t.ID)
	}
	return nil
}

func (r *TenantRepository) DeleteTenant(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE tenants SET deleted_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, id)
	return err
}

// AccountRepository reads WhatsApp account credentials.
type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, tenant_id, phone_number, phone_number_id,
	COALESCE(business_account_id, ''), access_token, webhook_verify_token,
	COALESCE(app_secret, ''), COALESCE(status, 'active'), created_at`

func scanAccount(row pgx.Row) (*entities.WhatsAppAccount, error) {
	var a entities.WhatsAppAccount
	err := row.Scan(&a.ID, &a.TenantID, &a.PhoneNumber, &a.PhoneNumberID,
		&a.BusinessAccountID, &a.AccessToken, &a.WebhookVerifyToken,
		&a.AppSecret, &a.Status, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) GetAccountByID(ctx context.Context, id string) (*entities.WhatsAppAccount, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM whatsapp_accounts WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanAccount(row)
}

func (r *AccountRepository) GetAccountByPhoneNumberID(ctx context.Context, phoneNumberID string) (*entities.WhatsAppAccount, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM whatsapp_accounts WHERE phone_number_id=$1 AND deleted_at IS NULL`, phoneNumberID)
	return scanAccount(row)
}

func (r *AccountRepository) GetAccountsByTenant(ctx context.Context, tenantID string) ([]*entities.WhatsAppAccount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+accountColumns+` FROM whatsapp_accounts WHERE tenant_id=$1 AND deleted_at IS NULL ORDER BY created_at ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*entities.WhatsAppAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) CreateAccount(ctx context.Context, a *entities.WhatsAppAccount) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO whatsapp_accounts (id, tenant_id, phone_number, phone_number_id, business_account_id, access_token, webhook_verify_token, app_secret)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''))`,
		a.ID, a.TenantID, a.PhoneNumber, a.PhoneNumberID, a.BusinessAccountID, a.AccessToken, a.WebhookVerifyToken, a.AppSecret)
	if err != nil {
		return fmt.Errorf("create whatsapp account: %w", err)
	}
	return nil
}
