package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	if err := client.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

// Migrate creates the schema if it is missing. Statements are idempotent so
// boot against an existing database is a no-op.
func (p *PostgresClient) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			slug VARCHAR(64) UNIQUE NOT NULL,
			timezone VARCHAR(64) DEFAULT 'UTC',
			default_flow_id UUID,
			new_user_flow_id UUID,
			known_user_flow_id UUID,
			welcome_message_new TEXT,
			welcome_message_known TEXT,
			reset_keyword VARCHAR(32) DEFAULT 'MENU',
			session_timeout_minutes INT DEFAULT 30,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS whatsapp_accounts (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			phone_number VARCHAR(32) NOT NULL,
			phone_number_id VARCHAR(64) NOT NULL,
			business_account_id VARCHAR(64),
			access_token TEXT NOT NULL,
			webhook_verify_token TEXT NOT NULL,
			app_secret TEXT,
			status VARCHAR(20) DEFAULT 'active',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_phone_number_id
			ON whatsapp_accounts (phone_number_id) WHERE deleted_at IS NULL;`,
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			phone_number VARCHAR(32) NOT NULL,
			name VARCHAR(255),
			email VARCHAR(255),
			metadata JSONB DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_tenant_phone
			ON users (tenant_id, phone_number) WHERE deleted_at IS NULL;`,
		`CREATE TABLE IF NOT EXISTS flows (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			whatsapp_account_id UUID,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			trigger_type VARCHAR(20) NOT NULL,
			trigger_keywords TEXT[],
			is_active BOOLEAN DEFAULT TRUE,
			is_default BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS flow_nodes (
			id UUID PRIMARY KEY,
			flow_id UUID NOT NULL REFERENCES flows(id) ON DELETE CASCADE,
			parent_node_id UUID,
			node_type VARCHAR(20) NOT NULL,
			config JSONB NOT NULL,
			transitions JSONB,
			position JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_flow_nodes_flow ON flow_nodes (flow_id);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			tenant_id UUID NOT NULL REFERENCES tenants(id),
			whatsapp_account_id UUID NOT NULL,
			user_id UUID NOT NULL REFERENCES users(id),
			active_flow_id UUID,
			current_node_id VARCHAR(64),
			context JSONB DEFAULT '{}',
			status VARCHAR(20) DEFAULT 'active',
			session_expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations (user_id, status);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			tenant_id UUID NOT NULL,
			whatsapp_message_id VARCHAR(128),
			direction VARCHAR(10) NOT NULL,
			type VARCHAR(20) NOT NULL,
			content JSONB,
			content_text TEXT,
			status VARCHAR(20),
			sent_at TIMESTAMPTZ DEFAULT NOW(),
			deleted_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, sent_at);`,
		`CREATE TABLE IF NOT EXISTS webhook_logs (
			id UUID PRIMARY KEY,
			tenant_id UUID,
			method VARCHAR(10) NOT NULL,
			headers JSONB,
			body JSONB,
			response_status INT,
			error TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);`,
	}

	for _, ddl := range statements {
		if _, err := p.Pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
