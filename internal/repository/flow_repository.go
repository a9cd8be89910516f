package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waflow/internal/entities"
)

type FlowRepository struct {
	db *pgxpool.Pool
}

func NewFlowRepository(db *pgxpool.Pool) *FlowRepository {
	return &FlowRepository{db: db}
}

const flowColumns = `id, tenant_id, COALESCE(whatsapp_account_id::text, ''), name, COALESCE(description, ''),
	trigger_type, COALESCE(trigger_keywords, '{}'), COALESCE(is_active, TRUE), COALESCE(is_default, FALSE),
	created_at, updated_at`

func scanFlow(row pgx.Row) (*entities.Flow, error) {
	var f entities.Flow
	err := row.Scan(&f.ID, &f.TenantID, &f.WhatsAppAccountID, &f.Name, &f.Description,
		&f.TriggerType, &f.TriggerKeywords, &f.IsActive, &f.IsDefault,
		&f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FlowRepository) GetFlowByID(ctx context.Context, id string) (*entities.Flow, error) {
	return scanFlow(r.db.QueryRow(ctx,
		`SELECT `+flowColumns+` FROM flows WHERE id=$1 AND deleted_at IS NULL`, id))
}

func (r *FlowRepository) GetDefaultFlow(ctx context.Context, tenantID string) (*entities.Flow, error) {
	return scanFlow(r.db.QueryRow(ctx, `
		SELECT `+flowColumns+` FROM flows
		WHERE tenant_id=$1 AND is_default=TRUE AND is_active=TRUE AND deleted_at IS NULL`, tenantID))
}

func (r *FlowRepository) GetFlowByTrigger(ctx context.Context, tenantID string, trigger entities.TriggerType) (*entities.Flow, error) {
	return scanFlow(r.db.QueryRow(ctx, `
		SELECT `+flowColumns+` FROM flows
		WHERE tenant_id=$1 AND trigger_type=$2 AND is_active=TRUE AND deleted_at IS NULL
		ORDER BY created_at ASC LIMIT 1`, tenantID, trigger))
}

// GetFlowByKeyword matches the text against keyword-triggered flows,
// case-insensitively. Older flows win on keyword collisions.
func (r *FlowRepository) GetFlowByKeyword(ctx context.Context, tenantID, keyword string) (*entities.Flow, error) {
	return scanFlow(r.db.QueryRow(ctx, `
		SELECT `+flowColumns+` FROM flows
		WHERE tenant_id=$1 AND trigger_type='keyword' AND is_active=TRUE AND deleted_at IS NULL
		  AND EXISTS (SELECT 1 FROM unnest(trigger_keywords) kw WHERE LOWER(kw) = LOWER($2))
		ORDER BY created_at ASC LIMIT 1`, tenantID, keyword))
}

func (r *FlowRepository) GetFlowsByTenant(ctx context.Context, tenantID string) ([]*entities.Flow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+flowColumns+` FROM flows
		WHERE tenant_id=$1 AND deleted_at IS NULL ORDER BY name ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flows []*entities.Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

// CreateFlow inserts a flow. Marking it default demotes the tenant's
// previous default in the same transaction; exactly one default per tenant.
func (r *FlowRepository) CreateFlow(ctx context.Context, f *entities.Flow) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if f.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE flows SET is_default=FALSE, updated_at=NOW() WHERE tenant_id=$1 AND is_default=TRUE`, f.TenantID); err != nil {
			return fmt.Errorf("demote previous default flow: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO flows (id, tenant_id, whatsapp_account_id, name, description, trigger_type, trigger_keywords, is_active, is_default)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, NULLIF($5, ''), $6, $7, $8, $9)`,
		f.ID, f.TenantID, f.WhatsAppAccountID, f.Name, f.Description, f.TriggerType, f.TriggerKeywords, f.IsActive, f.IsDefault)
	if err != nil {
		return fmt.Errorf("create flow: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *FlowRepository) UpdateFlow(ctx context.Context, f *entities.Flow) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if f.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE flows SET is_default=FALSE, updated_at=NOW() WHERE tenant_id=$1 AND is_default=TRUE AND id<>$2`, f.TenantID, f.ID); err != nil {
			return fmt.Errorf("demote previous default flow: %w", err)
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE flows SET
			name=$2, description=NULLIF($3, ''), trigger_type=$4, trigger_keywords=$5,
			is_active=$6, is_default=$7, whatsapp_account_id=NULLIF($8, '')::uuid, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL`,
		f.ID, f.Name, f.Description, f.TriggerType, f.TriggerKeywords, f.IsActive, f.IsDefault, f.WhatsAppAccountID)
	if err != nil {
		return fmt.Errorf("update flow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("flow %s not found", f.ID)
	}
	return tx.Commit(ctx)
}

func (r *FlowRepository) DeleteFlow(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE flows SET deleted_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, id)
	return err
}

const nodeColumns = `id, flow_id, COALESCE(parent_node_id::text, ''), node_type, config, transitions, position, created_at`

func scanNode(row pgx.Row) (*entities.Node, error) {
	var n entities.Node
	var transitions []byte
	err := row.Scan(&n.ID, &n.FlowID, &n.ParentNodeID, &n.Type, &n.Config, &transitions, &n.Position, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(transitions) > 0 {
		if err := json.Unmarshal(transitions, &n.Transitions); err != nil {
			return nil, fmt.Errorf("decode node %s transitions: %w", n.ID, err)
		}
	}
	return &n, nil
}

func (r *FlowRepository) GetNodeByID(ctx context.Context, id string) (*entities.Node, error) {
	return scanNode(r.db.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM flow_nodes WHERE id=$1`, id))
}

// GetRootNodes returns the nodes without a parent; a well-formed flow has
// exactly one.
func (r *FlowRepository) GetRootNodes(ctx context.Context, flowID string) ([]*entities.Node, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+nodeColumns+` FROM flow_nodes
		WHERE flow_id=$1 AND parent_node_id IS NULL ORDER BY created_at ASC`, flowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

func (r *FlowRepository) GetNodesByFlow(ctx context.Context, flowID string) ([]*entities.Node, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+nodeColumns+` FROM flow_nodes WHERE flow_id=$1 ORDER BY created_at ASC`, flowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

func collectNodes(rows pgx.Rows) ([]*entities.Node, error) {
	var nodes []*entities.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ReplaceNodes swaps a flow's entire node set atomically. The editor always
// saves the whole graph.
func (r *FlowRepository) ReplaceNodes(ctx context.Context, flowID string, nodes []*entities.Node) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM flow_nodes WHERE flow_id=$1`, flowID); err != nil {
		return fmt.Errorf("clear flow nodes: %w", err)
	}

	for _, n := range nodes {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		var transitions []byte
		if len(n.Transitions) > 0 {
			transitions, err = json.Marshal(n.Transitions)
			if err != nil {
				return fmt.Errorf("encode node transitions: %w", err)
			}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO flow_nodes (id, flow_id, parent_node_id, node_type, config, transitions, position)
			VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7)`,
			n.ID, flowID, n.ParentNodeID, n.Type, n.Config, transitions, n.Position)
		if err != nil {
			return fmt.Errorf("insert flow node: %w", err)
		}
	}
	return tx.Commit(ctx)
}
