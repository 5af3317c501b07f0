package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"leadmatch/internal/model"
)

// Repository stores leads and agents in any sqlx-supported database
type Repository struct {
	db *sqlx.DB
}

func newRepository(db *sqlx.DB, schema string) (*Repository, error) {
	r := &Repository{db: db}
	if err := r.migrate(schema); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) migrate(schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const leadColumns = `
	id, client_id, handle, name, agent_id, budget, size, location, rooms,
	readiness, contact, notes, status, draft_step, selected_supplier,
	selected_unit, commission_amount, commission_paid_at, created_at, updated_at`

// GetLead retrieves a lead by id
func (r *Repository) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	var lead model.Lead
	query := r.db.Rebind(`SELECT` + leadColumns + ` FROM leads WHERE id = ?`)
	if err := r.db.GetContext(ctx, &lead, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// SaveLead inserts or updates a lead
func (r *Repository) SaveLead(ctx context.Context, lead *model.Lead) error {
	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES (
			:id, :client_id, :handle, :name, :agent_id, :budget, :size, :location, :rooms,
			:readiness, :contact, :notes, :status, :draft_step, :selected_supplier,
			:selected_unit, :commission_amount, :commission_paid_at, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			handle = excluded.handle,
			name = excluded.name,
			agent_id = excluded.agent_id,
			budget = excluded.budget,
			size = excluded.size,
			location = excluded.location,
			rooms = excluded.rooms,
			readiness = excluded.readiness,
			contact = excluded.contact,
			notes = excluded.notes,
			status = excluded.status,
			draft_step = excluded.draft_step,
			selected_supplier = excluded.selected_supplier,
			selected_unit = excluded.selected_unit,
			commission_amount = excluded.commission_amount,
			commission_paid_at = excluded.commission_paid_at,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, lead); err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}
	return nil
}

// FindLeadByClient returns the client's newest lead
func (r *Repository) FindLeadByClient(ctx context.Context, clientID string) (*model.Lead, error) {
	var lead model.Lead
	query := r.db.Rebind(`SELECT` + leadColumns + `
		FROM leads
		WHERE client_id = ?
		ORDER BY created_at DESC
		LIMIT 1`)
	if err := r.db.GetContext(ctx, &lead, query, clientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrLeadNotFound
		}
		return nil, fmt.Errorf("failed to find lead: %w", err)
	}
	return &lead, nil
}

// DeleteLead removes a lead
func (r *Repository) DeleteLead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM leads WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.ErrLeadNotFound
	}
	return nil
}

// ListLeads returns leads newest first, optionally filtered by agent and status
func (r *Repository) ListLeads(ctx context.Context, agentID string, status model.LeadStatus) ([]model.Lead, error) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}

	if agentID != "" {
		whereClauses = append(whereClauses, "agent_id = ?")
		args = append(args, agentID)
	}
	if status != "" {
		whereClauses = append(whereClauses, "status = ?")
		args = append(args, string(status))
	}

	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY created_at DESC`,
		leadColumns, strings.Join(whereClauses, " AND ")))

	leads := []model.Lead{}
	if err := r.db.SelectContext(ctx, &leads, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}

const agentColumns = `id, handle, full_name, phone, company, notify_channel_id, is_active, created_at`

// GetAgent retrieves an agent by id
func (r *Repository) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	var agent model.Agent
	query := r.db.Rebind(`SELECT ` + agentColumns + ` FROM agents WHERE id = ?`)
	if err := r.db.GetContext(ctx, &agent, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return &agent, nil
}

// SaveAgent inserts or updates an agent
func (r *Repository) SaveAgent(ctx context.Context, agent *model.Agent) error {
	query := `
		INSERT INTO agents (` + agentColumns + `)
		VALUES (:id, :handle, :full_name, :phone, :company, :notify_channel_id, :is_active, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			handle = excluded.handle,
			full_name = excluded.full_name,
			phone = excluded.phone,
			company = excluded.company,
			notify_channel_id = excluded.notify_channel_id,
			is_active = excluded.is_active
	`
	if _, err := r.db.NamedExecContext(ctx, query, agent); err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

// ListAgents returns every agent, oldest first
func (r *Repository) ListAgents(ctx context.Context) ([]model.Agent, error) {
	agents := []model.Agent{}
	query := `SELECT ` + agentColumns + ` FROM agents ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &agents, query); err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}
