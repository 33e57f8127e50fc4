package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

// GetTemplateGroup loads a group with its templates in execution order.
func (s *Store) GetTemplateGroup(ctx context.Context, id string) (*model.TemplateGroup, error) {
	var g model.TemplateGroup
	err := s.db.QueryRow(ctx,
		`SELECT id, name, is_active, created_at FROM template_groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.IsActive, &g.CreatedAt)
	if err != nil {
		return nil, notFound("template_group", id, err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, group_id, resource_type, settings_id, options, use_previous_resource_project, order_number
		 FROM templates WHERE group_id = $1 ORDER BY order_number`, id)
	if err != nil {
		return nil, fmt.Errorf("list templates of group %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var t model.Template
		if err := rows.Scan(&t.ID, &t.GroupID, &t.ResourceType, &t.SettingsID, &t.Options,
			&t.UsePreviousResourceProject, &t.OrderNumber); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		g.Templates = append(g.Templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &g, nil
}

// InsertTemplateGroup creates a group and its templates.
func (s *Store) InsertTemplateGroup(ctx context.Context, g *model.TemplateGroup) error {
	return s.InTx(ctx, func(tx *Tx) error {
		g.CreatedAt = time.Now()
		_, err := tx.Exec(ctx,
			`INSERT INTO template_groups (id, name, is_active, created_at) VALUES ($1, $2, $3, $4)`,
			g.ID, g.Name, g.IsActive, g.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert template group %s: %w", g.ID, err)
		}
		for _, t := range g.Templates {
			opts := t.Options
			if len(opts) == 0 {
				opts = []byte("{}")
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO templates (id, group_id, resource_type, settings_id, options, use_previous_resource_project, order_number)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				t.ID, g.ID, t.ResourceType, t.SettingsID, string(opts), t.UsePreviousResourceProject, t.OrderNumber)
			if err != nil {
				return fmt.Errorf("insert template %d of group %s: %w", t.OrderNumber, g.ID, err)
			}
		}
		return nil
	})
}

func scanTemplateResult(row pgx.Row) (*model.TemplateGroupResult, error) {
	var r model.TemplateGroupResult
	err := row.Scan(&r.ID, &r.GroupID, &r.Finished, &r.Erred, &r.StateMessage, &r.ErrorMessage, &r.ErrorDetails,
		&r.ProvisionedResources, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertTemplateResult creates the execution record of a group provision.
func (s *Store) InsertTemplateResult(ctx context.Context, r *model.TemplateGroupResult) error {
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.ProvisionedResources == nil {
		r.ProvisionedResources = map[string]string{}
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO template_group_results (id, group_id, finished, erred, state_message, error_message, error_details,
		                                     provisioned_resources, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.GroupID, r.Finished, r.Erred, r.StateMessage, r.ErrorMessage, r.ErrorDetails,
		r.ProvisionedResources, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert template result %s: %w", r.ID, err)
	}
	return nil
}

// GetTemplateResult retrieves an execution record.
func (s *Store) GetTemplateResult(ctx context.Context, id string) (*model.TemplateGroupResult, error) {
	r, err := scanTemplateResult(s.db.QueryRow(ctx,
		`SELECT id, group_id, finished, erred, state_message, error_message, error_details,
		        provisioned_resources, created_at, updated_at
		 FROM template_group_results WHERE id = $1`, id))
	if err != nil {
		return nil, notFound("template_group_result", id, err)
	}
	return r, nil
}

// AddProvisionedResource records a resource URL and the progress message.
func (s *Store) AddProvisionedResource(ctx context.Context, id, resourceType, url, stateMessage string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE template_group_results
		 SET provisioned_resources = provisioned_resources || jsonb_build_object($1::text, $2::text),
		     state_message = $3, updated_at = now()
		 WHERE id = $4`,
		resourceType, url, stateMessage, id)
	if err != nil {
		return fmt.Errorf("record provisioned %s for result %s: %w", resourceType, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template_group_result %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// TemplateOutcome is the terminal status written to a result.
type TemplateOutcome struct {
	Erred        bool   `json:"erred"`
	StateMessage string `json:"state_message"`
	ErrorMessage string `json:"error_message,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`
}

// FinishTemplateResult marks an execution record as finished.
func (s *Store) FinishTemplateResult(ctx context.Context, id string, o TemplateOutcome) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE template_group_results
		 SET finished = true, erred = $1, state_message = $2, error_message = $3, error_details = $4, updated_at = now()
		 WHERE id = $5`,
		o.Erred, o.StateMessage, o.ErrorMessage, o.ErrorDetails, id)
	if err != nil {
		return fmt.Errorf("finish template result %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template_group_result %s: %w", id, model.ErrNotFound)
	}
	return nil
}
