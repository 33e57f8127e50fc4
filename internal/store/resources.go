package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opennode/waldur-core-sub000/internal/fsm"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

const resourceColumns = `id, spl_id, type, name, description, tags, backend_id, state, error_message,
	flavor_name, cores, ram, disk, image_name, key_name, key_fingerprint, user_data,
	system_volume_id, system_volume_size, data_volume_id, data_volume_size, min_ram, min_disk,
	external_ips, internal_ips, start_time, quota_held, version, created_at, updated_at`

func scanResource(row pgx.Row) (*model.Resource, error) {
	var r model.Resource
	err := row.Scan(&r.ID, &r.LinkID, &r.Type, &r.Name, &r.Description, &r.Tags, &r.BackendID, &r.State, &r.ErrorMessage,
		&r.FlavorName, &r.Cores, &r.RAM, &r.Disk, &r.ImageName, &r.KeyName, &r.KeyFingerprint, &r.UserData,
		&r.SystemVolumeID, &r.SystemVolumeSize, &r.DataVolumeID, &r.DataVolumeSize, &r.MinRAM, &r.MinDisk,
		&r.ExternalIPs, &r.InternalIPs, &r.StartTime, &r.QuotaHeld, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func resourceChangeContext(r *model.Resource) map[string]string {
	return map[string]string{
		"resource_type":        r.Type,
		"resource_name":        r.Name,
		"service_project_link": r.LinkID,
	}
}

// InsertResource creates a resource row and charges its quota usage to
// the owning link.
func (tx *Tx) InsertResource(ctx context.Context, r *model.Resource) error {
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	r.Version = 1
	r.QuotaHeld = true

	_, err := tx.Exec(ctx,
		`INSERT INTO resources (`+resourceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
		         $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`,
		r.ID, r.LinkID, r.Type, r.Name, r.Description, nonNil(r.Tags), r.BackendID, r.State, r.ErrorMessage,
		r.FlavorName, r.Cores, r.RAM, r.Disk, r.ImageName, r.KeyName, r.KeyFingerprint, r.UserData,
		r.SystemVolumeID, r.SystemVolumeSize, r.DataVolumeID, r.DataVolumeSize, r.MinRAM, r.MinDisk,
		nonNil(r.ExternalIPs), nonNil(r.InternalIPs), r.StartTime, r.QuotaHeld, r.Version, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert resource %s: %w", r.ID, err)
	}

	return tx.Record(ctx, Change{
		Kind:    ChangeCreated,
		Entity:  model.EntityResource,
		ID:      r.ID,
		To:      r.State,
		Scope:   model.Scope{Type: model.ScopeLink, ID: r.LinkID},
		Deltas:  r.QuotaUsage(),
		Context: resourceChangeContext(r),
	})
}

// GetResource retrieves a resource by its ID.
func (s *Store) GetResource(ctx context.Context, id string) (*model.Resource, error) {
	r, err := scanResource(s.db.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(model.EntityResource, id, err)
	}
	return r, nil
}

// GetResourceContext loads a resource together with its link and settings.
func (s *Store) GetResourceContext(ctx context.Context, id string) (*model.ResourceContext, error) {
	r, err := s.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	lc, err := s.GetLinkContext(ctx, r.LinkID)
	if err != nil {
		return nil, err
	}
	return &model.ResourceContext{Resource: *r, Link: lc.Link, Settings: lc.Settings}, nil
}

// ListResourcesByLink returns every resource owned by a link.
func (s *Store) ListResourcesByLink(ctx context.Context, linkID string) ([]model.Resource, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE spl_id = $1 ORDER BY created_at`, linkID)
	if err != nil {
		return nil, fmt.Errorf("list resources for link %s: %w", linkID, err)
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// BackendInfo is what a provider reports after provisioning.
type BackendInfo struct {
	BackendID      string     `json:"backend_id"`
	ExternalIPs    []string   `json:"external_ips"`
	InternalIPs    []string   `json:"internal_ips"`
	SystemVolumeID string     `json:"system_volume_id"`
	DataVolumeID   string     `json:"data_volume_id"`
	StartTime      *time.Time `json:"start_time"`
}

// SetResourceBackendInfo stores the provider-assigned identifiers.
func (s *Store) SetResourceBackendInfo(ctx context.Context, id string, info BackendInfo) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE resources SET backend_id = $1, external_ips = $2, internal_ips = $3,
		        system_volume_id = COALESCE(NULLIF($4, ''), system_volume_id),
		        data_volume_id = COALESCE(NULLIF($5, ''), data_volume_id),
		        start_time = COALESCE($6, start_time), updated_at = now()
		 WHERE id = $7`,
		info.BackendID, nonNil(info.ExternalIPs), nonNil(info.InternalIPs),
		info.SystemVolumeID, info.DataVolumeID, info.StartTime, id,
	)
	if err != nil {
		return fmt.Errorf("set backend info for resource %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resource %s: %w", id, model.ErrNotFound)
	}
	return nil
}

// ResizeParams carries the new size of a resource after resize or extend.
type ResizeParams struct {
	ID             string `json:"id"`
	FlavorName     string `json:"flavor_name,omitempty"`
	Cores          int    `json:"cores,omitempty"`
	RAM            int    `json:"ram,omitempty"`
	DataVolumeSize int    `json:"data_volume_size,omitempty"`
}

// ApplyResize updates the sizing columns and moves the quota difference.
func (s *Store) ApplyResize(ctx context.Context, p ResizeParams) error {
	return s.InTx(ctx, func(tx *Tx) error {
		before, err := scanResource(tx.QueryRow(ctx,
			`SELECT `+resourceColumns+` FROM resources WHERE id = $1 FOR UPDATE`, p.ID))
		if err != nil {
			return notFound(model.EntityResource, p.ID, err)
		}
		after := *before
		if p.FlavorName != "" {
			after.FlavorName = p.FlavorName
			after.Cores = p.Cores
			after.RAM = p.RAM
		}
		if p.DataVolumeSize > 0 {
			after.DataVolumeSize = p.DataVolumeSize
		}

		_, err = tx.Exec(ctx,
			`UPDATE resources SET flavor_name = $1, cores = $2, ram = $3, data_volume_size = $4,
			        version = version + 1, updated_at = now()
			 WHERE id = $5`,
			after.FlavorName, after.Cores, after.RAM, after.DataVolumeSize, p.ID,
		)
		if err != nil {
			return fmt.Errorf("apply resize to resource %s: %w", p.ID, err)
		}
		if !before.QuotaHeld {
			return nil
		}
		return tx.Record(ctx, Change{
			Kind:    ChangeUpdated,
			Entity:  model.EntityResource,
			ID:      p.ID,
			To:      before.State,
			Scope:   model.Scope{Type: model.ScopeLink, ID: before.LinkID},
			Deltas:  diffUsage(before.QuotaUsage(), after.QuotaUsage()),
			Context: resourceChangeContext(&after),
		})
	})
}

// DeleteResource removes a resource row and releases its quota.
func (s *Store) DeleteResource(ctx context.Context, id string) error {
	return s.InTx(ctx, func(tx *Tx) error {
		return tx.DeleteResource(ctx, id)
	})
}

func (tx *Tx) DeleteResource(ctx context.Context, id string) error {
	r, err := scanResource(tx.QueryRow(ctx,
		`DELETE FROM resources WHERE id = $1 RETURNING `+resourceColumns, id))
	if err != nil {
		return notFound(model.EntityResource, id, err)
	}
	c := Change{
		Kind:    ChangeDeleted,
		Entity:  model.EntityResource,
		ID:      id,
		From:    r.State,
		Scope:   model.Scope{Type: model.ScopeLink, ID: r.LinkID},
		Context: resourceChangeContext(r),
	}
	if r.QuotaHeld {
		c.Deltas = model.Negate(r.QuotaUsage())
	}
	return tx.Record(ctx, c)
}

// MarkDisappeared moves a stable resource that the provider no longer
// reports to ERRED and releases the quota it held.
func (tx *Tx) MarkDisappeared(ctx context.Context, r model.Resource, msg string) error {
	_, err := tx.Transition(ctx, model.EntityResource, r.ID, fsm.SetErred,
		WithMessage(msg), WithExpectedVersion(r.Version), WithContext(resourceChangeContext(&r)))
	if err != nil {
		return err
	}
	if !r.QuotaHeld {
		return nil
	}
	if _, err := tx.Exec(ctx, `UPDATE resources SET quota_held = false WHERE id = $1`, r.ID); err != nil {
		return fmt.Errorf("release quota of resource %s: %w", r.ID, err)
	}
	return tx.Record(ctx, Change{
		Kind:    ChangeUpdated,
		Entity:  model.EntityResource,
		ID:      r.ID,
		To:      model.StateErred,
		Scope:   model.Scope{Type: model.ScopeLink, ID: r.LinkID},
		Deltas:  model.Negate(r.QuotaUsage()),
		Context: resourceChangeContext(&r),
	})
}

// RestoreQuotaHold charges the usage of a resource that released its
// quota when it went missing at the provider. A resource that still holds
// its quota is left alone.
func (tx *Tx) RestoreQuotaHold(ctx context.Context, id string) error {
	r, err := scanResource(tx.QueryRow(ctx,
		`UPDATE resources SET quota_held = true WHERE id = $1 AND NOT quota_held RETURNING `+resourceColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore quota of resource %s: %w", id, err)
	}
	return tx.Record(ctx, Change{
		Kind:    ChangeUpdated,
		Entity:  model.EntityResource,
		ID:      r.ID,
		To:      r.State,
		Scope:   model.Scope{Type: model.ScopeLink, ID: r.LinkID},
		Deltas:  r.QuotaUsage(),
		Context: resourceChangeContext(r),
	})
}

// RecoverResource applies a recover transition and charges the quota the
// resource gave up when it was marked missing, in one unit of work.
func (s *Store) RecoverResource(ctx context.Context, id, name string) (model.State, error) {
	var next model.State
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		if next, err = tx.Transition(ctx, model.EntityResource, id, name); err != nil {
			return err
		}
		return tx.RestoreQuotaHold(ctx, id)
	})
	if err != nil {
		return "", err
	}
	return next, nil
}

// RemoteUpdate carries provider-owned attributes. User-owned attributes
// (description, tags) are never written by the reconciler.
type RemoteUpdate struct {
	Name        string
	FlavorName  string
	Cores       int
	RAM         int
	Disk        int
	ExternalIPs []string
	InternalIPs []string
}

// UpdateFromRemote overwrites provider-owned attributes of a stable
// resource. The write is optimistic against version. A resource that
// released its quota when it went missing is charged again, since the
// provider reports it once more.
func (tx *Tx) UpdateFromRemote(ctx context.Context, r model.Resource, u RemoteUpdate) error {
	tag, err := tx.Exec(ctx,
		`UPDATE resources SET name = $1, flavor_name = $2, cores = $3, ram = $4, disk = $5,
		        external_ips = $6, internal_ips = $7, quota_held = true, version = version + 1, updated_at = now()
		 WHERE id = $8 AND version = $9`,
		u.Name, u.FlavorName, u.Cores, u.RAM, u.Disk, nonNil(u.ExternalIPs), nonNil(u.InternalIPs), r.ID, r.Version,
	)
	if err != nil {
		return fmt.Errorf("update resource %s from remote: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resource %s: %w", r.ID, model.ErrConcurrentUpdate)
	}

	after := r
	after.Cores, after.RAM, after.Disk = u.Cores, u.RAM, u.Disk
	c := Change{
		Kind:    ChangeUpdated,
		Entity:  model.EntityResource,
		ID:      r.ID,
		To:      r.State,
		Scope:   model.Scope{Type: model.ScopeLink, ID: r.LinkID},
		Context: resourceChangeContext(&after),
	}
	if r.QuotaHeld {
		c.Deltas = diffUsage(r.QuotaUsage(), after.QuotaUsage())
	} else {
		c.Deltas = after.QuotaUsage()
	}
	return tx.Record(ctx, c)
}

func diffUsage(before, after map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	for k, v := range after {
		if d := v - before[k]; d != 0 {
			out[k] = d
		}
	}
	for k, v := range before {
		if _, ok := after[k]; !ok && v != 0 {
			out[k] = -v
		}
	}
	return out
}
