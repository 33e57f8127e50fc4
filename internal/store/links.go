package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

const settingsColumns = `s.id, s.customer_id, s.name, s.type, s.backend_url, s.username, s.password, s.token,
	s.options, s.shared, s.state, s.error_message, s.created_at, s.updated_at`

const linkColumns = `l.id, l.service_id, l.project_id, l.tenant_id, l.internal_network_id, l.external_network_id,
	l.availability_zone, l.state, l.error_message, l.version, l.created_at, l.updated_at`

func scanSettings(row pgx.Row) (*model.ServiceSettings, error) {
	var s model.ServiceSettings
	err := row.Scan(&s.ID, &s.CustomerID, &s.Name, &s.Type, &s.BackendURL, &s.Username, &s.Password, &s.Token,
		&s.Options, &s.Shared, &s.State, &s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSettings retrieves service settings by ID.
func (s *Store) GetSettings(ctx context.Context, id string) (*model.ServiceSettings, error) {
	st, err := scanSettings(s.db.QueryRow(ctx,
		`SELECT `+settingsColumns+` FROM service_settings s WHERE s.id = $1`, id))
	if err != nil {
		return nil, notFound(model.EntitySettings, id, err)
	}
	return st, nil
}

// ListSettingsInStates returns settings whose state is one of states.
func (s *Store) ListSettingsInStates(ctx context.Context, states ...model.State) ([]model.ServiceSettings, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+settingsColumns+` FROM service_settings s WHERE s.state = ANY($1) ORDER BY s.created_at`,
		statesArg(states))
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []model.ServiceSettings
	for rows.Next() {
		st, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settings: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// GetLinkContext loads a link with its settings and owning customer.
func (s *Store) GetLinkContext(ctx context.Context, id string) (*model.LinkContext, error) {
	var (
		lc model.LinkContext
		l  = &lc.Link
		st = &lc.Settings
	)
	err := s.db.QueryRow(ctx,
		`SELECT `+linkColumns+`, p.customer_id, `+settingsColumns+`
		 FROM service_project_links l
		 JOIN services sv ON sv.id = l.service_id
		 JOIN projects p ON p.id = l.project_id
		 JOIN service_settings s ON s.id = sv.settings_id
		 WHERE l.id = $1`, id,
	).Scan(&l.ID, &l.ServiceID, &l.ProjectID, &l.TenantID, &l.InternalNetworkID, &l.ExternalNetworkID,
		&l.AvailabilityZone, &l.State, &l.ErrorMessage, &l.Version, &l.CreatedAt, &l.UpdatedAt,
		&lc.CustomerID,
		&st.ID, &st.CustomerID, &st.Name, &st.Type, &st.BackendURL, &st.Username, &st.Password, &st.Token,
		&st.Options, &st.Shared, &st.State, &st.ErrorMessage, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, notFound(model.EntityLink, id, err)
	}
	return &lc, nil
}

// ListLinkIDsInStates returns the IDs of links in any of the given states.
func (s *Store) ListLinkIDsInStates(ctx context.Context, states ...model.State) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM service_project_links WHERE state = ANY($1) ORDER BY created_at`, statesArg(states))
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan link id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LinkBackendInfo is what SyncLink reports about the provider-side tenant.
type LinkBackendInfo struct {
	TenantID          string `json:"tenant_id"`
	InternalNetworkID string `json:"internal_network_id"`
	ExternalNetworkID string `json:"external_network_id"`
	AvailabilityZone  string `json:"availability_zone"`
}

// SetLinkBackendInfo stores provider-side tenant identifiers. Empty
// values keep what is already stored.
func (s *Store) SetLinkBackendInfo(ctx context.Context, id string, info LinkBackendInfo) error {
	_, err := s.db.Exec(ctx,
		`UPDATE service_project_links SET
		        tenant_id = COALESCE(NULLIF($1, ''), tenant_id),
		        internal_network_id = COALESCE(NULLIF($2, ''), internal_network_id),
		        external_network_id = COALESCE(NULLIF($3, ''), external_network_id),
		        availability_zone = COALESCE(NULLIF($4, ''), availability_zone),
		        updated_at = now()
		 WHERE id = $5`,
		info.TenantID, info.InternalNetworkID, info.ExternalNetworkID, info.AvailabilityZone, id,
	)
	if err != nil {
		return fmt.Errorf("set backend info for link %s: %w", id, err)
	}
	return nil
}

// DeleteLink removes a link. The foreign key on resources refuses the
// delete while any resource still references it.
func (s *Store) DeleteLink(ctx context.Context, id string) error {
	return s.InTx(ctx, func(tx *Tx) error {
		var state model.State
		err := tx.QueryRow(ctx, `DELETE FROM service_project_links WHERE id = $1 RETURNING state`, id).Scan(&state)
		if err != nil {
			return notFound(model.EntityLink, id, err)
		}
		return tx.Record(ctx, Change{Kind: ChangeDeleted, Entity: model.EntityLink, ID: id, From: state})
	})
}

// Properties is the provider-wide catalogue pulled for one settings entity.
type Properties struct {
	Flavors []model.Flavor
	Images  []model.Image
}

// ReplaceProperties upserts the remote catalogue and removes stale rows.
func (s *Store) ReplaceProperties(ctx context.Context, settingsID string, p Properties) error {
	return s.InTx(ctx, func(tx *Tx) error {
		flavorIDs := make([]string, 0, len(p.Flavors))
		for _, f := range p.Flavors {
			flavorIDs = append(flavorIDs, f.BackendID)
			_, err := tx.Exec(ctx,
				`INSERT INTO flavors (id, settings_id, backend_id, name, cores, ram, disk)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)
				 ON CONFLICT (settings_id, backend_id) DO UPDATE
				 SET name = EXCLUDED.name, cores = EXCLUDED.cores, ram = EXCLUDED.ram, disk = EXCLUDED.disk`,
				f.ID, settingsID, f.BackendID, f.Name, f.Cores, f.RAM, f.Disk,
			)
			if err != nil {
				return fmt.Errorf("upsert flavor %s: %w", f.BackendID, err)
			}
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM flavors WHERE settings_id = $1 AND NOT (backend_id = ANY($2))`, settingsID, flavorIDs); err != nil {
			return fmt.Errorf("delete stale flavors: %w", err)
		}

		imageIDs := make([]string, 0, len(p.Images))
		for _, im := range p.Images {
			imageIDs = append(imageIDs, im.BackendID)
			_, err := tx.Exec(ctx,
				`INSERT INTO images (id, settings_id, backend_id, name, min_ram, min_disk)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (settings_id, backend_id) DO UPDATE
				 SET name = EXCLUDED.name, min_ram = EXCLUDED.min_ram, min_disk = EXCLUDED.min_disk`,
				im.ID, settingsID, im.BackendID, im.Name, im.MinRAM, im.MinDisk,
			)
			if err != nil {
				return fmt.Errorf("upsert image %s: %w", im.BackendID, err)
			}
		}
		if _, err := tx.Exec(ctx,
			`DELETE FROM images WHERE settings_id = $1 AND NOT (backend_id = ANY($2))`, settingsID, imageIDs); err != nil {
			return fmt.Errorf("delete stale images: %w", err)
		}
		return nil
	})
}

// GetFlavorByName resolves a flavor of the given settings.
func (s *Store) GetFlavorByName(ctx context.Context, settingsID, name string) (*model.Flavor, error) {
	var f model.Flavor
	err := s.db.QueryRow(ctx,
		`SELECT id, settings_id, backend_id, name, cores, ram, disk FROM flavors WHERE settings_id = $1 AND name = $2`,
		settingsID, name,
	).Scan(&f.ID, &f.SettingsID, &f.BackendID, &f.Name, &f.Cores, &f.RAM, &f.Disk)
	if err != nil {
		return nil, notFound("flavor", name, err)
	}
	return &f, nil
}

func statesArg(states []model.State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
