package store

import (
	"context"
	"fmt"
	"time"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

// GetCustomer retrieves a customer by its ID.
func (s *Store) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	err := s.db.QueryRow(ctx,
		`SELECT id, name, balance, suspend_on_debt, created_at, updated_at FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Balance, &c.SuspendOnDebt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound("customer", id, err)
	}
	return &c, nil
}

// InsertCustomer creates a customer.
func (s *Store) InsertCustomer(ctx context.Context, c *model.Customer) error {
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := s.db.Exec(ctx,
		`INSERT INTO customers (id, name, balance, suspend_on_debt, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, c.Balance, c.SuspendOnDebt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert customer %s: %w", c.ID, err)
	}
	return nil
}

// InsertProject creates a project and counts it against its customer.
func (s *Store) InsertProject(ctx context.Context, p *model.Project) error {
	return s.InTx(ctx, func(tx *Tx) error {
		now := time.Now()
		p.CreatedAt, p.UpdatedAt = now, now
		_, err := tx.Exec(ctx,
			`INSERT INTO projects (id, customer_id, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			p.ID, p.CustomerID, p.Name, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert project %s: %w", p.ID, err)
		}
		return tx.Record(ctx, Change{
			Kind:   ChangeCreated,
			Entity: "project",
			ID:     p.ID,
			Scope:  model.Scope{Type: model.ScopeCustomer, ID: p.CustomerID},
			Deltas: map[string]float64{model.QuotaProjects: 1},
		})
	})
}

// InsertSettings creates service settings in the NEW state.
func (s *Store) InsertSettings(ctx context.Context, st *model.ServiceSettings) error {
	now := time.Now()
	st.CreatedAt, st.UpdatedAt = now, now
	if st.State == "" {
		st.State = model.StateNew
	}
	opts := st.Options
	if opts == nil {
		opts = map[string]string{}
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO service_settings (id, customer_id, name, type, backend_url, username, password, token, options,
		                               shared, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		st.ID, st.CustomerID, st.Name, st.Type, st.BackendURL, st.Username, st.Password, st.Token, opts,
		st.Shared, st.State, st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert settings %s: %w", st.ID, err)
	}
	return nil
}

// InsertService creates a service and counts it against its customer.
func (s *Store) InsertService(ctx context.Context, sv *model.Service) error {
	return s.InTx(ctx, func(tx *Tx) error {
		sv.CreatedAt = time.Now()
		_, err := tx.Exec(ctx,
			`INSERT INTO services (id, customer_id, settings_id, created_at) VALUES ($1, $2, $3, $4)`,
			sv.ID, sv.CustomerID, sv.SettingsID, sv.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert service %s: %w", sv.ID, err)
		}
		return tx.Record(ctx, Change{
			Kind:   ChangeCreated,
			Entity: "service",
			ID:     sv.ID,
			Scope:  model.Scope{Type: model.ScopeCustomer, ID: sv.CustomerID},
			Deltas: map[string]float64{model.QuotaServices: 1},
		})
	})
}

// InsertLink creates a service-project link in the NEW state.
func (s *Store) InsertLink(ctx context.Context, l *model.ServiceProjectLink) error {
	return s.InTx(ctx, func(tx *Tx) error {
		now := time.Now()
		l.CreatedAt, l.UpdatedAt, l.Version = now, now, 1
		if l.State == "" {
			l.State = model.StateNew
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO service_project_links (id, service_id, project_id, state, version, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			l.ID, l.ServiceID, l.ProjectID, l.State, l.Version, l.CreatedAt, l.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert link %s: %w", l.ID, err)
		}
		return tx.Record(ctx, Change{Kind: ChangeCreated, Entity: model.EntityLink, ID: l.ID, To: l.State})
	})
}

// InsertSSHKey stores a public key. The fingerprint is unique.
func (s *Store) InsertSSHKey(ctx context.Context, k *model.SSHKey) error {
	k.CreatedAt = time.Now()
	_, err := s.db.Exec(ctx,
		`INSERT INTO ssh_keys (id, name, public_key, fingerprint, created_at) VALUES ($1, $2, $3, $4, $5)`,
		k.ID, k.Name, k.PublicKey, k.Fingerprint, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ssh key %s: %w", k.Name, err)
	}
	return nil
}

// GetSSHKeyByFingerprint resolves a stored key.
func (s *Store) GetSSHKeyByFingerprint(ctx context.Context, fingerprint string) (*model.SSHKey, error) {
	var k model.SSHKey
	err := s.db.QueryRow(ctx,
		`SELECT id, name, public_key, fingerprint, created_at FROM ssh_keys WHERE fingerprint = $1`, fingerprint,
	).Scan(&k.ID, &k.Name, &k.PublicKey, &k.Fingerprint, &k.CreatedAt)
	if err != nil {
		return nil, notFound("ssh_key", fingerprint, err)
	}
	return &k, nil
}
