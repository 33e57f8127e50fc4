package store

import (
	"context"
	"fmt"
	"time"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
)

// GetSecurityGroup retrieves a group with its rules.
func (s *Store) GetSecurityGroup(ctx context.Context, id string) (*model.SecurityGroup, error) {
	var g model.SecurityGroup
	err := s.db.QueryRow(ctx,
		`SELECT id, spl_id, name, description, backend_id, state, error_message, version, created_at, updated_at
		 FROM security_groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.LinkID, &g.Name, &g.Description, &g.BackendID, &g.State, &g.ErrorMessage, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, notFound(model.EntitySecurityGroup, id, err)
	}
	rules, err := s.listRules(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	g.Rules = rules
	return &g, nil
}

// ListSecurityGroupsByLink returns every group of a link with its rules.
func (s *Store) ListSecurityGroupsByLink(ctx context.Context, linkID string) ([]model.SecurityGroup, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, spl_id, name, description, backend_id, state, error_message, version, created_at, updated_at
		 FROM security_groups WHERE spl_id = $1 ORDER BY created_at`, linkID)
	if err != nil {
		return nil, fmt.Errorf("list security groups for link %s: %w", linkID, err)
	}
	var groups []model.SecurityGroup
	for rows.Next() {
		var g model.SecurityGroup
		if err := rows.Scan(&g.ID, &g.LinkID, &g.Name, &g.Description, &g.BackendID, &g.State, &g.ErrorMessage,
			&g.Version, &g.CreatedAt, &g.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan security group: %w", err)
		}
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		rules, err := s.listRules(ctx, s.db, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Rules = rules
	}
	return groups, nil
}

func (s *Store) listRules(ctx context.Context, q Querier, groupID string) ([]model.SecurityGroupRule, error) {
	rows, err := q.Query(ctx,
		`SELECT id, protocol, from_port, to_port, cidr, backend_id
		 FROM security_group_rules WHERE security_group_id = $1 ORDER BY protocol, from_port, to_port, cidr`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list rules of security group %s: %w", groupID, err)
	}
	defer rows.Close()

	var rules []model.SecurityGroupRule
	for rows.Next() {
		var r model.SecurityGroupRule
		if err := rows.Scan(&r.ID, &r.Protocol, &r.FromPort, &r.ToPort, &r.CIDR, &r.BackendID); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// InsertSecurityGroup creates a group and its rules. It counts toward
// the link's security group quota.
func (tx *Tx) InsertSecurityGroup(ctx context.Context, g *model.SecurityGroup) error {
	now := time.Now()
	g.CreatedAt, g.UpdatedAt, g.Version = now, now, 1
	_, err := tx.Exec(ctx,
		`INSERT INTO security_groups (id, spl_id, name, description, backend_id, state, error_message, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		g.ID, g.LinkID, g.Name, g.Description, g.BackendID, g.State, g.ErrorMessage, g.Version, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert security group %s: %w", g.ID, err)
	}
	if err := tx.ReplaceRules(ctx, g.ID, g.Rules); err != nil {
		return err
	}
	return tx.Record(ctx, Change{
		Kind:   ChangeCreated,
		Entity: model.EntitySecurityGroup,
		ID:     g.ID,
		To:     g.State,
		Scope:  model.Scope{Type: model.ScopeLink, ID: g.LinkID},
		Deltas: map[string]float64{model.QuotaSecurityGroups: 1},
	})
}

// ReplaceRules swaps the full rule set of a group.
func (tx *Tx) ReplaceRules(ctx context.Context, groupID string, rules []model.SecurityGroupRule) error {
	if _, err := tx.Exec(ctx, `DELETE FROM security_group_rules WHERE security_group_id = $1`, groupID); err != nil {
		return fmt.Errorf("clear rules of security group %s: %w", groupID, err)
	}
	for _, r := range rules {
		id := r.ID
		if id == "" {
			id = platform.NewID()
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO security_group_rules (id, security_group_id, protocol, from_port, to_port, cidr, backend_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, groupID, r.Protocol, r.FromPort, r.ToPort, r.CIDR, r.BackendID,
		)
		if err != nil {
			return fmt.Errorf("insert rule %s: %w", r.Key(), err)
		}
	}
	return nil
}

// UpdateSecurityGroupFromRemote overwrites name and rules of a stable group.
func (tx *Tx) UpdateSecurityGroupFromRemote(ctx context.Context, g model.SecurityGroup, name string, rules []model.SecurityGroupRule) error {
	tag, err := tx.Exec(ctx,
		`UPDATE security_groups SET name = $1, version = version + 1, updated_at = now() WHERE id = $2 AND version = $3`,
		name, g.ID, g.Version)
	if err != nil {
		return fmt.Errorf("update security group %s: %w", g.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("security group %s: %w", g.ID, model.ErrConcurrentUpdate)
	}
	if err := tx.ReplaceRules(ctx, g.ID, rules); err != nil {
		return err
	}
	return tx.Record(ctx, Change{Kind: ChangeUpdated, Entity: model.EntitySecurityGroup, ID: g.ID, To: g.State})
}

// SetSecurityGroupBackendID stores the provider ID after a push.
func (s *Store) SetSecurityGroupBackendID(ctx context.Context, id, backendID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE security_groups SET backend_id = $1, updated_at = now() WHERE id = $2`, backendID, id)
	if err != nil {
		return fmt.Errorf("set backend id of security group %s: %w", id, err)
	}
	return nil
}

// DeleteSecurityGroup removes a group, its rules, and releases its quota.
func (s *Store) DeleteSecurityGroup(ctx context.Context, id string) error {
	return s.InTx(ctx, func(tx *Tx) error {
		return tx.DeleteSecurityGroup(ctx, id)
	})
}

func (tx *Tx) DeleteSecurityGroup(ctx context.Context, id string) error {
	var (
		linkID string
		state  model.State
	)
	err := tx.QueryRow(ctx, `DELETE FROM security_groups WHERE id = $1 RETURNING spl_id, state`, id).Scan(&linkID, &state)
	if err != nil {
		return notFound(model.EntitySecurityGroup, id, err)
	}
	return tx.Record(ctx, Change{
		Kind:   ChangeDeleted,
		Entity: model.EntitySecurityGroup,
		ID:     id,
		From:   state,
		Scope:  model.Scope{Type: model.ScopeLink, ID: linkID},
		Deltas: map[string]float64{model.QuotaSecurityGroups: -1},
	})
}

// ListFloatingIPsByLink returns the floating IPs of a link.
func (s *Store) ListFloatingIPsByLink(ctx context.Context, linkID string) ([]model.FloatingIP, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, spl_id, address, status, backend_id, backend_network_id, created_at, updated_at
		 FROM floating_ips WHERE spl_id = $1 ORDER BY address`, linkID)
	if err != nil {
		return nil, fmt.Errorf("list floating ips for link %s: %w", linkID, err)
	}
	defer rows.Close()

	var out []model.FloatingIP
	for rows.Next() {
		var ip model.FloatingIP
		if err := rows.Scan(&ip.ID, &ip.LinkID, &ip.Address, &ip.Status, &ip.BackendID, &ip.BackendNetworkID,
			&ip.CreatedAt, &ip.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan floating ip: %w", err)
		}
		out = append(out, ip)
	}
	return out, rows.Err()
}

// UpsertFloatingIP writes a floating IP as reported by the provider.
func (tx *Tx) UpsertFloatingIP(ctx context.Context, ip model.FloatingIP) error {
	var (
		id       string
		inserted bool
	)
	err := tx.QueryRow(ctx,
		`INSERT INTO floating_ips (id, spl_id, address, status, backend_id, backend_network_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (spl_id, backend_id) DO UPDATE
		 SET address = EXCLUDED.address, status = EXCLUDED.status,
		     backend_network_id = EXCLUDED.backend_network_id, version = floating_ips.version + 1, updated_at = now()
		 RETURNING id, (xmax = 0)`,
		ip.ID, ip.LinkID, ip.Address, ip.Status, ip.BackendID, ip.BackendNetworkID,
	).Scan(&id, &inserted)
	if err != nil {
		return fmt.Errorf("upsert floating ip %s: %w", ip.BackendID, err)
	}
	c := Change{Kind: ChangeUpdated, Entity: model.EntityFloatingIP, ID: id, To: ip.Status}
	if inserted {
		c.Kind = ChangeCreated
		c.Scope = model.Scope{Type: model.ScopeLink, ID: ip.LinkID}
		c.Deltas = map[string]float64{model.QuotaFloatingIPs: 1}
	}
	return tx.Record(ctx, c)
}

// DeleteFloatingIP removes a stale floating IP.
func (tx *Tx) DeleteFloatingIP(ctx context.Context, ip model.FloatingIP) error {
	if _, err := tx.Exec(ctx, `DELETE FROM floating_ips WHERE id = $1`, ip.ID); err != nil {
		return fmt.Errorf("delete floating ip %s: %w", ip.ID, err)
	}
	return tx.Record(ctx, Change{
		Kind:   ChangeDeleted,
		Entity: model.EntityFloatingIP,
		ID:     ip.ID,
		From:   ip.Status,
		Scope:  model.Scope{Type: model.ScopeLink, ID: ip.LinkID},
		Deltas: map[string]float64{model.QuotaFloatingIPs: -1},
	})
}
