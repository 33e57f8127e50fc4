package reconcile

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// PullConcurrency bounds the parallel pulls of one link.
const PullConcurrency = 4

// LinkSnapshot is everything a provider reports about one link. A nil
// slice means the provider does not support that pull.
type LinkSnapshot struct {
	Instances      []backend.RemoteResource      `json:"instances"`
	SecurityGroups []backend.RemoteSecurityGroup `json:"security_groups"`
	FloatingIPs    []backend.RemoteFloatingIP    `json:"floating_ips"`
	Quotas         []backend.QuotaReport         `json:"quotas"`

	InstancesSupported      bool `json:"instances_supported"`
	SecurityGroupsSupported bool `json:"security_groups_supported"`
	FloatingIPsSupported    bool `json:"floating_ips_supported"`
}

// PullLink runs the independent pulls of a link in parallel. Unsupported
// pulls are skipped; the first other failure cancels the rest.
func PullLink(ctx context.Context, be backend.PullBackend, link model.ServiceProjectLink) (*LinkSnapshot, error) {
	var snap LinkSnapshot
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(PullConcurrency)

	g.Go(func() error {
		out, err := be.PullInstances(gctx, link)
		if backend.IsNotImplemented(err) {
			return nil
		}
		if err != nil {
			return model.NewBackendError("pull_instances", err)
		}
		snap.Instances, snap.InstancesSupported = out, true
		return nil
	})
	g.Go(func() error {
		out, err := be.PullSecurityGroups(gctx, link)
		if backend.IsNotImplemented(err) {
			return nil
		}
		if err != nil {
			return model.NewBackendError("pull_security_groups", err)
		}
		snap.SecurityGroups, snap.SecurityGroupsSupported = out, true
		return nil
	})
	g.Go(func() error {
		out, err := be.PullFloatingIPs(gctx, link)
		if backend.IsNotImplemented(err) {
			return nil
		}
		if err != nil {
			return model.NewBackendError("pull_floating_ips", err)
		}
		snap.FloatingIPs, snap.FloatingIPsSupported = out, true
		return nil
	})
	g.Go(func() error {
		out, err := be.PullQuotasAndUsage(gctx, link)
		if backend.IsNotImplemented(err) {
			return nil
		}
		if err != nil {
			return model.NewBackendError("pull_quotas_and_usage", err)
		}
		snap.Quotas = out
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// PullProperties fetches the provider catalogue of a settings entity.
func PullProperties(ctx context.Context, be backend.PullBackend) ([]model.Flavor, []model.Image, error) {
	var (
		flavors []model.Flavor
		images  []model.Image
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		flavors, err = be.PullFlavors(gctx)
		if backend.IsNotImplemented(err) {
			return nil
		}
		return model.NewBackendError("pull_flavors", err)
	})
	g.Go(func() error {
		var err error
		images, err = be.PullImages(gctx)
		if backend.IsNotImplemented(err) {
			return nil
		}
		return model.NewBackendError("pull_images", err)
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return flavors, images, nil
}
