// Package objectstore manages S3 buckets as resources. A link's tenant is a
// bucket name prefix, so one set of credentials can serve many projects.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/backend"
	"github.com/opennode/waldur-core-sub000/internal/model"
)

// Type is the settings type tag of this provider.
const Type = "objectstore"

const defaultRegion = "us-east-1"

var invalidBucketChars = regexp.MustCompile(`[^a-z0-9-]+`)

// NewFactory returns a backend.Factory for S3-compatible endpoints. The
// settings username and password are the access key pair.
func NewFactory(logger zerolog.Logger) backend.Factory {
	logger = logger.With().Str("component", "objectstore").Logger()
	return func(settings model.ServiceSettings, tenantID string) (backend.Backend, error) {
		if settings.BackendURL == "" {
			return nil, fmt.Errorf("settings %s has no backend url", settings.ID)
		}
		client := s3.New(s3.Options{
			BaseEndpoint: aws.String(settings.BackendURL),
			Region:       settings.Option("region", defaultRegion),
			Credentials:  credentials.NewStaticCredentialsProvider(settings.Username, settings.Password, ""),
			UsePathStyle: true,
		})
		return &Backend{
			client:   client,
			settings: settings,
			tenantID: tenantID,
			logger:   logger.With().Str("settings_id", settings.ID).Logger(),
		}, nil
	}
}

// Backend supports provisioning, deletion, pulls and import. Buckets have
// no power state so start, stop and restart are not implemented.
type Backend struct {
	backend.Unimplemented
	client   *s3.Client
	settings model.ServiceSettings
	tenantID string
	logger   zerolog.Logger
}

// BucketName derives a DNS-safe bucket name for a resource of a tenant.
func BucketName(tenantID, name string) string {
	n := invalidBucketChars.ReplaceAllString(strings.ToLower(name), "-")
	n = strings.Trim(n, "-")
	full := tenantID + "-" + n
	if len(full) > 63 {
		full = strings.TrimRight(full[:63], "-")
	}
	return full
}

// SyncLink assigns the tenant prefix. There is nothing to create remotely.
func (b *Backend) SyncLink(ctx context.Context, link model.ServiceProjectLink) (backend.TenantInfo, error) {
	tenantID := link.TenantID
	if tenantID == "" {
		id := strings.ReplaceAll(link.ID, "-", "")
		if len(id) > 12 {
			id = id[:12]
		}
		tenantID = "spl" + strings.ToLower(id)
	}
	return backend.TenantInfo{TenantID: tenantID}, nil
}

// RemoveLink succeeds only once every bucket of the tenant is gone.
func (b *Backend) RemoveLink(ctx context.Context, link model.ServiceProjectLink) error {
	buckets, err := b.listTenantBuckets(ctx, link.TenantID)
	if err != nil {
		return err
	}
	if len(buckets) > 0 {
		return &model.BackendError{Op: "remove_link", Message: fmt.Sprintf("tenant still owns %d buckets", len(buckets))}
	}
	return nil
}

func (b *Backend) Provision(ctx context.Context, req backend.ProvisionRequest) (string, error) {
	tenant := req.Link.TenantID
	if tenant == "" {
		tenant = b.tenantID
	}
	name := BucketName(tenant, req.Resource.Name)
	b.logger.Info().Str("bucket", name).Msg("creating bucket")

	_, err := b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)})
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) {
			return "", model.NewBackendError("provision", fmt.Errorf("create bucket %s: %w", name, err))
		}
	}
	return name, nil
}

// Destroy empties the bucket page by page and then deletes it.
func (b *Backend) Destroy(ctx context.Context, r model.Resource) error {
	if r.BackendID == "" {
		return nil
	}
	name := r.BackendID
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{Bucket: aws.String(name)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNoSuchBucket(err) {
				return nil
			}
			return model.NewBackendError("destroy", fmt.Errorf("list objects in %s: %w", name, err))
		}
		if len(page.Contents) == 0 {
			continue
		}
		objects := make([]s3types.ObjectIdentifier, len(page.Contents))
		for i, obj := range page.Contents {
			objects[i] = s3types.ObjectIdentifier{Key: obj.Key}
		}
		_, err = b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(name),
			Delete: &s3types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return model.NewBackendError("destroy", fmt.Errorf("delete objects in %s: %w", name, err))
		}
	}

	_, err := b.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)})
	if err != nil && !isNoSuchBucket(err) {
		return model.NewBackendError("destroy", fmt.Errorf("delete bucket %s: %w", name, err))
	}
	b.logger.Info().Str("bucket", name).Msg("bucket deleted")
	return nil
}

func isNoSuchBucket(err error) bool {
	var nsb *s3types.NoSuchBucket
	var nf *s3types.NotFound
	return errors.As(err, &nsb) || errors.As(err, &nf)
}

// usage sums object sizes of a bucket in MiB, rounded up.
func (b *Backend) usage(ctx context.Context, name string) (int, error) {
	var total int64
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{Bucket: aws.String(name)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		for _, obj := range page.Contents {
			total += aws.ToInt64(obj.Size)
		}
	}
	return int((total + (1<<20 - 1)) >> 20), nil
}

func (b *Backend) remote(ctx context.Context, name string) (*backend.RemoteResource, error) {
	size, err := b.usage(ctx, name)
	if err != nil {
		if isNoSuchBucket(err) {
			return nil, fmt.Errorf("bucket %s: %w", name, model.ErrNotFound)
		}
		return nil, model.NewBackendError("get_resource", err)
	}
	return &backend.RemoteResource{
		BackendID: name,
		Type:      model.ResourceBucket,
		Name:      name,
		RawState:  "available",
		State:     model.StateOnline,
		Disk:      size,
	}, nil
}

func (b *Backend) GetResource(ctx context.Context, backendID string) (*backend.RemoteResource, error) {
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(backendID)}); err != nil {
		if isNoSuchBucket(err) {
			return nil, fmt.Errorf("bucket %s: %w", backendID, model.ErrNotFound)
		}
		return nil, model.NewBackendError("get_resource", err)
	}
	return b.remote(ctx, backendID)
}

func (b *Backend) listTenantBuckets(ctx context.Context, tenantID string) ([]string, error) {
	out, err := b.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, model.NewBackendError("list_buckets", err)
	}
	prefix := tenantID + "-"
	var names []string
	for _, bucket := range out.Buckets {
		name := aws.ToString(bucket.Name)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (b *Backend) PullInstances(ctx context.Context, link model.ServiceProjectLink) ([]backend.RemoteResource, error) {
	names, err := b.listTenantBuckets(ctx, link.TenantID)
	if err != nil {
		return nil, err
	}
	out := make([]backend.RemoteResource, 0, len(names))
	for _, name := range names {
		r, err := b.remote(ctx, name)
		if err != nil {
			if model.Kind(err) == model.KindNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func (b *Backend) PullQuotasAndUsage(ctx context.Context, link model.ServiceProjectLink) ([]backend.QuotaReport, error) {
	buckets, err := b.PullInstances(ctx, link)
	if err != nil {
		return nil, err
	}
	var storage float64
	for _, r := range buckets {
		storage += float64(r.Disk)
	}
	return []backend.QuotaReport{
		{Name: model.QuotaInstances, Limit: model.Unlimited, Usage: float64(len(buckets))},
		{Name: model.QuotaStorage, Limit: model.Unlimited, Usage: storage},
	}, nil
}

func (b *Backend) GetResourcesForImport(ctx context.Context, link model.ServiceProjectLink) ([]backend.RemoteResource, error) {
	return b.PullInstances(ctx, link)
}

// GetMonthlyCostEstimate prices storage by the per-GiB option "price_per_gib".
func (b *Backend) GetMonthlyCostEstimate(ctx context.Context, r model.Resource) (float64, error) {
	var price float64
	if _, err := fmt.Sscanf(b.settings.Option("price_per_gib", "0.02"), "%g", &price); err != nil {
		return 0, fmt.Errorf("invalid price_per_gib: %w", err)
	}
	return float64(r.Disk) / 1024 * price, nil
}
