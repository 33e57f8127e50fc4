package openstack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gophercloud/gophercloud/v2"
	gcopenstack "github.com/gophercloud/gophercloud/v2/openstack"
	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/model"
	"github.com/opennode/waldur-core-sub000/internal/platform"
)

// serviceKind names one catalog service the backend talks to.
type serviceKind string

const (
	serviceCompute  serviceKind = "compute"
	serviceNetwork  serviceKind = "network"
	serviceVolume   serviceKind = "block-storage"
	serviceImage    serviceKind = "image"
	serviceIdentity serviceKind = "identity"
)

var serviceBuilders = map[serviceKind]func(*gophercloud.ProviderClient, gophercloud.EndpointOpts) (*gophercloud.ServiceClient, error){
	serviceCompute: gcopenstack.NewComputeV2,
	serviceNetwork: gcopenstack.NewNetworkV2,
	serviceVolume:  gcopenstack.NewBlockStorageV3,
	serviceImage:   gcopenstack.NewImageV2,
	serviceIdentity: func(pc *gophercloud.ProviderClient, _ gophercloud.EndpointOpts) (*gophercloud.ServiceClient, error) {
		return gcopenstack.NewIdentityV3(pc, gophercloud.EndpointOpts{})
	},
}

// session is one authenticated provider client plus the service clients
// resolved from its catalog. It authenticates on first use and
// re-authenticates on 401 when it holds a password.
type session struct {
	auth       gophercloud.AuthOptions
	endpoints  gophercloud.EndpointOpts
	httpClient *http.Client
	maxElapsed time.Duration
	logger     zerolog.Logger

	mu       sync.Mutex
	provider *gophercloud.ProviderClient
	services map[serviceKind]*gophercloud.ServiceClient
}

func newSession(auth gophercloud.AuthOptions, endpoints gophercloud.EndpointOpts, httpClient *http.Client, maxElapsed time.Duration, logger zerolog.Logger) *session {
	return &session{
		auth:       auth,
		endpoints:  endpoints,
		httpClient: httpClient,
		maxElapsed: maxElapsed,
		logger:     logger,
		services:   make(map[serviceKind]*gophercloud.ServiceClient),
	}
}

func (s *session) service(ctx context.Context, kind serviceKind) (*gophercloud.ServiceClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.services[kind]; ok {
		return sc, nil
	}
	if s.provider == nil {
		pc, err := gcopenstack.NewClient(s.auth.IdentityEndpoint)
		if err != nil {
			return nil, &model.BackendError{Op: "auth", Message: err.Error(), Err: err}
		}
		pc.HTTPClient = *s.httpClient
		pc.RetryFunc = s.retry
		pc.UserAgent.Prepend("node-conductor")
		if err := gcopenstack.Authenticate(ctx, pc, s.auth); err != nil {
			return nil, wrap("auth", err)
		}
		s.provider = pc
	}
	sc, err := serviceBuilders[kind](s.provider, s.endpoints)
	if err != nil {
		return nil, wrap("catalog", fmt.Errorf("%s endpoint: %w", kind, err))
	}
	s.services[kind] = sc
	return sc, nil
}

// retry is the provider's RetryFunc. It sleeps and returns nil to resend,
// or returns err to give up.
func (s *session) retry(ctx context.Context, method, url string, _ *gophercloud.RequestOpts, err error, failCount uint) error {
	status := statusOf(err)
	if !platform.Replayable(method, status, err) {
		return err
	}
	delay, ok := s.delay(failCount)
	if !ok {
		return err
	}
	s.logger.Debug().Err(err).Str("method", method).Str("url", url).Int("status", status).Uint("attempt", failCount).Msg("retrying request")
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// delay returns the pause before retry n and whether the total time spent
// waiting stays within maxElapsed.
func (s *session) delay(n uint) (time.Duration, bool) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	var d, total time.Duration
	for i := uint(0); i < n; i++ {
		d = b.NextBackOff()
		total += d
	}
	return d, total <= s.maxElapsed
}

func statusOf(err error) int {
	var ue gophercloud.ErrUnexpectedResponseCode
	if errors.As(err, &ue) {
		return ue.Actual
	}
	return 0
}

// wrap maps a gophercloud failure of op onto the engine's error kinds.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if gophercloud.ResponseCodeIs(err, http.StatusNotFound) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	var ue gophercloud.ErrUnexpectedResponseCode
	if errors.As(err, &ue) {
		return &model.BackendError{Op: op, StatusCode: ue.Actual, Message: strings.TrimSpace(string(ue.Body)), Err: err}
	}
	return model.NewBackendError(op, err)
}

func ignoreNotFound(err error) error {
	if model.Kind(err) == model.KindNotFound {
		return nil
	}
	return err
}
