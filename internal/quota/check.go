package quota

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/opennode/waldur-core-sub000/internal/model"
)

// Check tests deltas against quotas and returns a *model.QuotaExceededError
// listing every violated quota, or nil. Quotas whose name has no delta are
// ignored. Decreases never fail.
func Check(quotas []model.Quota, deltas map[string]float64) error {
	var breakdown *multierror.Error
	for _, q := range quotas {
		delta, ok := deltas[q.Name]
		if !ok || !q.Exceeds(delta) {
			continue
		}
		breakdown = multierror.Append(breakdown, fmt.Errorf(
			"%s quota %s: usage %g + %g exceeds limit %g", q.Scope(), q.Name, q.Usage, delta, q.Limit))
	}
	if breakdown == nil {
		return nil
	}
	return &model.QuotaExceededError{Breakdown: breakdown}
}

func sortedNames(deltas map[string]float64) []string {
	names := make([]string, 0, len(deltas))
	for name := range deltas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
