// Package reconcile brings local state in line with what a provider
// reports. Planning is pure; Applier writes plans through the store.
package reconcile

// Pair holds the local and remote copies of an entity known to both sides.
type Pair[L, R any] struct {
	Local  L
	Remote R
}

// DiffResult is the three-way split of a local and a remote set.
type DiffResult[L, R any] struct {
	LocalOnly  []L
	RemoteOnly []R
	Common     []Pair[L, R]
}

// Diff splits local and remote by key. Order follows the inputs. Local
// entries with an empty key are not yet known to the provider and are
// dropped.
func Diff[K comparable, L, R any](local []L, remote []R, localKey func(L) K, remoteKey func(R) K) DiffResult[L, R] {
	var zero K
	remoteByKey := make(map[K]R, len(remote))
	for _, r := range remote {
		remoteByKey[remoteKey(r)] = r
	}

	var res DiffResult[L, R]
	seen := make(map[K]bool, len(local))
	for _, l := range local {
		k := localKey(l)
		if k == zero {
			continue
		}
		seen[k] = true
		if r, ok := remoteByKey[k]; ok {
			res.Common = append(res.Common, Pair[L, R]{Local: l, Remote: r})
		} else {
			res.LocalOnly = append(res.LocalOnly, l)
		}
	}
	for _, r := range remote {
		if !seen[remoteKey(r)] {
			res.RemoteOnly = append(res.RemoteOnly, r)
		}
	}
	return res
}
