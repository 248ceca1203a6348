package lock

import "sort"

// normalizeKeys returns the keys sorted and de-duplicated so that every
// caller acquires locks in the same order.
func normalizeKeys(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)

	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
