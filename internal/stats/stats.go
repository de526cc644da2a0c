// Package stats folds per-item scalar values into summary statistics.
package stats

// Stats summarizes the usable values of a set of items. Min, Avg and Max are
// nil when no item has a usable value.
type Stats struct {
	Total    int      `json:"total"`
	Count    int      `json:"count"`
	Min      *float64 `json:"min"`
	Avg      *float64 `json:"avg"`
	Max      *float64 `json:"max"`
	MinCount int      `json:"min_count"`
	MaxCount int      `json:"max_count"`
}

// Aggregate projects each item through value and summarizes the items that
// yield a usable value. Every item equal to the extreme counts towards
// MinCount and MaxCount.
func Aggregate[T any](items []T, value func(T) (float64, bool)) Stats {
	out := Stats{Total: len(items)}
	var min, max, sum float64
	for _, item := range items {
		v, ok := value(item)
		if !ok {
			continue
		}
		out.Count++
		sum += v
		switch {
		case out.Count == 1:
			min, max = v, v
			out.MinCount, out.MaxCount = 1, 1
			continue
		case v < min:
			min, out.MinCount = v, 1
		case v == min:
			out.MinCount++
		}
		switch {
		case v > max:
			max, out.MaxCount = v, 1
		case v == max:
			out.MaxCount++
		}
	}
	if out.Count == 0 {
		return out
	}
	avg := sum / float64(out.Count)
	out.Min, out.Avg, out.Max = &min, &avg, &max
	return out
}

// Distribution counts items per key.
func Distribution[T any, K comparable](items []T, key func(T) (K, bool)) map[K]int {
	out := make(map[K]int)
	for _, item := range items {
		if k, ok := key(item); ok {
			out[k]++
		}
	}
	return out
}
