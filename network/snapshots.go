package network

import "fmt"

// TruncateSnapshots keeps the first min(count, len(Snapshots)) snapshots and trims
// every time series to match. Order is preserved. A count of zero empties the horizon.
func (n *Network) TruncateSnapshots(count int) error {
	if count < 0 {
		return fmt.Errorf("snapshot count must be non-negative, got %d", count)
	}
	if count >= len(n.Snapshots) {
		return nil
	}
	n.Snapshots = n.Snapshots[:count]
	for _, s := range n.series() {
		if *s != nil && len(*s) > count {
			*s = (*s)[:count]
		}
	}
	return nil
}

// TotalWeighting sums the objective weightings of all snapshots.
func (n *Network) TotalWeighting() float64 {
	total := 0.0
	for _, s := range n.Snapshots {
		total += s.Weighting
	}
	return total
}
