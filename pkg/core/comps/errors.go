package comps

import "fmt"

// NoComparablesError reports that no peer set can be built for a target:
// it was labeled an outlier, sits alone in its cluster, or was never
// part of the clustered universe.
type NoComparablesError struct {
	Ticker string
	Reason string
}

func (e *NoComparablesError) Error() string {
	return fmt.Sprintf("no comparables for %s: %s", e.Ticker, e.Reason)
}
