package simulation

import "fmt"

// SimulationUnstableError reports a run where fewer than half of the
// requested trials produced a valid enterprise value after redraws.
// Percentiles from such a run would be dominated by selection bias, so
// no result is returned alongside it.
type SimulationUnstableError struct {
	Requested int
	Survived  int
}

func (e *SimulationUnstableError) Error() string {
	return fmt.Sprintf("simulation unstable: %d of %d trials survived (minimum 50%%)", e.Survived, e.Requested)
}
