package features

import "fmt"

// InsufficientDataError is returned when a company's history holds fewer
// fiscal periods than normalization requires.
type InsufficientDataError struct {
	Ticker string
	Got    int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient history for %s: got %d fiscal periods, need %d", e.Ticker, e.Got, e.Need)
}
