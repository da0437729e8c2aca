package market

import "fmt"

// InvalidSetupError marks a setup that cannot be traded, most often because
// its stop is not below its entry.
type InvalidSetupError struct {
	Symbol string
	Reason string
}

func (e *InvalidSetupError) Error() string {
	return fmt.Sprintf("invalid setup %s: %s", e.Symbol, e.Reason)
}

// DataUnavailableError is returned by a DataSource for unknown symbols or
// ranges with no bars.
type DataUnavailableError struct {
	Symbol    string
	Timeframe string
	Reason    string
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("no %s data for %s: %s", e.Timeframe, e.Symbol, e.Reason)
}
