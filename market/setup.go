package market

import (
	"fmt"
	"time"
)

// Setup is a candidate long trade produced by a strategy scan.
type Setup struct {
	Symbol     string    `json:"symbol"`
	Strategy   string    `json:"strategy"`
	Entry      float64   `json:"entry"`
	Stop       float64   `json:"stop"`
	Target     float64   `json:"target"`
	Confidence float64   `json:"confidence"`
	Index      int       `json:"index"`
	Time       time.Time `json:"time"`

	// ATR at the detection bar, used by trailing stops.
	ATR float64 `json:"atr"`
	// AvgDollarVolume is the trailing mean of close*volume.
	AvgDollarVolume float64 `json:"avg_dollar_volume"`
	Notes           string  `json:"notes,omitempty"`
}

// RiskPerShare is entry minus stop.
func (s Setup) RiskPerShare() float64 {
	return s.Entry - s.Stop
}

// RewardRisk is the planned reward divided by the planned risk.
func (s Setup) RewardRisk() float64 {
	r := s.RiskPerShare()
	if r <= 0 {
		return 0
	}
	return (s.Target - s.Entry) / r
}

// Validate enforces stop < entry < target.
func (s Setup) Validate() error {
	if s.Symbol == "" {
		return &InvalidSetupError{Symbol: s.Symbol, Reason: "missing symbol"}
	}
	if s.RiskPerShare() <= 0 {
		return &InvalidSetupError{
			Symbol: s.Symbol,
			Reason: fmt.Sprintf("non-positive risk per share (entry %.4f, stop %.4f)", s.Entry, s.Stop),
		}
	}
	if s.Target <= s.Entry {
		return &InvalidSetupError{
			Symbol: s.Symbol,
			Reason: fmt.Sprintf("target %.4f not above entry %.4f", s.Target, s.Entry),
		}
	}
	return nil
}

func (s Setup) String() string {
	return fmt.Sprintf("%s %s entry=%.2f stop=%.2f target=%.2f conf=%.2f",
		s.Strategy, s.Symbol, s.Entry, s.Stop, s.Target, s.Confidence)
}
