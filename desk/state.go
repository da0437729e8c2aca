package desk

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rustyeddy/swingtrader/risk"
)

// state is the on-disk form of a paper account between runs.
type state struct {
	Cash      float64          `json:"cash"`
	Positions []*risk.Position `json:"positions"`
}

// LoadPortfolio reads a saved account from path. A missing file starts a
// fresh all-cash account with startEquity.
func LoadPortfolio(path string, startEquity float64) (*risk.PortfolioState, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return risk.NewPortfolio(startEquity), nil
	}
	if err != nil {
		return nil, err
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	ps := risk.NewPortfolio(0)
	ps.Cash = st.Cash
	for _, p := range st.Positions {
		if ps.Has(p.Symbol) {
			return nil, fmt.Errorf("parse %s: duplicate position %s", path, p.Symbol)
		}
		ps.Positions[p.Symbol] = p
	}
	ps.Mark()
	return ps, nil
}

// Save writes the desk's account to path.
func (d *Desk) Save(path string) error {
	d.mu.Lock()
	st := state{Cash: d.ps.Cash}
	for _, sym := range d.ps.Symbols() {
		p := *d.ps.Positions[sym]
		st.Positions = append(st.Positions, &p)
	}
	d.mu.Unlock()

	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
