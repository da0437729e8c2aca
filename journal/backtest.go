package journal

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"text/template"
	"time"
)

// BacktestRun mirrors the backtest_runs table.
type BacktestRun struct {
	RunID     string
	Created   time.Time
	Strategy  string
	Timeframe string
	Dataset   string
	Symbols   string

	Start time.Time
	End   time.Time

	StartEquity float64
	EndEquity   float64

	Trades int
	Wins   int
	Losses int

	NetPnL       float64
	ReturnPct    float64
	CAGR         float64
	MaxDDPct     float64
	WinRate      float64
	ProfitFactor float64 // +Inf when there were no losing trades
	AvgR         float64
	Sharpe       float64

	Config string

	Notes []string
}

var backtestOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"pf": func(x float64) string {
		switch {
		case math.IsInf(x, 1):
			return "inf"
		case math.IsNaN(x) || x == 0:
			return "(profit-factor?)"
		}
		return fmt.Sprintf("%.2f", x)
	},
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var backtestOrg = template.Must(template.New("backtest").Funcs(backtestOrgFuncs).Parse(BacktestOrgTemplate))

// Org renders the run as an Org-mode heading.
func (r *BacktestRun) Org() (string, error) {
	buf := new(bytes.Buffer)
	if err := backtestOrg.Execute(buf, r); err != nil {
		return "", fmt.Errorf("render backtest org: %w", err)
	}
	return buf.String(), nil
}

// WriteOrg renders the run to path.
func (r *BacktestRun) WriteOrg(path string) error {
	s, err := r.Org()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(s), 0644)
}

const BacktestOrgTemplate = `* BACKTEST: {{.Strategy}} {{if .Timeframe}}{{.Timeframe}}{{else}}(timeframe?){{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:SYMBOLS:     {{.Symbols}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_EQ:    {{printf "%.2f" .StartEquity}}
:END_EQ:      {{printf "%.2f" .EndEquity}}
:NET_PNL:     {{printf "%.2f" .NetPnL}}
:RETURN_PCT:  {{printf "%.2f" (mul100 .ReturnPct)}}
:CAGR_PCT:    {{printf "%.2f" (mul100 .CAGR)}}
:MAX_DD_PCT:  {{printf "%.2f" (mul100 .MaxDDPct)}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:PROFIT_FAC:  {{pf .ProfitFactor}}
:AVG_R:       {{printf "%.2f" .AvgR}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Performance Summary
- Net P/L:          *{{printf "%.2f" .NetPnL}}*
- Return:           *{{printf "%.2f" (mul100 .ReturnPct)}}%*
- CAGR:             *{{printf "%.2f" (mul100 .CAGR)}}%*
- Max Drawdown:     *{{printf "%.2f" (mul100 .MaxDDPct)}}%*
- Win Rate:         *{{printf "%.2f" (mul100 .WinRate)}}%*
- Profit Factor:    *{{pf .ProfitFactor}}*
- Average R:        *{{printf "%.2f" .AvgR}}*
- Sharpe:           *{{printf "%.2f" .Sharpe}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |

{{- if .Config }}

** Configuration
#+begin_src yaml
{{.Config}}
#+end_src
{{- end }}

{{- if .Notes }}

** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
