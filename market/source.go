package market

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DataSource supplies ordered bars for a symbol.
type DataSource interface {
	GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Bar, error)
}

// CSVSource reads bars from CSV files under Dir. For symbol AAPL and
// timeframe D1 it looks, in order, for
//
//	Dir/D1/AAPL.csv, Dir/D1/AAPL.csv.xz, Dir/AAPL.csv, Dir/AAPL.csv.xz
//
// Files may be UTF-8 or UTF-16 with a BOM. The header row is optional and
// columns default to time,open,high,low,close,volume.
type CSVSource struct {
	Dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

func (s *CSVSource) GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, &DataUnavailableError{Symbol: symbol, Timeframe: timeframe, Reason: "empty symbol"}
	}

	path, err := s.locate(sym, timeframe)
	if err != nil {
		return nil, err
	}

	bars, err := ReadCSVFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	bars = Window(bars, start, end)
	if len(bars) == 0 {
		return nil, &DataUnavailableError{Symbol: sym, Timeframe: timeframe, Reason: "no bars in requested range"}
	}
	return bars, nil
}

func (s *CSVSource) locate(sym, timeframe string) (string, error) {
	var candidates []string
	if timeframe != "" {
		candidates = append(candidates,
			filepath.Join(s.Dir, timeframe, sym+".csv"),
			filepath.Join(s.Dir, timeframe, sym+".csv.xz"))
	}
	candidates = append(candidates,
		filepath.Join(s.Dir, sym+".csv"),
		filepath.Join(s.Dir, sym+".csv.xz"))

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return "", &DataUnavailableError{Symbol: sym, Timeframe: timeframe, Reason: "unknown symbol"}
}

// ReadCSVFile loads bars from a .csv or .csv.xz file.
func ReadCSVFile(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		r = xr
	}
	return ReadCSV(r)
}

// ReadCSV parses bars from r and validates their order.
func ReadCSV(r io.Reader) ([]Bar, error) {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	cols := columns{time: 0, open: 1, high: 2, low: 3, close: 4, volume: 5}
	var bars []Bar
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) == 0 || strings.HasPrefix(strings.TrimSpace(rec[0]), "#") {
			continue
		}
		if line == 1 {
			if _, err := parseTime(rec[0]); err != nil {
				cols, err = headerColumns(rec)
				if err != nil {
					return nil, err
				}
				continue
			}
		}
		b, err := cols.parse(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	if err := ValidateBars(bars); err != nil {
		return nil, err
	}
	return bars, nil
}

type columns struct {
	time, open, high, low, close, volume int
}

func headerColumns(rec []string) (columns, error) {
	c := columns{-1, -1, -1, -1, -1, -1}
	for i, name := range rec {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "time", "date", "timestamp", "datetime":
			c.time = i
		case "open", "o":
			c.open = i
		case "high", "h":
			c.high = i
		case "low", "l":
			c.low = i
		case "close", "c":
			c.close = i
		case "volume", "vol", "v":
			c.volume = i
		}
	}
	if c.time < 0 || c.open < 0 || c.high < 0 || c.low < 0 || c.close < 0 || c.volume < 0 {
		return c, fmt.Errorf("header %v: need time,open,high,low,close,volume", rec)
	}
	return c, nil
}

func (c columns) parse(rec []string) (Bar, error) {
	need := max(c.time, c.open, c.high, c.low, c.close, c.volume)
	if len(rec) <= need {
		return Bar{}, fmt.Errorf("expected at least %d fields, got %d", need+1, len(rec))
	}
	t, err := parseTime(rec[c.time])
	if err != nil {
		return Bar{}, err
	}
	var vals [5]float64
	for i, idx := range []int{c.open, c.high, c.low, c.close, c.volume} {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
		if err != nil {
			return Bar{}, fmt.Errorf("bad number %q: %w", rec[idx], err)
		}
		vals[i] = v
	}
	return Bar{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 9 {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// MemorySource serves bars held in memory, keyed by symbol.
type MemorySource struct {
	Bars map[string][]Bar
}

func (m *MemorySource) GetBars(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bars, ok := m.Bars[strings.ToUpper(symbol)]
	if !ok {
		return nil, &DataUnavailableError{Symbol: symbol, Timeframe: timeframe, Reason: "unknown symbol"}
	}
	out := Window(bars, start, end)
	if len(out) == 0 {
		return nil, &DataUnavailableError{Symbol: symbol, Timeframe: timeframe, Reason: "no bars in requested range"}
	}
	return out, nil
}
