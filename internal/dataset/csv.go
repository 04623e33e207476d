// Package dataset reads the CSV inputs of a backtest: minute closes, raw
// dataset rows and model predictions.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"signal-backtest-lab/internal/domain"
)

// Column names.
const (
	ColOpenTime   = "open_time"
	ColClose      = "close"
	ColPrediction = "prediction"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseTime parses a timestamp written as RFC3339, "2006-01-02 15:04:05"
// (UTC) or unix milliseconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

// ReadMinuteCloses reads an open_time,close series.
func ReadMinuteCloses(r io.Reader, symbol string) ([]*domain.MinuteClose, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	timeCol, err := column(header, ColOpenTime)
	if err != nil {
		return nil, err
	}
	closeCol, err := column(header, ColClose)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.MinuteClose, 0, len(rows))
	for i, row := range rows {
		ts, err := ParseTime(row[timeCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row[closeCol]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w: close %q", i+1, ErrBadValue, row[closeCol])
		}
		out = append(out, &domain.MinuteClose{Symbol: symbol, Time: ts, Close: price})
	}
	return out, nil
}

// ReadRowTimes reads the open_time column of a raw dataset. Other columns
// are ignored.
func ReadRowTimes(r io.Reader) ([]time.Time, error) {
	header, rows, err := readAll(r)
	if err != nil {
		return nil, err
	}
	timeCol, err := column(header, ColOpenTime)
	if err != nil {
		return nil, err
	}

	out := make([]time.Time, 0, len(rows))
	for i, row := range rows {
		ts, err := ParseTime(row[timeCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, ts)
	}
	return out, nil
}

// ReadPredictions reads one class label per row. The file may have a header;
// with several columns the "prediction" column is used. Integral floats
// such as "1.0" are accepted.
func ReadPredictions(r io.Reader) ([]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	col := 0
	if _, err := parseLabel(records[0][0]); err != nil || len(records[0]) > 1 {
		// header row
		if len(records[0]) > 1 {
			if col, err = column(records[0], ColPrediction); err != nil {
				return nil, err
			}
		}
		records = records[1:]
	}
	if len(records) == 0 {
		return nil, ErrEmpty
	}

	out := make([]int, 0, len(records))
	for i, rec := range records {
		if col >= len(rec) {
			return nil, fmt.Errorf("row %d: %w: %s", i+1, ErrMissingColumn, ColPrediction)
		}
		label, err := parseLabel(rec[col])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, label)
	}
	return out, nil
}

func parseLabel(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: label %q", ErrBadValue, s)
	}
	return int(f), nil
}

func readAll(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, ErrEmpty
	}
	return records[0], records[1:], nil
}

func column(header []string, name string) (int, error) {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrMissingColumn, name)
}
