package fitter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/kwv/robustfit/estimator"
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrEmptyDataset is returned when a payload holds no rows.
var ErrEmptyDataset = errors.New("dataset has no points")

// ParseDataset decodes a dataset payload. JSON payloads are either an object
// {"model": ..., "threshold": ..., "points": [[x, y], ...]} or a bare array
// of rows; anything else is read as CSV, one row per line, with an optional
// header line and '#' comments.
func ParseDataset(data []byte) (*Dataset, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyDataset
	}

	var ds Dataset
	switch trimmed[0] {
	case '{':
		if err := json.Unmarshal(trimmed, &ds); err != nil {
			return nil, fmt.Errorf("parsing dataset JSON: %w", err)
		}
		if ds.Model != "" {
			m, err := ParseModel(string(ds.Model))
			if err != nil {
				return nil, err
			}
			ds.Model = m
		}
	case '[':
		if err := json.Unmarshal(trimmed, &ds.Points); err != nil {
			return nil, fmt.Errorf("parsing dataset JSON: %w", err)
		}
	default:
		rows, err := parseCSV(bytes.NewReader(trimmed))
		if err != nil {
			return nil, err
		}
		ds.Points = rows
	}

	if err := checkRows(ds.Points); err != nil {
		return nil, err
	}
	return &ds, nil
}

// LoadDatasetFile reads and parses a dataset from disk
func LoadDatasetFile(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	return ParseDataset(data)
}

func parseCSV(r io.Reader) ([][]float64, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing dataset CSV: %w", err)
	}

	rows := make([][]float64, 0, len(records))
	for i, rec := range records {
		if i == 0 && isHeader(rec) {
			continue
		}
		row := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("dataset CSV line %d: %w", i+1, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// isHeader reports whether no field of rec is a number.
func isHeader(rec []string) bool {
	for _, field := range rec {
		if _, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err == nil {
			return false
		}
	}
	return true
}

// checkRows rejects empty datasets, ragged rows and non-finite values.
func checkRows(rows [][]float64) error {
	if len(rows) == 0 {
		return ErrEmptyDataset
	}
	width := len(rows[0])
	for i, row := range rows {
		if len(row) != width {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), width)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d holds a non-finite value", i)
			}
		}
	}
	return nil
}

// checkWidth verifies that rows match the layout the model expects.
func checkWidth(rows [][]float64, m Model) error {
	if err := checkRows(rows); err != nil {
		return err
	}
	if got, want := len(rows[0]), m.RowWidth(); got != want {
		return fmt.Errorf("%s model needs %d values per row, dataset has %d", m, want, got)
	}
	return nil
}

func toPoints(rows [][]float64) []orb.Point {
	points := make([]orb.Point, len(rows))
	for i, r := range rows {
		points[i] = orb.Point{r[0], r[1]}
	}
	return points
}

func toVecs(rows [][]float64) []r3.Vec {
	vecs := make([]r3.Vec, len(rows))
	for i, r := range rows {
		vecs[i] = r3.Vec{X: r[0], Y: r[1], Z: r[2]}
	}
	return vecs
}

func toPairs(rows [][]float64) []estimator.PointPair {
	pairs := make([]estimator.PointPair, len(rows))
	for i, r := range rows {
		pairs[i] = estimator.PointPair{Src: orb.Point{r[0], r[1]}, Dst: orb.Point{r[2], r[3]}}
	}
	return pairs
}
