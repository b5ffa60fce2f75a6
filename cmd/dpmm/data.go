package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// readCSV parses one point per record. All records must have the same
// number of fields.
func readCSV(r io.Reader, header bool) (*mat.Dense, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var (
		values []float64
		dim    int
		line   int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if header && line == 1 {
			continue
		}
		if dim == 0 {
			dim = len(rec)
		}
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d, column %d: %w", line, j+1, err)
			}
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, errors.New("no data rows")
	}
	return mat.NewDense(len(values)/dim, dim, values), nil
}
