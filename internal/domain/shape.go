package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// Matrix is a rectangular numeric sample: rows of equal length.
type Matrix [][]float64

// Rows returns the number of rows.
func (m Matrix) Rows() int { return len(m) }

// Cols returns the row length, or 0 for an empty matrix.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// ShapeClass is the coarse shape of a decoded JSON value.
type ShapeClass int

const (
	ShapeScalar ShapeClass = iota
	ShapeEmpty
	ShapeFlat
	ShapeNested
)

func (c ShapeClass) String() string {
	switch c {
	case ShapeEmpty:
		return "empty"
	case ShapeFlat:
		return "flat"
	case ShapeNested:
		return "nested"
	default:
		return "scalar"
	}
}

// ClassifyShape decides how a decoded JSON value is read as a matrix. Only
// the first element is inspected; the remaining rows are checked during
// validation.
func ClassifyShape(v any) ShapeClass {
	arr, ok := v.([]any)
	if !ok {
		return ShapeScalar
	}
	if len(arr) == 0 {
		return ShapeEmpty
	}
	if _, nested := arr[0].([]any); nested {
		return ShapeNested
	}
	return ShapeFlat
}

// RejectReason is the machine-readable cause of a shape rejection.
type RejectReason string

const (
	ReasonNotArray       RejectReason = "not_array"
	ReasonEmptyInput     RejectReason = "empty_input"
	ReasonNotMatrix      RejectReason = "not_matrix"
	ReasonColumnMismatch RejectReason = "column_mismatch"
	ReasonRowMismatch    RejectReason = "row_mismatch"
	ReasonNonNumeric     RejectReason = "non_numeric"
)

// ShapeError reports why an input was rejected along with the expected and
// actual shape. Row and Col are -1 when no single cell or row is at fault.
type ShapeError struct {
	Reason          RejectReason
	Hazard          HazardType
	ExpectedColumns int
	WindowRows      int
	Rows            int
	Columns         int
	Row             int
	Col             int
}

func (e *ShapeError) Error() string {
	switch e.Reason {
	case ReasonNotArray:
		return "input is not an array"
	case ReasonEmptyInput:
		return "input is empty"
	case ReasonNotMatrix:
		return fmt.Sprintf("row %d is not an array", e.Row)
	case ReasonColumnMismatch:
		return fmt.Sprintf("column mismatch: expected %d columns, got %d in row %d", e.ExpectedColumns, e.Columns, e.Row)
	case ReasonRowMismatch:
		return fmt.Sprintf("row mismatch: expected 1 or %d rows, got %d", e.WindowRows, e.Rows)
	case ReasonNonNumeric:
		return fmt.Sprintf("non-numeric value at row %d, column %d", e.Row, e.Col)
	default:
		return string(e.Reason)
	}
}

// UserMessage is the notice shown to the person who typed the input.
func (e *ShapeError) UserMessage() string {
	return fmt.Sprintf(
		"Invalid input shape for %s input. Columns must be exactly %d, and rows must be 1 or %d. (%s)",
		strings.ToUpper(string(e.Hazard)), e.ExpectedColumns, e.WindowRows, e.Error(),
	)
}

// ParseInput decodes raw text as a single JSON value. Numbers are kept as
// json.Number so validation can report non-numeric cells precisely.
func ParseInput(text string) (any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("input is blank")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode input: unexpected data after JSON value")
	}
	return v, nil
}

// ValidateShape checks a decoded JSON value against a hazard's contract and
// returns the normalized matrix. A flat array is treated as one row. The
// returned error is always a *ShapeError.
func ValidateShape(spec HazardSpec, v any) (Matrix, error) {
	reject := func(reason RejectReason) *ShapeError {
		return &ShapeError{
			Reason:          reason,
			Hazard:          spec.Type,
			ExpectedColumns: spec.Columns,
			WindowRows:      spec.WindowRows,
			Row:             -1,
			Col:             -1,
		}
	}

	class := ClassifyShape(v)
	switch class {
	case ShapeScalar:
		return nil, reject(ReasonNotArray)
	case ShapeEmpty:
		return nil, reject(ReasonEmptyInput)
	}

	var rows [][]any
	if class == ShapeFlat {
		rows = [][]any{v.([]any)}
	} else {
		for i, r := range v.([]any) {
			row, ok := r.([]any)
			if !ok {
				e := reject(ReasonNotMatrix)
				e.Rows = len(v.([]any))
				e.Row = i
				return nil, e
			}
			rows = append(rows, row)
		}
	}

	for i, row := range rows {
		if len(row) != spec.Columns {
			e := reject(ReasonColumnMismatch)
			e.Rows = len(rows)
			e.Columns = len(row)
			e.Row = i
			return nil, e
		}
	}

	if len(rows) != 1 && len(rows) != spec.WindowRows {
		e := reject(ReasonRowMismatch)
		e.Rows = len(rows)
		e.Columns = spec.Columns
		return nil, e
	}

	m := make(Matrix, len(rows))
	for i, row := range rows {
		m[i] = make([]float64, len(row))
		for j, cell := range row {
			f, ok := toFloat(cell)
			if !ok {
				e := reject(ReasonNonNumeric)
				e.Rows = len(rows)
				e.Columns = spec.Columns
				e.Row = i
				e.Col = j
				return nil, e
			}
			m[i][j] = f
		}
	}
	return m, nil
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
