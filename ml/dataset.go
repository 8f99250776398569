package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Frame is a header plus string cells, as read from the reference CSV.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// ReadDataset loads the reference dataset CSV at path.
func ReadDataset(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseDataset(file)
}

// ParseDataset reads a CSV with a header row. A UTF-8 or UTF-16 byte order
// mark is honoured, which is what spreadsheet exports usually carry.
func ParseDataset(r io.Reader) (*Frame, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	for _, row := range rows {
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
	}
	return &Frame{Columns: columns, Rows: rows}, nil
}

// NewFrame builds a Frame from typed records, with an optional label column.
// labels may be nil.
func NewFrame(records []PatientRecord, labels []int) *Frame {
	columns := []string{
		ColAge, ColSex, ColChestPainType, ColRestingBP, ColCholesterol, ColFastingBS,
		ColRestingECG, ColMaxHR, ColExerciseAngina, ColOldpeak, ColSTSlope,
	}
	if labels != nil {
		columns = append(columns, TargetColumn)
	}
	rows := make([][]string, len(records))
	for i, r := range records {
		row := []string{
			strconv.Itoa(r.Age),
			r.Sex,
			r.ChestPainType,
			strconv.Itoa(r.RestingBP),
			strconv.Itoa(r.Cholesterol),
			strconv.Itoa(r.FastingBS),
			r.RestingECG,
			strconv.Itoa(r.MaxHR),
			r.ExerciseAngina,
			strconv.FormatFloat(r.Oldpeak, 'g', -1, 64),
			r.ST_Slope,
		}
		if labels != nil && i < len(labels) {
			row = append(row, strconv.Itoa(labels[i]))
		}
		rows[i] = row
	}
	return &Frame{Columns: columns, Rows: rows}
}

// Index returns the position of column, or -1.
func (f *Frame) Index(column string) int {
	for i, name := range f.Columns {
		if name == column {
			return i
		}
	}
	return -1
}

// Len returns the number of data rows.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// Column returns the cells of one column.
func (f *Frame) Column(column string) ([]string, error) {
	idx := f.Index(column)
	if idx < 0 {
		return nil, fmt.Errorf("missing column %s", column)
	}
	values := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		if idx >= len(row) {
			return nil, fmt.Errorf("row %d: missing column %s", i+1, column)
		}
		values[i] = row[idx]
	}
	return values, nil
}

// FloatColumn parses one column as float64.
func (f *Frame) FloatColumn(column string) ([]float64, error) {
	cells, err := f.Column(column)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(cells))
	for i, cell := range cells {
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: column %s: %q is not numeric", i+1, column, cell)
		}
		values[i] = v
	}
	return values, nil
}
