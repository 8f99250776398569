package ml

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFitted is returned by Transform before the transformer has state.
var ErrNotFitted = errors.New("transformer not fitted")

// TransformError reports an input value the transformer cannot encode.
type TransformError struct {
	Column string
	Err    error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Column, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// ScalerParams are the fitted standardization parameters of one column.
type ScalerParams struct {
	Column string  `json:"column"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
}

// CategoryParams are the fitted one-hot categories of one column, in slot order.
type CategoryParams struct {
	Column     string   `json:"column"`
	Categories []string `json:"categories"`
}

// TransformerState is the serializable fitted state of a Transformer.
type TransformerState struct {
	Numeric     []ScalerParams   `json:"numeric"`
	Categorical []CategoryParams `json:"categorical"`
}

// Transformer standardizes numeric columns and one-hot encodes categorical
// columns. It is immutable once built and safe for concurrent use.
type Transformer struct {
	state   TransformerState
	means   []float64
	stds    []float64
	slots   []map[string]int
	offsets []int
	width   int
}

// Fit computes transformer state from a reference frame. excludedColumn
// (normally the target) is ignored.
func Fit(frame *Frame, excludedColumn string) (*Transformer, error) {
	if frame == nil || frame.Len() == 0 {
		return nil, errors.New("training frame is empty")
	}
	for _, column := range FeatureColumns() {
		if column == excludedColumn {
			return nil, fmt.Errorf("cannot exclude feature column %s", column)
		}
	}

	var state TransformerState
	for _, column := range NumericColumns() {
		values, err := frame.FloatColumn(column)
		if err != nil {
			return nil, err
		}
		mean := CalculateMean(values)
		state.Numeric = append(state.Numeric, ScalerParams{
			Column: column,
			Mean:   mean,
			Std:    CalculateStd(values, mean),
		})
	}
	for _, column := range CategoricalColumns() {
		values, err := frame.Column(column)
		if err != nil {
			return nil, err
		}
		state.Categorical = append(state.Categorical, CategoryParams{
			Column:     column,
			Categories: DistinctSorted(values),
		})
	}
	return NewTransformer(state)
}

// NewTransformer rebuilds a transformer from previously fitted state. The
// column order must match the record schema.
func NewTransformer(state TransformerState) (*Transformer, error) {
	numeric := NumericColumns()
	if len(state.Numeric) != len(numeric) {
		return nil, fmt.Errorf("expected %d numeric columns, got %d", len(numeric), len(state.Numeric))
	}
	categorical := CategoricalColumns()
	if len(state.Categorical) != len(categorical) {
		return nil, fmt.Errorf("expected %d categorical columns, got %d", len(categorical), len(state.Categorical))
	}

	t := &Transformer{
		means: make([]float64, len(numeric)),
		stds:  make([]float64, len(numeric)),
	}
	for i, params := range state.Numeric {
		if params.Column != numeric[i] {
			return nil, fmt.Errorf("numeric slot %d: expected %s, got %s", i, numeric[i], params.Column)
		}
		if !isFinite(params.Mean) || !isFinite(params.Std) || params.Std < 0 {
			return nil, fmt.Errorf("numeric column %s: invalid scale parameters", params.Column)
		}
		t.means[i] = params.Mean
		t.stds[i] = params.Std
		t.state.Numeric = append(t.state.Numeric, params)
	}

	t.width = len(numeric)
	for i, params := range state.Categorical {
		if params.Column != categorical[i] {
			return nil, fmt.Errorf("categorical group %d: expected %s, got %s", i, categorical[i], params.Column)
		}
		slots := make(map[string]int, len(params.Categories))
		for j, category := range params.Categories {
			if _, dup := slots[category]; dup {
				return nil, fmt.Errorf("categorical column %s: duplicate category %q", params.Column, category)
			}
			slots[category] = j
		}
		t.slots = append(t.slots, slots)
		t.offsets = append(t.offsets, t.width)
		t.width += len(params.Categories)
		t.state.Categorical = append(t.state.Categorical, CategoryParams{
			Column:     params.Column,
			Categories: append([]string(nil), params.Categories...),
		})
	}
	return t, nil
}

// Transform encodes one record. Categories unseen at fit time produce an
// all-zero group.
func (t *Transformer) Transform(record PatientRecord) (FeatureVector, error) {
	if t == nil || t.width == 0 {
		return nil, ErrNotFitted
	}

	numeric := record.NumericValues()
	columns := NumericColumns()
	for i, v := range numeric {
		if !isFinite(v) {
			return nil, &TransformError{Column: columns[i], Err: fmt.Errorf("value %v is not finite", v)}
		}
	}
	scaled, err := StandardizeVector(numeric, t.means, t.stds)
	if err != nil {
		return nil, &TransformError{Column: "numeric", Err: err}
	}

	vector := make(FeatureVector, t.width)
	copy(vector, scaled)
	for i, value := range record.CategoricalValues() {
		if slot, ok := t.slots[i][value]; ok {
			vector[t.offsets[i]+slot] = 1
		}
	}
	return vector, nil
}

// Width is the length of every vector Transform returns.
func (t *Transformer) Width() int {
	if t == nil {
		return 0
	}
	return t.width
}

// FeatureNames names each slot of the output vector, e.g. "Sex_M".
func (t *Transformer) FeatureNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, t.width)
	for _, params := range t.state.Numeric {
		names = append(names, params.Column)
	}
	for _, params := range t.state.Categorical {
		for _, category := range params.Categories {
			names = append(names, params.Column+"_"+category)
		}
	}
	return names
}

// State returns a copy of the fitted state.
func (t *Transformer) State() TransformerState {
	if t == nil {
		return TransformerState{}
	}
	state := TransformerState{
		Numeric: append([]ScalerParams(nil), t.state.Numeric...),
	}
	for _, params := range t.state.Categorical {
		state.Categorical = append(state.Categorical, CategoryParams{
			Column:     params.Column,
			Categories: append([]string(nil), params.Categories...),
		})
	}
	return state
}

func (t *Transformer) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.State())
}

// DecodeTransformer parses serialized TransformerState.
func DecodeTransformer(raw []byte) (*Transformer, error) {
	var state TransformerState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode transformer: %w", err)
	}
	return NewTransformer(state)
}
