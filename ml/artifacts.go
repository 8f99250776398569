package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrArtifactMissing marks a fatal artifact condition: no usable model, or
// no usable transformer.
var ErrArtifactMissing = errors.New("artifact missing")

// BundleKind tells what a model file carried.
type BundleKind int

const (
	BundleModelOnly BundleKind = iota + 1
	BundleModelWithTransformer
)

func (k BundleKind) String() string {
	switch k {
	case BundleModelOnly:
		return "model_only"
	case BundleModelWithTransformer:
		return "model_with_transformer"
	default:
		return "unknown"
	}
}

// Transformer sources recorded on Artifacts.
const (
	SourceBundle  = "bundle"
	SourceDataset = "dataset"
)

// Artifacts is the loaded model and transformer pair. It is never mutated
// after Load returns.
type Artifacts struct {
	Model             Classifier
	Transformer       *Transformer
	Kind              BundleKind
	ModelType         string
	TransformerSource string
}

// Bundle is the keyed container written to disk:
// {"model_type": "...", "model": {...}, "transformer": {...}}.
type Bundle struct {
	ModelType   string          `json:"model_type,omitempty"`
	Model       json.RawMessage `json:"model"`
	Transformer json.RawMessage `json:"transformer,omitempty"`
}

// DecodedBundle is a model file resolved into its variant.
type DecodedBundle struct {
	Kind        BundleKind
	ModelType   string
	Model       Classifier
	Transformer *Transformer
}

// DecodeBundle resolves a model file. A JSON object with a "model" key is a
// keyed container; anything else is a bare model of defaultType.
func DecodeBundle(payload []byte, defaultType string) (*DecodedBundle, error) {
	var container Bundle
	if isContainer(payload) {
		if err := json.Unmarshal(payload, &container); err != nil {
			return nil, fmt.Errorf("decode bundle: %w", err)
		}
	} else {
		container.Model = payload
	}

	modelType := container.ModelType
	if modelType == "" {
		modelType = defaultType
	}
	model, err := DecodeModel(modelType, container.Model)
	if err != nil {
		return nil, err
	}

	decoded := &DecodedBundle{Kind: BundleModelOnly, ModelType: modelType, Model: model}
	if len(container.Transformer) > 0 && !bytes.Equal(bytes.TrimSpace(container.Transformer), []byte("null")) {
		transformer, err := DecodeTransformer(container.Transformer)
		if err != nil {
			return nil, err
		}
		decoded.Kind = BundleModelWithTransformer
		decoded.Transformer = transformer
	}
	return decoded, nil
}

// EncodeBundle writes model and transformer into one keyed container.
// transformer may be nil.
func EncodeBundle(modelType string, model Classifier, transformer *Transformer) ([]byte, error) {
	rawModel, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	bundle := Bundle{ModelType: modelType, Model: rawModel}
	if transformer != nil {
		if bundle.Transformer, err = json.Marshal(transformer); err != nil {
			return nil, fmt.Errorf("encode transformer: %w", err)
		}
	}
	return json.MarshalIndent(bundle, "", "  ")
}

func isContainer(payload []byte) bool {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(payload, &keys); err != nil {
		return false
	}
	_, ok := keys["model"]
	return ok
}

// StoreConfig locates artifacts on the local filesystem.
type StoreConfig struct {
	ModelPath    string
	ModelType    string
	DatasetPath  string
	TargetColumn string
}

// ArtifactStore loads artifacts from local files.
type ArtifactStore struct {
	config StoreConfig
}

func NewArtifactStore(config StoreConfig) *ArtifactStore {
	if config.TargetColumn == "" {
		config.TargetColumn = TargetColumn
	}
	return &ArtifactStore{config: config}
}

// Load reads the model file and, when it carries no transformer, fits one on
// the reference dataset. Every call yields freshly built artifacts.
func (s *ArtifactStore) Load() (*Artifacts, error) {
	payload, err := os.ReadFile(s.config.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: model %s: %v", ErrArtifactMissing, s.config.ModelPath, err)
	}
	bundle, err := DecodeBundle(payload, s.config.ModelType)
	if err != nil {
		return nil, fmt.Errorf("%w: model %s: %v", ErrArtifactMissing, s.config.ModelPath, err)
	}

	artifacts := &Artifacts{
		Model:             bundle.Model,
		Transformer:       bundle.Transformer,
		Kind:              bundle.Kind,
		ModelType:         bundle.ModelType,
		TransformerSource: SourceBundle,
	}
	if artifacts.Transformer == nil {
		transformer, err := s.fitFromDataset()
		if err != nil {
			return nil, err
		}
		artifacts.Transformer = transformer
		artifacts.TransformerSource = SourceDataset
	}

	if err := checkCompatible(artifacts.Model, artifacts.Transformer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactMissing, err)
	}
	return artifacts, nil
}

func (s *ArtifactStore) fitFromDataset() (*Transformer, error) {
	if s.config.DatasetPath == "" {
		return nil, fmt.Errorf("%w: no bundled transformer and no reference dataset configured", ErrArtifactMissing)
	}
	frame, err := ReadDataset(s.config.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reference dataset %s: %v", ErrArtifactMissing, s.config.DatasetPath, err)
	}
	transformer, err := Fit(frame, s.config.TargetColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: fit transformer: %v", ErrArtifactMissing, err)
	}
	return transformer, nil
}

type minFeatureModel interface {
	MinFeatures() int
}

// checkCompatible rejects a model whose input width disagrees with the
// transformer layout.
func checkCompatible(model Classifier, transformer *Transformer) error {
	width := transformer.Width()
	if n := model.NumFeatures(); n > 0 && n != width {
		return fmt.Errorf("model expects %d features, transformer produces %d", n, width)
	}
	if m, ok := model.(minFeatureModel); ok && m.MinFeatures() > width {
		return fmt.Errorf("model reads feature %d, transformer produces %d", m.MinFeatures()-1, width)
	}
	return nil
}
