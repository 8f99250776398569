package serving

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"cardioserve/db"
	"cardioserve/ml"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

var (
	// ErrArtifactsNotLoaded is returned by Serve while no artifacts are held.
	ErrArtifactsNotLoaded = errors.New("artifacts not loaded")
	// ErrInvalidInput marks a request the transformer could not encode.
	ErrInvalidInput = errors.New("invalid input")
)

// PersistenceError reports a failed history write after a successful
// prediction.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "record prediction: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Loader produces the artifacts. *ml.ArtifactStore implements it.
type Loader interface {
	Load() (*ml.Artifacts, error)
}

// Recorder persists served predictions. *db.Store implements it.
type Recorder interface {
	SavePrediction(ctx context.Context, rec *db.PredictionRecord) error
}

type Options struct {
	// Lazy defers Init to the first Serve call.
	Lazy bool
	// CacheSize bounds the transformed-vector cache; 0 disables it.
	CacheSize int
}

// Service turns a patient record into an outcome. It is the only component
// that talks to both the transformer and the engine.
type Service struct {
	loader   Loader
	recorder Recorder
	engine   *ml.Engine
	logger   *zap.Logger
	lazy     bool

	once      sync.Once
	initErr   error
	artifacts atomic.Pointer[ml.Artifacts]

	cache *lru.Cache[string, ml.FeatureVector]
}

func NewService(loader Loader, recorder Recorder, logger *zap.Logger, opts Options) (*Service, error) {
	if loader == nil {
		return nil, errors.New("serving: nil loader")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		loader:   loader,
		recorder: recorder,
		engine:   ml.NewEngine(),
		logger:   logger,
		lazy:     opts.Lazy,
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, ml.FeatureVector](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("serving: transform cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Init loads the artifacts once. Later and concurrent calls wait for and
// return the result of the first one; a failed load is not retried.
func (s *Service) Init() error {
	s.once.Do(func() {
		artifacts, err := s.loader.Load()
		if err != nil {
			s.initErr = err
			s.logger.Error("artifact load failed", zap.Error(err))
			return
		}
		s.artifacts.Store(artifacts)
		s.logger.Info("artifacts loaded",
			zap.String("model_type", artifacts.ModelType),
			zap.Stringer("bundle_kind", artifacts.Kind),
			zap.String("transformer_source", artifacts.TransformerSource),
			zap.Int("features", artifacts.Transformer.Width()))
	})
	return s.initErr
}

// Artifacts returns the loaded artifacts, or nil.
func (s *Service) Artifacts() *ml.Artifacts {
	return s.artifacts.Load()
}

func (s *Service) Loaded() bool {
	return s.artifacts.Load() != nil
}

// Serve transforms record, runs the model and formats the outcome.
func (s *Service) Serve(ctx context.Context, record ml.PatientRecord) (Outcome, error) {
	if s.lazy {
		_ = s.Init()
	}
	artifacts := s.artifacts.Load()
	if artifacts == nil {
		return Outcome{}, ErrArtifactsNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	vector, err := s.transform(artifacts.Transformer, record)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	classIndex, proba, err := s.engine.Predict(artifacts.Model, vector)
	if err != nil {
		return Outcome{}, err
	}
	return NewOutcome(classIndex, proba), nil
}

func (s *Service) transform(transformer *ml.Transformer, record ml.PatientRecord) (ml.FeatureVector, error) {
	if s.cache == nil {
		return transformer.Transform(record)
	}
	key := record.Key()
	if vector, ok := s.cache.Get(key); ok {
		return vector, nil
	}
	vector, err := transformer.Transform(record)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, vector)
	return vector, nil
}

// Record writes the served outcome to the history store. Failures are
// returned as *PersistenceError.
func (s *Service) Record(ctx context.Context, requestID string, record ml.PatientRecord, outcome Outcome) (*db.PredictionRecord, error) {
	rec := &db.PredictionRecord{
		RequestID:     requestID,
		PatientRecord: record,
		Prediction:    outcome.Label,
		ClassIndex:    outcome.ClassIndex,
		Probability:   outcome.Probability,
	}
	if s.recorder == nil {
		return rec, &PersistenceError{Err: errors.New("no history store configured")}
	}
	if err := s.recorder.SavePrediction(ctx, rec); err != nil {
		return rec, &PersistenceError{Err: err}
	}
	return rec, nil
}
