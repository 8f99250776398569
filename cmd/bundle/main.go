package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cardioserve/logging"
	"cardioserve/ml"
	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("bundle", flag.ContinueOnError)
	modelPath := flags.String("model_path", "./artifacts/heart_disease_model.json", "model file to wrap")
	modelType := flags.String("model_type", ml.ModelTypeLogisticRegression, "model type: "+strings.Join(ml.SupportedModelTypes(), ", "))
	datasetPath := flags.String("dataset_path", "./artifacts/heart_disease_datasets.csv", "reference dataset to fit the transformer on")
	target := flags.String("target", ml.TargetColumn, "label column excluded from fitting")
	outPath := flags.String("out", "./artifacts/heart_disease_bundle.json", "bundle output path")
	inspect := flags.String("inspect", "", "print the layout of an existing model or bundle file and exit")
	if err := flags.Parse(args); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: "info"})
	if err != nil {
		return err
	}
	defer logger.Sync()

	if *inspect != "" {
		return inspectBundle(*inspect, *modelType, stdout)
	}

	model, err := ml.LoadModel(*modelType, *modelPath)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	frame, err := ml.ReadDataset(*datasetPath)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}
	transformer, err := ml.Fit(frame, *target)
	if err != nil {
		return fmt.Errorf("failed to fit transformer: %w", err)
	}
	logger.Info("transformer fitted",
		zap.Int("rows", frame.Len()),
		zap.Int("features", transformer.Width()))

	payload, err := ml.EncodeBundle(*modelType, model, transformer)
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}
	// round-trip through the loader so a bundle that cannot be served is never written
	decoded, err := ml.DecodeBundle(payload, *modelType)
	if err != nil {
		return fmt.Errorf("bundle does not decode: %w", err)
	}
	if n := decoded.Model.NumFeatures(); n > 0 && n != transformer.Width() {
		return fmt.Errorf("model expects %d features, transformer produces %d", n, transformer.Width())
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(*outPath, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}

	logger.Info("bundle written", zap.String("path", *outPath))
	fmt.Fprintf(stdout, "bundle saved to %s\n", *outPath)
	return nil
}

func inspectBundle(path, defaultType string, stdout io.Writer) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	decoded, err := ml.DecodeBundle(payload, defaultType)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	fmt.Fprintf(stdout, "kind: %s\n", decoded.Kind)
	fmt.Fprintf(stdout, "model_type: %s\n", decoded.ModelType)
	if decoded.Transformer == nil {
		fmt.Fprintln(stdout, "transformer: none (fitted from the reference dataset at startup)")
		return nil
	}
	fmt.Fprintf(stdout, "features: %d\n", decoded.Transformer.Width())
	for i, name := range decoded.Transformer.FeatureNames() {
		fmt.Fprintf(stdout, "  %2d %s\n", i, name)
	}
	return nil
}
