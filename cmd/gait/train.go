package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/gait.report/internal/dataset"
	"github.com/banshee-data/gait.report/internal/db"
	"github.com/banshee-data/gait.report/internal/detection"
	"github.com/banshee-data/gait.report/internal/novelty"
	"github.com/banshee-data/gait.report/internal/scaler"
)

func runTrain(args []string, stdout io.Writer) error {
	fs := newFlagSet("train")
	var common commonFlags
	common.register(fs)
	trainPath := fs.String("train", "", "Normal-gait features CSV to train on")
	testPath := fs.String("test", "", "Abnormal-gait features CSV to report detection accuracy on (optional)")
	modelPath := fs.String("model", "", "Output model file")
	scalerPath := fs.String("scaler", "", "Output scaler file")
	folds := fs.Int("folds", 0, "Cross-validation folds; 0 uses the config, 1 self-validates")
	if err := fs.Parse(args); err != nil {
		return err
	}
	common.apply()

	if *trainPath == "" || *modelPath == "" || *scalerPath == "" {
		return errors.New("train: -train, -model and -scaler are required")
	}
	cfg, err := common.tuning()
	if err != nil {
		return err
	}
	k := *folds
	if k == 0 {
		k = cfg.GetFolds()
	}

	train, err := dataset.ReadFile(*trainPath)
	if err != nil {
		return err
	}
	var test *dataset.Dataset
	if *testPath != "" {
		if test, err = dataset.ReadFile(*testPath); err != nil {
			return err
		}
	}

	sc, err := scaler.FitStandard(train)
	if err != nil {
		return err
	}
	if err := sc.Transform(train); err != nil {
		return err
	}
	if test != nil {
		if err := sc.Transform(test); err != nil {
			return fmt.Errorf("test set: %w", err)
		}
	}
	for _, p := range []string{*modelPath, *scalerPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
	}
	if err := sc.Save(*scalerPath); err != nil {
		return err
	}

	c, err := novelty.New(novelty.Config{FeatureCount: train.Width(), Params: cfg.SVMParams()})
	if err != nil {
		return err
	}
	defer c.Close()
	acc, err := c.Train(train, nil, k)
	if err != nil {
		return err
	}
	if err := c.Save(*modelPath); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "train accuracy: %.2f%% (folds=%d, rows=%d, support vectors=%d)\n",
		acc, k, train.Len(), c.Model().TotalSV())

	// Reload from disk so the reported test accuracy reflects the saved
	// artefacts.
	svc, err := detection.Open(detection.Config{
		FeatureCount: train.Width(),
		ModelPath:    *modelPath,
		ScalerPath:   *scalerPath,
	})
	if err != nil {
		return err
	}
	defer svc.Close()

	testAcc := -1.0
	if test != nil {
		if testAcc, err = svc.ValidateAgainstKnownAnomalies(test, true); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "test accuracy: %.2f%% (rows=%d)\n", testAcc, test.Len())
	}

	store, err := common.openStore()
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	params := c.Params()
	run := &db.TrainingRun{
		Layout:         layoutName(train.Columns),
		FeatureCount:   train.Width(),
		Rows:           train.Len(),
		Kernel:         params.KernelType.String(),
		Nu:             params.Nu,
		Gamma:          params.Gamma,
		Folds:          k,
		Accuracy:       acc,
		SupportVectors: c.Model().TotalSV(),
		Rho:            c.Model().Rho,
		ModelPath:      *modelPath,
		ScalerPath:     *scalerPath,
	}
	if err := store.RecordTrainingRun(run); err != nil {
		return err
	}
	if test != nil {
		if err := store.RecordValidationRun(&db.ValidationRun{
			RunID:    run.RunID,
			Dataset:  *testPath,
			Kind:     db.KindKnownAnomalies,
			Rows:     test.Len(),
			Accuracy: testAcc,
		}); err != nil {
			return err
		}
	}
	fmt.Fprintf(stdout, "recorded training run %s\n", run.RunID)
	return nil
}

// layoutName recovers the feature layout from a features CSV header.
func layoutName(columns []string) string {
	switch len(columns) {
	case 6:
		return "aggregated"
	case 10:
		return "joint"
	}
	return fmt.Sprintf("custom(%d)", len(columns))
}
