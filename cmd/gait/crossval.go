package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/gait.report/internal/dataset"
	"github.com/banshee-data/gait.report/internal/novelty"
	"github.com/banshee-data/gait.report/internal/scaler"
)

func runCrossVal(args []string, stdout io.Writer) error {
	fs := newFlagSet("crossval")
	var common commonFlags
	common.register(fs)
	trainPath := fs.String("train", "", "Normal-gait features CSV")
	folds := fs.Int("folds", 5, "Number of folds (at least 2)")
	noScale := fs.Bool("no-scale", false, "Skip standardising the features")
	if err := fs.Parse(args); err != nil {
		return err
	}
	common.apply()

	if *trainPath == "" {
		return errors.New("crossval: -train is required")
	}
	if *folds < 2 {
		return fmt.Errorf("crossval: -folds must be at least 2, got %d", *folds)
	}
	cfg, err := common.tuning()
	if err != nil {
		return err
	}

	ds, err := dataset.ReadFile(*trainPath)
	if err != nil {
		return err
	}
	if !*noScale {
		sc, err := scaler.FitStandard(ds)
		if err != nil {
			return err
		}
		if err := sc.Transform(ds); err != nil {
			return err
		}
	}

	c, err := novelty.New(novelty.Config{FeatureCount: ds.Width(), Params: cfg.SVMParams()})
	if err != nil {
		return err
	}
	defer c.Close()
	if _, err := c.Train(ds, nil, 1); err != nil {
		return err
	}
	cv, err := c.CrossValidate(*folds)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Cross Validation Accuracy = %g%%\n", cv.Accuracy)
	fmt.Fprintf(stdout, "Cross Validation Mean squared error = %g\n", cv.MeanSquaredError)
	fmt.Fprintf(stdout, "Cross Validation Squared correlation coefficient = %g\n", cv.SquaredCorrelation)
	return nil
}
