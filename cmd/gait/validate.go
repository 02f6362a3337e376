package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/gait.report/internal/dataset"
	"github.com/banshee-data/gait.report/internal/db"
	"github.com/banshee-data/gait.report/internal/detection"
	"github.com/banshee-data/gait.report/internal/novelty"
	"github.com/banshee-data/gait.report/internal/report"
	"github.com/banshee-data/gait.report/internal/scaler"
)

func runValidate(args []string, stdout io.Writer) error {
	fs := newFlagSet("validate")
	var common commonFlags
	common.register(fs)
	modelPath := fs.String("model", "", "Trained model file")
	scalerPath := fs.String("scaler", "", "Fitted scaler file")
	normalPath := fs.String("normal", "", "Normal-gait features CSV")
	abnormalPath := fs.String("abnormal", "", "Abnormal-gait features CSV")
	exportPath := fs.String("export", "", "Write both sets with result and dec_value columns to this CSV")
	plotPath := fs.String("plot", "", "Write a decision-value plot (png/svg/pdf)")
	htmlPath := fs.String("html", "", "Write an interactive decision-value chart")
	runID := fs.String("run", "", "Training run to attach results to (default: latest in -db)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	common.apply()

	if *modelPath == "" || *scalerPath == "" {
		return errors.New("validate: -model and -scaler are required")
	}
	if *normalPath == "" && *abnormalPath == "" {
		return errors.New("validate: at least one of -normal or -abnormal is required")
	}

	sc, err := scaler.NewStandardFromFile(*scalerPath)
	if err != nil {
		return err
	}
	c, err := novelty.New(novelty.Config{FeatureCount: sc.Width(), Params: novelty.DefaultParams(), ModelPath: *modelPath})
	if err != nil {
		return err
	}
	svc, err := detection.New(sc, c)
	if err != nil {
		return err
	}
	defer svc.Close()

	type set struct {
		name, path string
		kind       string
		ds         *dataset.Dataset
		results    []novelty.Result
		accuracy   float64
	}
	var sets []*set
	if *normalPath != "" {
		sets = append(sets, &set{name: "normal", path: *normalPath, kind: db.KindInDistribution})
	}
	if *abnormalPath != "" {
		sets = append(sets, &set{name: "abnormal", path: *abnormalPath, kind: db.KindKnownAnomalies})
	}

	var groups []report.Group
	var parts []*dataset.Dataset
	for _, s := range sets {
		if s.ds, err = dataset.ReadFile(s.path); err != nil {
			return err
		}
		_, s.results, _, err = svc.Annotate(s.ds, true)
		if err != nil {
			return fmt.Errorf("%s: %w", s.path, err)
		}
		groups = append(groups, report.Group{Name: s.name, Results: s.results})
		parts = append(parts, s.ds)
	}

	if *exportPath != "" {
		all, err := dataset.Concat(parts...)
		if err != nil {
			return err
		}
		_, sum, err := svc.ValidateAndExport(all, *exportPath, true)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "exported %d rows to %s (normal=%d anomalous=%d)\n", sum.Rows, *exportPath, sum.Normal, sum.Anomalous)
	}
	if *plotPath != "" {
		if err := report.WriteDecisionPlot(*plotPath, "Gait decision values", groups...); err != nil {
			return err
		}
	}
	if *htmlPath != "" {
		if err := report.WriteDecisionChartFile(*htmlPath, "Gait decision values", groups...); err != nil {
			return err
		}
	}

	// Accuracy last: validation standardises the datasets in place.
	for _, s := range sets {
		if s.kind == db.KindInDistribution {
			s.accuracy, err = svc.ValidateInDistribution(s.ds, true)
		} else {
			s.accuracy, err = svc.ValidateAgainstKnownAnomalies(s.ds, true)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", s.path, err)
		}
		fmt.Fprintf(stdout, "%s accuracy: %.2f%% (rows=%d)\n", s.name, s.accuracy, s.ds.Len())
	}

	store, err := common.openStore()
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	id := *runID
	if id == "" {
		latest, err := store.LatestTrainingRun()
		switch {
		case errors.Is(err, db.ErrNotFound):
		case err != nil:
			return err
		default:
			id = latest.RunID
		}
	}
	for _, s := range sets {
		if err := store.RecordValidationRun(&db.ValidationRun{
			RunID: id, Dataset: s.path, Kind: s.kind, Rows: s.ds.Len(), Accuracy: s.accuracy,
		}); err != nil {
			return err
		}
	}
	return nil
}
