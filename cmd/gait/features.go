package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/gait.report/internal/gait/offset"
)

func runFeatures(args []string, stdout io.Writer) error {
	fs := newFlagSet("features")
	var common commonFlags
	common.register(fs)
	layout := fs.String("layout", "", "Feature layout: aggregated or joint (overrides config)")
	out := fs.String("out", "", "Output features CSV")
	trackDistance := fs.Bool("track-distance", false, "Report chest to leg-midpoint distance bounds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	common.apply()

	if *out == "" {
		return errors.New("features: -out is required")
	}
	if fs.NArg() == 0 {
		return errors.New("features: at least one raw angle CSV is required")
	}

	cfg, err := common.tuning()
	if err != nil {
		return err
	}
	opts := cfg.PipelineOptions()
	if *layout != "" {
		if opts.Layout, err = offset.ParseLayout(*layout); err != nil {
			return err
		}
	}
	if *trackDistance {
		opts.TrackDistance = true
	}

	p, err := offset.NewPipeline(opts)
	if err != nil {
		return err
	}
	ds, rep, err := p.RunFiles(fs.Args())
	if err != nil {
		return err
	}
	if err := ds.WriteFile(*out); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "layout=%s rows=%d emitted=%d skipped=%d zero_filled=%d -> %s\n",
		opts.Layout, rep.Rows, rep.Emitted, rep.Skipped, rep.ZeroFilled, *out)
	if opts.TrackDistance && rep.Distance.Valid() {
		fmt.Fprintf(stdout, "min distance is: %g max distance is: %g\n", rep.Distance.Min, rep.Distance.Max)
	}
	return nil
}
