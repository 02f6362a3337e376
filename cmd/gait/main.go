// Command gait derives gait features from raw IMU angle recordings and
// trains, validates and cross-validates the one-class novelty detector.
//
// Usage:
//
//	gait features -out features.csv raw1.csv raw2.csv
//	gait train -train features.csv -test abnormal.csv -model model/gait.svm -scaler model/gait.scaler
//	gait validate -model model/gait.svm -scaler model/gait.scaler -normal normal.csv -abnormal abnormal.csv -export result.csv
//	gait crossval -train features.csv -folds 5
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/gait.report/internal/config"
	"github.com/banshee-data/gait.report/internal/db"
	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/version"
)

var errUsage = errors.New("usage: gait <features|train|validate|crossval|version> [flags]")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("gait: %v", err)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "features":
		return runFeatures(rest, stdout)
	case "train":
		return runTrain(rest, stdout)
	case "validate":
		return runValidate(rest, stdout)
	case "crossval":
		return runCrossVal(rest, stdout)
	case "version":
		fmt.Fprintln(stdout, version.String("gait"))
		return nil
	}
	return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
}

// commonFlags are accepted by every subcommand that touches the pipeline or
// the detector.
type commonFlags struct {
	configPath string
	dbPath     string
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Tuning config JSON (defaults apply when empty)")
	fs.StringVar(&c.dbPath, "db", "", "SQLite run store to record results in (optional)")
	fs.BoolVar(&c.verbose, "verbose", false, "Enable debug logging")
}

func (c *commonFlags) apply() {
	monitoring.SetVerbose(c.verbose)
}

func (c *commonFlags) tuning() (*config.TuningConfig, error) {
	if c.configPath == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(c.configPath)
}

// openStore opens the run store when -db was given. A nil store means
// results are not recorded.
func (c *commonFlags) openStore() (*db.DB, error) {
	if c.dbPath == "" {
		return nil, nil
	}
	store, err := db.NewDB(c.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return store, nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}
