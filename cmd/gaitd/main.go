// Command gaitd reads live IMU angle frames from a serial hub, classifies
// every frame with a trained gait novelty detector and records the results.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gait.report/internal/config"
	"github.com/banshee-data/gait.report/internal/db"
	"github.com/banshee-data/gait.report/internal/detection"
	"github.com/banshee-data/gait.report/internal/gait/offset"
	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/serialmux"
	"github.com/banshee-data/gait.report/internal/version"
)

var (
	devFixtures = flag.String("dev", "", "Replay angle lines from this fixture file instead of opening the serial port")
	noSerial    = flag.Bool("disable-serial", false, "Run without an IMU hub (debug routes and run store only)")
	devInterval = flag.Duration("dev-interval", 20*time.Millisecond, "Delay between replayed fixture lines")
	listen      = flag.String("listen", ":8081", "Listen address for debug routes")
	port        = flag.String("port", "/dev/ttyUSB0", "Serial port of the IMU hub (ignored in dev mode)")
	baud        = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	parity      = flag.String("parity", "N", "Serial parity: N, E or O")
	configPath  = flag.String("config", "", "Tuning config JSON (defaults apply when empty)")
	layout      = flag.String("layout", "", "Feature layout: aggregated or joint (overrides config)")
	modelPath   = flag.String("model", "model/gait.svm", "Trained model file")
	scalerPath  = flag.String("scaler", "model/gait.scaler", "Fitted scaler file")
	dbPath      = flag.String("db", "gait.db", "SQLite run store; empty disables recording")
	session     = flag.String("session", "", "Session id for recorded detections (default: random)")
	verbose     = flag.Bool("verbose", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func readFixtures(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func openSerial() (serialmux.SerialMuxInterface, error) {
	if *noSerial {
		return serialmux.NewDisabledSerialMux(), nil
	}
	if *devFixtures != "" {
		lines, err := readFixtures(*devFixtures)
		if err != nil {
			return nil, err
		}
		log.Printf("replaying %d fixture lines from %s", len(lines), *devFixtures)
		return serialmux.NewMockSerialMux(lines, *devInterval, true), nil
	}
	mux, err := serialmux.NewRealSerialMux(*port, serialmux.PortOptions{BaudRate: *baud, Parity: *parity})
	if err != nil {
		return nil, err
	}
	return mux, nil
}

func main() {
	flag.Parse()
	if *showVersion {
		log.Print(version.String("gaitd"))
		return
	}
	monitoring.SetVerbose(*verbose)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.DefaultTuningConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	opts := cfg.PipelineOptions()
	if *layout != "" {
		l, err := offset.ParseLayout(*layout)
		if err != nil {
			log.Fatal(err)
		}
		opts.Layout = l
	}
	pipeline, err := offset.NewPipeline(opts)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	svc, err := detection.Open(detection.Config{
		FeatureCount: pipeline.Width(),
		ModelPath:    *modelPath,
		ScalerPath:   *scalerPath,
	})
	if err != nil {
		log.Fatalf("failed to open detector: %v", err)
	}
	defer svc.Close()

	var store *db.DB
	if *dbPath != "" {
		if store, err = db.NewDB(*dbPath); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
	}

	if *session == "" {
		*session = uuid.NewString()
	}
	detector, err := newLiveDetector(pipeline, svc, store, *session)
	if err != nil {
		log.Fatal(err)
	}

	imu, err := openSerial()
	if err != nil {
		log.Fatalf("failed to open IMU hub: %v", err)
	}
	defer imu.Close()
	if err := imu.Initialize(); err != nil {
		log.Fatalf("failed to initialize IMU hub: %v", err)
	}
	log.Printf("session %s: layout=%s features=%d", *session, opts.Layout, pipeline.Width())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// serial IO
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := imu.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// single consumer: the detector is not safe for concurrent use
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := imu.Subscribe()
		defer imu.Unsubscribe(id)
		detector.consume(ctx, c)
		log.Printf("detector routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		imu.AttachAdminRoutes(mux)
		detector.attachAdminRoutes(mux)
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach db admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	s := detector.Stats()
	log.Printf("Graceful shutdown complete: frames=%d normal=%d anomalous=%d malformed=%d",
		s.Frames, s.Normal, s.Anomalous, s.Malformed)
}
