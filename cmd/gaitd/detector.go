package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/gait.report/internal/db"
	"github.com/banshee-data/gait.report/internal/detection"
	"github.com/banshee-data/gait.report/internal/gait/offset"
	"github.com/banshee-data/gait.report/internal/httputil"
	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/novelty"
	"github.com/banshee-data/gait.report/internal/serialmux"
	"github.com/banshee-data/gait.report/internal/timeutil"
)

// liveStats counts what the daemon has seen since start.
type liveStats struct {
	SessionID  string          `json:"session_id"`
	Frames     int             `json:"frames"`
	Malformed  int             `json:"malformed"`
	Normal     int             `json:"normal"`
	Anomalous  int             `json:"anomalous"`
	Last       *novelty.Result `json:"last,omitempty"`
	LastAt     time.Time       `json:"last_at,omitzero"`
	PredFails  int             `json:"predict_failures"`
	StoreFails int             `json:"store_failures"`
	Hub        map[string]any  `json:"hub,omitempty"`
}

// liveDetector turns raw angle frames into features, classifies them and
// records each detection. HandleFrame is called from a single goroutine;
// the mutex only guards stats for the debug route.
type liveDetector struct {
	pipeline *offset.Pipeline
	svc      *detection.Service
	store    *db.DB // optional
	session  string
	hub      *serialmux.HubState
	clock    timeutil.Clock

	mu    sync.Mutex
	stats liveStats
}

func newLiveDetector(p *offset.Pipeline, svc *detection.Service, store *db.DB, session string) (*liveDetector, error) {
	if p.Width() != svc.FeatureCount() {
		return nil, errors.New("pipeline layout " + p.Options().Layout.String() + " does not match the model's feature count")
	}
	return &liveDetector{
		pipeline: p,
		svc:      svc,
		store:    store,
		session:  session,
		hub:      &serialmux.HubState{},
		clock:    timeutil.RealClock{},
		stats:    liveStats{SessionID: session},
	}, nil
}

var _ serialmux.FrameHandler = (*liveDetector)(nil)

func (d *liveDetector) HandleFrame(raw []float64) error {
	features, err := d.pipeline.Frame(raw)
	if err != nil {
		d.mu.Lock()
		d.stats.Malformed++
		d.mu.Unlock()
		return err
	}
	res, err := d.svc.Predict(features, true)
	if err != nil {
		d.mu.Lock()
		d.stats.PredFails++
		d.mu.Unlock()
		return err
	}
	at := d.clock.Now()

	d.mu.Lock()
	d.stats.Frames++
	if res.IsNormal() {
		d.stats.Normal++
	} else {
		d.stats.Anomalous++
	}
	d.stats.Last = &res
	d.stats.LastAt = at
	d.mu.Unlock()

	if d.store == nil {
		return nil
	}
	err = d.store.RecordDetection(&db.Detection{
		SessionID:     d.session,
		RecordedAt:    at,
		Label:         res.Label,
		DecisionValue: res.DecisionValue,
		Features:      features,
	})
	if err != nil {
		d.mu.Lock()
		d.stats.StoreFails++
		d.mu.Unlock()
	}
	return err
}

// Stats returns a snapshot of the counters.
func (d *liveDetector) Stats() liveStats {
	d.mu.Lock()
	s := d.stats
	d.mu.Unlock()
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	s.Hub = d.hub.Snapshot()
	return s
}

// consume feeds every line from a mux subscription into the detector until
// ctx is done or the subscription is closed.
func (d *liveDetector) consume(ctx context.Context, c <-chan string) {
	for {
		select {
		case payload, ok := <-c:
			if !ok {
				return
			}
			if err := serialmux.HandleEvent(d, d.hub, payload); err != nil {
				monitoring.Debugf("[gaitd] error handling line: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *liveDetector) attachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("gait-status", "live detection counters", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w, http.MethodGet)
			return
		}
		httputil.WriteJSONOK(w, d.Stats())
	})
}
