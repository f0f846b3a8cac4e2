package main

import (
	"context"
	"embed"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kinetic-data/motion.report/internal/api"
	"github.com/kinetic-data/motion.report/internal/config"
	"github.com/kinetic-data/motion.report/internal/db"
	"github.com/kinetic-data/motion.report/internal/eventmux"
	"github.com/kinetic-data/motion.report/internal/pose"
	"github.com/kinetic-data/motion.report/internal/serialout"
	"github.com/kinetic-data/motion.report/internal/track"
	"github.com/kinetic-data/motion.report/internal/video"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	devMode    = flag.Bool("dev", false, "Run with the synthetic video source")
	listen     = flag.String("listen", ":8080", "Listen address")
	configPath = flag.String("config", "", "Path to a JSON tracking config file")
	dbFile     = flag.String("db", "motion.db", "SQLite database path")

	sourceSpec  = flag.String("source", "", "Video source: camera index or file path")
	backendName = flag.String("backend", "", "Pose backend: remote | yolo | synthetic")
	modelPath   = flag.String("model", "", "ONNX model path for the yolo backend")
	remoteURL   = flag.String("remote-url", "", "Websocket URL of the landmark service")
	landmarks   = flag.String("landmarks", "", "Landmark selection: standard | coco | trunk | upper_body | lower_body")
	fps         = flag.Float64("fps", 0, "Capture rate override")
	modeName    = flag.String("mode", "", "Output mode: per-frame | per-block | display-only")
	blockSize   = flag.Int("block", 0, "Frames per block in per-block mode")
	startSec    = flag.Float64("start", 0, "Playback window start in seconds (file sources)")
	endSec      = flag.Float64("end", 0, "Playback window end in seconds (file sources)")
	preview     = flag.Bool("preview", false, "Open the preview window")

	serialOut  = flag.String("serial-out", "", "Serial device for the NDJSON result stream")
	serialBaud = flag.Int("serial-baud", 0, "Serial output baud rate")

	quiet     = flag.Bool("quiet", false, "Log only operational events")
	traceLogs = flag.Bool("trace", false, "Enable per-frame trace logging")
)

// setupLogging wires the three logging streams to stderr according to
// the verbosity flags.
func setupLogging() {
	w := track.LogWriters{Ops: os.Stderr, Diag: os.Stderr}
	if *quiet {
		w.Diag = nil
	}
	if *traceLogs {
		w.Trace = os.Stderr
	}
	track.SetLogWriters(w)
}

// loadConfig loads the optional config file and overlays any flags the
// user set explicitly. Flags win over the file; the Get* defaults cover
// the rest.
func loadConfig() (*config.TrackingConfig, error) {
	cfg := config.EmptyTrackingConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTrackingConfig(*configPath)
		if err != nil {
			return nil, err
		}
	}
	overrideFromFlags(cfg)
	return cfg, cfg.Validate()
}

// overrideFromFlags copies explicitly-set flag values into the config.
// Unset flags leave the file values (and defaults) alone.
func overrideFromFlags(cfg *config.TrackingConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source = sourceSpec
		case "backend":
			cfg.Backend = backendName
		case "model":
			cfg.ModelPath = modelPath
		case "remote-url":
			cfg.RemoteURL = remoteURL
		case "landmarks":
			cfg.Landmarks = landmarks
		case "fps":
			cfg.FPS = fps
		case "mode":
			cfg.Mode = modeName
		case "block":
			cfg.BlockSize = blockSize
		case "start":
			cfg.StartSec = startSec
		case "end":
			cfg.EndSec = endSec
		case "preview":
			cfg.Preview = preview
		}
	})
}

// buildSource opens the video source: the synthetic generator in dev
// mode, a camera or file otherwise.
func buildSource(cfg *config.TrackingConfig) (video.Source, error) {
	if *devMode {
		return video.NewSyntheticSource(0), nil
	}
	return video.Open(cfg.GetSource())
}

// buildBackend constructs the pose backend from the config.
func buildBackend(cfg *config.TrackingConfig, names []string) (pose.Backend, error) {
	kind, err := pose.ParseKind(cfg.GetBackend())
	if err != nil {
		return nil, err
	}
	return pose.New(pose.Config{
		Kind:      kind,
		ModelPath: cfg.GetModelPath(),
		RemoteURL: cfg.GetRemoteURL(),
		Landmarks: names,
	})
}

// buildDistance selects the block distance metric, with the optional
// noise filter from the config.
func buildDistance(cfg *config.TrackingConfig) track.DistanceFunc {
	return track.EuclideanDistance(track.EuclideanOptions{
		Filter:    cfg.GetDistanceFilter(),
		Threshold: cfg.GetFilterThreshold(),
	})
}

// applyWindow narrows playback to the configured time window. An
// invalid window is logged and dropped; the session runs over the full
// source instead.
func applyWindow(session *track.Session, cfg *config.TrackingConfig) {
	end := cfg.GetEndSec()
	if end <= 0 {
		return
	}
	if err := session.SetWindow(cfg.GetStartSec(), end); err != nil {
		log.Printf("ignoring playback window: %v", err)
	}
}

// handleMessage persists one observer message: rows and blocks go to
// the database, and everything is mirrored to the serial sink when one
// is attached.
func handleMessage(database *db.DB, sink *serialout.Sink, m track.Message) error {
	if sink != nil {
		sink.Send(m)
	}
	switch m.Kind {
	case track.KindRow:
		if m.Row == nil {
			return nil
		}
		return database.InsertRow(m.SessionID, *m.Row)
	case track.KindBlock:
		if m.Block == nil {
			return nil
		}
		return database.InsertBlock(m.SessionID, *m.Block)
	}
	return nil
}

func main() {
	flag.Parse()
	setupLogging()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	names, err := pose.LandmarkSet(cfg.GetLandmarks())
	if err != nil {
		log.Fatalf("failed to resolve landmark selection: %v", err)
	}

	backend, err := buildBackend(cfg, names)
	if err != nil {
		log.Fatalf("failed to create pose backend: %v", err)
	}
	defer backend.Close()

	source, err := buildSource(cfg)
	if err != nil {
		log.Fatalf("failed to open video source: %v", err)
	}

	mode, err := track.ParseMode(cfg.GetMode())
	if err != nil {
		log.Fatalf("failed to parse output mode: %v", err)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	var sink *serialout.Sink
	if *serialOut != "" {
		sink, err = serialout.Open(*serialOut, serialout.PortOptions{BaudRate: *serialBaud})
		if err != nil {
			log.Fatalf("failed to open serial output: %v", err)
		}
		defer sink.Close()
	}

	events := eventmux.New[track.Message]()
	defer events.Close()

	tracker := track.NewTracker(backend, names, nil)
	session, err := track.NewSession(track.SessionConfig{
		Source:    source,
		Tracker:   tracker,
		Observer:  events,
		Mode:      mode,
		FPS:       cfg.GetFPS(),
		BlockSize: cfg.GetBlockSize(),
		Distance:  buildDistance(cfg),
		Preview:   cfg.GetPreview(),
	})
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}
	applyWindow(session, cfg)

	if err := database.RecordSession(db.SessionRecord{
		ID:        session.ID(),
		Backend:   backend.Name(),
		Source:    cfg.GetSource(),
		Mode:      cfg.GetMode(),
		Landmarks: names,
		StartedAt: float64(time.Now().UnixNano()) / 1e9,
	}); err != nil {
		log.Fatalf("failed to record session: %v", err)
	}

	// Create a wait group for the HTTP server, capture session, and
	// persistence routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// subscribe to the session's output messages and persist them
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := events.Subscribe()
		defer events.Unsubscribe(id)
		for {
			select {
			case m, ok := <-c:
				if !ok {
					log.Printf("persist routine terminated")
					return
				}
				if err := handleMessage(database, sink, m); err != nil {
					log.Printf("error persisting message: %v", err)
				}
			case <-ctx.Done():
				log.Printf("persist routine terminated")
				return
			}
		}
	}()

	// run the capture session; it exits on end-of-stream, the playback
	// window bound, or signal
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := session.Run(ctx); err != nil {
			log.Printf("capture session ended: %v", err)
		}
		snap := tracker.Snapshot()
		total := buildDistance(cfg)(snap)
		session.StatsSummary(total)
		stats := session.Stats()
		if err := database.FinishSession(session.ID(),
			float64(time.Now().UnixNano())/1e9,
			stats.FramesRead, stats.FrameDrops, uint64(stats.Rows), total,
		); err != nil {
			log.Printf("failed to finalise session record: %v", err)
		}
		log.Print("capture routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		database.AttachAdminRoutes(mux)
		events.AttachAdminRoutes(mux)

		// mount the API handlers over the live session and store
		apiMux := api.NewServer(database, session, events).ServeMux()
		mux.Handle("/api/", apiMux)

		// read static files from the embedded filesystem in production or from
		// the local ./static in dev for easier iteration without restarting the
		// server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticHandler = http.FileServer(http.FS(staticFiles))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		// Create a shutdown context with a timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
