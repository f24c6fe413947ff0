package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nvr-ai/go-ppg/api"
	"github.com/nvr-ai/go-ppg/config"
	"github.com/nvr-ai/go-ppg/controller"
	"github.com/nvr-ai/go-ppg/profiler"
	"github.com/nvr-ai/go-ppg/publish"
)

// consoleSink prints state changes, beats and one status line per second.
type consoleSink struct {
	mu       sync.Mutex
	last     controller.State
	advisory string
	lastLine time.Time
}

func (s *consoleSink) Name() string { return "console" }

func (s *consoleSink) Publish(d controller.Display) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.State != s.last {
		fmt.Printf("📍 %s: %s\n", d.State, d.Message)
		s.last = d.State
	}
	if d.Advisory != s.advisory {
		if d.Advisory != "" {
			fmt.Printf("⚠️  %s\n", d.Advisory)
		}
		s.advisory = d.Advisory
	}
	if d.Beat && d.BPM != nil {
		fmt.Printf("❤️  beat (%s BPM)\n", d.BPMText())
	}
	if time.Since(s.lastLine) >= time.Second && d.State.Active() {
		fmt.Printf("   BPM: %s | quality: %3d%% | finger: %t\n", d.BPMText(), d.QualityPercent, d.FingerPresent)
		s.lastLine = time.Now()
	}
	return nil
}

func main() {
	var (
		configPath string
		sourceKind string
		deviceID   int
		dir        string
		torchPath  string
		simBPM     float64
		natsURL    string
		mqttBroker string
		httpAddr   string
		encoding   string
		logLevel   string
		duration   time.Duration
		profile    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&sourceKind, "source", "", "Frame source: camera, directory or simulator")
	flag.IntVar(&deviceID, "device", -1, "Video capture device ID")
	flag.StringVar(&dir, "dir", "", "Directory of recorded frames (implies -source directory)")
	flag.StringVar(&torchPath, "torch", "", "Sysfs LED directory driving the camera flash")
	flag.Float64Var(&simBPM, "bpm", 0, "Simulated heart rate (simulator source)")
	flag.StringVar(&natsURL, "nats", "", "NATS server URL for display publishing")
	flag.StringVar(&mqttBroker, "mqtt", "", "MQTT broker URL for display publishing")
	flag.StringVar(&httpAddr, "http", "", "HTTP control API address (\"off\" disables it)")
	flag.StringVar(&encoding, "encoding", "", "Display encoding for sinks: json or msgpack")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flag.DurationVar(&duration, "duration", 0, "Stop the session after this long (0 runs until interrupted)")
	flag.BoolVar(&profile, "profile", false, "Enable periodic runtime profiling reports")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = *loaded
	}
	applyFlags(&cfg, flagOverrides{
		sourceKind: sourceKind,
		deviceID:   deviceID,
		dir:        dir,
		torchPath:  torchPath,
		simBPM:     simBPM,
		natsURL:    natsURL,
		mqttBroker: mqttBroker,
		httpAddr:   httpAddr,
		encoding:   encoding,
		logLevel:   logLevel,
		profile:    profile,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	if _, err := config.InitLogger(os.Stderr, cfg.Log); err != nil {
		log.Fatal(err)
	}

	if err := run(cfg, duration); err != nil {
		log.Fatal(err)
	}
}

type flagOverrides struct {
	sourceKind string
	deviceID   int
	dir        string
	torchPath  string
	simBPM     float64
	natsURL    string
	mqttBroker string
	httpAddr   string
	encoding   string
	logLevel   string
	profile    bool
}

// applyFlags overrides file values with the flags that were set.
func applyFlags(cfg *config.Config, f flagOverrides) {
	if f.sourceKind != "" {
		cfg.Source.Kind = f.sourceKind
	}
	if f.dir != "" {
		cfg.Source.Kind = config.SourceDirectory
		cfg.Source.Directory.Dir = f.dir
	}
	if f.deviceID >= 0 {
		cfg.Source.Camera.DeviceID = f.deviceID
	}
	if f.torchPath != "" {
		cfg.Source.Camera.TorchPath = f.torchPath
	}
	if f.simBPM > 0 {
		cfg.Source.Simulator.Trace.BPM = f.simBPM
	}
	if f.natsURL != "" {
		cfg.Publish.NATS.URL = f.natsURL
	}
	if f.mqttBroker != "" {
		cfg.Publish.MQTT.Broker = f.mqttBroker
	}
	switch f.httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = f.httpAddr
	}
	if f.encoding != "" {
		cfg.Publish.Encoding = f.encoding
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.profile {
		cfg.Profiler.Enabled = true
	}
}

func run(cfg config.Config, duration time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := cfg.NewSource()
	if err != nil {
		return err
	}
	codec, err := publish.CodecByName(cfg.Publish.Encoding)
	if err != nil {
		return err
	}

	var prof *profiler.Profiler
	if cfg.Profiler.Enabled {
		prof = profiler.New(profiler.Options{ReportInterval: cfg.Profiler.ReportInterval})
		prof.Start()
		defer prof.Stop()
	}

	ctrl := controller.New(source, cfg.Controller(), prof)
	prof.AddCollector(ctrl)
	ctrl.Subscribe(&consoleSink{})

	fmt.Printf("\n🚀 Heart Rate Monitor Started\n")
	fmt.Printf("=====================================\n")
	fmt.Printf("⚙️  Configuration:\n")
	fmt.Printf("   🎥 Source: %s\n", cfg.Source.Kind)
	fmt.Printf("   🔲 ROI: %dx%d of %dx%d\n", cfg.ROI.Width, cfg.ROI.Height, cfg.ROI.CaptureWidth, cfg.ROI.CaptureHeight)
	fmt.Printf("   📈 Beat threshold: %.2f, interval %v..%v\n",
		cfg.Pipeline.Beat.Threshold, cfg.Pipeline.Beat.MinBeatInterval, cfg.Pipeline.Beat.MaxBeatInterval)
	fmt.Printf("   🎯 BPM shown at %d%% quality after %d frames\n",
		cfg.Pipeline.Aggregator.DisplayThreshold, cfg.Pipeline.Quality.WarmupFrames)

	if cfg.Publish.NATS.URL != "" {
		nc, err := publish.ConnectNATS(cfg.Publish.NATS.URL, "go-ppg")
		if err != nil {
			return err
		}
		defer nc.Drain()
		ctrl.Subscribe(publish.NewNATSSink(nc, cfg.Publish.NATS.Subject, codec))
		fmt.Printf("   📡 NATS: %s (%s)\n", cfg.Publish.NATS.URL, cfg.Publish.NATS.Subject)
	}
	if cfg.Publish.MQTT.Broker != "" {
		sink := publish.NewMQTTSink(cfg.Publish.MQTT, codec)
		if err := sink.Connect(ctx); err != nil {
			return err
		}
		defer sink.Disconnect()
		ctrl.Subscribe(sink)
		fmt.Printf("   📡 MQTT: %s (%s)\n", cfg.Publish.MQTT.Broker, cfg.Publish.MQTT.Topic)
	}

	var srv *http.Server
	if cfg.HTTP.Addr != "" {
		opts := api.Options{AllowOrigins: cfg.HTTP.AllowOrigins, Profiler: prof}
		if cfg.Publish.WebSocket.Enabled {
			hub := publish.NewHub(codec, nil)
			defer hub.Close()
			ctrl.Subscribe(hub)
			opts.Stream = hub
		}
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.NewServer(ctrl, opts).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Printf("❌ HTTP server failed: %v\n", err)
				stop()
			}
		}()
		fmt.Printf("   🌐 HTTP: %s\n", cfg.HTTP.Addr)
	}
	fmt.Printf("=====================================\n\n")

	if err := ctrl.Start(ctx); err != nil {
		fmt.Printf("❌ Failed to start session: %v\n", err)
		if srv == nil {
			return err
		}
	}

	if duration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(duration):
		}
	} else {
		<-ctx.Done()
	}

	if err := ctrl.Close(); err != nil {
		fmt.Printf("⚠️  Stop failed: %v\n", err)
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("⚠️  HTTP shutdown failed: %v\n", err)
		}
	}

	s := ctrl.Summary()
	fmt.Printf("\n📊 Session Summary\n")
	fmt.Printf("=====================================\n")
	fmt.Printf("   Frames: %d (dropped %d, %.1f FPS)\n", s.Frames, s.Dropped, s.FPS)
	fmt.Printf("   Finger contact: %.0f%%\n", s.ContactRatio*100)
	fmt.Printf("   Beats: %d\n", s.Beats)
	if s.Beats > 0 {
		fmt.Printf("   BPM: mean %.1f, min %.1f, max %.1f\n", s.MeanBPM, s.MinBPM, s.MaxBPM)
		fmt.Printf("   RMSSD: %.1f ms\n", s.RMSSDMs)
	}
	return nil
}
