package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/artifact"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/config"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/detector"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/logger"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/metrics"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/monitor"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/notify"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/sensor"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/stream"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/webmonitor"
	"github.com/dj-oyu/home-epilepsy-monitor/monitor-server/internal/webrtc"
)

// Server owns every long-running part of the monitor process
type Server struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cfg           *config.Config
	metrics       *metrics.Metrics
	source        sensor.Source
	loop          *monitor.Loop
	dashboard     *webmonitor.Server
	webrtc        *webrtc.Server
	mqtt          *notify.MQTT
	publisher     *stream.Publisher
	httpServer    *http.Server
	metricsServer *http.Server
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dash := webmonitor.DefaultConfig()
	var (
		stunServers string
		maxClients  int
	)
	flag.StringVar(&cfg.Artifacts.ModelPath, "model", cfg.Artifacts.ModelPath, "Trained model artifact")
	flag.StringVar(&cfg.Artifacts.ScalerPath, "scaler", cfg.Artifacts.ScalerPath, "Scaler artifact")
	flag.StringVar(&cfg.Serial.Port, "port", cfg.Serial.Port, "Serial port of the heart-rate sensor (empty for simulation)")
	flag.IntVar(&cfg.Serial.BaudRate, "baud", cfg.Serial.BaudRate, "Serial baud rate")
	flag.DurationVar(&cfg.Serial.OpenTimeout, "open-timeout", cfg.Serial.OpenTimeout, "Serial open timeout")
	flag.DurationVar(&cfg.Monitor.Interval, "interval", cfg.Monitor.Interval, "Monitoring interval")
	flag.Int64Var(&cfg.Monitor.SimSeed, "seed", cfg.Monitor.SimSeed, "Simulation seed")
	flag.StringVar(&cfg.HTTP.Addr, "http", cfg.HTTP.Addr, "Dashboard address")
	flag.StringVar(&cfg.HTTP.MetricsAddr, "metrics", cfg.HTTP.MetricsAddr, "Metrics server address (empty to disable)")
	flag.StringVar(&dash.AssetsDir, "assets", dash.AssetsDir, "Static asset override directory")
	flag.BoolVar(&cfg.Notify.Desktop, "desktop", cfg.Notify.Desktop, "Raise desktop notifications")
	flag.DurationVar(&cfg.Notify.Debounce, "debounce", cfg.Notify.Debounce, "Minimum gap between notifications")
	flag.StringVar(&cfg.MQTT.Broker, "mqtt", cfg.MQTT.Broker, "MQTT broker for alerts (empty to disable)")
	flag.StringVar(&cfg.MQTT.Topic, "mqtt-topic", cfg.MQTT.Topic, "MQTT alert topic")
	flag.StringVar(&cfg.NATS.URL, "nats", cfg.NATS.URL, "NATS url for tick publishing (empty to disable)")
	flag.StringVar(&cfg.NATS.Subject, "nats-subject", cfg.NATS.Subject, "NATS subject for ticks")
	flag.StringVar(&stunServers, "stun", "stun:stun.l.google.com:19302", "STUN server URLs (comma-separated)")
	flag.IntVar(&maxClients, "max-clients", 8, "Maximum WebRTC clients")
	flag.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level (debug, info, warn, error, silent)")
	flag.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "Log format (console, json)")
	flag.Parse()

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.InitWithFormat(level, os.Stderr, cfg.Log.Format, "epilepsy-monitor")
	defer logger.Sync()

	logger.Info("Main", "Epilepsy monitor starting...")
	logger.Info("Main", "Log level: %s", level)

	dash.Addr = cfg.HTTP.Addr
	srv, err := NewServer(cfg, dash, splitList(stunServers), maxClients)
	if err != nil {
		var missing *artifact.MissingError
		if errors.As(err, &missing) {
			logger.Error("Main", "%v (run the trainer first)", err)
		} else {
			logger.Error("Main", "Failed to start: %v", err)
		}
		logger.Sync()
		os.Exit(1)
	}

	srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Main", "Shutting down...")
	if err := srv.Shutdown(); err != nil {
		logger.Error("Main", "Error during shutdown: %v", err)
	}
	logger.Info("Main", "Monitor stopped")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// buildNotifier fans alerts to every enabled channel behind one debounce
func buildNotifier(cfg *config.Config) (notify.Notifier, *notify.MQTT) {
	notifiers := notify.Multi{notify.Log{Module: "Alert"}}
	if cfg.Notify.Desktop {
		notifiers = append(notifiers, notify.NewDesktop(""))
	}

	var mq *notify.MQTT
	if cfg.MQTT.Broker != "" {
		var err error
		mq, err = notify.DialMQTT(notify.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		})
		if err != nil {
			logger.Warn("Main", "MQTT alerts disabled: %v", err)
		} else {
			logger.Info("Main", "Publishing alerts to %s on %s", cfg.MQTT.Broker, cfg.MQTT.Topic)
			notifiers = append(notifiers, mq)
		}
	}
	return notify.Debounce(notifiers, cfg.Notify.Debounce), mq
}

// NewServer loads the detector and wires the loop to every consumer.
// It fails when the artifacts cannot be loaded so the loop never starts.
func NewServer(cfg *config.Config, dash webmonitor.Config, stun []string, maxClients int) (*Server, error) {
	m := metrics.New()
	notifier, mq := buildNotifier(cfg)

	det, err := detector.New(detector.Config{
		ModelPath:  cfg.Artifacts.ModelPath,
		ScalerPath: cfg.Artifacts.ScalerPath,
	}, notifier, detector.WithMetrics(m))
	if err != nil {
		if mq != nil {
			mq.Close()
		}
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	source, simulated := sensor.Select(ctx, sensor.HardwareConfig{
		Port:        cfg.Serial.Port,
		BaudRate:    cfg.Serial.BaudRate,
		OpenTimeout: cfg.Serial.OpenTimeout,
	}, cfg.Monitor.SimSeed)

	state := monitor.NewState(monitor.DefaultHistorySize, monitor.DefaultEpisodeLimit)
	loop := monitor.NewLoop(source, det, state,
		monitor.WithInterval(cfg.Monitor.Interval),
		monitor.WithRooms(sensor.NewRoomSimulator(cfg.Monitor.SimSeed)),
		monitor.WithLoopMetrics(m),
		monitor.WithSimulation(simulated),
	)

	rtc := webrtc.NewServer(stun, maxClients, m)
	dashboard := webmonitor.NewServer(dash, state,
		webmonitor.WithPeerServer(rtc),
		webmonitor.WithMetrics(m),
	)
	loop.OnTick(dashboard.Publish)

	srv := &Server{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		metrics:   m,
		source:    source,
		loop:      loop,
		dashboard: dashboard,
		webrtc:    rtc,
		mqtt:      mq,
		httpServer: &http.Server{
			Addr:              dash.Addr,
			Handler:           dashboard.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	if cfg.NATS.URL != "" {
		nc, err := stream.Connect(cfg.NATS.URL, "epilepsy-monitor")
		if err != nil {
			logger.Warn("Main", "NATS publishing disabled: %v", err)
		} else {
			srv.publisher = stream.NewPublisher(nc, cfg.NATS.Subject, m)
			loop.OnTick(srv.publisher.Publish)
			logger.Info("Main", "Publishing ticks to %s on %s", cfg.NATS.URL, cfg.NATS.Subject)
		}
	}

	if cfg.HTTP.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv.metricsServer = &http.Server{
			Addr:              cfg.HTTP.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return srv, nil
}

// Start launches the HTTP servers and the monitoring loop
func (s *Server) Start() {
	logger.Info("Main", "  Source: %s", s.source.Kind())
	logger.Info("Main", "  Dashboard: %s", s.httpServer.Addr)
	logger.Info("Main", "  Interval: %v", s.loop.Interval())

	s.dashboard.Start()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Main", "HTTP server error: %v", err)
		}
	}()

	if s.metricsServer != nil {
		go func() {
			logger.Info("Main", "Starting metrics server on %s", s.metricsServer.Addr)
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Main", "Metrics server error: %v", err)
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.loop.Run(s.ctx); err != nil {
			logger.Error("Main", "Monitoring loop stopped: %v", err)
		}
	}()
}

// Shutdown stops the loop first, then every consumer
func (s *Server) Shutdown() error {
	s.cancel()
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	s.dashboard.Stop()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dashboard: %w", err))
	}
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}
	if err := s.webrtc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("webrtc: %w", err))
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}
	if s.mqtt != nil {
		s.mqtt.Close()
	}
	if err := s.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	return errors.Join(errs...)
}
