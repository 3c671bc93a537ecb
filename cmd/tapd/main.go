// tapd reads a touchpad's protocol-B multitouch stream, drives the
// tap-to-click state machine once per frame, and injects synthetic
// pointer buttons (and relayed motion) through a Wayland virtual
// pointer.
//
// Code is split across:
//   - util.go: env/flag helpers
//   - wiring.go: classifier construction, frame conversion, motion relay
//   - main.go: flag parsing, device open + the single-goroutine event loop
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tapdaemon/tapd/internal/classify"
	"github.com/tapdaemon/tapd/internal/config"
	"github.com/tapdaemon/tapd/internal/diagnostics"
	"github.com/tapdaemon/tapd/internal/evdev"
	"github.com/tapdaemon/tapd/internal/frame"
	"github.com/tapdaemon/tapd/internal/sink"
	"github.com/tapdaemon/tapd/internal/tapstate"
)

type daemonConfig struct {
	InputDevice string
	Grab        bool
	Debug       bool

	DiagnosticsWS   string
	PingSeconds     float64
	PongTimeoutSecs float64

	PalmMajorThreshold  int
	ThumbMajorThreshold int
	BottomEdgeY         int

	MotionScale float64
}

func main() {
	cfg := daemonConfig{
		InputDevice:         os.Getenv("INPUT_DEVICE"),
		Grab:                getenvBoolDefault("GRAB", true),
		Debug:               getenvBoolDefault("DEBUG", false),
		DiagnosticsWS:       os.Getenv("DIAGNOSTICS_WS"),
		PingSeconds:         getenvFloatDefault("PING_SECONDS", 2),
		PongTimeoutSecs:     getenvFloatDefault("PONG_TIMEOUT_SECONDS", 8),
		PalmMajorThreshold:  getenvIntDefault("PALM_MAJOR_THRESHOLD", 0),
		ThumbMajorThreshold: getenvIntDefault("THUMB_MAJOR_THRESHOLD", 0),
		BottomEdgeY:         getenvIntDefault("BOTTOM_EDGE_Y", 0),
		MotionScale:         getenvFloatDefault("MOTION_SCALE", 1.0),
	}

	flag.StringVar(&cfg.InputDevice, "input", cfg.InputDevice, "Input device path (e.g. /dev/input/event3)")
	flag.BoolVar(&cfg.Grab, "grab", cfg.Grab, "EVIOCGRAB the input device exclusively")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Verbose structured logging")
	flag.StringVar(&cfg.DiagnosticsWS, "diagnostics-ws", cfg.DiagnosticsWS, "Optional websocket URL to stream FSM transitions to")
	flag.Parse()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg daemonConfig, log *slog.Logger) error {
	if cfg.InputDevice == "" {
		return fmt.Errorf("no input device given (set -input or $INPUT_DEVICE)")
	}

	dev, err := evdev.Open(cfg.InputDevice, cfg.Grab)
	if err != nil {
		return err
	}
	defer dev.Close()
	caps := dev.Capabilities()
	log.Info("opened device", "path", dev.Path(), "slots", caps.NumSlots,
		"semi_mt", caps.SemiMT, "clickpad", caps.IsClickpad, "has_left_button", caps.HasLeftButton)

	defaultEnabled := tapstate.DefaultTapEnabled(caps.HasLeftButton)
	if err := config.EnsureInitialized(defaultEnabled); err != nil {
		log.Warn("could not initialize config file", "err", err)
	}
	userConfig, err := config.Read()
	if err != nil {
		log.Warn("could not read config file, using defaults", "err", err)
		userConfig = config.Default(defaultEnabled)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	vp, err := sink.NewVirtualPointer(ctx, log)
	cancel()
	if err != nil {
		return err
	}
	defer vp.Close()

	stop := make(chan struct{})

	var observer tapstate.TransitionObserver
	if cfg.DiagnosticsWS != "" {
		client := diagnostics.NewClient(cfg.DiagnosticsWS,
			time.Duration(cfg.PingSeconds*float64(time.Second)),
			time.Duration(cfg.PongTimeoutSecs*float64(time.Second)), log)
		go client.Run(stop)
		observer = client
	}

	buttonSink := sink.NewFanOut(vp, nil)
	opts := []tapstate.Option{tapstate.WithLogger(log)}
	if observer != nil {
		opts = append(opts, tapstate.WithTransitionObserver(observer))
	}
	machine := tapstate.NewMachine(buttonSink, userConfig.TapEnabled, opts...)
	machine.SetMap(userConfig.ButtonMap())
	machine.SetDragEnabled(userConfig.DragEnabled)
	machine.SetDragLockEnabled(userConfig.DragLockEnabled)

	thresholds := classify.Thresholds{
		PalmMajor:   int32(cfg.PalmMajorThreshold),
		ThumbMajor:  int32(cfg.ThumbMajorThreshold),
		BottomEdgeY: int32(cfg.BottomEdgeY),
	}
	w := newWiring(machine, caps, thresholds, vp, cfg.MotionScale, log)
	driver := frame.NewDriver(machine, w.classifiers(), log)

	reader := evdev.NewReader(dev)
	go func() {
		if err := reader.Run(stop); err != nil {
			log.Error("device reader stopped", "err", err)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	toggle := make(chan os.Signal, 1)
	signal.Notify(toggle, syscall.SIGUSR1)

	log.Info("tapd running", "device", dev.Path())
	for {
		select {
		case <-sigc:
			close(stop)
			machine.ReleaseAll(time.Now())
			return nil

		case <-toggle:
			now := time.Now()
			enabled := !machine.TapEnabled()
			machine.SetTapEnabled(enabled, now)
			userConfig.TapEnabled = enabled
			if err := config.Write(userConfig); err != nil {
				log.Warn("could not persist tap_enabled", "err", err)
			}
			log.Info("tap_enabled toggled", "enabled", enabled)

		case now := <-machine.TimerC():
			machine.OnTimerFired(now)

		case sample, ok := <-reader.Samples():
			if !ok {
				close(stop)
				return fmt.Errorf("device reader closed unexpectedly")
			}
			now := time.Now()
			f := w.toFrame(sample, reader.ActiveCount())
			filterMotion := driver.HandleState(f, now)
			driver.PostProcessState()
			w.relayMotion(sample, filterMotion)
		}
	}
}
