package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/magiccandle/internal/app"
	"github.com/ayusman/magiccandle/internal/config"
	"github.com/ayusman/magiccandle/internal/detector"
	"github.com/ayusman/magiccandle/internal/logging"
	"github.com/ayusman/magiccandle/internal/server"
	"github.com/ayusman/magiccandle/internal/store"
	"github.com/ayusman/magiccandle/internal/tray"
)

func main() {
	var (
		configF = flag.String("config", "", "Path to the YAML config file (default $"+config.EnvConfig+")")
		noTrayF = flag.Bool("no-tray", false, "Run without the system tray icon")
	)
	flag.Parse()

	cfg, err := config.Load(*configF)
	if err != nil {
		fmt.Fprintf(os.Stderr, "magiccandle: %v\n", err)
		os.Exit(1)
	}
	if *noTrayF {
		cfg.Tray = false
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "magiccandle: %v\n", err)
		os.Exit(1)
	}

	log.Info("Magic Candle - blow out the candles")

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Magic Candle stopped")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	thresholds, err := st.Settings().LoadThresholds(cfg.Detector)
	if err != nil {
		log.WithError(err).Warn("Ignoring stored detector settings")
		thresholds = cfg.Detector
	}

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		log.WithField("dir", webDir).Info("Serving static files")
	}

	hub := server.NewEventsHub(log)

	a := app.New(app.Config{
		Store:     st,
		PluginDir: cfg.PluginDir,
		CameraID:  cfg.Camera.Device,
		Mirror:    cfg.Camera.Mirror,
		FPS:       cfg.Camera.FPS,
		FaceMesh: detector.Config{
			MaxFaces:        1,
			MinConfidence:   cfg.FaceMesh.MinConfidence,
			MinTrackingConf: cfg.FaceMesh.MinTrackingConf,
			ScriptPath:      cfg.FaceMesh.Script,
		},
		Thresholds:    thresholds,
		Song:          cfg.Reaction.Song,
		SoundPlugin:   cfg.Reaction.SoundPlugin,
		Player:        cfg.Reaction.Player,
		PluginTimeout: cfg.Reaction.PluginTimeout,
		Logger:        log,
	})

	if err := a.DiscoverPlugins(); err != nil {
		log.WithError(err).Warn("Plugin discovery failed")
	}
	a.RegisterEventCallback(hub.BroadcastEvent)
	a.RegisterSceneCallback(hub.BroadcastScene)

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		App:       a,
		Hub:       hub,
		Logger:    log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		return fmt.Errorf("start detection pipeline: %w", err)
	}
	defer a.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, cfg.Addr)
		stop()
	}()

	if cfg.Tray {
		t := tray.New()
		t.SetEnabled(a.IsEnabled())
		t.OnToggle(a.SetEnabled)
		t.OnSettings(func() {
			if err := openBrowser(browseURL(cfg.Addr)); err != nil {
				log.WithError(err).Warn("Failed to open browser")
			}
		})
		t.OnQuit(stop)
		a.RegisterEventCallback(t.HandleEvent)

		go func() {
			<-ctx.Done()
			t.Quit()
		}()

		// The tray owns the main thread until it quits
		t.Run()
	}

	<-ctx.Done()
	log.Info("Shutting down")

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// browseURL turns a listen address into a URL a local browser can open.
func browseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost:8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
