package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/fingergun/internal/app"
	"github.com/ayusman/fingergun/internal/capture"
	"github.com/ayusman/fingergun/internal/config"
	"github.com/ayusman/fingergun/internal/detector"
	"github.com/ayusman/fingergun/internal/logger"
	"github.com/ayusman/fingergun/internal/plugin"
	"github.com/ayusman/fingergun/internal/publish"
	"github.com/ayusman/fingergun/internal/server"
	"github.com/ayusman/fingergun/internal/store"
	"github.com/ayusman/fingergun/internal/tray"
)

var (
	// serveAddr overrides server.addr from the configuration file.
	serveAddr string
	// noTray disables the system tray icon.
	noTray bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the camera pipeline and the control server.",
		Long: `Reads the camera, estimates hand landmarks, turns them into control
samples and relays them to websocket clients on /api/control.

Clients send {"type":"CONTROL","action":"START"} to begin receiving samples,
PAUSE to stop and RESET to clear the tracking state.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if serveAddr != "" {
				cfg.Server.Addr = serveAddr
			}
			if noTray {
				cfg.Tray.Enabled = false
			}

			return serve(ctx, cfg)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address; overrides the config file")
	serveCmd.Flags().BoolVar(&noTray, "no-tray", false, "do not show the system tray icon")
}

// serve wires the pipeline, the server and the optional tray and blocks until
// ctx is cancelled or one of them fails.
func serve(ctx context.Context, cfg *config.Config) error {
	defer logger.Sync()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dbPath, err := cfg.DBPath()
	if err != nil {
		return err
	}
	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var publisher app.EventPublisher
	mqttPublisher := publish.NewPublisher(cfg.MQTT)
	if mqttPublisher.Enabled() {
		if err := mqttPublisher.Connect(ctx); err != nil {
			logger.WarnKV(ctx, "mqtt publisher disabled", "error", err)
		} else {
			publisher = mqttPublisher
			defer mqttPublisher.Disconnect()
		}
	}

	actions := newActions(ctx, cfg)
	if actions != nil {
		actions.Start(ctx)
		defer actions.Close()
	}

	var preview *server.Preview
	if cfg.Preview.Enabled {
		preview = server.NewPreview()
	}

	var gate *capture.MotionGate
	if cfg.Camera.MotionThreshold > 0 {
		gate = capture.NewMotionGate(cfg.Camera.MotionThreshold)
	}

	var t *tray.Tray
	if cfg.Tray.Enabled {
		t = tray.New()
	}

	appCfg := app.Config{
		Camera: capture.NewCamera(capture.Config{
			DeviceID: cfg.Camera.DeviceID,
			FPS:      cfg.Camera.FPS,
		}),
		Detector:       newDetector(ctx, cfg.Detector),
		Session:        cfg.SessionConfig(),
		Mirror:         cfg.Camera.Mirror,
		Gate:           gate,
		Store:          st,
		Preview:        preview,
		PreviewQuality: cfg.Preview.Quality,
	}
	if publisher != nil {
		appCfg.Publisher = publisher
	}
	if actions != nil {
		appCfg.Actions = actions
	}
	if t != nil {
		appCfg.OnShot = t.SetLastShot
		appCfg.OnRunning = t.SetRunning
	}

	hub := server.NewHub(nil)
	appCfg.Broadcaster = hub

	a := app.New(appCfg)
	hub.SetController(a)

	srv := server.New(server.Config{
		StaticDir: findWebDir(cfg.Server.StaticDir),
		Store:     st,
		Hub:       hub,
		Preview:   preview,
	})

	errCh := make(chan error, 2)
	run := func(fn func(context.Context) error) {
		err := fn(ctx)
		if err != nil {
			cancel()
		}
		errCh <- err
	}
	go run(a.Run)
	go run(func(ctx context.Context) error { return srv.Run(ctx, cfg.Server.Addr) })

	if t != nil {
		url := browserURL(cfg.Server.Addr)
		t.OnToggle(func(running bool) {
			var err error
			if running {
				err = a.Start(ctx)
			} else {
				err = a.Pause(ctx)
			}
			if err != nil {
				logger.ErrorKV(ctx, "toggle failed", "error", err)
			}
		})
		t.OnOpen(func() { openBrowser(ctx, url) })
		t.OnQuit(cancel)

		go func() {
			<-ctx.Done()
			t.Quit()
		}()

		// systray needs the main goroutine.
		t.Run()
		cancel()
	}

	var errs []error
	for i := 0; i < cap(errCh); i++ {
		errs = append(errs, <-errCh)
	}

	return errors.Join(errs...)
}

// newActions discovers the installed plugins and returns a dispatcher for the
// configured bindings, or nil when there is nothing to dispatch.
func newActions(ctx context.Context, cfg *config.Config) *plugin.Dispatcher {
	if len(cfg.Plugins.Bindings) == 0 {
		return nil
	}

	dir, err := cfg.PluginDir()
	if err != nil {
		logger.WarnKV(ctx, "plugin actions disabled", "error", err)
		return nil
	}

	manager := plugin.NewManager(dir)
	if err := manager.Discover(ctx); err != nil {
		logger.WarnKV(ctx, "plugin actions disabled", "dir", dir, "error", err)
		return nil
	}

	d, err := plugin.NewDispatcher(manager, plugin.NewExecutor(cfg.Plugins.Timeout), cfg.Plugins.Bindings)
	if err != nil {
		logger.WarnKV(ctx, "plugin actions disabled", "error", err)
		return nil
	}

	logger.InfoKV(ctx, "plugin actions enabled", "dir", dir, "plugins", len(manager.List()), "bindings", len(cfg.Plugins.Bindings))
	return d
}

// newDetector starts the MediaPipe landmark service, or falls back to a
// detector that never sees a hand so the server still comes up.
func newDetector(ctx context.Context, cfg detector.Config) detector.Detector {
	mp, err := detector.NewMediaPipeDetector(cfg)
	if err != nil {
		logger.WarnKV(ctx, "mediapipe not available, no hands will be detected", "error", err)
		return detector.NewMockDetector()
	}

	logger.InfoKV(ctx, "using mediapipe hand detection")
	return mp
}

// findWebDir returns dir when set, otherwise the first web directory found
// next to the working directory or in the data directory.
func findWebDir(dir string) string {
	if dir != "" {
		return dir
	}

	candidates := []string{"web", "../web", "../../web"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, config.DefaultDataDir, "web"))
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	return ""
}

// browserURL turns a listen address into a local URL.
func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// openBrowser opens url with the platform's default handler.
func openBrowser(ctx context.Context, url string) {
	var name string
	switch runtime.GOOS {
	case "darwin":
		name = "open"
	case "windows":
		name = "explorer"
	default:
		name = "xdg-open"
	}

	c := exec.Command(name, url)
	if err := c.Start(); err != nil {
		logger.WarnKV(ctx, "failed to open browser", "url", url, "error", err)
		return
	}
	go c.Wait() //nolint:errcheck // The opener exits on its own.
}
