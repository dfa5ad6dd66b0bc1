package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/posepad/internal/app"
	"github.com/ayusman/posepad/internal/config"
	"github.com/ayusman/posepad/internal/emulator"
	"github.com/ayusman/posepad/internal/keyboard"
	"github.com/ayusman/posepad/internal/log"
	"github.com/ayusman/posepad/internal/plugin"
	"github.com/ayusman/posepad/internal/server"
	"github.com/ayusman/posepad/internal/store"
	"github.com/ayusman/posepad/internal/tray"
)

const (
	keyboardPlugin  = "keyboard"
	pluginTimeout   = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.Init(cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.Error("posepad failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sink, err := newSink(cfg)
	if err != nil {
		return err
	}

	a, err := app.New(app.Config{
		Store:           st,
		Sink:            sink,
		CameraID:        cfg.CameraID,
		Mirror:          cfg.Mirror,
		FPS:             cfg.FPS,
		Handedness:      cfg.Handedness,
		MotionThreshold: cfg.MotionThreshold,
	})
	if err != nil {
		return err
	}
	if _, err := a.LoadTemplates(); err != nil {
		log.Warn("continuing without stored templates", "error", err)
	}

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		log.Info("serving static files", "dir", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Matcher:    a.Matcher(),
		Controller: a,
		OnBindings: func(b emulator.Bindings) {
			if err := a.SetBindings(b); err != nil {
				log.Error("failed to apply bindings", "error", err)
			}
		},
	})
	a.OnStep(srv.Events().Publish)
	a.OnStateChange(func(enabled bool, err error) {
		if err != nil {
			log.Error("emulation switched off", "error", err)
		}
	})

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.Addr)
		serveErr <- srv.ListenAndServe(cfg.Addr)
	}()

	if on, err := st.Settings().Bool(store.SettingEnabled, false); err != nil {
		log.Warn("failed to read enabled flag", "error", err)
	} else if on {
		if err := a.SetEnabled(true); err != nil {
			log.Error("failed to resume emulation", "error", err)
		}
	}

	var runErr error
	if cfg.Tray {
		runErr = runTray(ctx, cancel, a, settingsURL(cfg.Addr), serveErr)
	} else {
		select {
		case <-ctx.Done():
		case runErr = <-serveErr:
		}
	}

	log.Info("shutting down")
	if err := a.Close(); err != nil {
		log.Warn("error stopping emulation", "error", err)
	}
	if r, ok := sink.(interface{ ReleaseAll() error }); ok {
		if err := r.ReleaseAll(); err != nil {
			log.Warn("failed to release keys", "error", err)
		}
	}
	if c, ok := sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Warn("failed to stop key plugin", "error", err)
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}

	return runErr
}

// runTray blocks in the tray loop until the user quits, a signal arrives or
// the server fails.
func runTray(ctx context.Context, cancel context.CancelFunc, a *app.App, url string, serveErr <-chan error) error {
	t := tray.New(a.Enabled())
	t.OnToggle(a.SetEnabled)
	t.OnSettings(func() { openBrowser(url) })
	t.OnQuit(cancel)
	a.OnStep(t.Observe)
	a.OnStateChange(func(enabled bool, _ error) { t.SetEnabled(enabled) })

	failed := make(chan error, 1)
	go func() {
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			failed <- err
		}
		t.Quit()
	}()

	t.Run()
	cancel()

	select {
	case err := <-failed:
		return err
	default:
		return nil
	}
}

func newSink(cfg config.Config) (emulator.Sink, error) {
	switch cfg.Sink {
	case config.SinkPlugin:
		mgr := plugin.NewManager(cfg.PluginDir)
		if err := mgr.Discover(); err != nil {
			return nil, fmt.Errorf("discover plugins: %w", err)
		}
		sink, err := keyboard.NewPluginSink(mgr, plugin.NewExecutor(pluginTimeout), keyboardPlugin)
		if err != nil {
			return nil, err
		}
		log.Info("injecting keys through plugin", "path", sink.Plugin().Path, "persistent", sink.Persistent())
		return sink, nil
	case config.SinkRobot:
		return keyboard.NewRobot(), nil
	default:
		return nil, errors.New("unknown sink " + cfg.Sink)
	}
}

func settingsURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("failed to open browser", "url", url, "error", err)
		return
	}
	go cmd.Wait()
}

// findWebDir searches for the settings pages next to the working directory
// and in the data directory. It returns "" when none exist.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
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
