// Package config resolves runtime settings for the posepad command from
// defaults, environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ayusman/posepad/internal/capture"
)

// Sink kinds.
const (
	SinkRobot  = "robot"
	SinkPlugin = "plugin"
)

// Defaults.
const (
	DefaultAddr     = ":8080"
	DefaultLogLevel = "info"
	DefaultDirName  = ".posepad"
	DatabaseName    = "posepad.db"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config holds everything the command needs to start.
type Config struct {
	CameraID        int
	FPS             int
	Addr            string
	DataDir         string
	Sink            string
	PluginDir       string
	WebDir          string
	LogLevel        string
	Handedness      string
	MotionThreshold float64
	Mirror          bool
	Tray            bool
}

// Default returns the built-in configuration. The data directory lives under
// the user's home when it can be found.
func Default() Config {
	dataDir := DefaultDirName
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, DefaultDirName)
	}

	return Config{
		CameraID:   0,
		FPS:        capture.DefaultFPS,
		Addr:       DefaultAddr,
		DataDir:    dataDir,
		Sink:       SinkRobot,
		PluginDir:  "plugins",
		LogLevel:   DefaultLogLevel,
		Handedness: "Left",
		Tray:       true,
	}
}

// DatabasePath returns the SQLite file inside DataDir.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, DatabaseName)
}

// Load builds a Config from defaults, then the environment, then args.
func Load(args []string) (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.parseFlags(args); err != nil {
		return Config{}, err
	}
	cfg.Sink = strings.ToLower(strings.TrimSpace(cfg.Sink))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, name, v, err)
		}
		*dst = n
		return nil
	}

	if err := num("POSEPAD_CAMERA", &c.CameraID); err != nil {
		return err
	}
	if err := num("POSEPAD_FPS", &c.FPS); err != nil {
		return err
	}
	str("POSEPAD_ADDR", &c.Addr)
	str("POSEPAD_DATA_DIR", &c.DataDir)
	str("POSEPAD_SINK", &c.Sink)
	str("POSEPAD_PLUGIN_DIR", &c.PluginDir)
	str("POSEPAD_WEB_DIR", &c.WebDir)
	str("POSEPAD_HAND", &c.Handedness)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("POSEPAD_MOTION"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: POSEPAD_MOTION=%q: %w", ErrInvalid, v, err)
		}
		c.MotionThreshold = f
	}
	for name, dst := range map[string]*bool{"POSEPAD_TRAY": &c.Tray, "POSEPAD_MIRROR": &c.Mirror} {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalid, name, v, err)
		}
		*dst = b
	}
	return nil
}

func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("posepad", flag.ContinueOnError)
	fs.IntVar(&c.CameraID, "camera", c.CameraID, "Camera device index")
	fs.IntVar(&c.FPS, "fps", c.FPS, "Capture rate in frames per second")
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "Directory for the database")
	fs.StringVar(&c.Sink, "sink", c.Sink, "Key sink: robot or plugin")
	fs.StringVar(&c.PluginDir, "plugin-dir", c.PluginDir, "Directory holding plugin executables")
	fs.StringVar(&c.WebDir, "web-dir", c.WebDir, "Directory of static settings pages")
	fs.StringVar(&c.Handedness, "hand", c.Handedness, "Hand that drives hand actions: Left or Right")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn, error")
	fs.Float64Var(&c.MotionThreshold, "motion", c.MotionThreshold, "Skip detection on frames with less than this percent change (0 disables)")
	fs.BoolVar(&c.Mirror, "mirror", c.Mirror, "Flip camera frames horizontally")
	fs.BoolVar(&c.Tray, "tray", c.Tray, "Show the system tray menu")
	return fs.Parse(args)
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch {
	case c.FPS <= 0:
		return fmt.Errorf("%w: fps must be positive, got %d", ErrInvalid, c.FPS)
	case c.CameraID < 0:
		return fmt.Errorf("%w: camera must not be negative, got %d", ErrInvalid, c.CameraID)
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: address is empty", ErrInvalid)
	case c.DataDir == "":
		return fmt.Errorf("%w: data directory is empty", ErrInvalid)
	case c.MotionThreshold < 0 || c.MotionThreshold > 100:
		return fmt.Errorf("%w: motion threshold must be within 0-100, got %g", ErrInvalid, c.MotionThreshold)
	case c.Handedness != "Left" && c.Handedness != "Right":
		return fmt.Errorf("%w: hand must be Left or Right, got %q", ErrInvalid, c.Handedness)
	}

	switch c.Sink {
	case SinkRobot:
	case SinkPlugin:
		if c.PluginDir == "" {
			return fmt.Errorf("%w: plugin sink needs a plugin directory", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown sink %q", ErrInvalid, c.Sink)
	}
	return nil
}
