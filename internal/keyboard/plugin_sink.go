package keyboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/posepad/internal/plugin"
)

// Plugin actions spoken by key injection plugins.
const (
	ActionHold    = "hold"
	ActionRelease = "release"
	ActionPress   = "press"
)

// ErrUnsupportedPlugin is returned when a plugin lacks the key actions.
var ErrUnsupportedPlugin = errors.New("plugin does not support key actions")

// KeyParams is the params payload of a key action request.
type KeyParams struct {
	Key string `json:"key"`
}

// PluginSink injects keys through a plugin executable. A persistent plugin
// runs as one long-lived process; any other plugin is started once per event,
// which costs a process spawn per key and suits occasional use rather than
// live play.
type PluginSink struct {
	tracked
	plugin *plugin.Plugin
	conn   *plugin.Conn
}

// NewPluginSink looks up the named plugin and checks that it speaks the key
// actions.
func NewPluginSink(mgr *plugin.Manager, exec *plugin.Executor, name string) (*PluginSink, error) {
	p, err := mgr.Get(name)
	if err != nil {
		return nil, err
	}
	for _, a := range []string{ActionHold, ActionRelease, ActionPress} {
		if !p.Supports(a) {
			return nil, fmt.Errorf("%w: %s lacks %q", ErrUnsupportedPlugin, name, a)
		}
	}

	s := &PluginSink{plugin: p}
	drv := pluginDriver{plugin: p}
	if p.Manifest.Persistent {
		s.conn = plugin.Dial(p, exec.Timeout())
		drv.send = s.conn.Call
	} else {
		drv.send = func(req *plugin.Request) (*plugin.Response, error) {
			return exec.Execute(context.Background(), p, req)
		}
	}
	s.drv = drv
	return s, nil
}

// Plugin returns the plugin the sink runs.
func (s *PluginSink) Plugin() *plugin.Plugin {
	return s.plugin
}

// Persistent reports whether the sink keeps the plugin process running.
func (s *PluginSink) Persistent() bool {
	return s.conn != nil
}

// Close stops a persistent plugin process. Held keys are not released.
func (s *PluginSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

type pluginDriver struct {
	plugin *plugin.Plugin
	send   func(*plugin.Request) (*plugin.Response, error)
}

func (d pluginDriver) call(action, key string) error {
	params, err := json.Marshal(KeyParams{Key: key})
	if err != nil {
		return err
	}

	resp, err := d.send(&plugin.Request{Action: action, Params: params})
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("%s %s: %w", action, key, err)
	}
	return nil
}

func (d pluginDriver) down(key string) error { return d.call(ActionHold, key) }
func (d pluginDriver) up(key string) error { return d.call(ActionRelease, key) }
func (d pluginDriver) tap(key string) error { return d.call(ActionPress, key) }
