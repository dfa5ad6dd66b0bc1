// Package plugin discovers and runs out-of-process input plugins. A plugin is
// an executable that reads one JSON Request on stdin and answers with one JSON
// Response on stdout.
package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrActionFailed is returned by Response.Err when the plugin reported failure.
var ErrActionFailed = errors.New("plugin action failed")

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	// Persistent plugins stay running and take requests line by line when
	// started with ServeFlag.
	Persistent   bool            `json:"persistent,omitempty"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action string `json:"action"`
	// Trigger names the logical action that caused the request, such as "Walk".
	Trigger string          `json:"trigger,omitempty"`
	Config  json.RawMessage `json:"config,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Err converts an unsuccessful response into an error wrapping ErrActionFailed.
func (r *Response) Err() error {
	if r.Success {
		return nil
	}
	if r.Error == "" {
		return ErrActionFailed
	}
	return fmt.Errorf("%w: %s", ErrActionFailed, r.Error)
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the manifest lists action.
func (p *Plugin) Supports(action string) bool {
	for _, a := range p.Manifest.Actions {
		if a == action {
			return true
		}
	}
	return false
}
