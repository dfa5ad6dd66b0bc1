// Package main provides the keyboard plugin. It reads one request on stdin,
// injects the key event through robotgo and answers on stdout. Started with
// --serve it keeps running and answers one request per line until stdin
// closes.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-vgo/robotgo"

	"github.com/ayusman/posepad/internal/keyboard"
	"github.com/ayusman/posepad/internal/plugin"
)

// KeystrokeParams defines parameters for the keystroke action.
type KeystrokeParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, alt, ctrl, shift
}

// injector is the OS key layer.
type injector interface {
	Toggle(key, dir string) error
	Tap(key string, modifiers ...string) error
}

type robot struct{}

func (robot) Toggle(key, dir string) error {
	return robotgo.KeyToggle(key, dir)
}

func (robot) Tap(key string, modifiers ...string) error {
	args := make([]interface{}, len(modifiers))
	for i, m := range modifiers {
		args[i] = m
	}
	return robotgo.KeyTap(key, args...)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == plugin.ServeFlag {
		if err := serveLines(os.Stdin, os.Stdout, robot{}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	resp := serve(os.Stdin, robot{})
	json.NewEncoder(os.Stdout).Encode(resp)
}

// serve decodes one request from r and runs it against inj.
func serve(r io.Reader, inj injector) plugin.Response {
	var req plugin.Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return failure(fmt.Errorf("failed to decode request: %w", err))
	}
	return respond(req, inj)
}

// serveLines answers every request line from r on w until r is exhausted.
// A line that is not JSON gets a failure reply and the loop goes on.
func serveLines(r io.Reader, w io.Writer, inj injector) error {
	scanner := bufio.NewScanner(r)
	enc := json.NewEncoder(w)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var resp plugin.Response
		var req plugin.Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp = failure(fmt.Errorf("failed to decode request: %w", err))
		} else {
			resp = respond(req, inj)
		}
		if err := enc.Encode(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func respond(req plugin.Request, inj injector) plugin.Response {
	if err := handle(req, inj); err != nil {
		return failure(fmt.Errorf("action %s failed: %w", req.Action, err))
	}
	return plugin.Response{Success: true}
}

func handle(req plugin.Request, inj injector) error {
	switch req.Action {
	case keyboard.ActionHold, keyboard.ActionRelease, keyboard.ActionPress:
		var p keyboard.KeyParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return fmt.Errorf("failed to parse params: %w", err)
		}
		key, err := keyboard.Normalize(p.Key)
		if err != nil {
			return err
		}
		switch req.Action {
		case keyboard.ActionHold:
			return inj.Toggle(key, "down")
		case keyboard.ActionRelease:
			return inj.Toggle(key, "up")
		default:
			return inj.Tap(key)
		}
	case "keystroke", "shortcut":
		return handleKeystroke(req.Params, inj)
	default:
		return fmt.Errorf("unknown action: %s", req.Action)
	}
}

// handleKeystroke taps a key with optional modifiers held.
func handleKeystroke(params json.RawMessage, inj injector) error {
	var p KeystrokeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("failed to parse params: %w", err)
	}

	key, err := keyboard.Normalize(p.Key)
	if err != nil {
		return errors.New("key is required")
	}

	var mods []string
	for _, m := range p.Modifiers {
		if m, err := keyboard.Normalize(m); err == nil {
			mods = append(mods, m)
		}
	}
	return inj.Tap(key, mods...)
}

func failure(err error) plugin.Response {
	return plugin.Response{Success: false, Error: err.Error()}
}
