// Package tray provides the system tray menu for switching emulation on and off.
package tray

import (
	"strings"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/posepad/internal/emulator"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool) error
	onSettings func()
	onQuit     func()
	enabled    bool
	lastAction string
	holding    string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle  *systray.MenuItem
	menuLast    *systray.MenuItem
	menuHolding *systray.MenuItem
}

// New creates a Tray showing the given initial enabled state.
func New(enabled bool) *Tray {
	return &Tray{enabled: enabled}
}

// OnToggle sets the callback run when the user flips the enabled item. When
// it returns an error the menu keeps the previous state.
func (t *Tray) OnToggle(fn func(enabled bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("PosePad")
	systray.SetTooltip("PosePad pose-driven keyboard")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle keyboard emulation")
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(lastTitle(t.lastAction), "Last key command")
	t.menuLast.Disable()
	t.menuHolding = systray.AddMenuItem(holdingTitle(t.holding), "Keys currently held")
	t.menuHolding.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit PosePad")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	want := !t.enabled
	callback := t.onToggle
	t.mu.RUnlock()

	// The callback may report back through SetEnabled, so run it unlocked.
	if callback != nil {
		if err := callback(want); err != nil {
			return
		}
	}
	t.SetEnabled(want)
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetEnabled updates the toggle to reflect the emulation state.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// Observe updates the menu from a processed frame. It is cheap enough to be
// registered as a step observer.
func (t *Tray) Observe(step emulator.StepResult) {
	last := ""
	if n := len(step.Commands); n > 0 {
		last = step.Commands[n-1].String()
	}
	holding := joinActions(step.Session.Holding)

	t.mu.Lock()
	defer t.mu.Unlock()

	if last != "" && last != t.lastAction {
		t.lastAction = last
		if t.menuLast != nil {
			t.menuLast.SetTitle(lastTitle(last))
		}
	}
	if holding != t.holding {
		t.holding = holding
		if t.menuHolding != nil {
			t.menuHolding.SetTitle(holdingTitle(holding))
		}
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// LastAction returns the most recent command shown in the menu.
func (t *Tray) LastAction() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastAction
}

// Holding returns the held actions shown in the menu.
func (t *Tray) Holding() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.holding
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func lastTitle(action string) string {
	if action == "" {
		return "Last: none"
	}
	return "Last: " + action
}

func holdingTitle(holding string) string {
	if holding == "" {
		return "Holding: nothing"
	}
	return "Holding: " + holding
}

func joinActions(actions []emulator.Action) string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return strings.Join(names, ", ")
}
