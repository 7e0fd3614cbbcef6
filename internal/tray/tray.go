// Package tray provides the system tray menu for Magic Candle.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/magiccandle/internal/blow"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuLastBlow *systray.MenuItem
	menuStatus   *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
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
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	// Set the tray title and tooltip
	systray.SetTitle("Magic Candle")
	systray.SetTooltip("Magic Candle blow detection")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle blow detection")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(statusTitle(blow.PhaseIdle), "Candle state")
	t.menuStatus.Disable()
	t.menuLastBlow = systray.AddMenuItem(LastBlowTitle(nil), "Last detected blow")
	t.menuLastBlow.Disable()
	systray.AddSeparator()
	t.mu.Unlock()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Magic Candle")

	// Handle menu item clicks in a separate goroutine
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

// onExit is called when the system tray is about to exit.
// It performs cleanup tasks.
func (t *Tray) onExit() {
	// Cleanup resources if needed
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
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

// HandleEvent updates the menu for a detector event.
func (t *Tray) HandleEvent(ev blow.Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	switch ev.Kind {
	case blow.EventBlowDetected:
		if t.menuLastBlow != nil {
			t.menuLastBlow.SetTitle(LastBlowTitle(&ev))
		}
		if t.menuStatus != nil {
			t.menuStatus.SetTitle(statusTitle(blow.PhaseBlown))
		}
	case blow.EventResetRequested:
		if t.menuStatus != nil {
			t.menuStatus.SetTitle(statusTitle(blow.PhaseIdle))
		}
	}
}

// SetEnabled syncs the toggle with a change made elsewhere, such as the API.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// LastBlowTitle formats the last-blow menu entry.
func LastBlowTitle(ev *blow.Event) string {
	if ev == nil {
		return "Last: none"
	}
	return fmt.Sprintf("Last: Blow #%d at %s", ev.Count, ev.At.Local().Format("15:04:05"))
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func statusTitle(p blow.Phase) string {
	if p == blow.PhaseBlown {
		return "Candle: blown out"
	}
	return "Candle: lit"
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Quit closes the tray from outside the menu, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}
