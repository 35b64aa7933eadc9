// Package ui provides the system tray presentation shell. It renders
// engine snapshots; all sampling and accounting stays in the engine.
package ui

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"fyne.io/systray"

	"netgauge/internal/format"
	"netgauge/internal/meter"
)

var (
	// ErrTrayAlreadyRunning is returned when attempting to modify callbacks after Run() has been called.
	ErrTrayAlreadyRunning = errors.New("cannot modify callbacks after TrayIcon.Run() is called")
	// ErrTrayRunTwice is returned when Run() is called more than once.
	ErrTrayRunTwice = errors.New("TrayIcon.Run() called twice")
	// ErrTrayMissingCallbacks is returned when Run() is called without all required callbacks set.
	ErrTrayMissingCallbacks = errors.New("all callbacks (OnReset, OnQuit) must be set before calling Run()")
)

// TrayIcon manages the system tray entry: the title carries the live
// rate readout, the menu carries usage totals and actions.
type TrayIcon struct {
	mu sync.RWMutex

	// Menu items
	menuToday   *systray.MenuItem
	menuCycle   *systray.MenuItem
	menuAllTime *systray.MenuItem
	menuPeak    *systray.MenuItem
	menuReset *systray.MenuItem
	menuQuit  *systray.MenuItem

	// Callbacks - must be set before Run() is called
	onReset func()
	onQuit  func()

	// Done channel to signal goroutine termination
	done chan struct{}

	// Lifecycle flags
	running   bool
	closeOnce sync.Once
}

// NewTrayIcon creates a new system tray icon manager.
func NewTrayIcon() *TrayIcon {
	return &TrayIcon{
		done: make(chan struct{}),
	}
}

// OnReset registers a callback for when Reset Statistics is clicked.
// Must be called before Run(). Returns ErrTrayAlreadyRunning if called after Run().
func (t *TrayIcon) OnReset(callback func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTrayAlreadyRunning
	}
	t.onReset = callback
	return nil
}

// OnQuit registers a callback for when Quit is clicked.
// Must be called before Run(). Returns ErrTrayAlreadyRunning if called after Run().
func (t *TrayIcon) OnQuit(callback func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrTrayAlreadyRunning
	}
	t.onQuit = callback
	return nil
}

// SetSnapshot updates the tray title with the latest rate labels.
func (t *TrayIcon) SetSnapshot(s meter.RateSnapshot) {
	if !t.isRunning() {
		return
	}
	systray.SetTitle(fmt.Sprintf("↓ %s  ↑ %s", s.DownloadRateLabel, s.UploadRateLabel))
}

// SetUsage refreshes the totals shown in the menu.
func (t *TrayIcon) SetUsage(last24h, cycle, allTime meter.Totals, peakDown, peakUp float64, useSI bool) {
	t.mu.RLock()
	menuToday, menuCycle, menuAllTime, menuPeak := t.menuToday, t.menuCycle, t.menuAllTime, t.menuPeak
	t.mu.RUnlock()
	if menuToday == nil {
		return
	}

	menuToday.SetTitle(fmt.Sprintf("Last 24h: ↓ %s  ↑ %s",
		format.Total(last24h.Download, useSI),
		format.Total(last24h.Upload, useSI)))
	menuCycle.SetTitle(fmt.Sprintf("This cycle: ↓ %s  ↑ %s",
		format.Total(cycle.Download, useSI),
		format.Total(cycle.Upload, useSI)))
	menuAllTime.SetTitle(fmt.Sprintf("All time: ↓ %s  ↑ %s",
		format.Total(allTime.Download, useSI),
		format.Total(allTime.Upload, useSI)))
	menuPeak.SetTitle(fmt.Sprintf("Peak: ↓ %s  ↑ %s",
		format.Rate(uint64(peakDown), 1, false, useSI),
		format.Rate(uint64(peakUp), 1, false, useSI)))
}

// Run starts the system tray icon. This blocks until the tray is
// closed, so it usually owns the main goroutine. OnReset and OnQuit
// must be registered before calling Run().
func (t *TrayIcon) Run() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return ErrTrayRunTwice
	}

	if t.onReset == nil || t.onQuit == nil {
		t.mu.Unlock()
		return ErrTrayMissingCallbacks
	}

	t.running = true
	t.mu.Unlock()

	systray.Run(t.onReady, t.onExit)
	return nil
}

// Quit closes the system tray icon and terminates the click handler goroutine.
// Safe to call multiple times.
func (t *TrayIcon) Quit() {
	t.closeOnce.Do(func() {
		close(t.done)
		systray.Quit()
	})
}

func (t *TrayIcon) isRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// onReady is called when the tray is ready to be configured.
func (t *TrayIcon) onReady() {
	systray.SetTitle("↓ 0 B/s  ↑ 0 B/s")
	systray.SetTooltip("netgauge - network usage")

	t.mu.Lock()
	t.menuToday = systray.AddMenuItem("Last 24h: -", "Usage over the trailing 24 hours")
	t.menuToday.Disable()

	t.menuCycle = systray.AddMenuItem("This cycle: -", "Usage in the current billing cycle")
	t.menuCycle.Disable()

	t.menuAllTime = systray.AddMenuItem("All time: -", "Usage since first launch")
	t.menuAllTime.Disable()

	t.menuPeak = systray.AddMenuItem("Peak: -", "Peak rates since launch")
	t.menuPeak.Disable()

	systray.AddSeparator()

	t.menuReset = systray.AddMenuItem("Reset Statistics", "Clear usage history and totals")
	t.menuQuit = systray.AddMenuItem("Quit", "Quit the application")
	t.mu.Unlock()

	go t.handleMenuClicks()

	slog.Info("System tray initialized")
}

// onExit is called when the tray is being closed.
func (t *TrayIcon) onExit() {
	slog.Info("System tray closed")
}

// handleMenuClicks processes menu item clicks.
func (t *TrayIcon) handleMenuClicks() {
	for {
		select {
		case <-t.done:
			return
		case _, ok := <-t.menuReset.ClickedCh:
			if !ok {
				return
			}
			if t.onReset != nil {
				t.onReset()
			}
		case _, ok := <-t.menuQuit.ClickedCh:
			if !ok {
				return
			}
			if t.onQuit != nil {
				t.onQuit()
			}
		}
	}
}
