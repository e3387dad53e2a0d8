// Package sync bridges session changes into the Bubble Tea runtime so every
// view sees logins and logouts, including ones made from another process
// sharing the same session backend.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/bugtracker/internal/model"
	"github.com/nhle/bugtracker/internal/session"
)

// SessionChangedMsg is a tea.Msg sent whenever the session changes.
type SessionChangedMsg struct {
	Session model.Session
	Reason  session.Reason
}

// DefaultInterval is how often the backend is re-read for changes made by
// other processes.
const DefaultInterval = 5 * time.Second

const reloadTimeout = 5 * time.Second

// Watcher forwards session events to the UI. It also periodically reloads
// the backend so a logout in another terminal is noticed.
type Watcher struct {
	sessions *session.Manager
	interval time.Duration
	log      *zap.Logger

	resultCh    chan SessionChangedMsg
	stopCh      chan struct{}
	unsubscribe func()

	mu      gosync.Mutex
	running bool
}

// New creates a Watcher. An interval of zero disables reloading.
func New(sessions *session.Manager, interval time.Duration, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		sessions: sessions,
		interval: interval,
		log:      log,
		resultCh: make(chan SessionChangedMsg, 8),
		stopCh:   make(chan struct{}),
	}
}

// Start subscribes to the session manager and returns a command waiting for
// the first change. Calling Start while running returns nil; a stopped
// Watcher can be started again.
func (w *Watcher) Start() tea.Cmd {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	stop := w.stopCh
	events, unsubscribe := w.sessions.Subscribe()
	w.unsubscribe = unsubscribe
	w.mu.Unlock()

	go w.forward(events)
	if w.interval > 0 {
		go w.reloadLoop(stop)
	}

	return w.waitForResult()
}

// Stop ends the subscription and the reload loop.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopCh)
	w.unsubscribe()
	w.running = false
}

// WaitForNext returns a command waiting for the next change. Call it after
// handling a SessionChangedMsg to keep listening.
func (w *Watcher) WaitForNext() tea.Cmd {
	return w.waitForResult()
}

func (w *Watcher) forward(events <-chan session.Event) {
	for ev := range events {
		select {
		case w.resultCh <- SessionChangedMsg{Session: ev.Session, Reason: ev.Reason}:
		default:
			w.log.Warn("dropping session change", zap.String("reason", string(ev.Reason)))
		}
	}
}

// reloadLoop re-reads the backend. The manager only publishes a load event
// when the stored session differs from the one in memory.
func (w *Watcher) reloadLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
			if err := w.sessions.Reload(ctx); err != nil {
				w.log.Debug("session reload failed", zap.Error(err))
			}
			cancel()
		}
	}
}

func (w *Watcher) waitForResult() tea.Cmd {
	w.mu.Lock()
	stop := w.stopCh
	w.mu.Unlock()

	return func() tea.Msg {
		select {
		case msg := <-w.resultCh:
			return msg
		case <-stop:
			return nil
		}
	}
}
