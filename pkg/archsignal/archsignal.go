// Package archsignal implements the signal-management subsystem: a
// dedicated manager goroutine watches a fixed set of OS signals,
// dispatching each received signal to a mutex-guarded handler table
// and OR-ing the handlers' verdicts into a set of atomic flags.
//
// The manager goroutine owns the notification channel and polls a
// terminate flag on a short ticker, so it can shut down promptly
// without blocking indefinitely on signal delivery.
package archsignal

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Handler is a named signal-handler record: Fn is invoked on the
// manager goroutine (never in async-signal-handler context, so it may
// allocate and call arbitrary Go code) and returns whether the signal's
// flag should be set. Any state the handler needs is captured by the
// Fn closure.
type Handler struct {
	Fn func(sig os.Signal) bool
}

// Flags is the lock-free block of per-signal "observed" bits: the
// manager release-stores true after dispatching a signal; any thread
// may acquire-load a flag at any time. Keyed by os.Signal.String()
// since Go signals are not a small dense enum the way POSIX signal
// numbers are.
type Flags struct {
	mu    sync.RWMutex
	flags map[string]*atomic.Bool
}

func newFlags() *Flags {
	return &Flags{flags: map[string]*atomic.Bool{}}
}

func (f *Flags) slot(key string) *atomic.Bool {
	f.mu.RLock()
	b, ok := f.flags[key]
	f.mu.RUnlock()
	if ok {
		return b
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.flags[key]; ok {
		return b
	}
	b = &atomic.Bool{}
	f.flags[key] = b
	return b
}

// IsSet reports whether key's flag has been observed set.
func (f *Flags) IsSet(key string) bool { return f.slot(key).Load() }

// Set forces key's flag. A flag set by the manager stays set until a
// caller explicitly clears it with Set(key, false).
func (f *Flags) Set(key string, v bool) { f.slot(key).Store(v) }

// Management is the signal-management subsystem. Only one may exist
// per process, enforced by the active flag below.
type Management struct {
	log       *zap.SugaredLogger
	ch        chan os.Signal
	watch     []os.Signal
	flags     *Flags
	terminate atomic.Bool
	done      chan struct{}

	mu       sync.Mutex // guards handlers
	handlers map[string]Handler
}

var processActive atomic.Bool

// Start masks (via signal.Notify) and begins watching the given
// signals, spawning the manager goroutine. It returns an error if a
// Management subsystem is already active in this process.
func Start(watch []os.Signal, log *zap.SugaredLogger) (*Management, error) {
	if !processActive.CompareAndSwap(false, true) {
		return nil, errAlreadyActive
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	m := &Management{
		log:      log,
		ch:       make(chan os.Signal, 16),
		watch:    watch,
		flags:    newFlags(),
		done:     make(chan struct{}),
		handlers: map[string]Handler{},
	}

	signal.Notify(m.ch, watch...)
	go m.run()
	return m, nil
}

func (m *Management) run() {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case sig := <-m.ch:
			m.dispatch(sig)
		case <-ticker.C:
			if m.terminate.Load() {
				close(m.done)
				return
			}
		}
	}
}

// dispatch acquires the handler-table lock, calls every registered
// handler with sig, and sets sig's flag if the OR of all verdicts is
// true.
func (m *Management) dispatch(sig os.Signal) {
	m.mu.Lock()
	verdict := false
	for name, h := range m.handlers {
		if h.Fn == nil {
			continue
		}
		if h.Fn(sig) {
			verdict = true
		}
		m.log.Debugw("signal handler invoked", "signal", sig.String(), "handler", name)
	}
	m.mu.Unlock()

	if verdict {
		m.flags.Set(sig.String(), true)
	}
}

// Flags returns the flag block for reading from any thread.
func (m *Management) Flags() *Flags { return m.flags }

// RegisterHandler installs or replaces the named handler.
func (m *Management) RegisterHandler(name string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = h
	m.log.Debugw("signal handler registered", "handler", name)
}

// UnregisterHandler removes the named handler, if present.
func (m *Management) UnregisterHandler(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, name)
}

// Stop sets the terminate flag, waits for the manager goroutine to
// exit, stops signal notification (restoring default OS disposition,
// the nearest Go equivalent of "restore the original signal mask"),
// and releases the process-wide singleton slot.
func (m *Management) Stop() {
	m.terminate.Store(true)
	<-m.done
	signal.Stop(m.ch)
	m.mu.Lock()
	m.handlers = map[string]Handler{}
	m.mu.Unlock()
	processActive.Store(false)
}

type archsignalError string

func (e archsignalError) Error() string { return string(e) }

var errAlreadyActive = archsignalError("archsignal: a signal-management subsystem is already active in this process")
