// Package heartbeat keeps an in-flight SQS message invisible to other
// consumers while a long-running unit of work is processed.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/junksamiad/template-sender-engine-sub000/internal/logger"
)

// stopGrace is added to the interval when Stop waits for the loop to exit.
const stopGrace = 5 * time.Second

// VisibilityExtender renews the lease on one message.
type VisibilityExtender interface {
	ExtendVisibility(ctx context.Context, queueURL, receiptHandle string, extendBy time.Duration) error
}

// Extender runs one background loop per message. It is not reusable: create a
// new Extender for every delivery.
type Extender struct {
	api      VisibilityExtender
	queueURL string
	log      *logger.Logger
	observe  func(err error)

	mu       sync.Mutex
	started  bool
	running  bool
	err      error
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

type Option func(*Extender)

// WithObserver registers a callback invoked after every extension attempt.
func WithObserver(fn func(err error)) Option {
	return func(e *Extender) { e.observe = fn }
}

func New(api VisibilityExtender, queueURL string, log *logger.Logger, opts ...Option) *Extender {
	if log == nil {
		log = logger.Nop()
	}
	e := &Extender{
		api:      api,
		queueURL: queueURL,
		log:      log.With("component", "Heartbeat"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins extending the lease every interval. It returns immediately.
func (e *Extender) Start(leaseToken string, extendBy, interval time.Duration) error {
	switch {
	case leaseToken == "":
		return errors.New("heartbeat: lease token is required")
	case e.queueURL == "":
		return errors.New("heartbeat: queue url is required")
	case e.api == nil:
		return errors.New("heartbeat: visibility extender is required")
	case interval <= 0:
		return fmt.Errorf("heartbeat: interval must be positive, got %s", interval)
	case extendBy <= 0:
		return fmt.Errorf("heartbeat: extend duration must be positive, got %s", extendBy)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errors.New("heartbeat: already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.started = true
	e.running = true
	e.interval = interval
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.loop(ctx, leaseToken, extendBy, interval)
	return nil
}

func (e *Extender) loop(ctx context.Context, leaseToken string, extendBy, interval time.Duration) {
	defer close(e.done)
	defer e.setRunning(false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			err := e.api.ExtendVisibility(ctx, e.queueURL, leaseToken, extendBy)
			if err != nil && ctx.Err() != nil {
				// cancelled by Stop mid-call
				return
			}
			if e.observe != nil {
				e.observe(err)
			}
			if err != nil {
				e.log.Warn("Visibility extension failed, heartbeat stopping", "error", err)
				e.mu.Lock()
				if e.err == nil {
					e.err = err
				}
				e.mu.Unlock()
				return
			}
			e.log.Debug("Visibility extended", "extend_by", extendBy.String())
		}
	}
}

func (e *Extender) setRunning(v bool) {
	e.mu.Lock()
	e.running = v
	e.mu.Unlock()
}

// Stop signals the loop to exit and waits for it, at most interval plus a
// short grace. Safe to call repeatedly or without Start.
func (e *Extender) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	cancel, done, wait := e.cancel, e.done, e.interval+stopGrace
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(wait):
		e.log.Warn("Heartbeat did not stop in time", "wait", wait.String())
	}
}

// Err returns the first extension error seen by the loop, or nil.
func (e *Extender) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Running reports whether the loop is alive and has not stopped itself.
func (e *Extender) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
