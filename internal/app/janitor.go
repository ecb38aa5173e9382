package app

import (
	"time"
)

// Default retention policy for session history.
const (
	DefaultRetentionSweep  = 180 * time.Second
	DefaultRetentionMaxAge = 600 * time.Second
)

// StartJanitor periodically removes sessions older than the configured
// retention age. It does nothing without a store.
func (a *App) StartJanitor() {
	if a.store == nil {
		return
	}

	a.mu.Lock()
	if a.janitorStop != nil {
		a.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	a.janitorStop = stop
	a.janitorDone = done
	a.mu.Unlock()

	sweep := a.config.RetentionSweep
	if sweep <= 0 {
		sweep = DefaultRetentionSweep
	}

	go func() {
		defer close(done)

		ticker := time.NewTicker(sweep)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				a.Sweep()
			}
		}
	}()

	a.log.Info("Retention janitor started (every %v, max age %v)", sweep, a.maxAge())
}

// StopJanitor stops the janitor and waits for it to exit.
func (a *App) StopJanitor() {
	a.mu.Lock()
	stop, done := a.janitorStop, a.janitorDone
	a.janitorStop, a.janitorDone = nil, nil
	a.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Sweep deletes expired sessions once and returns how many were removed.
func (a *App) Sweep() int64 {
	if a.store == nil {
		return 0
	}

	n, err := a.store.Sessions().DeleteOlderThan(time.Now().Add(-a.maxAge()))
	if err != nil {
		a.log.Error("Retention sweep failed: %v", err)
		return 0
	}
	if n > 0 {
		a.log.Info("Retention sweep removed %d sessions", n)
	}
	return n
}

func (a *App) maxAge() time.Duration {
	if a.config.RetentionMaxAge <= 0 {
		return DefaultRetentionMaxAge
	}
	return a.config.RetentionMaxAge
}
