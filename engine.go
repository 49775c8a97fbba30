package goTokens

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goTokens/store"
	"github.com/MrEthical07/goTokens/token"
)

// Engine defines a public type used by goTokens APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config  Config
	codec   *token.Manager
	store   store.Store
	audit   *auditDispatcher
	metrics *Metrics

	reconcilerRunning atomic.Bool
	reconcilerCancel  context.CancelFunc
	reconcilerWG      sync.WaitGroup
	reconcilerMu      sync.Mutex
}

// Close stops the expiry reconciler (if running) and drains the audit
// dispatcher. Safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}

	e.reconcilerMu.Lock()
	cancel := e.reconcilerCancel
	e.reconcilerCancel = nil
	e.reconcilerMu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.reconcilerWG.Wait()

	if e.audit != nil {
		e.audit.Close()
	}
}

// Ping probes revocation store availability.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.store.Ping(ctx); err != nil {
		return e.storeUnavailable(err)
	}
	return nil
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// storeUnavailable maps an infrastructure failure to the public sentinel.
// Business outcomes (ErrQuotaExceeded, ErrRecordMissing) never pass through
// here; callers branch on them first.
func (e *Engine) storeUnavailable(err error) error {
	e.metricInc(MetricStoreUnavailable)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
