package goTokens

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// A subscription that survives this long is considered healthy, so the
// resubscribe backoff restarts from its minimum delay.
const reconcilerHealthyAfter = 30 * time.Second

const reconcilerDeindexTimeout = 5 * time.Second

// StartReconciler launches the background expiry reconciler: a long-lived
// subscriber over the store's expired-record notifications that removes each
// expired token ID from its subject's index. It returns once the goroutine
// is running; the reconciler stops when ctx is canceled or [Engine.Close] is
// called. Lost subscriptions trigger resubscription with exponential
// backoff. Starting twice without stopping reports [ErrReconcilerRunning].
func (e *Engine) StartReconciler(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if !e.reconcilerRunning.CompareAndSwap(false, true) {
		return ErrReconcilerRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.reconcilerMu.Lock()
	e.reconcilerCancel = cancel
	e.reconcilerMu.Unlock()

	if err := e.store.EnableExpiryNotifications(runCtx); err != nil {
		// The server may already be configured, or CONFIG may be disabled.
		log.Print("goTokens: could not enable keyspace expiry notifications")
	}

	e.reconcilerWG.Add(1)
	go func() {
		defer e.reconcilerWG.Done()
		defer e.reconcilerRunning.Store(false)
		e.runReconciler(runCtx)
	}()

	return nil
}

func (e *Engine) runReconciler(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.config.Reconciler.ResubscribeMinDelay
	bo.MaxInterval = e.config.Reconciler.ResubscribeMaxDelay

	for {
		started := time.Now()
		_ = e.store.ConsumeExpiryEvents(ctx, e.reconcileExpiredRecord, e.dropMalformedExpiryKey)
		if ctx.Err() != nil {
			return
		}

		if time.Since(started) > reconcilerHealthyAfter {
			bo.Reset()
		}
		wait := bo.NextBackOff()

		log.Print("goTokens: expiry subscription lost, resubscribing")
		e.metricInc(MetricReconcilerResubscribed)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) reconcileExpiredRecord(subjectID, tokenID string) {
	ctx, cancel := context.WithTimeout(context.Background(), reconcilerDeindexTimeout)
	defer cancel()

	if err := e.store.DeindexRefresh(ctx, subjectID, tokenID); err != nil {
		// The register script re-prunes stale entries, so a missed deindex
		// cannot leak quota.
		log.Print("goTokens: deindex of expired refresh record failed")
		e.metricInc(MetricStoreUnavailable)
		return
	}

	e.metricInc(MetricExpiryReconciled)
	e.emitAudit(ctx, auditEventRefreshExpiredReconciled, true, subjectID, tokenID, nil, nil)
}

func (e *Engine) dropMalformedExpiryKey(string) {
	log.Print("goTokens: dropping unparseable expired record key")
	e.metricInc(MetricExpiryParseDropped)
}
