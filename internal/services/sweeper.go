package services

import (
	"context"
	"fmt"
	"time"

	"freight-backend/internal/domain"
	"freight-backend/internal/metrics"
	"freight-backend/internal/repositories"
	"freight-backend/internal/utils"
)

const sweepBatch = 50

// HoldSweeper reclaims reservations that stayed AwaitingConfirmation past
// the hold TTL. Each hold is verified with the gateway before release so a
// late payment is authorized instead of discarded.
type HoldSweeper struct {
	Store     repositories.Store
	Reconcile ReconciliationService
	TTL       time.Duration
	Interval  time.Duration
	Now       func() time.Time
}

type SweepReport struct {
	Checked    int `json:"checked"`
	Authorized int `json:"authorized"`
	Released   int `json:"released"`
	Pending    int `json:"pending"`
	Errors     int `json:"errors"`
}

// Run sweeps every Interval until ctx is cancelled. A zero TTL disables it.
func (s HoldSweeper) Run(ctx context.Context) {
	if s.TTL <= 0 {
		utils.LogEvent("", "sweeper", "start", "hold sweeper disabled")
		return
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	utils.LogEvent("", "sweeper", "start", fmt.Sprintf("ttl=%s interval=%s", s.TTL, interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			utils.LogEvent("", "sweeper", "stop", "hold sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				utils.LogError("", "sweeper", "sweep", "sweep failed", err)
			}
		}
	}
}

// SweepOnce handles one batch of expired holds.
func (s HoldSweeper) SweepOnce(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	before := nowFn(s.Now).Add(-s.TTL)
	holds, err := s.Store.ListExpiredHolds(ctx, before, sweepBatch)
	if err != nil {
		return rep, err
	}

	for _, pt := range holds {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		rep.Checked++
		reqID := "sweep-" + pt.ID
		pctx := utils.WithRequestID(ctx, reqID)

		payment, err := s.Store.GetPaymentByPurchaseTrip(pctx, pt.ID)
		if err != nil {
			if !domain.IsNotFound(err) {
				rep.Errors++
				utils.LogError(reqID, "sweeper", "lookup", "payment for purchase_trip="+pt.ID, err)
				continue
			}
			// no payment was ever recorded: nothing to verify
			cr, cerr := s.Reconcile.Compensator.Cleanup(pctx, CleanupRequest{PurchaseTripID: pt.ID, Reason: ReasonHoldExpired})
			if cerr != nil {
				rep.Errors++
				utils.LogError(reqID, "sweeper", "cleanup", "purchase_trip="+pt.ID, cerr)
				continue
			}
			if cr.Cleaned > 0 {
				rep.Released++
				metrics.ExpiredHolds.Inc()
			}
			continue
		}

		out, err := s.Reconcile.verify(pctx, payment.PaystackReference, ReasonHoldExpired)
		if err != nil {
			rep.Errors++
			utils.LogWarn(reqID, "sweeper", "verify", "hold kept, verify failed: "+err.Error())
			continue
		}
		switch out.Action {
		case ActionAuthorized, ActionAlreadyProcessed:
			rep.Authorized++
		case ActionCleaned:
			rep.Released++
			metrics.ExpiredHolds.Inc()
		default:
			rep.Pending++
		}
	}

	if rep.Checked > 0 {
		utils.LogEvent("", "sweeper", "sweep", fmt.Sprintf("checked=%d authorized=%d released=%d pending=%d errors=%d",
			rep.Checked, rep.Authorized, rep.Released, rep.Pending, rep.Errors))
	}
	return rep, nil
}
