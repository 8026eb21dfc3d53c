/*
scheduler.go - Automated planned debit generation

PURPOSE:
  Periodically generates planned debit records for the upcoming month:
  every active contract configuration gets its date computed and persisted
  ahead of time, so billing always finds next month's dates ready.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Iterates organisations with active contract configurations
  - Skips contracts that already have a planned debit targeting the month
    (keyed on the original target date, since shifting can move the final
    date into an adjacent month)
  - A failing contract never blocks the rest of the run

CONFIGURATION:
  - CheckInterval: How often to check (default: 24 hours)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewGenerationScheduler(store, engine, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - calendar/planned.go: The record this scheduler produces
  - handlers.go: CreatePlannedDebit (manual, single-contract path),
    TriggerGeneration and SchedulerStatus (admin endpoints over RunNow)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/debit-engine/calendar"
	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/store/sqlite"
)

// GenerationScheduler pre-computes next month's planned debits.
type GenerationScheduler struct {
	Store         *sqlite.Store
	Engine        *calendar.Engine
	Log           *logrus.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// GenerationSummary reports one run over one organisation's contracts.
type GenerationSummary struct {
	OrganisationID string `json:"organisationId"`
	Generated      int    `json:"generated"`
	Skipped        int    `json:"skipped"`
	Failed         int    `json:"failed"`
}

// NewGenerationScheduler creates a scheduler. Call Start to begin.
func NewGenerationScheduler(store *sqlite.Store, engine *calendar.Engine, log *logrus.Logger) *GenerationScheduler {
	if log == nil {
		log = logrus.New()
	}
	return &GenerationScheduler{
		Store:         store,
		Engine:        engine,
		Log:           log,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (gs *GenerationScheduler) Start() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if !gs.Enabled {
		gs.Log.Info("generation scheduler disabled, not starting")
		return
	}

	gs.ticker = time.NewTicker(gs.CheckInterval)
	gs.wg.Add(1)

	go gs.run()

	gs.Log.WithField("interval", gs.CheckInterval).Info("generation scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (gs *GenerationScheduler) Stop() {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if gs.ticker != nil {
		gs.ticker.Stop()
		close(gs.stop)
		gs.wg.Wait()
		gs.Log.Info("generation scheduler stopped")
	}
}

func (gs *GenerationScheduler) run() {
	defer gs.wg.Done()

	// Run immediately on start
	gs.generateUpcoming()

	for {
		select {
		case <-gs.ticker.C:
			gs.generateUpcoming()
		case <-gs.stop:
			return
		}
	}
}

// generateUpcoming covers the month after the current one.
func (gs *GenerationScheduler) generateUpcoming() {
	ctx := context.Background()
	target := time.Now().UTC().AddDate(0, 1, 0)

	orgs, err := gs.Store.ListContractOrganisations(ctx)
	if err != nil {
		gs.Log.WithError(err).Error("scheduler: listing organisations failed")
		return
	}

	for _, org := range orgs {
		summary, err := gs.GenerateForMonth(ctx, org, target.Year(), target.Month())
		if err != nil {
			gs.Log.WithError(err).WithField("organisationId", org).Error("scheduler: generation run failed")
			continue
		}
		if summary.Generated > 0 || summary.Failed > 0 {
			gs.Log.WithFields(logrus.Fields{
				"organisationId": org,
				"month":          target.Format("2006-01"),
				"generated":      summary.Generated,
				"skipped":        summary.Skipped,
				"failed":         summary.Failed,
			}).Info("scheduler: generation run completed")
		}
	}
}

// GenerateForMonth computes and persists planned debits for every active
// contract configuration in one organisation, skipping contracts that
// already have a record for the target month. Coverage is keyed on the
// original target date: shifting can move the planned date into an
// adjacent month, and a record must still count for the month it targets.
// Amounts stay zero: billing attaches them at execution time.
func (gs *GenerationScheduler) GenerateForMonth(ctx context.Context, organisationID string, year int, month time.Month) (*GenerationSummary, error) {
	summary := &GenerationSummary{OrganisationID: organisationID}

	existing, err := gs.Store.ListPlannedDebitsForTarget(ctx, organisationID, year, month)
	if err != nil {
		return nil, err
	}
	covered := make(map[string]bool, len(existing))
	for _, pd := range existing {
		covered[pd.ContratID] = true
	}

	contracts, err := gs.Store.ListContractConfigs(ctx, organisationID)
	if err != nil {
		return nil, err
	}

	for _, cc := range contracts {
		if cc.Status != config.StatusActive || covered[cc.ContratID] {
			summary.Skipped++
			continue
		}

		result, err := gs.Engine.CalculatePlannedDate(ctx, calendar.Input{
			Keys: config.Keys{
				OrganisationID: organisationID,
				ContratID:      cc.ContratID,
			},
			TargetMonth: month,
			TargetYear:  year,
		})
		if err != nil {
			summary.Failed++
			gs.Log.WithError(err).WithField("contratId", cc.ContratID).Warn("scheduler: date computation failed")
			continue
		}

		pd, err := calendar.NewPlannedDebit(organisationID, cc.ContratID, decimal.Zero, result)
		if err != nil {
			summary.Failed++
			continue
		}
		if err := gs.Store.SavePlannedDebit(ctx, pd); err != nil {
			summary.Failed++
			gs.Log.WithError(err).WithField("contratId", cc.ContratID).Warn("scheduler: save failed")
			continue
		}
		summary.Generated++
	}

	return summary, nil
}

// RunNow triggers an immediate generation pass (for testing/admin).
func (gs *GenerationScheduler) RunNow() {
	gs.generateUpcoming()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (gs *GenerationScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(gs.CheckInterval)
}
