/*
Package calendar turns a resolved debit-date policy into a concrete date.

PURPOSE:
  Given a target month/year and the identifying keys, the engine resolves
  the applicable configuration, computes the nominal date (batch window
  start or fixed day), checks it against the zone's calendar, and shifts
  it deterministically when it lands on a weekend or holiday.

STEPS:
  1. Resolve configuration; typed errors propagate unchanged
  2. Nominal date from mode (BATCH -> first day of the batch range,
     FIXED_DAY -> the validated day)
  3. Eligibility query against the resolved holiday zone
  4. Shift strategy when ineligible, hard-capped at 30 probes so the
     search can never run unbounded
  5. Result with shift flag, human-readable reason, and optional trace

BATCH COMPUTATION:
  CalculateBatch isolates failures per item: one malformed contract must
  never block the other 9,999 in the batch. Output order always matches
  input order.
*/
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/debit-engine/config"
	"github.com/warp/debit-engine/holidays"
)

// maxShiftProbes bounds every shift search. Exhausting it means the zone's
// calendar is pathological (or misconfigured) and the caller must know.
const maxShiftProbes = 30

// ConfigResolver resolves the applicable policy for a set of keys.
// Implemented by *config.Resolver.
type ConfigResolver interface {
	Resolve(ctx context.Context, keys config.Keys) (*config.Resolved, error)
}

// EligibilityChecker answers business-day queries for a zone.
// Implemented by *holidays.Service.
type EligibilityChecker interface {
	CheckEligibility(ctx context.Context, date time.Time, zoneID string) (*holidays.Eligibility, error)
}

// Engine computes planned debit dates.
type Engine struct {
	resolver ConfigResolver
	checker  EligibilityChecker
}

// NewEngine wires the engine to its two collaborators.
func NewEngine(resolver ConfigResolver, checker EligibilityChecker) *Engine {
	return &Engine{resolver: resolver, checker: checker}
}

// Input identifies one computation.
type Input struct {
	Keys         config.Keys
	TargetMonth  time.Month
	TargetYear   int
	IncludeTrace bool
}

// TraceStep is one observational record of the computation. The trace
// never alters the result.
type TraceStep struct {
	Step   string `json:"step"`
	Rule   string `json:"rule"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of one computation.
type Result struct {
	PlannedDate        time.Time
	OriginalTargetDate time.Time
	WasShifted         bool
	ShiftReason        string
	Resolved           *config.Resolved
	Trace              []TraceStep
}

const dateLayout = "2006-01-02"

// CalculatePlannedDate runs the full pipeline for one context.
func (e *Engine) CalculatePlannedDate(ctx context.Context, in Input) (*Result, error) {
	var trace []TraceStep
	addStep := func(step TraceStep) {
		if in.IncludeTrace {
			trace = append(trace, step)
		}
	}

	// 1. Resolve configuration.
	resolved, err := e.resolver.Resolve(ctx, in.Keys)
	if err != nil {
		return nil, err
	}
	addStep(TraceStep{
		Step:   "resolve_configuration",
		Rule:   fmt.Sprintf("first active match, level=%s", resolved.AppliedLevel),
		Output: resolved.AppliedConfigID,
		Detail: fmt.Sprintf("mode=%s shift=%s zone=%s", resolved.Mode, resolved.ShiftStrategy, resolved.HolidayZoneID),
	})

	// 2. Nominal target date.
	nominal, rule, err := nominalDate(resolved.Policy, in.TargetYear, in.TargetMonth)
	if err != nil {
		return nil, err
	}
	addStep(TraceStep{
		Step:   "compute_target_date",
		Rule:   rule,
		Input:  fmt.Sprintf("%04d-%02d", in.TargetYear, in.TargetMonth),
		Output: nominal.Format(dateLayout),
	})

	// 3. Eligibility of the nominal date.
	elig, err := e.checker.CheckEligibility(ctx, nominal, resolved.HolidayZoneID)
	if err != nil {
		return nil, err
	}
	addStep(TraceStep{
		Step:   "check_eligibility",
		Rule:   "weekend or zone holiday makes a date ineligible",
		Input:  nominal.Format(dateLayout),
		Output: elig.Reason,
	})

	result := &Result{
		PlannedDate:        nominal,
		OriginalTargetDate: nominal,
		Resolved:           resolved,
	}

	// 4. Shift when ineligible.
	if !elig.IsEligible {
		shifted, err := e.shift(ctx, nominal, resolved.ShiftStrategy, resolved.HolidayZoneID)
		if err != nil {
			return nil, err
		}
		result.PlannedDate = shifted
		result.WasShifted = true
		result.ShiftReason = elig.Reason
		addStep(TraceStep{
			Step:   "apply_shift",
			Rule:   string(resolved.ShiftStrategy),
			Input:  nominal.Format(dateLayout),
			Output: shifted.Format(dateLayout),
			Detail: elig.Reason,
		})
	}

	result.Trace = trace
	return result, nil
}

// nominalDate computes the pre-shift target date from the policy.
func nominalDate(p config.Policy, year int, month time.Month) (time.Time, string, error) {
	switch p.Mode {
	case config.ModeBatch:
		r, ok := p.Batch.Range()
		if !ok {
			return time.Time{}, "", newCalendarError(CodeBatchRequired,
				"mode BATCH requires a batch code", map[string]any{"batch": string(p.Batch)})
		}
		return time.Date(year, month, r.First, 0, 0, 0, 0, time.UTC),
			fmt.Sprintf("BATCH %s starts on day %d", p.Batch, r.First), nil
	case config.ModeFixedDay:
		if p.FixedDay < 1 || p.FixedDay > config.MaxFixedDay {
			return time.Time{}, "", newCalendarError(CodeFixedDayOutOfRange,
				fmt.Sprintf("fixed day must be 1-%d, got %d", config.MaxFixedDay, p.FixedDay),
				map[string]any{"fixedDay": p.FixedDay})
		}
		return time.Date(year, month, p.FixedDay, 0, 0, 0, 0, time.UTC),
			fmt.Sprintf("FIXED_DAY %d", p.FixedDay), nil
	default:
		return time.Time{}, "", newCalendarError(CodeInvalidMode,
			fmt.Sprintf("unrecognized mode %q", p.Mode), map[string]any{"mode": string(p.Mode)})
	}
}

// shift relocates an ineligible date per the strategy.
func (e *Engine) shift(ctx context.Context, from time.Time, strategy config.ShiftStrategy, zoneID string) (time.Time, error) {
	switch strategy {
	case config.ShiftNextBusinessDay:
		return e.scan(ctx, from, 1, zoneID)
	case config.ShiftPreviousBusinessDay:
		return e.scan(ctx, from, -1, zoneID)
	case config.ShiftNextWeekSameDay:
		landing := from.AddDate(0, 0, 7)
		elig, err := e.checker.CheckEligibility(ctx, landing, zoneID)
		if err != nil {
			return time.Time{}, err
		}
		if elig.IsEligible {
			return landing, nil
		}
		// The same weekday a week out is still blocked; fall back to a
		// forward scan from there.
		return e.scan(ctx, landing, 1, zoneID)
	default:
		return time.Time{}, newCalendarError(CodeInvalidShiftStrategy,
			fmt.Sprintf("unrecognized shift strategy %q", strategy),
			map[string]any{"shiftStrategy": string(strategy)})
	}
}

// scan probes day-by-day in the given direction until an eligible date is
// found, bounded by maxShiftProbes.
func (e *Engine) scan(ctx context.Context, from time.Time, step int, zoneID string) (time.Time, error) {
	current := from
	for i := 0; i < maxShiftProbes; i++ {
		current = current.AddDate(0, 0, step)
		elig, err := e.checker.CheckEligibility(ctx, current, zoneID)
		if err != nil {
			return time.Time{}, err
		}
		if elig.IsEligible {
			return current, nil
		}
	}
	return time.Time{}, newCalendarError(CodeNoEligibleDateFound,
		fmt.Sprintf("no eligible date within %d days of %s", maxShiftProbes, from.Format(dateLayout)),
		map[string]any{"from": from.Format(dateLayout), "maxProbes": maxShiftProbes})
}

// =============================================================================
// BATCH COMPUTATION
// =============================================================================

// BatchInput identifies one item of a batch run. Reference and Amount pass
// through untouched so callers can persist planned debits from the output.
type BatchInput struct {
	ContratID string `json:"contratId,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	SocieteID string `json:"societeId,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// BatchItem is one item's outcome: either Result or an error slot.
type BatchItem struct {
	Index        int
	Input        BatchInput
	Result       *Result
	ErrorCode    string
	ErrorMessage string
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	Items        []BatchItem
	TotalCount   int
	SuccessCount int
	ErrorCount   int
}

// CalculateBatch computes each input independently. A failure lands in that
// item's error slot and the remainder proceeds; output order matches input
// order.
func (e *Engine) CalculateBatch(ctx context.Context, organisationID string, month time.Month, year int, inputs []BatchInput) *BatchResult {
	out := &BatchResult{
		Items:      make([]BatchItem, len(inputs)),
		TotalCount: len(inputs),
	}

	for i, in := range inputs {
		item := BatchItem{Index: i, Input: in}
		result, err := e.CalculatePlannedDate(ctx, Input{
			Keys: config.Keys{
				OrganisationID: organisationID,
				ContratID:      in.ContratID,
				ClientID:       in.ClientID,
				SocieteID:      in.SocieteID,
			},
			TargetMonth: month,
			TargetYear:  year,
		})
		if err != nil {
			item.ErrorCode = CodeOf(err)
			item.ErrorMessage = err.Error()
			out.ErrorCount++
		} else {
			item.Result = result
			out.SuccessCount++
		}
		out.Items[i] = item
	}
	return out
}
