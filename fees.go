package treasury

import (
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/openfund/treasury/fixed"
)

// Fee engine: computes protocol fees on fee-bearing operations, applies the
// optional gauge discount, and defers ("holds") fees for later batch
// processing when the period says so.

// ComputeFee splits a gross amount into the protocol fee and the net amount
// the beneficiary receives:
//
//	effective = rate - rate*discount/MaxFeeDiscount   (no discount if out of range)
//	net       = floor(gross * FeeScale / (FeeScale + effective))
//	fee       = gross - net
//
// net+fee always reconstructs gross exactly; the floor on net means rounding
// always favors the protocol.
func ComputeFee(gross *uint256.Int, rate, discount uint64) (fee, net *uint256.Int, err error) {
	effective := rate
	if discount <= MaxFeeDiscount {
		effective = rate - rate*discount/MaxFeeDiscount
	}

	net, err = fixed.MulDiv(gross, uint256.NewInt(FeeScale), uint256.NewInt(FeeScale+effective))
	if err != nil {
		return nil, nil, err
	}
	fee = new(uint256.Int).Sub(gross, net)
	return fee, net, nil
}

// discountFor reads the gauge's current discount for a project. A missing
// gauge, a gauge failure, or an out-of-range value all degrade to "no
// discount" - a broken gauge must not block fee-bearing operations.
func (e *Engine) discountFor(project ProjectID) uint64 {
	if e.gauge == nil {
		return 0
	}
	discount, err := e.gauge.CurrentDiscountFor(project)
	if err != nil {
		slog.Warn("fee gauge failed, taking no discount",
			"project", uint64(project),
			"error", err,
		)
		return 0
	}
	if discount > MaxFeeDiscount {
		return 0
	}
	return discount
}

// HoldOrForwardFee settles the protocol fee for a fee-bearing gross amount.
//
// If the active period holds fees, a HeldFee record is appended and nothing
// moves yet - the gross amount stays fully credited to whatever accounting
// path triggered it, and the deferred fee is computed later by ProcessFees.
// Otherwise the fee is computed now, with the gauge discount applied, and
// forwarded to the fee sink.
//
// Returns the fee taken now (zero when held or when the rate is zero) and
// whether the fee was held.
func (e *Engine) HoldOrForwardFee(
	caller Identity,
	project ProjectID,
	gross *uint256.Int,
	beneficiary Identity,
	memo string,
) (*uint256.Int, bool, error) {
	scope, err := e.requireTerminal(caller, project)
	if err != nil {
		return nil, false, err
	}
	if e.baseFeeRate == 0 {
		return new(uint256.Int), false, nil
	}
	if e.baseFeeRate > FeeScale {
		return nil, false, fmt.Errorf("fee rate %d exceeds fee scale %d", e.baseFeeRate, FeeScale)
	}

	lock := e.st.lockFor(scope)
	lock.Lock()
	defer lock.Unlock()

	period, err := e.currentConfiguredPeriod(scope)
	if err != nil {
		return nil, false, err
	}

	if period.Metadata.HoldFees {
		e.st.appendHeldFee(project, HeldFee{
			Amount:      gross,
			FeeRate:     e.baseFeeRate,
			Beneficiary: beneficiary,
			Memo:        memo,
		})
		e.emit(Event{
			Kind:          EventFeeHeld,
			Project:       project,
			Terminal:      scope.Terminal,
			Caller:        caller,
			Beneficiary:   beneficiary,
			PeriodNumber:  period.Number,
			Configuration: period.Configuration,
			Amount:        new(uint256.Int).Set(gross),
			Currency:      e.baseCurrency,
			FeeRate:       e.baseFeeRate,
			Memo:          memo,
		})
		return new(uint256.Int), true, nil
	}

	fee, _, err := ComputeFee(gross, e.baseFeeRate, e.discountFor(project))
	if err != nil {
		return nil, false, arithErr(err, scope)
	}
	if fee.IsZero() {
		return fee, false, nil
	}
	if e.feeSink == nil {
		return nil, false, fmt.Errorf("no fee sink configured for project %d", project)
	}
	if err := e.feeSink.ReceiveFee(project, fee, beneficiary, memo); err != nil {
		return nil, false, fmt.Errorf("forward fee for project %d: %w", project, err)
	}

	e.emit(Event{
		Kind:          EventFeeForwarded,
		Project:       project,
		Terminal:      scope.Terminal,
		Caller:        caller,
		Beneficiary:   beneficiary,
		PeriodNumber:  period.Number,
		Configuration: period.Configuration,
		Amount:        new(uint256.Int).Set(gross),
		Settled:       new(uint256.Int).Set(fee),
		Currency:      e.baseCurrency,
		Memo:          memo,
	})
	return fee, false, nil
}

// ProcessedFee reports the outcome of one drained held-fee record.
type ProcessedFee struct {
	Held HeldFee

	// Fee is the computed fee amount, nil when computation failed.
	Fee *uint256.Int

	// Err is non-nil when the record failed to compute or forward. Failed
	// records are reported, not re-queued: the drain is one-shot.
	Err error
}

// HeldFeesOf returns a copy of the project's held-fee list in append order.
func (e *Engine) HeldFeesOf(project ProjectID) []HeldFee {
	return e.st.heldFeesOf(project)
}

// ProcessFees drains the project's held fees and forwards each one.
//
// Anyone may call it. The held-fee list is atomically swapped for an empty
// one, then each drained record is processed in original append order with
// the gauge discount read once for the whole batch. A record that fails to
// forward is reported in the result but does not roll back already-processed
// records and is not put back on the list.
//
// Draining an empty list is a valid no-op: no event, nil result.
func (e *Engine) ProcessFees(project ProjectID) ([]ProcessedFee, error) {
	drained := e.st.drainHeldFees(project)
	if len(drained) == 0 {
		return nil, nil
	}

	terminal, _ := e.st.claimedTerminal(project)
	discount := e.discountFor(project)

	results := make([]ProcessedFee, 0, len(drained))
	totalGross := new(uint256.Int)
	totalFees := new(uint256.Int)
	failed := 0

	for _, held := range drained {
		fee, _, err := ComputeFee(held.Amount, held.FeeRate, discount)
		if err != nil {
			failed++
			results = append(results, ProcessedFee{Held: held, Err: err})
			slog.Warn("held fee computation failed",
				"project", uint64(project),
				"error", err,
			)
			continue
		}

		if !fee.IsZero() {
			if e.feeSink == nil {
				err = fmt.Errorf("no fee sink configured for project %d", project)
			} else {
				err = e.feeSink.ReceiveFee(project, fee, held.Beneficiary, held.Memo)
			}
			if err != nil {
				failed++
				results = append(results, ProcessedFee{Held: held, Fee: fee, Err: err})
				slog.Warn("held fee forwarding failed",
					"project", uint64(project),
					"fee", fee.Dec(),
					"error", err,
				)
				continue
			}
		}

		totalGross.Add(totalGross, held.Amount)
		totalFees.Add(totalFees, fee)
		results = append(results, ProcessedFee{Held: held, Fee: fee})
	}

	e.emit(Event{
		Kind:     EventFeesProcessed,
		Project:  project,
		Terminal: terminal,
		Amount:   totalGross,
		Settled:  totalFees,
		Currency: e.baseCurrency,
		Memo:     fmt.Sprintf("drained=%d failed=%d", len(drained), failed),
	})
	return results, nil
}
