package treasury

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Apply re-applies a previously recorded event's state effects to the
// engine, bypassing authorization, period checks, and emission. It exists
// for journal replay: a host rebuilds in-memory accounting state by applying
// the journaled trail, in seq order, to a freshly constructed engine.
//
// Claims are host wiring, not accounting: terminal_claimed events are
// ignored, and the host must re-claim before replaying so accessor methods
// that resolve the claimed terminal keep working.
//
// Apply advances the logical clock past the event's seq so events emitted
// after replay continue the journal's sequence.
func (e *Engine) Apply(ev Event) error {
	scope := Scope{Terminal: ev.Terminal, Project: ev.Project}

	switch ev.Kind {
	case EventTerminalClaimed, EventFeeForwarded:
		// No accounting effect.

	case EventBalanceAdded:
		credit := ev.Settled
		if credit == nil {
			credit = ev.Amount
		}
		balance := e.st.balanceOf(scope)
		next := new(uint256.Int)
		if _, overflow := next.AddOverflow(balance, credit); overflow {
			return errf(CodeArithmeticOverflow, scope, "replayed balance overflow at seq %d", ev.Seq)
		}
		e.st.setBalance(scope, next)

	case EventDistributionRecorded:
		used := e.st.usedOf(scope, ev.PeriodNumber)
		e.st.setUsed(scope, ev.PeriodNumber, new(uint256.Int).Add(used, ev.Amount))
		if err := e.applyDebit(scope, ev); err != nil {
			return err
		}

	case EventAllowanceUsed:
		used := e.st.allowanceUsedOf(scope, ev.Configuration)
		e.st.setAllowanceUsed(scope, ev.Configuration, new(uint256.Int).Add(used, ev.Amount))
		if err := e.applyDebit(scope, ev); err != nil {
			return err
		}

	case EventRedemptionRecorded:
		if err := e.applyDebit(scope, ev); err != nil {
			return err
		}

	case EventMigrationRecorded:
		e.st.setBalance(scope, new(uint256.Int))

	case EventFeeHeld:
		e.st.appendHeldFee(ev.Project, HeldFee{
			Amount:      ev.Amount,
			FeeRate:     ev.FeeRate,
			Beneficiary: ev.Beneficiary,
			Memo:        ev.Memo,
		})

	case EventFeesProcessed:
		e.st.drainHeldFees(ev.Project)

	default:
		return fmt.Errorf("apply: unknown event kind %q at seq %d", ev.Kind, ev.Seq)
	}

	e.clock.AdvanceTo(ev.Seq)
	return nil
}

// applyDebit subtracts a replayed event's settled amount from the scope
// balance. A journal that debits below zero is corrupt and replay stops.
func (e *Engine) applyDebit(scope Scope, ev Event) error {
	if ev.Settled == nil || ev.Settled.IsZero() {
		return nil
	}
	balance := e.st.balanceOf(scope)
	if ev.Settled.Gt(balance) {
		return errf(CodeInsufficientBalance, scope,
			"replayed debit %s exceeds balance %s at seq %d", ev.Settled.Dec(), balance.Dec(), ev.Seq)
	}
	e.st.setBalance(scope, new(uint256.Int).Sub(balance, ev.Settled))
	return nil
}
