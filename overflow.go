package treasury

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Overflow calculator: values the balance not already committed to the rest
// of the period's distribution limit, per terminal and across every terminal
// registered to a project.

// overflowOf computes one scope's overflow under the given period:
//
//	max(0, balance - convert(limit - used, limitCurrency, baseCurrency))
//
// The remaining limit saturates at zero, so over-used scopes never produce a
// negative committed amount. Caller is responsible for locking if the result
// feeds a mutation.
func (e *Engine) overflowOf(scope Scope, period Period) (*uint256.Int, error) {
	balance := e.st.balanceOf(scope)
	if balance.IsZero() {
		return balance, nil
	}

	limit, limitCurrency, err := e.controller.DistributionLimitOf(scope.Project, period.Configuration, scope.Terminal)
	if err != nil {
		return nil, fmt.Errorf("distribution limit of project %d: %w", scope.Project, err)
	}

	used := e.st.usedOf(scope, period.Number)
	remaining := new(uint256.Int)
	if used.Lt(limit) {
		remaining.Sub(limit, used)
	}
	if remaining.IsZero() {
		return balance, nil
	}

	committed, err := e.convert(remaining, limitCurrency, e.baseCurrency, scope)
	if err != nil {
		return nil, err
	}
	if !balance.Gt(committed) {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Sub(balance, committed), nil
}

// CurrentOverflowOf returns the claimed terminal's current overflow for a
// project, in the engine's base currency. An unclaimed project or an
// unconfigured period reads as zero overflow.
//
// This is the TerminalView the directory hands to sibling engines when they
// aggregate project-wide overflow.
func (e *Engine) CurrentOverflowOf(project ProjectID) (*uint256.Int, CurrencyID, error) {
	terminal, ok := e.st.claimedTerminal(project)
	if !ok {
		return new(uint256.Int), e.baseCurrency, nil
	}
	scope := Scope{Terminal: terminal, Project: project}

	period, err := e.periods.CurrentPeriod(project)
	if err != nil {
		return nil, CurrencyNone, fmt.Errorf("current period of project %d: %w", project, err)
	}
	if !period.Configured() {
		return new(uint256.Int), e.baseCurrency, nil
	}

	overflow, err := e.overflowOf(scope, period)
	if err != nil {
		return nil, CurrencyNone, err
	}
	return overflow, e.baseCurrency, nil
}

// CurrentTotalOverflowOf sums the current overflow of every terminal
// registered to the project, converted into the reference currency.
//
// Each per-terminal term is already floored at zero before summing, so a
// terminal whose limit exceeds its balance contributes nothing - it cannot
// offset another terminal's genuine surplus.
//
// Terminals are read independently without a global lock; the total is an
// eventually-consistent analytics value and must never be the basis for a
// mutating decision.
func (e *Engine) CurrentTotalOverflowOf(project ProjectID, reference CurrencyID) (*uint256.Int, error) {
	scope := Scope{Project: project}

	terminals, err := e.directory.TerminalsOf(project)
	if err != nil {
		return nil, fmt.Errorf("terminals of project %d: %w", project, err)
	}

	total := new(uint256.Int)
	for _, terminal := range terminals {
		overflow, currency, err := terminal.CurrentOverflowOf(project)
		if err != nil {
			return nil, fmt.Errorf("terminal overflow of project %d: %w", project, err)
		}
		if overflow.IsZero() {
			continue
		}

		converted, err := e.convert(overflow, currency, reference, scope)
		if err != nil {
			return nil, err
		}
		if _, overflowed := total.AddOverflow(total, converted); overflowed {
			return nil, errf(CodeArithmeticOverflow, scope, "total overflow exceeds representable range")
		}
	}
	return total, nil
}
