package treasury

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Distribution accounting: the period-scoped distribution ceiling and the
// configuration-scoped discretionary allowance.
//
// Usage counters live in sparse maps keyed by (scope, period number) and
// (scope, configuration) respectively. A fresh period number reads as zero
// usage regardless of prior history; an allowance deliberately does NOT
// reset across period roll-overs that keep the same configuration.

// UsedDistributionLimitOf returns the amount of the distribution limit a
// terminal has used for a project within one period number, denominated in
// the limit's currency.
func (e *Engine) UsedDistributionLimitOf(terminal Identity, project ProjectID, number uint64) *uint256.Int {
	return e.st.usedOf(Scope{Terminal: terminal, Project: project}, number)
}

// UsedAllowanceOf returns the allowance a terminal has used for a project
// under one configuration, denominated in the allowance's currency.
func (e *Engine) UsedAllowanceOf(terminal Identity, project ProjectID, configuration uint64) *uint256.Int {
	return e.st.allowanceUsedOf(Scope{Terminal: terminal, Project: project}, configuration)
}

// RemainingDistributionLimitOf returns the portion of the claimed terminal's
// distribution limit not yet used in the current period, with the currency
// the limit is denominated in. Saturates at zero.
func (e *Engine) RemainingDistributionLimitOf(project ProjectID) (*uint256.Int, CurrencyID, error) {
	terminal, ok := e.st.claimedTerminal(project)
	if !ok {
		return new(uint256.Int), CurrencyNone, nil
	}
	scope := Scope{Terminal: terminal, Project: project}

	period, err := e.periods.CurrentPeriod(project)
	if err != nil {
		return nil, CurrencyNone, fmt.Errorf("current period of project %d: %w", project, err)
	}
	if !period.Configured() {
		return new(uint256.Int), CurrencyNone, nil
	}

	limit, limitCurrency, err := e.controller.DistributionLimitOf(project, period.Configuration, terminal)
	if err != nil {
		return nil, CurrencyNone, fmt.Errorf("distribution limit of project %d: %w", project, err)
	}

	used := e.st.usedOf(scope, period.Number)
	remaining := new(uint256.Int)
	if used.Lt(limit) {
		remaining.Sub(limit, used)
	}
	return remaining, limitCurrency, nil
}

// RecordDistribution records a payout against the period's distribution
// limit.
//
// The requested amount must be denominated in the same currency the limit is
// denominated in - no implicit cross-currency distribution is permitted at
// this step, even though the converted amount is then compared against the
// ledger balance in the engine's base currency.
//
// On success the usage counter and balance mutate atomically and the settled
// base-currency amount is returned alongside the period snapshot. The caller
// performs the actual value transfer.
func (e *Engine) RecordDistribution(
	caller Identity,
	project ProjectID,
	amount *uint256.Int,
	currency CurrencyID,
	minReturned *uint256.Int,
) (Period, *uint256.Int, error) {
	scope, err := e.requireTerminal(caller, project)
	if err != nil {
		return Period{}, nil, err
	}

	lock := e.st.lockFor(scope)
	lock.Lock()
	defer lock.Unlock()

	period, err := e.currentConfiguredPeriod(scope)
	if err != nil {
		return Period{}, nil, err
	}
	if period.Metadata.PausedDistributions {
		return Period{}, nil, errf(CodeDistributionsPaused, scope,
			"distributions are paused for period %d", period.Number)
	}

	limit, limitCurrency, err := e.controller.DistributionLimitOf(project, period.Configuration, scope.Terminal)
	if err != nil {
		return Period{}, nil, fmt.Errorf("distribution limit of project %d: %w", project, err)
	}
	if currency != limitCurrency {
		return Period{}, nil, errf(CodeCurrencyMismatch, scope,
			"requested currency %d, limit denominated in currency %d", currency, limitCurrency)
	}

	used := e.st.usedOf(scope, period.Number)
	newUsed := new(uint256.Int)
	if _, overflow := newUsed.AddOverflow(used, amount); overflow {
		return Period{}, nil, errf(CodeArithmeticOverflow, scope, "usage overflow adding %s", amount.Dec())
	}
	if newUsed.Gt(limit) {
		return Period{}, nil, errf(CodeDistributionLimitExceeded, scope,
			"used %s + %s exceeds distribution limit %s", used.Dec(), amount.Dec(), limit.Dec())
	}

	ledgerAmount, err := e.convert(amount, limitCurrency, e.baseCurrency, scope)
	if err != nil {
		return Period{}, nil, err
	}

	balance := e.st.balanceOf(scope)
	if ledgerAmount.Gt(balance) {
		return Period{}, nil, errf(CodeInsufficientStoreBalance, scope,
			"converted amount %s exceeds store balance %s", ledgerAmount.Dec(), balance.Dec())
	}
	if minReturned != nil && ledgerAmount.Lt(minReturned) {
		return Period{}, nil, errf(CodeBelowMinimumReturn, scope,
			"settled amount %s below minimum %s", ledgerAmount.Dec(), minReturned.Dec())
	}

	e.st.setUsed(scope, period.Number, newUsed)
	e.st.setBalance(scope, new(uint256.Int).Sub(balance, ledgerAmount))

	e.emit(Event{
		Kind:          EventDistributionRecorded,
		Project:       project,
		Terminal:      scope.Terminal,
		Caller:        caller,
		PeriodNumber:  period.Number,
		Configuration: period.Configuration,
		Amount:        new(uint256.Int).Set(amount),
		Settled:       new(uint256.Int).Set(ledgerAmount),
		Currency:      currency,
	})
	return period, ledgerAmount, nil
}

// RecordUsedAllowance records discretionary spend against the
// configuration-scoped allowance ceiling.
//
// The algorithm mirrors RecordDistribution with two differences: usage is
// keyed by the period's configuration instead of its number, and a currency
// mismatch with the allowance is converted rather than rejected (the ceiling
// check happens in the allowance's own currency).
//
// This is a holder-initiated operation: the claimed terminal, the project
// owner, or a permitted operator may call it.
func (e *Engine) RecordUsedAllowance(
	caller Identity,
	project ProjectID,
	amount *uint256.Int,
	currency CurrencyID,
	minReturned *uint256.Int,
) (Period, *uint256.Int, error) {
	scope, err := e.requireHolderOperation(caller, project, PermissionUseAllowance)
	if err != nil {
		return Period{}, nil, err
	}

	lock := e.st.lockFor(scope)
	lock.Lock()
	defer lock.Unlock()

	period, err := e.currentConfiguredPeriod(scope)
	if err != nil {
		return Period{}, nil, err
	}
	if period.Metadata.PausedDistributions {
		return Period{}, nil, errf(CodeDistributionsPaused, scope,
			"distributions are paused for period %d", period.Number)
	}

	allowance, allowanceCurrency, err := e.controller.AllowanceOf(project, period.Configuration, scope.Terminal)
	if err != nil {
		return Period{}, nil, fmt.Errorf("allowance of project %d: %w", project, err)
	}

	usageDelta, err := e.convert(amount, currency, allowanceCurrency, scope)
	if err != nil {
		return Period{}, nil, err
	}

	used := e.st.allowanceUsedOf(scope, period.Configuration)
	newUsed := new(uint256.Int)
	if _, overflow := newUsed.AddOverflow(used, usageDelta); overflow {
		return Period{}, nil, errf(CodeArithmeticOverflow, scope, "allowance usage overflow adding %s", usageDelta.Dec())
	}
	if newUsed.Gt(allowance) {
		return Period{}, nil, errf(CodeDistributionLimitExceeded, scope,
			"used %s + %s exceeds allowance %s", used.Dec(), usageDelta.Dec(), allowance.Dec())
	}

	ledgerAmount, err := e.convert(amount, currency, e.baseCurrency, scope)
	if err != nil {
		return Period{}, nil, err
	}

	balance := e.st.balanceOf(scope)
	if ledgerAmount.Gt(balance) {
		return Period{}, nil, errf(CodeInsufficientStoreBalance, scope,
			"converted amount %s exceeds store balance %s", ledgerAmount.Dec(), balance.Dec())
	}
	if minReturned != nil && ledgerAmount.Lt(minReturned) {
		return Period{}, nil, errf(CodeBelowMinimumReturn, scope,
			"settled amount %s below minimum %s", ledgerAmount.Dec(), minReturned.Dec())
	}

	e.st.setAllowanceUsed(scope, period.Configuration, newUsed)
	e.st.setBalance(scope, new(uint256.Int).Sub(balance, ledgerAmount))

	e.emit(Event{
		Kind:          EventAllowanceUsed,
		Project:       project,
		Terminal:      scope.Terminal,
		Caller:        caller,
		PeriodNumber:  period.Number,
		Configuration: period.Configuration,
		Amount:        new(uint256.Int).Set(usageDelta),
		Settled:       new(uint256.Int).Set(ledgerAmount),
		Currency:      allowanceCurrency,
	})
	return period, ledgerAmount, nil
}
