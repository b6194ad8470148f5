package treasury

import "github.com/holiman/uint256"

// Balance ledger: the per-scope running balance with its non-negative
// invariant. Every mutation is an atomic add-then-check or check-then-
// subtract under the scope lock; no intermediate negative state is ever
// observable.

// BalanceOf returns the balance a terminal holds for a project, in the
// engine's base currency. Absent scopes read as zero.
func (e *Engine) BalanceOf(terminal Identity, project ProjectID) *uint256.Int {
	return e.st.balanceOf(Scope{Terminal: terminal, Project: project})
}

// RecordAddedBalance credits amount to the caller's scope. This is the
// payment-side entry point: the terminal records funds it has already
// physically received. The only failure besides authorization is overflow.
func (e *Engine) RecordAddedBalance(caller Identity, project ProjectID, amount *uint256.Int) error {
	scope, err := e.requireTerminal(caller, project)
	if err != nil {
		return err
	}

	lock := e.st.lockFor(scope)
	lock.Lock()
	defer lock.Unlock()

	balance := e.st.balanceOf(scope)
	next := new(uint256.Int)
	if _, overflow := next.AddOverflow(balance, amount); overflow {
		return errf(CodeArithmeticOverflow, scope, "balance overflow adding %s", amount.Dec())
	}
	e.st.setBalance(scope, next)

	e.emit(Event{
		Kind:     EventBalanceAdded,
		Project:  project,
		Terminal: scope.Terminal,
		Caller:   caller,
		Amount:   new(uint256.Int).Set(amount),
		Settled:  new(uint256.Int).Set(amount),
		Currency: e.baseCurrency,
	})
	return nil
}

// useBalance subtracts amount from the scope's balance and returns the new
// balance. Fails with InsufficientBalance if amount exceeds the balance.
// Caller must hold the scope lock.
func (e *Engine) useBalance(scope Scope, amount *uint256.Int) (*uint256.Int, error) {
	balance := e.st.balanceOf(scope)
	if amount.Gt(balance) {
		return nil, errf(CodeInsufficientBalance, scope,
			"amount %s exceeds balance %s", amount.Dec(), balance.Dec())
	}
	next := new(uint256.Int).Sub(balance, amount)
	e.st.setBalance(scope, next)
	return next, nil
}

// RecordMigration zeroes the caller's balance and returns what it held,
// handing responsibility for the physical funds transfer to the caller.
// Allowed only while the active period's metadata permits terminal
// migration.
func (e *Engine) RecordMigration(caller Identity, project ProjectID) (Period, *uint256.Int, error) {
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
	if !period.Metadata.AllowTerminalMigration {
		return Period{}, nil, errf(CodeMigrationNotAllowed, scope,
			"period %d does not allow terminal migration", period.Number)
	}

	prior := e.st.balanceOf(scope)
	e.st.setBalance(scope, new(uint256.Int))

	e.emit(Event{
		Kind:          EventMigrationRecorded,
		Project:       project,
		Terminal:      scope.Terminal,
		Caller:        caller,
		PeriodNumber:  period.Number,
		Configuration: period.Configuration,
		Settled:       new(uint256.Int).Set(prior),
		Currency:      e.baseCurrency,
	})
	return period, prior, nil
}
