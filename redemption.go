package treasury

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/openfund/treasury/fixed"
)

// Redemption engine: converts a token-burn count into a reclaimable share of
// the claimed terminal's overflow via the bonding curve
//
//	base    = overflow * tokens / supply
//	reclaim = base * (rate + tokens*(MAX - rate)/supply) / MAX
//
// with floor division at every step. The division order is a literal numeric
// contract: the inner tokens*(MAX-rate)/supply quotient is computed before
// the outer multiplication, which is not equivalent under truncation to any
// rearrangement. Redeeming a marginal amount pays out at `rate`; redeeming
// the entire supply reclaims the entire overflow exactly.

// redemptionRateFor picks the period's redemption rate, switching to the
// ballot rate while a reconfiguration ballot is active. The ballot rate
// exists specifically to discourage redemption-timing attacks around
// reconfigurations.
func (e *Engine) redemptionRateFor(project ProjectID, period Period) (uint64, error) {
	ballot, err := e.periods.BallotStateOf(project)
	if err != nil {
		return 0, fmt.Errorf("ballot state of project %d: %w", project, err)
	}
	if ballot == BallotActive {
		return period.Metadata.BallotRedemptionRate, nil
	}
	return period.Metadata.RedemptionRate, nil
}

// reclaimableFor evaluates the bonding curve for a given overflow.
func reclaimableFor(overflow, tokenCount, totalSupply *uint256.Int, rate uint64, scope Scope) (*uint256.Int, error) {
	base, err := fixed.MulDiv(overflow, tokenCount, totalSupply)
	if err != nil {
		return nil, arithErr(err, scope)
	}
	if rate >= MaxRedemptionRate {
		return base, nil
	}

	// Interpolate the effective rate from `rate` (marginal redemption) up
	// to 100% (full-supply redemption): rate + tokens*(MAX-rate)/supply.
	boost, err := fixed.MulDiv(tokenCount, uint256.NewInt(MaxRedemptionRate-rate), totalSupply)
	if err != nil {
		return nil, arithErr(err, scope)
	}
	effective := new(uint256.Int).Add(uint256.NewInt(rate), boost)

	reclaim, err := fixed.MulDiv(base, effective, uint256.NewInt(MaxRedemptionRate))
	if err != nil {
		return nil, arithErr(err, scope)
	}
	return reclaim, nil
}

// RecordRedemption converts a token burn into a reclaimed amount of the
// claimed terminal's overflow and debits the ledger.
//
// This is a holder-initiated operation: the claimed terminal, the project
// owner, or a permitted operator may call it. The token burn itself and the
// value transfer to the holder are the caller's responsibility; the engine
// only settles the accounting.
//
// A zero reclaim amount is a valid result and performs no balance mutation -
// only the observability event is emitted.
func (e *Engine) RecordRedemption(
	caller Identity,
	holder Identity,
	project ProjectID,
	tokenCount *uint256.Int,
	totalSupply *uint256.Int,
	minReturned *uint256.Int,
	memo string,
) (Period, *uint256.Int, error) {
	scope, err := e.requireHolderOperation(caller, project, PermissionRedeem)
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
	if period.Metadata.PausedRedeem {
		return Period{}, nil, errf(CodeRedemptionsPaused, scope,
			"redemptions are paused for period %d", period.Number)
	}

	if tokenCount.IsZero() || tokenCount.Gt(totalSupply) {
		return Period{}, nil, errf(CodeInsufficientTokens, scope,
			"token count %s out of range for supply %s", tokenCount.Dec(), totalSupply.Dec())
	}

	overflow, err := e.overflowOf(scope, period)
	if err != nil {
		return Period{}, nil, err
	}

	reclaim := new(uint256.Int)
	if !overflow.IsZero() {
		rate, err := e.redemptionRateFor(project, period)
		if err != nil {
			return Period{}, nil, err
		}
		reclaim, err = reclaimableFor(overflow, tokenCount, totalSupply, rate, scope)
		if err != nil {
			return Period{}, nil, err
		}
	}

	if minReturned != nil && reclaim.Lt(minReturned) {
		return Period{}, nil, errf(CodeBelowMinimumReturn, scope,
			"reclaim amount %s below minimum %s", reclaim.Dec(), minReturned.Dec())
	}

	if !reclaim.IsZero() {
		// Should not fail given overflow is balance-derived, but the
		// non-negative invariant is checked regardless.
		if _, err := e.useBalance(scope, reclaim); err != nil {
			return Period{}, nil, err
		}
	}

	e.emit(Event{
		Kind:          EventRedemptionRecorded,
		Project:       project,
		Terminal:      scope.Terminal,
		Caller:        caller,
		Beneficiary:   holder,
		PeriodNumber:  period.Number,
		Configuration: period.Configuration,
		Amount:        new(uint256.Int).Set(tokenCount),
		Settled:       new(uint256.Int).Set(reclaim),
		Currency:      e.baseCurrency,
		Memo:          memo,
	})
	return period, reclaim, nil
}
