package treasury

import "github.com/holiman/uint256"

// Collaborator contracts consumed by the engine. All of them are synchronous,
// side-effect-free reads from the engine's perspective: a collaborator either
// answers or fails the whole enclosing operation. The engine never retries
// and never treats a missing answer as zero.

// PeriodOracle supplies the current funding period for a project, plus the
// state of any pending reconfiguration ballot.
type PeriodOracle interface {
	CurrentPeriod(project ProjectID) (Period, error)
	BallotStateOf(project ProjectID) (BallotState, error)
}

// Controller supplies the spending ceilings configured for a terminal's scope
// under a given configuration: the period-scoped distribution limit and the
// configuration-scoped discretionary allowance, each with the currency it is
// denominated in.
type Controller interface {
	DistributionLimitOf(project ProjectID, configuration uint64, terminal Identity) (*uint256.Int, CurrencyID, error)
	AllowanceOf(project ProjectID, configuration uint64, terminal Identity) (*uint256.Int, CurrencyID, error)
}

// PriceOracle supplies exchange rates. PriceFor returns the number of `from`
// units per one `to` unit, scaled by 10^precision, so converting divides:
//
//	amountTo = floor(amountFrom * 10^precision / price)
//
// A missing route is an error, never a zero rate.
type PriceOracle interface {
	PriceFor(from, to CurrencyID, precision uint8) (*uint256.Int, error)
}

// PermissionOracle answers delegated-permission questions for
// holder-initiated operations: may `operator` act on behalf of `account` for
// the given project and permission index?
type PermissionOracle interface {
	HasPermission(operator, account Identity, project ProjectID, permission Permission) (bool, error)
}

// TerminalView is the read-only face a terminal presents to the overflow
// aggregator: the surplus it currently holds for a project, in its own
// currency. The engine itself implements TerminalView for its claimed scopes.
type TerminalView interface {
	CurrentOverflowOf(project ProjectID) (*uint256.Int, CurrencyID, error)
}

// Directory lists the terminals currently registered to a project and the
// identities of the project's controller and owner.
type Directory interface {
	TerminalsOf(project ProjectID) ([]TerminalView, error)
	ControllerOf(project ProjectID) (Identity, error)
	OwnerOf(project ProjectID) (Identity, error)
}

// FeeGauge optionally supplies a per-project fee discount,
// 0..MaxFeeDiscount. Values above MaxFeeDiscount and gauge failures are both
// clamped to "no discount" rather than failing the fee-bearing operation.
type FeeGauge interface {
	CurrentDiscountFor(project ProjectID) (uint64, error)
}

// FeeSink receives computed protocol fees: the standard distribution path to
// the protocol's designated fee-collecting project/terminal. A sink failure
// during a batch drain is reported per record and does not roll back records
// already forwarded.
type FeeSink interface {
	ReceiveFee(project ProjectID, amount *uint256.Int, beneficiary Identity, memo string) error
}
