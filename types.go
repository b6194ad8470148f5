package treasury

import "github.com/holiman/uint256"

// Identity names a participant: a terminal, a project owner, a token holder,
// or a fee beneficiary. Identities are opaque to the engine; equality is the
// only operation it performs on them.
type Identity string

// ProjectID identifies a project in the external registry.
type ProjectID uint64

// CurrencyID indexes a currency known to the price oracle.
// Zero is reserved for "no currency".
type CurrencyID uint32

// Well-known currency indices. The engine treats currencies as opaque beyond
// the reserved zero value; these two exist for tests and documentation.
const (
	CurrencyNone CurrencyID = 0
	CurrencyETH  CurrencyID = 1
	CurrencyUSD  CurrencyID = 2
)

// Scope identifies one ledger entry: the funds a single terminal holds for a
// single project. All balances and usage counters are keyed by scope.
type Scope struct {
	Terminal Identity
	Project  ProjectID
}

// Rate and fee constants. These are a literal numeric contract: tests assert
// exact floor-division results against them.
const (
	// MaxRedemptionRate is the redemption rate denominator; a rate equal to
	// it means 100% (the bonding curve degenerates to a straight proration).
	MaxRedemptionRate uint64 = 10_000

	// MaxReservedRate is the reserved-rate denominator carried on period
	// metadata. The engine stores it for the host's mint path but never
	// consumes it itself.
	MaxReservedRate uint64 = 10_000

	// FeeScale is the fee denominator representing "zero fee":
	// net = gross * FeeScale / (FeeScale + rate). With FeeScale = 200 a
	// rate of 10 is a 5% fee taken out of the gross amount.
	FeeScale uint64 = 200

	// MaxFeeDiscount is the fee-gauge discount denominator. Discounts above
	// it are clamped away (treated as no discount), never rejected.
	MaxFeeDiscount uint64 = 1_000_000_000
)

// Permission indexes the operation-specific rights the permission oracle
// understands for holder-delegated calls.
type Permission uint32

const (
	PermissionUseAllowance Permission = 1
	PermissionRedeem       Permission = 2
)

// BallotState reports the state of a pending reconfiguration ballot for the
// current period, as the period oracle sees it.
type BallotState uint8

const (
	// BallotApproved means no reconfiguration is pending (or it has passed).
	BallotApproved BallotState = iota

	// BallotActive means a reconfiguration ballot is still open. While
	// active, redemptions use the ballot redemption rate to discourage
	// redemption-timing attacks around reconfigurations.
	BallotActive

	// BallotFailed means the pending reconfiguration was rejected.
	BallotFailed
)

// PeriodMetadata is the parameter set packed into a period by the external
// configuration layer. The engine reads it; it never writes it.
type PeriodMetadata struct {
	PausedDistributions    bool
	PausedRedeem           bool
	HoldFees               bool
	AllowTerminalMigration bool

	// RedemptionRate is the base bonding-curve rate, 0..MaxRedemptionRate.
	RedemptionRate uint64

	// BallotRedemptionRate replaces RedemptionRate while a reconfiguration
	// ballot is active, 0..MaxRedemptionRate.
	BallotRedemptionRate uint64

	// ReservedRate is carried for the host's token mint path,
	// 0..MaxReservedRate.
	ReservedRate uint64
}

// Period is the read-only snapshot the period oracle returns for a project.
// The engine borrows it per call and never mutates it.
type Period struct {
	// Number increases monotonically per project.
	Number uint64

	// Configuration is the opaque identity of the active parameter set; it
	// changes only on reconfiguration. Allowance usage is keyed by it.
	Configuration uint64

	// Weight is the fixed-point token-issuance weight. The engine returns it
	// to the host untouched; minting is out of scope here.
	Weight *uint256.Int

	Metadata PeriodMetadata
}

// Configured reports whether the period denotes an actual configuration.
// A zero number or zero configuration means "not yet configured" and every
// mutating operation rejects it.
func (p Period) Configured() bool {
	return p.Number != 0 && p.Configuration != 0
}

// HeldFee is a fee deferred at the moment it was incurred, to be computed and
// forwarded later in a batch by ProcessFees.
type HeldFee struct {
	// Amount is the pre-fee gross amount the fee will be computed from.
	Amount *uint256.Int

	// FeeRate is the fee rate at hold time, 0..FeeScale.
	FeeRate uint64

	Beneficiary Identity
	Memo        string
}
