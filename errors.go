package treasury

import (
	"errors"
	"fmt"

	"github.com/openfund/treasury/fixed"
)

// Code categorizes engine errors. Every code is a local, recoverable-by-caller
// precondition or policy violation; none represents engine corruption.
type Code string

const (
	// CodeInvalidPeriod means the project's current period is unconfigured.
	CodeInvalidPeriod Code = "INVALID_PERIOD"

	// CodeDistributionsPaused means the period metadata pauses distributions.
	CodeDistributionsPaused Code = "DISTRIBUTIONS_PAUSED"

	// CodeRedemptionsPaused means the period metadata pauses redemptions.
	CodeRedemptionsPaused Code = "REDEMPTIONS_PAUSED"

	// CodeCurrencyMismatch means a distribution was requested in a currency
	// other than the one its limit is denominated in.
	CodeCurrencyMismatch Code = "CURRENCY_MISMATCH"

	// CodeDistributionLimitExceeded means the period's distribution ceiling
	// (or the configuration's allowance ceiling) would be exceeded.
	CodeDistributionLimitExceeded Code = "DISTRIBUTION_LIMIT_EXCEEDED"

	// CodeInsufficientStoreBalance means the converted distribution amount
	// exceeds the scope's ledger balance.
	CodeInsufficientStoreBalance Code = "INSUFFICIENT_STORE_BALANCE"

	// CodeInsufficientBalance means a direct balance subtraction would go
	// negative.
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"

	// CodeBelowMinimumReturn means the computed settled amount is below the
	// caller's acceptable minimum.
	CodeBelowMinimumReturn Code = "BELOW_MINIMUM_RETURN"

	// CodeInsufficientTokens means a redemption for zero tokens or for more
	// tokens than the total supply.
	CodeInsufficientTokens Code = "INSUFFICIENT_TOKENS"

	// CodeMigrationNotAllowed means the period metadata does not allow
	// terminal migration.
	CodeMigrationNotAllowed Code = "MIGRATION_NOT_ALLOWED"

	// CodeUnauthorized means the caller is neither the claimed terminal nor,
	// for holder operations, the owner or a permitted operator.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeAlreadyClaimed means a second claim for an already-claimed project.
	CodeAlreadyClaimed Code = "ALREADY_CLAIMED"

	// CodeArithmeticOverflow means an intermediate product exceeded the
	// representable range.
	CodeArithmeticOverflow Code = "ARITHMETIC_OVERFLOW"

	// CodeDivisionByZero means a divisor (typically a price) was zero.
	CodeDivisionByZero Code = "DIVISION_BY_ZERO"
)

// Error is the structured error every engine operation returns.
//
// Code identifies the category for programmatic handling; Message is the
// human-readable description; Project and Terminal locate the affected scope
// when known. Details carries additional per-code context (amounts, limits)
// as decimal strings.
type Error struct {
	Code     Code
	Message  string
	Project  ProjectID
	Terminal Identity
	Details  map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Terminal != "" {
		return fmt.Sprintf("%s: %s (project=%d, terminal=%s)", e.Code, e.Message, e.Project, e.Terminal)
	}
	if e.Project != 0 {
		return fmt.Sprintf("%s: %s (project=%d)", e.Code, e.Message, e.Project)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is (or wraps) an engine Error with the given
// code. Uses errors.As to handle wrapped errors.
func IsCode(err error, code Code) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// ErrorCode extracts the engine code from err, or "" if err is not an
// engine Error.
func ErrorCode(err error) Code {
	var te *Error
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

func errf(code Code, scope Scope, format string, args ...any) *Error {
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Project:  scope.Project,
		Terminal: scope.Terminal,
	}
}

// arithErr translates a kernel arithmetic failure into the engine taxonomy,
// preserving the scope. Unknown errors pass through unchanged.
func arithErr(err error, scope Scope) error {
	switch {
	case errors.Is(err, fixed.ErrOverflow):
		return errf(CodeArithmeticOverflow, scope, "intermediate product exceeds representable range")
	case errors.Is(err, fixed.ErrDivisionByZero):
		return errf(CodeDivisionByZero, scope, "zero divisor")
	default:
		return err
	}
}
