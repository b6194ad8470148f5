package treasury

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/openfund/treasury/fixed"
)

// Engine is the treasury accounting engine.
//
// It owns balances, usage counters, and held fees; everything else it needs
// (periods, ceilings, prices, permissions, the terminal directory, fee
// discounts) is consumed through read-only collaborators supplied at
// construction.
//
// Thread-safety model:
//   - Mutating operations serialize per (terminal, project) scope; the whole
//     read-check-mutate sequence of each call runs under that scope's lock.
//   - Read-only analytics (overflow aggregation, accessors) take no scope
//     lock and may observe a scope mid-update between two reads of different
//     scopes; they must never feed a mutating decision.
//
// Every successful mutating call emits exactly one Event to the configured
// sinks; failed calls emit nothing and leave all state unchanged.
type Engine struct {
	periods     PeriodOracle
	controller  Controller
	prices      PriceOracle
	permissions PermissionOracle
	directory   Directory

	gauge   FeeGauge // optional
	feeSink FeeSink  // required for forwarding fees

	// baseCurrency denominates every ledger balance this engine holds.
	baseCurrency CurrencyID

	// baseFeeRate is the protocol fee rate out of FeeScale applied to
	// fee-bearing operations. Zero means no fee.
	baseFeeRate uint64

	clock *Clock
	idGen IDGenerator
	sinks []EventSink

	st *state
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithFeeGauge wires the optional fee-discount gauge.
func WithFeeGauge(g FeeGauge) Option {
	return func(e *Engine) { e.gauge = g }
}

// WithFeeSink wires the destination computed protocol fees are forwarded to.
func WithFeeSink(s FeeSink) Option {
	return func(e *Engine) { e.feeSink = s }
}

// WithBaseFeeRate sets the protocol fee rate out of FeeScale.
// Rates above FeeScale are rejected at the fee-bearing call, not here.
func WithBaseFeeRate(rate uint64) Option {
	return func(e *Engine) { e.baseFeeRate = rate }
}

// WithEventSink appends an event sink. The default LogSink stays in place;
// pass WithoutDefaultSinks first to replace it.
func WithEventSink(s EventSink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, s) }
}

// WithoutDefaultSinks drops the default LogSink. Useful in tests that want
// only their recording sink.
func WithoutDefaultSinks() Option {
	return func(e *Engine) { e.sinks = nil }
}

// WithIDGenerator replaces the UUIDv7 event ID generator.
// Tests use NewFixedGenerator for deterministic trails.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.idGen = g }
}

// WithClock replaces the logical clock, e.g. to resume sequencing against an
// existing journal via NewClockAt.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an Engine bound to its collaborators.
//
// baseCurrency denominates the engine's ledger balances; every conversion in
// distribution, overflow, and redemption targets it.
func New(
	periods PeriodOracle,
	controller Controller,
	prices PriceOracle,
	permissions PermissionOracle,
	directory Directory,
	baseCurrency CurrencyID,
	opts ...Option,
) *Engine {
	e := &Engine{
		periods:      periods,
		controller:   controller,
		prices:       prices,
		permissions:  permissions,
		directory:    directory,
		baseCurrency: baseCurrency,
		clock:        NewClock(),
		idGen:        UUIDv7Generator{},
		sinks:        []EventSink{LogSink{}},
		st:           newState(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// BaseCurrency returns the currency the engine's ledger balances are
// denominated in.
func (e *Engine) BaseCurrency() CurrencyID {
	return e.baseCurrency
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// emit stamps and fans out an event. Called only after all state mutations
// of a successful operation have been applied.
func (e *Engine) emit(ev Event) {
	ev.ID = e.idGen.Generate()
	ev.Seq = e.clock.Next()
	for _, sink := range e.sinks {
		sink.Record(ev)
	}
}

// currentConfiguredPeriod fetches the project's current period and rejects
// the unconfigured sentinel. Every mutating operation runs through this.
func (e *Engine) currentConfiguredPeriod(scope Scope) (Period, error) {
	period, err := e.periods.CurrentPeriod(scope.Project)
	if err != nil {
		return Period{}, fmt.Errorf("current period of project %d: %w", scope.Project, err)
	}
	if !period.Configured() {
		return Period{}, errf(CodeInvalidPeriod, scope, "project has no configured period")
	}
	return period, nil
}

// convert moves amount between currencies via the price oracle at the fixed
// MaxFidelity precision, truncating. Same-currency conversion is the
// identity and skips the oracle.
func (e *Engine) convert(amount *uint256.Int, from, to CurrencyID, scope Scope) (*uint256.Int, error) {
	if from == to {
		return new(uint256.Int).Set(amount), nil
	}
	price, err := e.prices.PriceFor(from, to, fixed.MaxFidelity)
	if err != nil {
		return nil, fmt.Errorf("price for %d->%d: %w", from, to, err)
	}
	out, err := fixed.Convert(amount, price, fixed.MaxFidelity)
	if err != nil {
		return nil, arithErr(err, scope)
	}
	return out, nil
}
