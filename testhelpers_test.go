package treasury

import (
	"fmt"
	"sync"
	"testing"

	"github.com/holiman/uint256"
)

// fakeOracles implements every collaborator contract from a handful of
// fields, so a test configures exactly the world it needs.
type fakeOracles struct {
	period    Period
	periodErr error
	ballot    BallotState

	limit             *uint256.Int
	limitCurrency     CurrencyID
	allowance         *uint256.Int
	allowanceCurrency CurrencyID

	// prices maps (from, to) to the price scaled by 10^18.
	prices map[[2]CurrencyID]*uint256.Int

	owner     Identity
	perms     map[string]bool
	terminals []TerminalView

	discount    uint64
	discountErr error
}

func newFakeOracles() *fakeOracles {
	return &fakeOracles{
		period: Period{
			Number:        1,
			Configuration: 42,
			Weight:        uint256.NewInt(1_000_000),
			Metadata: PeriodMetadata{
				RedemptionRate:       MaxRedemptionRate,
				BallotRedemptionRate: MaxRedemptionRate,
			},
		},
		limit:             new(uint256.Int),
		limitCurrency:     CurrencyETH,
		allowance:         new(uint256.Int),
		allowanceCurrency: CurrencyETH,
		prices:            make(map[[2]CurrencyID]*uint256.Int),
		owner:             "project-owner",
		perms:             make(map[string]bool),
	}
}

func (f *fakeOracles) CurrentPeriod(ProjectID) (Period, error) {
	if f.periodErr != nil {
		return Period{}, f.periodErr
	}
	return f.period, nil
}

func (f *fakeOracles) BallotStateOf(ProjectID) (BallotState, error) {
	return f.ballot, nil
}

func (f *fakeOracles) DistributionLimitOf(ProjectID, uint64, Identity) (*uint256.Int, CurrencyID, error) {
	return new(uint256.Int).Set(f.limit), f.limitCurrency, nil
}

func (f *fakeOracles) AllowanceOf(ProjectID, uint64, Identity) (*uint256.Int, CurrencyID, error) {
	return new(uint256.Int).Set(f.allowance), f.allowanceCurrency, nil
}

func (f *fakeOracles) PriceFor(from, to CurrencyID, precision uint8) (*uint256.Int, error) {
	if p, ok := f.prices[[2]CurrencyID{from, to}]; ok {
		return new(uint256.Int).Set(p), nil
	}
	return nil, fmt.Errorf("no price route %d->%d", from, to)
}

// setPrice registers a 1:N rate: price of one `to` unit in `from` units,
// scaled by 10^18.
func (f *fakeOracles) setPrice(from, to CurrencyID, price *uint256.Int) {
	f.prices[[2]CurrencyID{from, to}] = price
}

func permString(operator, account Identity, project ProjectID, permission Permission) string {
	return fmt.Sprintf("%s|%s|%d|%d", operator, account, project, permission)
}

func (f *fakeOracles) HasPermission(operator, account Identity, project ProjectID, permission Permission) (bool, error) {
	return f.perms[permString(operator, account, project, permission)], nil
}

func (f *fakeOracles) allow(operator Identity, project ProjectID, permission Permission) {
	f.perms[permString(operator, f.owner, project, permission)] = true
}

func (f *fakeOracles) TerminalsOf(ProjectID) ([]TerminalView, error) {
	return f.terminals, nil
}

func (f *fakeOracles) ControllerOf(ProjectID) (Identity, error) {
	return "controller", nil
}

func (f *fakeOracles) OwnerOf(ProjectID) (Identity, error) {
	return f.owner, nil
}

func (f *fakeOracles) CurrentDiscountFor(ProjectID) (uint64, error) {
	if f.discountErr != nil {
		return 0, f.discountErr
	}
	return f.discount, nil
}

// stubTerminal is a TerminalView with a fixed overflow, standing in for a
// sibling terminal registered to the same project.
type stubTerminal struct {
	overflow *uint256.Int
	currency CurrencyID
	err      error
}

func (s *stubTerminal) CurrentOverflowOf(ProjectID) (*uint256.Int, CurrencyID, error) {
	if s.err != nil {
		return nil, CurrencyNone, s.err
	}
	return new(uint256.Int).Set(s.overflow), s.currency, nil
}

// recordingSink captures emitted events in order.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// recordingFeeSink captures forwarded fees; failFor simulates a destination
// that rejects a specific beneficiary.
type recordingFeeSink struct {
	received []receivedFee
	failFor  Identity
}

type receivedFee struct {
	project     ProjectID
	amount      *uint256.Int
	beneficiary Identity
	memo        string
}

func (s *recordingFeeSink) ReceiveFee(project ProjectID, amount *uint256.Int, beneficiary Identity, memo string) error {
	if s.failFor != "" && beneficiary == s.failFor {
		return fmt.Errorf("destination terminal incompatible for %s", beneficiary)
	}
	s.received = append(s.received, receivedFee{
		project:     project,
		amount:      new(uint256.Int).Set(amount),
		beneficiary: beneficiary,
		memo:        memo,
	})
	return nil
}

// newTestEngine builds an engine over the fake collaborators with the
// default log sink silenced.
func newTestEngine(t *testing.T, o *fakeOracles, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithoutDefaultSinks()}, opts...)
	return New(o, o, o, o, o, CurrencyETH, opts...)
}

// claimedTestEngine builds an engine and claims project for terminal.
func claimedTestEngine(t *testing.T, o *fakeOracles, project ProjectID, terminal Identity, opts ...Option) *Engine {
	t.Helper()
	e := newTestEngine(t, o, opts...)
	if err := e.Claim(project, terminal); err != nil {
		t.Fatalf("claim: %v", err)
	}
	return e
}

func u(x uint64) *uint256.Int {
	return uint256.NewInt(x)
}

// e18 returns x * 10^18, handy for prices.
func e18(x uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(x), uint256.NewInt(1_000_000_000_000_000_000))
}
