package treasury

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// EventKind names the mutating operation an event records.
type EventKind string

const (
	EventTerminalClaimed      EventKind = "terminal_claimed"
	EventBalanceAdded         EventKind = "balance_added"
	EventDistributionRecorded EventKind = "distribution_recorded"
	EventAllowanceUsed        EventKind = "allowance_used"
	EventRedemptionRecorded   EventKind = "redemption_recorded"
	EventMigrationRecorded    EventKind = "migration_recorded"
	EventFeeHeld              EventKind = "fee_held"
	EventFeeForwarded         EventKind = "fee_forwarded"
	EventFeesProcessed        EventKind = "fees_processed"
)

// Event is the durable audit record emitted exactly once per successful
// mutating call, never on a failed call. It carries all inputs and computed
// outputs of the operation.
//
// Amount is the operation's primary input amount; for distributions and
// allowance use it is the usage delta in the ceiling's currency. Settled is
// the computed output in the ledger's currency: the amount actually moved
// (or, for migrations, the prior balance handed to the caller).
type Event struct {
	// ID is a UUIDv7 assigned at emission.
	ID string

	// Seq is the logical-clock stamp. Ordering uses Seq, never wall time.
	Seq int64

	Kind     EventKind
	Project  ProjectID
	Terminal Identity

	// Caller is the authorized identity that initiated the operation.
	Caller Identity

	// Beneficiary is set on fee events.
	Beneficiary Identity

	// PeriodNumber and Configuration snapshot the period the operation ran
	// under (zero for operations that do not consult the period oracle).
	PeriodNumber  uint64
	Configuration uint64

	Amount   *uint256.Int
	Settled  *uint256.Int
	Currency CurrencyID

	// FeeRate is set on fee_held events so a journal replay can rebuild the
	// held-fee record exactly.
	FeeRate uint64

	Memo string
}

// String renders the event as a single deterministic line. Field order is
// fixed and empty fields are omitted, so rendered trails are stable inputs
// for golden tests.
func (ev Event) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "seq=%d kind=%s project=%d terminal=%s", ev.Seq, ev.Kind, ev.Project, ev.Terminal)
	if ev.Caller != "" && ev.Caller != ev.Terminal {
		fmt.Fprintf(&b, " caller=%s", ev.Caller)
	}
	if ev.Beneficiary != "" {
		fmt.Fprintf(&b, " beneficiary=%s", ev.Beneficiary)
	}
	if ev.PeriodNumber != 0 {
		fmt.Fprintf(&b, " period=%d config=%d", ev.PeriodNumber, ev.Configuration)
	}
	if ev.Amount != nil {
		fmt.Fprintf(&b, " amount=%s", ev.Amount.Dec())
	}
	if ev.Settled != nil {
		fmt.Fprintf(&b, " settled=%s", ev.Settled.Dec())
	}
	if ev.Currency != CurrencyNone {
		fmt.Fprintf(&b, " currency=%d", ev.Currency)
	}
	if ev.FeeRate != 0 {
		fmt.Fprintf(&b, " fee_rate=%d", ev.FeeRate)
	}
	if ev.Memo != "" {
		fmt.Fprintf(&b, " memo=%q", ev.Memo)
	}
	return b.String()
}

// EventSink receives emitted events. Sinks must not block for long and must
// not call back into mutating engine operations; a sink that fails should
// log and move on (the engine treats emission as infallible).
type EventSink interface {
	Record(Event)
}

// IDGenerator generates unique event IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 event IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, making IDs
// sortable by creation time, which is convenient when eyeballing a journal.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined event IDs for testing.
//
// This enables deterministic test execution and golden trail comparison.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns IDs in order.
// Panics when all IDs have been consumed - fail fast on test
// misconfiguration.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// LogSink logs every event via slog at Info level. It is the engine's
// default sink.
type LogSink struct{}

// Record implements EventSink.
func (LogSink) Record(ev Event) {
	attrs := []any{
		"event_id", ev.ID,
		"seq", ev.Seq,
		"kind", string(ev.Kind),
		"project", uint64(ev.Project),
		"terminal", string(ev.Terminal),
	}
	if ev.Amount != nil {
		attrs = append(attrs, "amount", ev.Amount.Dec())
	}
	if ev.Settled != nil {
		attrs = append(attrs, "settled", ev.Settled.Dec())
	}
	slog.Info("treasury event", attrs...)
}
