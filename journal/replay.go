package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openfund/treasury"
)

// Replay re-applies the full journaled event trail to an engine, in seq
// order, rebuilding its in-memory accounting state.
//
// The engine should be freshly constructed and already claimed for the
// projects it serves (claims are host wiring, not journaled accounting).
// Replay is deterministic - the same journal always produces the same state
// - and idempotent appends upstream guarantee no event appears twice.
//
// Returns the number of events applied. A corrupt trail (unknown kind, debit
// below zero) stops replay with an error; state applied so far is NOT rolled
// back, so a failed replay should be discarded with the engine.
func Replay(ctx context.Context, j *Journal, engine *treasury.Engine) (int, error) {
	events, err := j.Events(ctx)
	if err != nil {
		return 0, fmt.Errorf("replay: %w", err)
	}

	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return i, fmt.Errorf("replay cancelled at seq %d: %w", ev.Seq, err)
		}
		if err := engine.Apply(ev); err != nil {
			return i, fmt.Errorf("replay event %s (seq %d): %w", ev.ID, ev.Seq, err)
		}
	}

	slog.Info("journal replayed",
		"events", len(events),
		"last_seq", engine.Clock().Current(),
	)
	return len(events), nil
}
