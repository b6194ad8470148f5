// Package treasury implements the project treasury accounting engine.
//
// The engine tracks per-project balances scoped to a funding terminal,
// enforces period-bound spending ceilings, values surplus funds ("overflow")
// across terminals and currencies, converts token redemptions into a share of
// that surplus via a bonding curve, and computes protocol fees with
// discounting and deferral.
//
// ARCHITECTURE:
//
// The engine owns only accounting state. Everything else is a collaborator
// consumed through a small interface (see oracles.go): the period oracle,
// controller, price oracle, permission oracle, directory, and optional fee
// gauge. Collaborator calls are synchronous pure reads; the engine never
// mutates collaborator state, and a collaborator failure aborts the whole
// operation.
//
// Operation shape:
//  1. Authorize the caller (gatekeeper).
//  2. Read the current period; reject unconfigured or paused periods.
//  3. Run every check. No state is touched until all checks pass.
//  4. Mutate under the scope lock, emit exactly one event, return the
//     period snapshot plus the settled amount.
//
// Any error return therefore leaves all engine state unchanged; the caller
// (the terminal) surfaces it unchanged rather than retrying, since every
// error in the taxonomy is a policy violation, not a transient fault.
//
// CRITICAL PATTERNS:
//
// Sparse maps as implicit reset:
// Distribution usage is keyed by (scope, period number) and allowance usage
// by (scope, configuration). Absent keys read as zero, so usage "resets"
// automatically when the period number or configuration advances. There is
// no explicit reset step anywhere.
//
// Logical clock:
// Every emitted event is stamped with a monotonic seq from Clock.Next(),
// never a wall-clock timestamp, so a journaled trail replays in a stable
// order.
//
// Drain-and-clear held fees:
// ProcessFees atomically swaps the project's held-fee list for an empty one
// and then iterates the removed copy, so a fee forward that re-enters the
// engine can never observe or mutate the list mid-drain.
package treasury
