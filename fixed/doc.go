// Package fixed implements the fixed-point arithmetic kernel shared by the
// treasury engine.
//
// Amounts are unsigned 256-bit integers (github.com/holiman/uint256) carrying
// an implicit fixed-point scale. Three primitives cover everything the engine
// needs:
//
//   - MulDiv: floor(a*b/denominator) with a full-width 512-bit intermediate
//   - Rescale: move an amount between fixed-point decimal precisions
//   - Convert: apply an exchange rate fetched at a fixed fidelity
//
// ROUNDING POLICY:
// All division truncates toward zero. This is protocol-wide and deliberate:
// rounding always favors the ledger over the party receiving a computed
// amount, so repeated rounding can never leak value out of the treasury.
// Callers must not "fix" a truncated result by rounding up.
package fixed
