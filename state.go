package treasury

import (
	"sync"

	"github.com/holiman/uint256"
)

// usageKey keys a usage counter: a scope plus the period number (distribution
// usage) or the configuration (allowance usage).
type usageKey struct {
	scope Scope
	ref   uint64
}

// state holds all accounting state the engine owns.
//
// Every map is sparse: an absent key reads as zero. That default-zero
// semantics is what makes distribution usage reset automatically when the
// period number advances - there is no explicit reset step, and there must
// never be one.
//
// Locking discipline:
//   - mu guards map membership, claims, held-fee lists, and the lock table.
//     It is held only for short copy-in/copy-out sections, never across a
//     collaborator call.
//   - lockFor(scope) returns the scope's mutex. A mutating operation holds it
//     for its whole read-check-mutate sequence so concurrent operations
//     against the same scope cannot race a limit check against a mutation.
//     Cross-scope reads (overflow aggregation) take no scope lock and
//     tolerate skew; they are analytics, never the basis for a mutation.
//
// Stored amounts are never mutated in place: writers replace the map entry,
// readers receive a copy. A reader can therefore never observe an
// intermediate value.
type state struct {
	mu sync.Mutex

	locks map[Scope]*sync.Mutex

	claims        map[ProjectID]Identity
	balances      map[Scope]*uint256.Int
	used          map[usageKey]*uint256.Int
	allowanceUsed map[usageKey]*uint256.Int
	heldFees      map[ProjectID][]HeldFee
}

func newState() *state {
	return &state{
		locks:         make(map[Scope]*sync.Mutex),
		claims:        make(map[ProjectID]Identity),
		balances:      make(map[Scope]*uint256.Int),
		used:          make(map[usageKey]*uint256.Int),
		allowanceUsed: make(map[usageKey]*uint256.Int),
		heldFees:      make(map[ProjectID][]HeldFee),
	}
}

// lockFor returns the mutex serializing mutations for one scope, creating it
// on first touch.
func (s *state) lockFor(scope Scope) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[scope]
	if !ok {
		l = &sync.Mutex{}
		s.locks[scope] = l
	}
	return l
}

// claimedTerminal returns the terminal bound to a project, if any.
func (s *state) claimedTerminal(project ProjectID) (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.claims[project]
	return t, ok
}

// claim binds a terminal to a project. Returns false if already claimed.
func (s *state) claim(project ProjectID, terminal Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claims[project]; ok {
		return false
	}
	s.claims[project] = terminal
	return true
}

// balanceOf returns a copy of the scope's balance; absent reads as zero.
func (s *state) balanceOf(scope Scope) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.balances[scope]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

// setBalance replaces the scope's balance with a copy of b.
func (s *state) setBalance(scope Scope, b *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.balances[scope] = new(uint256.Int).Set(b)
}

func (s *state) usedOf(scope Scope, number uint64) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.used[usageKey{scope, number}]; ok {
		return new(uint256.Int).Set(u)
	}
	return new(uint256.Int)
}

func (s *state) setUsed(scope Scope, number uint64, u *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.used[usageKey{scope, number}] = new(uint256.Int).Set(u)
}

func (s *state) allowanceUsedOf(scope Scope, configuration uint64) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.allowanceUsed[usageKey{scope, configuration}]; ok {
		return new(uint256.Int).Set(u)
	}
	return new(uint256.Int)
}

func (s *state) setAllowanceUsed(scope Scope, configuration uint64, u *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.allowanceUsed[usageKey{scope, configuration}] = new(uint256.Int).Set(u)
}

// appendHeldFee appends to the project's held-fee list. List-append is the
// only producer; drainHeldFees is the only consumer.
func (s *state) appendHeldFee(project ProjectID, fee HeldFee) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fee.Amount = new(uint256.Int).Set(fee.Amount)
	s.heldFees[project] = append(s.heldFees[project], fee)
}

// drainHeldFees atomically swaps the project's held-fee list for an empty one
// and returns the removed copy in original append order. Iterating the
// removed copy is safe even if forwarding a fee re-enters the engine.
func (s *state) drainHeldFees(project ProjectID) []HeldFee {
	s.mu.Lock()
	defer s.mu.Unlock()

	drained := s.heldFees[project]
	delete(s.heldFees, project)
	return drained
}

// heldFeesOf returns a copy of the project's held-fee list.
func (s *state) heldFeesOf(project ProjectID) []HeldFee {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.heldFees[project]
	out := make([]HeldFee, len(src))
	for i, f := range src {
		f.Amount = new(uint256.Int).Set(f.Amount)
		out[i] = f
	}
	return out
}
