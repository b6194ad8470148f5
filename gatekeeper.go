package treasury

import "fmt"

// Access gatekeeper: binds each project to exactly one authorized terminal
// and validates delegated-permission calls for holder-initiated operations.
//
// The binding is write-once. It happens post-construction via an explicit
// Claim call - never a constructor-time hardcoded identity - because in the
// deployed system the terminal learns its store after both exist.

// Claim binds terminal as the single authorized caller for the project's
// mutating operations. A claim is set exactly once and is immutable
// thereafter; re-claiming fails with AlreadyClaimed.
func (e *Engine) Claim(project ProjectID, terminal Identity) error {
	scope := Scope{Terminal: terminal, Project: project}
	if terminal == "" {
		return errf(CodeUnauthorized, scope, "empty terminal identity")
	}
	if !e.st.claim(project, terminal) {
		claimed, _ := e.st.claimedTerminal(project)
		return errf(CodeAlreadyClaimed, Scope{Terminal: claimed, Project: project},
			"project already claimed by %s", claimed)
	}

	e.emit(Event{
		Kind:     EventTerminalClaimed,
		Project:  project,
		Terminal: terminal,
		Caller:   terminal,
	})
	return nil
}

// ClaimedTerminalOf returns the terminal bound to a project, if any.
func (e *Engine) ClaimedTerminalOf(project ProjectID) (Identity, bool) {
	return e.st.claimedTerminal(project)
}

// requireTerminal asserts caller is the project's claimed terminal and
// returns the caller's scope. Every mutating ledger operation runs this
// first.
func (e *Engine) requireTerminal(caller Identity, project ProjectID) (Scope, error) {
	scope := Scope{Terminal: caller, Project: project}
	claimed, ok := e.st.claimedTerminal(project)
	if !ok {
		return scope, errf(CodeUnauthorized, scope, "project has no claimed terminal")
	}
	if caller != claimed {
		return scope, errf(CodeUnauthorized, scope, "caller is not the claimed terminal")
	}
	return scope, nil
}

// requireHolderOperation authorizes a holder-initiated operation (allowance
// use, redemption) and returns the claimed terminal's scope the operation
// runs against.
//
// Accepted callers, in check order: the claimed terminal itself, the project
// owner, or an operator the permission oracle approves for the
// operation-specific permission index on the owner's behalf.
func (e *Engine) requireHolderOperation(caller Identity, project ProjectID, permission Permission) (Scope, error) {
	claimed, ok := e.st.claimedTerminal(project)
	if !ok {
		return Scope{Project: project, Terminal: caller},
			errf(CodeUnauthorized, Scope{Project: project, Terminal: caller}, "project has no claimed terminal")
	}
	scope := Scope{Terminal: claimed, Project: project}

	if caller == claimed {
		return scope, nil
	}

	owner, err := e.directory.OwnerOf(project)
	if err != nil {
		return scope, fmt.Errorf("resolve project owner: %w", err)
	}
	if caller == owner {
		return scope, nil
	}

	allowed, err := e.permissions.HasPermission(caller, owner, project, permission)
	if err != nil {
		return scope, fmt.Errorf("query permission oracle: %w", err)
	}
	if !allowed {
		return scope, errf(CodeUnauthorized, scope,
			"caller %s lacks permission %d for project owner %s", caller, permission, owner)
	}
	return scope, nil
}
