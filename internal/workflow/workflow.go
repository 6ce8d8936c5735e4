// Package workflow owns the legal transition graph between application
// lifecycle states. Every status change in the system goes through the
// validations here; the orchestration in internal/service never mutates a
// status it has not validated against this table.
package workflow

import (
	"fmt"
	"strings"

	"github.com/minilos/origination-engine/internal/domain"
	"github.com/minilos/origination-engine/pkg/errors"
)

// transitions maps each state to the set of states it may move to. Terminal
// states map to an empty slice.
var transitions = map[domain.ApplicationStatus][]domain.ApplicationStatus{
	domain.StatusDraft:             {domain.StatusIdentityPending},
	domain.StatusIdentityPending:   {domain.StatusIdentityCompleted, domain.StatusNotEligible},
	domain.StatusIdentityCompleted: {domain.StatusCreditPending},
	domain.StatusCreditPending:     {domain.StatusCreditCompleted, domain.StatusNotEligible},
	domain.StatusCreditCompleted:   {domain.StatusEligible, domain.StatusNotEligible},
	domain.StatusEligible:          {},
	domain.StatusNotEligible:       {},
}

// AllowedTargets returns the states reachable from current in one step.
func AllowedTargets(current domain.ApplicationStatus) []domain.ApplicationStatus {
	return transitions[current]
}

// IsTerminal reports whether the state has no outgoing transitions.
func IsTerminal(s domain.ApplicationStatus) bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// AssertStatus fails with a workflow violation when the application is not in
// the expected state.
func AssertStatus(current, expected domain.ApplicationStatus) error {
	if current != expected {
		return errors.WrapWorkflowViolation(fmt.Sprintf(
			"invalid workflow state: expected %q, but current status is %q", expected, current))
	}
	return nil
}

// CanTransition reports whether current -> target is in the transition table.
func CanTransition(current, target domain.ApplicationStatus) bool {
	for _, t := range transitions[current] {
		if t == target {
			return true
		}
	}
	return false
}

// ValidateTransition fails with a workflow violation when current -> target
// is not legal. The message enumerates the legal targets, or states that the
// current state is terminal.
func ValidateTransition(current, target domain.ApplicationStatus) error {
	if CanTransition(current, target) {
		return nil
	}

	allowed := transitions[current]
	if len(allowed) == 0 {
		return errors.WrapWorkflowViolation(fmt.Sprintf(
			"cannot transition from %q to %q: %q is terminal", current, target, current))
	}

	names := make([]string, len(allowed))
	for i, t := range allowed {
		names[i] = string(t)
	}
	return errors.WrapWorkflowViolation(fmt.Sprintf(
		"cannot transition from %q to %q, valid transitions: %s",
		current, target, strings.Join(names, ", ")))
}

// NextStatus resolves the outcome-conditioned successor of current. For the
// pending states success selects between the completed state and
// NOT_ELIGIBLE; for DRAFT and CREDIT_COMPLETED the successor is fixed by the
// table. ok is false for terminal states.
func NextStatus(current domain.ApplicationStatus, success bool) (next domain.ApplicationStatus, ok bool) {
	switch current {
	case domain.StatusDraft:
		return domain.StatusIdentityPending, true
	case domain.StatusIdentityPending:
		if success {
			return domain.StatusIdentityCompleted, true
		}
		return domain.StatusNotEligible, true
	case domain.StatusIdentityCompleted:
		return domain.StatusCreditPending, true
	case domain.StatusCreditPending:
		if success {
			return domain.StatusCreditCompleted, true
		}
		return domain.StatusNotEligible, true
	case domain.StatusCreditCompleted:
		if success {
			return domain.StatusEligible, true
		}
		return domain.StatusNotEligible, true
	default:
		return "", false
	}
}
