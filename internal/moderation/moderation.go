// Package moderation defines the listing moderation state machine.
//
// Valid state graph:
//
//	DRAFT ──► PENDING_REVIEW ──► ACTIVE
//	              │  ▲              │
//	              │  └─── re-edit ──┘
//	              ▼
//	     REJECTED_PERMANENT
//
// PENDING_REVIEW may also loop onto itself when a profane resubmission is
// still below the limit.
// REJECTED_PERMANENT is terminal. A listing reaches it on the third profane
// submission, counting creation and every later edit.
package moderation

import "fmt"

// State values mirror the listings.status column.
type State string

const (
	StateDraft             State = "DRAFT"
	StatePendingReview     State = "PENDING_REVIEW"
	StateActive            State = "ACTIVE"
	StateRejectedPermanent State = "REJECTED_PERMANENT"
)

// MaxProfaneSubmissions is the number of profane submissions after which a
// listing is rejected for good.
const MaxProfaneSubmissions = 3

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[State][]State{
	StateDraft:         {StatePendingReview},
	StatePendingReview: {StateActive, StatePendingReview, StateRejectedPermanent},
	StateActive:        {StatePendingReview},
	// REJECTED_PERMANENT is terminal: no outgoing transitions
}

// ParseState converts a raw string to a State.
func ParseState(s string) (State, error) {
	st := State(s)
	switch st {
	case StateDraft, StatePendingReview, StateActive, StateRejectedPermanent:
		return st, nil
	}
	return "", fmt.Errorf("unknown moderation state %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted.
func IsTransitionAllowed(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no edits are accepted in s.
func IsTerminal(s State) bool { return s == StateRejectedPermanent }

// IsLocked reports whether a listing with this many profane submissions
// accepts no further edits.
func IsLocked(editAttempts int) bool { return editAttempts >= MaxProfaneSubmissions }

// Outcome is the result of reviewing one submission.
type Outcome int

const (
	// Approved: the text is clean, the listing goes live.
	Approved Outcome = iota
	// Profane: the text was rejected, the seller may resubmit.
	Profane
	// Rejected: the submission limit is reached, the listing is closed for good.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Approved:
		return "approved"
	case Profane:
		return "profane"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Verdict is the state a listing moves to after review.
type Verdict struct {
	Outcome      Outcome
	State        State
	Active       bool
	EditAttempts int
}

// Review decides the next state for a submission under review. editAttempts
// is the count before this submission; it only ever grows.
func Review(editAttempts int, profane bool) Verdict {
	if !profane {
		return Verdict{Outcome: Approved, State: StateActive, Active: true, EditAttempts: editAttempts}
	}
	attempts := editAttempts + 1
	if IsLocked(attempts) {
		return Verdict{Outcome: Rejected, State: StateRejectedPermanent, Active: false, EditAttempts: attempts}
	}
	return Verdict{Outcome: Profane, State: StatePendingReview, Active: false, EditAttempts: attempts}
}
