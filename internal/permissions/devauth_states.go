package permissions

import "github.com/skillnest/registry/internal/store"

// CanApproveOrDeny reports whether a session in the given state accepts a
// user approve/deny action: only pending does.
func CanApproveOrDeny(state store.SessionState) bool {
	return state == store.SessionPending
}

// CanExchange reports whether a session in the given state accepts a token
// exchange: only approved does, and only once (a successful exchange moves
// the state to exchanged, which this then rejects).
func CanExchange(state store.SessionState) bool {
	return state == store.SessionApproved
}

// NextOnApprove, NextOnDeny, and NextOnExchange name the target state for
// each valid session transition.
func NextOnApprove() store.SessionState { return store.SessionApproved }
func NextOnDeny() store.SessionState    { return store.SessionDenied }
func NextOnExchange() store.SessionState { return store.SessionExchanged }
