// status.go - Forward-only order status flow.
//
// pending -> preparing -> ready -> delivered, with cancelled reachable
// only from pending. delivered and cancelled are terminal.
package pos

// statusFlow maps each status to the set of statuses it may move to.
var statusFlow = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady},
	StatusReady:     {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := statusFlow[s]
	return ok
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether from -> to is allowed by the flow.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range statusFlow[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a *TransitionError (wrapping
// ErrInvalidTransition) when from -> to is not allowed.
func ValidateTransition(id OrderID, from, to OrderStatus) error {
	if !to.Valid() || !CanTransition(from, to) {
		return &TransitionError{OrderID: id, From: from, To: to}
	}
	return nil
}
