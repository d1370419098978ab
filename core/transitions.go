package core

import "strings"

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusFailed},
	OrderStatusPaid:    {OrderStatusProvisioned, OrderStatusProvisionFailed},
}

func CanTransition(from OrderStatus, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the order to target when the edge is allowed and leaves it
// untouched otherwise.
func (o *Order) TransitionTo(target OrderStatus) error {
	if o == nil {
		return NewInternalError("order is nil", nil)
	}
	if !target.Valid() {
		return newUnrecognizedStatusError(string(target))
	}
	if !CanTransition(o.Status, target) {
		return newInvalidTransitionError(o.Reference, o.Status, target)
	}
	o.Status = target
	return nil
}

// MapReportedStatus translates a gateway status string into the status it
// drives the order towards.
func MapReportedStatus(reported string) (OrderStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(reported)) {
	case "PAID", "SETTLED":
		return OrderStatusPaid, nil
	case "EXPIRED", "FAILED":
		return OrderStatusFailed, nil
	default:
		return "", newUnrecognizedStatusError(reported)
	}
}
