package models

type OrderStatus string

const (
	StatusPending             OrderStatus = "PENDING"
	StatusPendingCancellation OrderStatus = "PENDING_CANCELLATION"
	StatusOrdered             OrderStatus = "ORDERED"
	StatusCancelled           OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentDue        PaymentStatus = "DUE"
	PaymentSuccessful PaymentStatus = "SUCCESSFUL"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)

var validNextStatus = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:             {StatusOrdered: true, StatusPendingCancellation: true, StatusCancelled: true},
	StatusOrdered:             {StatusPendingCancellation: true},
	StatusPendingCancellation: {StatusOrdered: true, StatusCancelled: true},
	StatusCancelled:           {},
}

var validNextPayment = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentDue:        {PaymentSuccessful: true, PaymentFailed: true},
	PaymentSuccessful: {PaymentRefunded: true},
	PaymentFailed:     {PaymentRefunded: true}, // a late capture is returned
	PaymentRefunded:   {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNextStatus[from][to]
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return validNextPayment[from][to]
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	_, ok := validNextStatus[st]
	return st, ok
}

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	p := PaymentStatus(s)
	_, ok := validNextPayment[p]
	return p, ok
}
