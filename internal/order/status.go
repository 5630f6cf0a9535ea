package order

type Status string

const (
	StatusDraft          Status = "draft"
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusCancelled      Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// CanTransition enforces the order lifecycle:
// draft → pending_payment → paid | cancelled.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusDraft:
		return to == StatusPendingPayment || to == StatusCancelled
	case StatusPendingPayment:
		return to == StatusPaid || to == StatusCancelled
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}
