package checkout

// State is the orchestrator's position in the checkout sequence.
// Terminal resolution happens out of band, driven by the payment
// provider's callback to the recorded success/cancel destinations.
type State string

const (
	StateEditing                State = "EDITING"
	StateValidating             State = "VALIDATING"
	StateCreatingOrder          State = "CREATING_ORDER"
	StateCreatingPaymentSession State = "CREATING_PAYMENT_SESSION"
	StateRedirecting            State = "REDIRECTING"
	StateResolvedSuccess        State = "RESOLVED_SUCCESS"
	StateResolvedCancelled      State = "RESOLVED_CANCELLED"
)

func (s State) IsTerminal() bool {
	return s == StateResolvedSuccess || s == StateResolvedCancelled
}

// String representation (for logging)
func (s State) String() string {
	return string(s)
}
