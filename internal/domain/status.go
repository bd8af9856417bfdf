package domain

// Phase is the lifecycle stage of one asynchronous request.
type Phase string

const (
	PhasePending Phase = "pending"
	PhaseSuccess Phase = "success"
	PhaseFailure Phase = "failure"
)

// Unit is the argument of requests that take no input, such as a location fix.
type Unit struct{}

// Status describes one asynchronous request keyed by its input argument.
// Result is only meaningful in PhaseSuccess and Kind only in PhaseFailure.
// Arg stays the same for the lifetime of one logical request.
type Status[In, Out any] struct {
	Phase  Phase     `json:"phase"`
	Arg    In        `json:"arg"`
	Result Out       `json:"result,omitempty"`
	Kind   ErrorKind `json:"error,omitempty"`
}

// Pending returns a status for a request that is in flight.
func Pending[In, Out any](arg In) *Status[In, Out] {
	return &Status[In, Out]{Phase: PhasePending, Arg: arg}
}

// Succeeded returns a terminal status carrying a result.
func Succeeded[In, Out any](arg In, result Out) *Status[In, Out] {
	return &Status[In, Out]{Phase: PhaseSuccess, Arg: arg, Result: result}
}

// Failed returns a terminal status carrying a classified error.
func Failed[In, Out any](arg In, kind ErrorKind) *Status[In, Out] {
	return &Status[In, Out]{Phase: PhaseFailure, Arg: arg, Kind: kind}
}

// IsTerminal reports whether the request has completed. A nil status is not terminal.
func (s *Status[In, Out]) IsTerminal() bool {
	return s != nil && (s.Phase == PhaseSuccess || s.Phase == PhaseFailure)
}

// IsPending reports whether the request is still in flight.
func (s *Status[In, Out]) IsPending() bool {
	return s != nil && s.Phase == PhasePending
}
