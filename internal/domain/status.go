package domain

// ChargeStatus represents the current state of a charge in its lifecycle
type ChargeStatus string

const (
	StatusCreated              ChargeStatus = "CREATED"
	StatusEnteringDetails      ChargeStatus = "ENTERING_DETAILS"
	StatusAuthReady            ChargeStatus = "AUTH_READY"
	StatusAuthSubmitted        ChargeStatus = "AUTH_SUBMITTED"
	StatusAuth3DSRequired      ChargeStatus = "AUTH_3DS_REQUIRED"
	StatusAuthSuccess          ChargeStatus = "AUTH_SUCCESS"
	StatusAuthRejected         ChargeStatus = "AUTH_REJECTED"
	StatusAuthError            ChargeStatus = "AUTH_ERROR"
	StatusCaptureApproved      ChargeStatus = "CAPTURE_APPROVED"
	StatusCaptureApprovedRetry ChargeStatus = "CAPTURE_APPROVED_RETRY"
	StatusCaptureSubmitted     ChargeStatus = "CAPTURE_SUBMITTED"
	StatusCaptured             ChargeStatus = "CAPTURED"
	StatusCaptureError         ChargeStatus = "CAPTURE_ERROR"
	StatusUserCancelled        ChargeStatus = "USER_CANCELLED"
	StatusSystemCancelled      ChargeStatus = "SYSTEM_CANCELLED"
	StatusExpired              ChargeStatus = "EXPIRED"
)

var cancellable = []ChargeStatus{
	StatusUserCancelled,
	StatusSystemCancelled,
	StatusExpired,
}

// transitions is the full set of declared edges. Anything not listed here is illegal.
var transitions = map[ChargeStatus][]ChargeStatus{
	StatusCreated:         append([]ChargeStatus{StatusEnteringDetails}, cancellable...),
	StatusEnteringDetails: append([]ChargeStatus{StatusAuthReady}, cancellable...),
	StatusAuthReady:       append([]ChargeStatus{StatusAuthSubmitted}, cancellable...),
	StatusAuthSubmitted: append([]ChargeStatus{
		StatusAuthSuccess,
		StatusAuthRejected,
		StatusAuth3DSRequired,
		StatusAuthError,
	}, cancellable...),
	StatusAuth3DSRequired: append([]ChargeStatus{StatusAuthSubmitted}, cancellable...),
	StatusAuthSuccess:     append([]ChargeStatus{StatusCaptureApproved}, cancellable...),
	StatusCaptureApproved: {
		StatusCaptureSubmitted,
		StatusCaptureApprovedRetry,
		StatusCaptureError,
	},
	StatusCaptureApprovedRetry: {
		StatusCaptureSubmitted,
		StatusCaptureError,
	},
	StatusCaptureSubmitted: {StatusCaptured},
}

// order ranks statuses along the lifecycle so that stale notifications can be told apart
// from ones that skip ahead.
var order = map[ChargeStatus]int{
	StatusCreated:              0,
	StatusEnteringDetails:      1,
	StatusAuthReady:            2,
	StatusAuthSubmitted:        3,
	StatusAuth3DSRequired:      4,
	StatusAuthSuccess:          5,
	StatusAuthRejected:         5,
	StatusAuthError:            5,
	StatusCaptureApproved:      6,
	StatusCaptureApprovedRetry: 7,
	StatusCaptureSubmitted:     8,
	StatusCaptured:             9,
	StatusCaptureError:         9,
	StatusUserCancelled:        9,
	StatusSystemCancelled:      9,
	StatusExpired:              9,
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []ChargeStatus {
	return []ChargeStatus{
		StatusCreated,
		StatusEnteringDetails,
		StatusAuthReady,
		StatusAuthSubmitted,
		StatusAuth3DSRequired,
		StatusAuthSuccess,
		StatusAuthRejected,
		StatusAuthError,
		StatusCaptureApproved,
		StatusCaptureApprovedRetry,
		StatusCaptureSubmitted,
		StatusCaptured,
		StatusCaptureError,
		StatusUserCancelled,
		StatusSystemCancelled,
		StatusExpired,
	}
}

func (s ChargeStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s ChargeStatus) Valid() bool {
	_, ok := order[s]
	return ok
}

// CanTransitionTo reports whether s -> target is a declared edge.
func (s ChargeStatus) CanTransitionTo(target ChargeStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no edge leaves s.
func (s ChargeStatus) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// IsCaptureEligible reports whether the capture worker may act on a charge in s.
func (s ChargeStatus) IsCaptureEligible() bool {
	switch s {
	case StatusAuthSuccess, StatusCaptureApproved, StatusCaptureApprovedRetry:
		return true
	}
	return false
}

// IsCancellable reports whether a user or the system may cancel a charge in s.
// AUTH_SUBMITTED has cancellation edges, but an authorisation in flight is never
// cancelled by request; reconciliation settles it first.
func (s ChargeStatus) IsCancellable() bool {
	switch s {
	case StatusCreated, StatusEnteringDetails, StatusAuthReady, StatusAuth3DSRequired, StatusAuthSuccess:
		return true
	}
	return false
}

// Precedes reports whether s sits strictly earlier in the lifecycle than other.
func (s ChargeStatus) Precedes(other ChargeStatus) bool {
	a, okA := order[s]
	b, okB := order[other]
	return okA && okB && a < b
}
