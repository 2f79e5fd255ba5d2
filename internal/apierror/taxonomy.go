package apierror

// The sentinel table below is the orchestrator's complete error
// taxonomy, one entry per spec.md §7 classification. HTTP status and
// CLI exit code are fixed here, once, so both façades agree.
var (
	// ErrUsage — bad arguments, unknown names. Nothing changes.
	ErrUsage = &Error{Code: "UsageError", Message: "invalid arguments", HTTPStatus: 400, ExitCode: 2}

	// ErrNotFound — referenced entity absent.
	ErrNotFound = &Error{Code: "NotFound", Message: "entity not found", HTTPStatus: 404, ExitCode: 3}

	// ErrConflict — name collision, double-provision, illegal state
	// transition.
	ErrConflict = &Error{Code: "Conflict", Message: "conflicting request", HTTPStatus: 409, ExitCode: 4}

	// ErrNoCapacity — no eligible VM in pool at acquire time.
	ErrNoCapacity = &Error{Code: "NoCapacity", Message: "no warm VM available in pool", HTTPStatus: 409, ExitCode: 4}

	// ErrInsufficientMemory — host headroom guard refused a start.
	ErrInsufficientMemory = &Error{Code: "InsufficientMemory", Message: "insufficient host memory headroom", HTTPStatus: 409, ExitCode: 4}

	// ErrTransientHypervisor — driver classified the failure as
	// retryable. The lifecycle controller retries up to 3x before this
	// escalates to the caller.
	ErrTransientHypervisor = &Error{Code: "TransientHypervisorError", Message: "transient hypervisor error", HTTPStatus: 503, ExitCode: 5}

	// ErrPermanentHypervisor — driver classified the failure as
	// terminal. The VM transitions to Error.
	ErrPermanentHypervisor = &Error{Code: "PermanentHypervisorError", Message: "permanent hypervisor error", HTTPStatus: 500, ExitCode: 6}

	// ErrTimeout — wait-for-ready cap reached.
	ErrTimeout = &Error{Code: "Timeout", Message: "wait-for-ready timed out", HTTPStatus: 504, ExitCode: 5}

	// ErrGuestNotResponding — heartbeat absent after start.
	ErrGuestNotResponding = &Error{Code: "GuestNotResponding", Message: "guest heartbeat not observed", HTTPStatus: 504, ExitCode: 5}

	// ErrQuarantined — VM in Error state, excluded from selection.
	ErrQuarantined = &Error{Code: "Quarantined", Message: "VM is quarantined", HTTPStatus: 409, ExitCode: 6}

	// ErrInternal — anything else.
	ErrInternal = &Error{Code: "InternalError", Message: "internal error", HTTPStatus: 500, ExitCode: 1}
)

// HTTPStatus returns the HTTP status code for err, defaulting to 500 for
// errors that are not *Error.
func HTTPStatus(err error) int {
	if e, ok := err.(*Error); ok && e.HTTPStatus > 0 {
		return e.HTTPStatus
	}
	return 500
}

// ExitCode returns the CLI exit code for err, defaulting to 1 (other)
// for errors that are not *Error.
func ExitCode(err error) int {
	if e, ok := err.(*Error); ok && e.ExitCode > 0 {
		return e.ExitCode
	}
	return 1
}
