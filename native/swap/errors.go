package swap

import "errors"

var (
	// ErrInvalidRecipient indicates the destination recipient descriptor was empty.
	ErrInvalidRecipient = errors.New("swap: destination recipient required")
	// ErrAmountOutOfRange indicates the source amount fell outside the configured bounds.
	ErrAmountOutOfRange = errors.New("swap: amount outside configured bounds")
	// ErrInvalidMinimum indicates the caller-supplied minimum destination amount was not positive.
	ErrInvalidMinimum = errors.New("swap: minimum destination amount must be positive")
	// ErrSlippageExceeded indicates the quoted destination amount fell below the caller's floor.
	ErrSlippageExceeded = errors.New("swap: quote below minimum destination amount")
	// ErrSlippageAboveMaximum indicates the accepted slippage exceeded the protocol ceiling.
	ErrSlippageAboveMaximum = errors.New("swap: slippage exceeds configured maximum")
	// ErrInvalidConfig indicates a reconfiguration payload violated the config invariants.
	ErrInvalidConfig = errors.New("swap: invalid configuration")
	// ErrUnauthorized indicates the caller does not hold the role the operation requires.
	ErrUnauthorized = errors.New("swap: caller not authorized")
	// ErrInvalidStatus indicates the swap is not in a status that permits the transition.
	ErrInvalidStatus = errors.New("swap: invalid status for transition")
	// ErrEnginePaused indicates initiations are suspended by the operator.
	ErrEnginePaused = errors.New("swap: engine paused")
	// ErrNotYetExpired indicates a refund was requested before the deadline elapsed.
	ErrNotYetExpired = errors.New("swap: deadline not reached")
	// ErrSwapTimedOut indicates a completion arrived after the deadline elapsed.
	ErrSwapTimedOut = errors.New("swap: deadline passed")
	// ErrDuplicateMessage indicates the relay message reference was already consumed.
	ErrDuplicateMessage = errors.New("swap: completion message already processed")
	// ErrIDCollision indicates a freshly derived identifier clashed with an existing swap.
	ErrIDCollision = errors.New("swap: identifier collision")
	// ErrTransferFailed indicates the underlying ledger transfer could not be applied.
	ErrTransferFailed = errors.New("swap: ledger transfer failed")
	// ErrInsufficientBalance indicates the payer account does not cover the requested amount.
	ErrInsufficientBalance = errors.New("swap: insufficient balance")
	// ErrSwapNotFound indicates no swap is recorded under the supplied identifier.
	ErrSwapNotFound = errors.New("swap: not found")
)

// ErrorKind buckets the sentinel errors into the coarse taxonomy surfaced to
// RPC clients so UIs can distinguish retryable conditions from terminal ones.
type ErrorKind uint8

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindAuthorization
	KindState
	KindTiming
	KindDuplicate
	KindTransfer
	KindNotFound
)

// Classify maps an engine error onto its taxonomy bucket. Wrapped errors are
// unwrapped via errors.Is.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidRecipient),
		errors.Is(err, ErrAmountOutOfRange),
		errors.Is(err, ErrInvalidMinimum),
		errors.Is(err, ErrSlippageExceeded),
		errors.Is(err, ErrSlippageAboveMaximum),
		errors.Is(err, ErrInvalidConfig):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindAuthorization
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrEnginePaused):
		return KindState
	case errors.Is(err, ErrNotYetExpired), errors.Is(err, ErrSwapTimedOut):
		return KindTiming
	case errors.Is(err, ErrDuplicateMessage), errors.Is(err, ErrIDCollision):
		return KindDuplicate
	case errors.Is(err, ErrTransferFailed), errors.Is(err, ErrInsufficientBalance):
		return KindTransfer
	case errors.Is(err, ErrSwapNotFound):
		return KindNotFound
	default:
		return KindUnknown
	}
}

// String renders the kind for logging and RPC error payloads.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindTiming:
		return "timing"
	case KindDuplicate:
		return "duplicate"
	case KindTransfer:
		return "transfer"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
