package swap

import (
	"encoding/hex"
	"strconv"
)

const (
	EventTypeSwapInitiated = "swap.initiated"
	EventTypeSwapCompleted = "swap.completed"
	EventTypeSwapRefunded  = "swap.refunded"
	EventTypeSwapCancelled = "swap.cancelled"
	EventTypeConfigUpdated = "swap.config_updated"
	EventTypePaused        = "swap.paused"
	EventTypeResumed       = "swap.resumed"
	EventTypeFeesWithdrawn = "swap.fees_withdrawn"
)

// Event is the canonical payload emitted for every state change. External
// relays watch for swap.initiated; indexers consume the rest.
type Event struct {
	Type       string
	Attributes map[string]string
}

// EventType implements the events.Event interface.
func (e *Event) EventType() string {
	if e == nil {
		return ""
	}
	return e.Type
}

// NewInitiatedEvent returns the canonical payload for a newly initiated swap.
// It carries everything the relay needs to settle the destination side.
func NewInitiatedEvent(s *Swap) *Event {
	evt := newSwapEvent(EventTypeSwapInitiated, s)
	if s != nil {
		evt.Attributes["rate"] = cloneBigInt(s.Rate).String()
		evt.Attributes["destinationAmount"] = cloneBigInt(s.DestinationAmount).String()
	}
	return evt
}

// NewCompletedEvent returns the payload emitted when the relay confirms
// destination-side settlement.
func NewCompletedEvent(s *Swap, completedAt int64) *Event {
	evt := newSwapEvent(EventTypeSwapCompleted, s)
	if s != nil {
		evt.Attributes["messageRef"] = hex.EncodeToString(s.MessageRef[:])
	}
	evt.Attributes["completedAt"] = strconv.FormatInt(completedAt, 10)
	return evt
}

// NewRefundedEvent returns the payload emitted when escrow is returned to the
// initiator after the deadline.
func NewRefundedEvent(s *Swap, refundedAt int64) *Event {
	evt := newSwapEvent(EventTypeSwapRefunded, s)
	evt.Attributes["reason"] = "timeout"
	evt.Attributes["refundedAt"] = strconv.FormatInt(refundedAt, 10)
	return evt
}

// NewCancelledEvent returns the payload emitted for a pre-deadline
// cancellation, including the retained penalty.
func NewCancelledEvent(s *Swap, penalty string, cancelledAt int64) *Event {
	evt := newSwapEvent(EventTypeSwapCancelled, s)
	evt.Attributes["penalty"] = penalty
	evt.Attributes["cancelledAt"] = strconv.FormatInt(cancelledAt, 10)
	return evt
}

// NewConfigUpdatedEvent returns the payload emitted after a successful
// reconfiguration.
func NewConfigUpdatedEvent(cfg *Config, updatedAt int64) *Event {
	attrs := map[string]string{
		"updatedAt": strconv.FormatInt(updatedAt, 10),
	}
	if cfg != nil {
		attrs["minAmount"] = cloneBigInt(cfg.MinAmount).String()
		attrs["maxAmount"] = cloneBigInt(cfg.MaxAmount).String()
		attrs["maxSlippageBps"] = strconv.FormatUint(cfg.MaxSlippageBps, 10)
		attrs["feeBps"] = strconv.FormatUint(cfg.FeeBps, 10)
		attrs["timeoutSeconds"] = strconv.FormatInt(cfg.TimeoutSeconds, 10)
	}
	return &Event{Type: EventTypeConfigUpdated, Attributes: attrs}
}

// NewPausedEvent returns the payload emitted when initiations are suspended.
func NewPausedEvent(at int64) *Event {
	return &Event{Type: EventTypePaused, Attributes: map[string]string{
		"at": strconv.FormatInt(at, 10),
	}}
}

// NewResumedEvent returns the payload emitted when initiations resume.
func NewResumedEvent(at int64) *Event {
	return &Event{Type: EventTypeResumed, Attributes: map[string]string{
		"at": strconv.FormatInt(at, 10),
	}}
}

// NewFeesWithdrawnEvent returns the payload emitted for a fee withdrawal.
func NewFeesWithdrawnEvent(recipient [20]byte, amount string, at int64) *Event {
	return &Event{Type: EventTypeFeesWithdrawn, Attributes: map[string]string{
		"recipient": hex.EncodeToString(recipient[:]),
		"amount":    amount,
		"at":        strconv.FormatInt(at, 10),
	}}
}

func newSwapEvent(eventType string, s *Swap) *Event {
	attrs := make(map[string]string)
	if s == nil {
		return &Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(s.ID[:])
	attrs["initiator"] = hex.EncodeToString(s.Initiator[:])
	attrs["recipient"] = s.Recipient
	attrs["sourceAmount"] = cloneBigInt(s.SourceAmount).String()
	attrs["fee"] = cloneBigInt(s.Fee).String()
	attrs["initiatedAt"] = strconv.FormatInt(s.InitiatedAt, 10)
	attrs["deadline"] = strconv.FormatInt(s.Deadline, 10)
	attrs["status"] = s.Status.String()
	return &Event{Type: eventType, Attributes: attrs}
}
