package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeMarketCreated
	EventTypeMinted
	EventTypeRedeemed
	EventTypeBorrowed
	EventTypeRepaid
	EventTypePriceChanged
	EventTypeCollateralFactorChanged
	EventTypeAdminAdded
)

// Envelope wraps every event in the operation log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Unique event identity
	EventID uuid.UUID

	// Event type discriminator
	EventType EventType

	// Market context (nil for registry-level events)
	Market *string

	// Address that issued the command
	Caller string

	// Engine clock at apply time
	Timestamp time.Time

	// JSON-encoded event-specific data
	Payload []byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// EventType returns the discriminator
	EventType() EventType

	// MarketName returns the market context (nil for registry-level events)
	MarketName() *string
}

func (et EventType) String() string {
	switch et {
	case EventTypeMarketCreated:
		return "MarketCreated"
	case EventTypeMinted:
		return "Minted"
	case EventTypeRedeemed:
		return "Redeemed"
	case EventTypeBorrowed:
		return "Borrowed"
	case EventTypeRepaid:
		return "Repaid"
	case EventTypePriceChanged:
		return "PriceChanged"
	case EventTypeCollateralFactorChanged:
		return "CollateralFactorChanged"
	case EventTypeAdminAdded:
		return "AdminAdded"
	default:
		return "Unknown"
	}
}
