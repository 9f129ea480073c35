package outbox

// Event is the domain event envelope written to the outbox table. The Kafka
// topic name equals EventType; push-notification delivery consumes these
// topics downstream.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	EventBookingCreated   = "booking.created.v1"
	EventBookingConfirmed = "booking.confirmed.v1"
	EventBookingCancelled = "booking.cancelled.v1"
	EventBookingNoShow    = "booking.no_show.v1"
)
