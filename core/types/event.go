package types

// Event is a structured record of a committed state transition. Exactly one
// event is emitted per successful mutating operation.
type Event struct {
	Type       string
	Attributes map[string]string
}
