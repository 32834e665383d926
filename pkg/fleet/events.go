package fleet

// EventType names one class of outward notification.
type EventType string

const (
	// EventReady fires once the network reaches the ready state.
	EventReady EventType = "ready"
	// EventPermitJoining reports each join-window change.
	EventPermitJoining EventType = "permitJoining"
	// EventInd reports device indications: incoming, leaving, status.
	EventInd EventType = "ind"
	// EventError reports asynchronous failures with no completion callback.
	EventError EventType = "error"
)

// IndType distinguishes device indications.
type IndType string

const (
	IndIncoming IndType = "devIncoming"
	IndLeaving  IndType = "devLeaving"
	IndStatus   IndType = "devStatus"
)

// Event is one outward notification. Address and Ind are set for EventInd,
// Remaining for EventPermitJoining, Err for EventError. Data carries the
// indication payload when there is one.
type Event struct {
	Type      EventType
	Ind       IndType
	Address   string
	Remaining int
	Data      any
	Err       error
}
