package entities

// SystemChannel is the name of the primary channel handed to the engine at creation.
const SystemChannel = "system"

// PointerAction mirrors the platform motion event action codes.
type PointerAction int

const (
	PointerDown   PointerAction = 0
	PointerUp     PointerAction = 1
	PointerMove   PointerAction = 2
	PointerCancel PointerAction = 3
)

func (a PointerAction) String() string {
	switch a {
	case PointerDown:
		return "down"
	case PointerUp:
		return "up"
	case PointerMove:
		return "move"
	case PointerCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// PointerEvent is the pointer message sent on the system channel.
// Decoders ignore any additional fields.
type PointerEvent struct {
	X      float64       `json:"x" cbor:"x" jsonschema:"description=Horizontal position in surface pixels"`
	Y      float64       `json:"y" cbor:"y" jsonschema:"description=Vertical position in surface pixels"`
	Action PointerAction `json:"action" cbor:"action" jsonschema:"description=0 down / 1 up / 2 move / 3 cancel"`
}

// TimersChannel is the conventional name of the deferred callback channel.
const TimersChannel = "timers"

// Timer message types exchanged on the timers channel.
const (
	TimerSet   = "setTimeout"
	TimerClear = "clearTimeout"
	TimerFired = "timeout"
)

// TimerMessage is the wire form of the deferred callback protocol.
// The engine sends TimerSet / TimerClear; the host answers with TimerFired.
type TimerMessage struct {
	Type    string `json:"type" jsonschema:"enum=setTimeout,enum=clearTimeout,enum=timeout"`
	ID      int64  `json:"id"`
	Timeout int64  `json:"timeout,omitempty" jsonschema:"description=Delay in milliseconds (setTimeout only)"`
}
