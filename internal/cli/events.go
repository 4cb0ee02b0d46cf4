package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aardvark-ui/bridge/application/schema"
	"github.com/aardvark-ui/bridge/application/validation"
	"github.com/aardvark-ui/bridge/domain/entities"
)

// Event types accepted on the run input.
const (
	EventPointer = "pointer"
	EventSend    = "send"
	EventResize  = "resize"
	EventTick    = "tick"
)

// Event is one line of scripted input.
type Event struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	X       float64         `json:"x,omitempty"`
	Y       float64         `json:"y,omitempty"`
	Action  int             `json:"action,omitempty"`
	Width   int             `json:"width,omitempty"`
	Height  int             `json:"height,omitempty"`
}

// EventError reports an input line that could not be used.
type EventError struct {
	Err  error
	Line int
}

func (e *EventError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

// eventParser turns input lines into events. Pointer events are checked
// against the pointer message schema before they reach a channel.
type eventParser struct {
	validator *validation.MessageValidator
	channels  map[string]bool
}

func newEventParser(cfg *entities.BridgeConfig) *eventParser {
	names := map[string]bool{entities.SystemChannel: true}
	for _, cc := range cfg.Channels {
		names[cc.Name] = true
	}
	if cfg.Timers {
		names[entities.TimersChannel] = true
	}
	return &eventParser{
		validator: validation.NewMessageValidator(schema.DefaultRegistry()),
		channels:  names,
	}
}

func (p *eventParser) parse(line []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, fmt.Errorf("invalid event: %w", err)
	}

	switch ev.Type {
	case EventPointer:
		if err := p.validator.Validate(schema.PointerSchema, line); err != nil {
			return Event{}, err
		}
		if ev.Action < int(entities.PointerDown) || ev.Action > int(entities.PointerCancel) {
			return Event{}, fmt.Errorf("unknown pointer action %d", ev.Action)
		}
	case EventSend:
		if !p.channels[ev.Channel] {
			return Event{}, fmt.Errorf("send on undeclared channel %q", ev.Channel)
		}
		if len(ev.Data) == 0 {
			return Event{}, fmt.Errorf("send on %q without data", ev.Channel)
		}
	case EventResize:
		if !entities.NewSurface(ev.Width, ev.Height).Valid() {
			return Event{}, fmt.Errorf("invalid resize %dx%d", ev.Width, ev.Height)
		}
	case EventTick:
	default:
		return Event{}, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return ev, nil
}

// scanEvents calls fn for every non-blank, non-comment line of r.
// Parsing stops at the first error.
func (p *eventParser) scanEvents(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := p.parse([]byte(line))
		if err != nil {
			return &EventError{Line: lineNo, Err: err}
		}
		if err := fn(ev); err != nil {
			return &EventError{Line: lineNo, Err: err}
		}
	}
	return scanner.Err()
}
