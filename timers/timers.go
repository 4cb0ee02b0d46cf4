// Package timers lets an engine ask the host for deferred callbacks.
//
// The engine sends {"type":"setTimeout","id":n,"timeout":ms} and
// {"type":"clearTimeout","id":n} on a JSON channel. The host answers with
// {"type":"timeout","id":n} from Advance once the delay has elapsed.
// Timers are one-shot; setting an id that is already pending restarts it.
package timers

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aardvark-ui/bridge/channel"
	"github.com/aardvark-ui/bridge/domain/entities"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type timer struct {
	due time.Time
	id  int64
}

// Service tracks pending timers requested on one channel.
type Service struct {
	clock   Clock
	ch      *channel.MessageChannel[entities.TimerMessage]
	logger  *slog.Logger
	pending map[int64]time.Time
	mu      sync.Mutex
}

// New attaches a timer service to ch, replacing its handler.
func New(ch *channel.MessageChannel[entities.TimerMessage], opts ...Option) *Service {
	s := &Service{
		clock:   SystemClock,
		ch:      ch,
		logger:  slog.Default(),
		pending: make(map[int64]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("channel", ch.Name())
	ch.SetHandler(s.handle)
	return s
}

func (s *Service) handle(ctx context.Context, msg entities.TimerMessage) {
	switch msg.Type {
	case entities.TimerSet:
		delay := time.Duration(msg.Timeout) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
		s.mu.Lock()
		s.pending[msg.ID] = s.clock.Now().Add(delay)
		s.mu.Unlock()
	case entities.TimerClear:
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
	default:
		s.logger.WarnContext(ctx, "unknown timer message", "type", msg.Type, "id", msg.ID)
	}
}

// Advance fires every timer that is due, earliest first, and returns how
// many fired. A failed send is logged and the timer is still consumed.
func (s *Service) Advance(ctx context.Context) int {
	now := s.clock.Now()

	s.mu.Lock()
	var due []timer
	for id, at := range s.pending {
		if !at.After(now) {
			due = append(due, timer{id: id, due: at})
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})

	// sends happen without the lock; an engine may answer synchronously
	for _, t := range due {
		msg := entities.TimerMessage{Type: entities.TimerFired, ID: t.id}
		if err := s.ch.Send(ctx, msg); err != nil {
			s.logger.WarnContext(ctx, "timer not delivered", "id", t.id, "error", err)
		}
	}
	return len(due)
}

// Pending returns the number of timers waiting to fire.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Reset drops every pending timer.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[int64]time.Time)
}
