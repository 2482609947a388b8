// Package actor implements a minimal actor runtime: a bounded mailbox, a
// single reception goroutine per actor, typed messages, and a heartbeat
// contract the Supervisor uses to classify actors as unresponsive.
package actor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/core/ids"
)

// HeartbeatInterval is how often a running actor emits a heartbeat.
const HeartbeatInterval = 30 * time.Second

// MissedHeartbeatThreshold is the number of consecutively missed
// heartbeats after which an actor is considered unresponsive.
const MissedHeartbeatThreshold = 3

// Message is the envelope every actor mailbox carries. Payload is the
// typed message body; Reply, if non-nil, receives the handler's response
// once the message is processed (request/response over an otherwise
// fire-and-forget mailbox).
type Message struct {
	Payload any
	Reply   chan<- any
}

// Handler processes one message. A returned error is reported to the
// actor's Supervisor via its OnError hook but does not stop the actor.
type Handler func(ctx context.Context, msg Message) error

// Status is an actor's externally observable lifecycle state.
type Status int

const (
	Starting Status = iota
	Active
	Unresponsive
	Stopped
)

func (s Status) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Active:
		return "Active"
	case Unresponsive:
		return "Unresponsive"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// OnError is invoked from the actor's reception goroutine whenever
// Handler returns an error; it never blocks message processing.
type OnError func(id ids.ID, err error)

// OnHeartbeat is invoked every HeartbeatInterval while the actor runs.
type OnHeartbeat func(id ids.ID, at time.Time)

// Actor is a single mailbox-driven unit of concurrency: one goroutine
// receives from a bounded channel and dispatches to Handler in order.
type Actor struct {
	ID      ids.ID
	Role    string
	mailbox chan Message
	handler Handler
	clock   ids.Clock

	onError     OnError
	onHeartbeat OnHeartbeat

	mu             sync.RWMutex
	status         Status
	lastHeartbeat  time.Time
	missedBeats    int

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs an Actor with a mailbox of the given capacity. It does
// not start the reception goroutine; call Start.
func New(role string, mailboxCapacity int, handler Handler, clock ids.Clock, onError OnError, onHeartbeat OnHeartbeat) *Actor {
	if clock == nil {
		clock = ids.SystemClock{}
	}
	return &Actor{
		ID:          ids.New(),
		Role:        role,
		mailbox:     make(chan Message, mailboxCapacity),
		handler:     handler,
		clock:       clock,
		onError:     onError,
		onHeartbeat: onHeartbeat,
		status:      Starting,
		done:        make(chan struct{}),
	}
}

// Send enqueues a message without blocking past ctx's deadline. Returns
// an error if the mailbox is full and ctx expires first, or if the actor
// has stopped.
func (a *Actor) Send(ctx context.Context, msg Message) error {
	select {
	case a.mailbox <- msg:
		return nil
	case <-a.done:
		return fmt.Errorf("actor %s: mailbox closed", a.ID)
	case <-ctx.Done():
		return fmt.Errorf("actor %s: mailbox full: %w", a.ID, ctx.Err())
	}
}

// Status returns the actor's current observable state.
func (a *Actor) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// LastHeartbeat reports when the actor last emitted a heartbeat.
func (a *Actor) LastHeartbeat() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastHeartbeat
}

func (a *Actor) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

// Start launches the single reception goroutine. It runs until ctx is
// cancelled or Stop is called.
func (a *Actor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.setStatus(Active)
	a.beat()

	go func() {
		defer close(a.done)
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				a.setStatus(Stopped)
				return
			case <-ticker.C:
				a.beat()
			case msg, ok := <-a.mailbox:
				if !ok {
					a.setStatus(Stopped)
					return
				}
				if err := a.handler(ctx, msg); err != nil && a.onError != nil {
					a.onError(a.ID, err)
				}
			}
		}
	}()
}

func (a *Actor) beat() {
	now := a.clock.Now()
	a.mu.Lock()
	a.lastHeartbeat = now
	a.missedBeats = 0
	if a.status != Stopped {
		a.status = Active
	}
	a.mu.Unlock()
	if a.onHeartbeat != nil {
		a.onHeartbeat(a.ID, now)
	}
}

// CheckResponsiveness marks the actor Unresponsive once it has missed
// MissedHeartbeatThreshold consecutive heartbeats as judged against now.
// A Supervisor polls this; it is not self-driven, since the actor's own
// goroutine cannot detect its own stall.
func (a *Actor) CheckResponsiveness(now time.Time) Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == Stopped {
		return a.status
	}
	if now.Sub(a.lastHeartbeat) >= HeartbeatInterval {
		a.missedBeats++
	}
	if a.missedBeats >= MissedHeartbeatThreshold {
		a.status = Unresponsive
	}
	return a.status
}

// Stop cancels the reception goroutine and waits for it to exit.
func (a *Actor) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	<-a.done
}
