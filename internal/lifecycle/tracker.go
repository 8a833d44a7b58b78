// Package lifecycle advances outbound messages through the delivery
// acknowledgment states sent -> delivered -> read. Acks may arrive from the
// provider webhook in any order; the tracker applies only transitions that
// advance the state by exactly one step and drops everything else, so a read
// ack ahead of its delivered ack is discarded rather than applied.
package lifecycle

import (
	"log"
	"sync"
	"time"

	"whatsapp-console/internal/models"
	"whatsapp-console/internal/store"
)

// TransitionFunc observes a successful status transition.
type TransitionFunc func(msg models.Message, from, to models.MessageStatus)

// PersistFunc writes a status change to durable storage before the store is
// touched. A persist error aborts the transition.
type PersistFunc func(messageID string, status models.MessageStatus) error

type messageTimers struct {
	delivered *time.Timer
	read      *time.Timer
	fail      *time.Timer
}

// Tracker owns the delivery state machine and the pending ack timers, keyed
// by message id. Timers are cancelled when their message (or its contact) is
// deleted, so a late timer never mutates a dangling entry.
type Tracker struct {
	store *store.Store

	deliveredAfter time.Duration
	readAfter      time.Duration
	ackTimeout     time.Duration

	persist PersistFunc

	mu       sync.Mutex
	timers   map[string]*messageTimers
	acks     map[string]*sync.Mutex
	handlers []TransitionFunc
}

func NewTracker(st *store.Store, deliveredAfter, readAfter, ackTimeout time.Duration) *Tracker {
	return &Tracker{
		store:          st,
		deliveredAfter: deliveredAfter,
		readAfter:      readAfter,
		ackTimeout:     ackTimeout,
		timers:         make(map[string]*messageTimers),
		acks:           make(map[string]*sync.Mutex),
	}
}

// SetPersist installs the durable write hook.
func (t *Tracker) SetPersist(fn PersistFunc) {
	t.persist = fn
}

// OnTransition registers an observer for applied transitions. Observers run
// synchronously on the goroutine that applied the ack.
func (t *Tracker) OnTransition(fn TransitionFunc) {
	t.mu.Lock()
	t.handlers = append(t.handlers, fn)
	t.mu.Unlock()
}

// Track schedules the simulated provider acks for a freshly sent message:
// delivered at the configured offset from creation, read at its own offset
// from the same creation instant. A zero offset disables that simulated ack,
// leaving the transition to real webhook traffic; the ack timeout then marks
// the message failed if no delivered ack ever arrives.
func (t *Tracker) Track(messageID string) {
	mt := &messageTimers{}

	if t.deliveredAfter > 0 {
		mt.delivered = time.AfterFunc(t.deliveredAfter, func() {
			t.ApplyAck(messageID, models.StatusDelivered)
		})
	}
	if t.readAfter > 0 {
		mt.read = time.AfterFunc(t.readAfter, func() {
			t.ApplyAck(messageID, models.StatusRead)
		})
	}
	if t.ackTimeout > 0 {
		mt.fail = time.AfterFunc(t.ackTimeout, func() {
			t.ApplyAck(messageID, models.StatusFailed)
		})
	}

	t.mu.Lock()
	if old, ok := t.timers[messageID]; ok {
		old.stop()
	}
	t.timers[messageID] = mt
	t.mu.Unlock()
}

// ApplyAck applies an acknowledgment to a message. It is a no-op for unknown
// or deleted messages and for inbound messages, and rejects any transition
// that does not advance the state by exactly one step:
//
//	sent -> delivered, delivered -> read, and sent|delivered -> failed.
//
// Acks for one message are serialized: the guard, the durable write and the
// store write form one critical section, so of two racing acks from the same
// origin state exactly one applies and the loser re-reads the advanced state
// and is rejected. Observers run inside that section and must not ack.
// Reports whether the transition was applied.
func (t *Tracker) ApplyAck(messageID string, status models.MessageStatus) bool {
	unlock := t.lockMessage(messageID)
	defer unlock()

	msg, ok := t.store.MessageByID(messageID)
	if !ok || msg.Direction != models.DirectionOut {
		t.cancelTimers(messageID)
		return false
	}

	if !allowed(msg.Status, status) {
		return false
	}

	if t.persist != nil {
		if err := t.persist(messageID, status); err != nil {
			log.Printf("Error persisting status %s for message %s: %v", status, messageID, err)
			return false
		}
	}

	if !t.store.SetMessageStatus(messageID, status) {
		return false
	}

	from := msg.Status
	msg.Status = status

	t.mu.Lock()
	switch status {
	case models.StatusDelivered:
		// The message made it to the device; the failure timeout no longer
		// applies.
		if mt, ok := t.timers[messageID]; ok && mt.fail != nil {
			mt.fail.Stop()
			mt.fail = nil
		}
	case models.StatusRead, models.StatusFailed:
		if mt, ok := t.timers[messageID]; ok {
			mt.stop()
			delete(t.timers, messageID)
		}
		delete(t.acks, messageID)
	}
	handlers := append([]TransitionFunc(nil), t.handlers...)
	t.mu.Unlock()

	for _, fn := range handlers {
		fn(msg, from, status)
	}
	return true
}

// Cancel drops any pending timers for a message, typically because it was
// deleted.
func (t *Tracker) Cancel(messageID string) {
	t.cancelTimers(messageID)
}

// CancelContact drops pending timers for every message owned by the contact.
// Called on contact deletion so orphaned timers never fire.
func (t *Tracker) CancelContact(contactID string) {
	for _, msg := range t.store.MessagesForContact(contactID) {
		t.cancelTimers(msg.ID)
	}
}

// Stop cancels every pending timer. Used on shutdown and in tests.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, mt := range t.timers {
		mt.stop()
		delete(t.timers, id)
	}
	t.acks = make(map[string]*sync.Mutex)
}

// Pending reports whether the message still has scheduled timers.
func (t *Tracker) Pending(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[messageID]
	return ok
}

// lockMessage acquires the per-message ack lock, creating it on first use.
// Terminal transitions drop the entry; a straggler holding the old lock is
// harmless because the forward guard rejects it anyway.
func (t *Tracker) lockMessage(messageID string) func() {
	t.mu.Lock()
	l, ok := t.acks[messageID]
	if !ok {
		l = &sync.Mutex{}
		t.acks[messageID] = l
	}
	t.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (t *Tracker) cancelTimers(messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if mt, ok := t.timers[messageID]; ok {
		mt.stop()
		delete(t.timers, messageID)
	}
}

func (mt *messageTimers) stop() {
	if mt.delivered != nil {
		mt.delivered.Stop()
	}
	if mt.read != nil {
		mt.read.Stop()
	}
	if mt.fail != nil {
		mt.fail.Stop()
	}
}

// allowed is the transition guard: single forward steps only.
func allowed(from, to models.MessageStatus) bool {
	switch to {
	case models.StatusDelivered:
		return from == models.StatusSent
	case models.StatusRead:
		return from == models.StatusDelivered
	case models.StatusFailed:
		return from == models.StatusSent || from == models.StatusDelivered
	default:
		return false
	}
}
