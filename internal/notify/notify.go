// Package notify delivers live events to the connected sessions of an account.
// Delivery is best effort: an event for an account without a reachable session is dropped.
package notify

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

// Notifier delivers an event to an account. It reports whether at least one session received it.
type Notifier interface {
	SendToAccount(ctx context.Context, accountID uint, event string, payload any) bool
}

// Summarizer is implemented by payloads that carry a short human readable message.
// Transports that can't carry the full payload send the summary instead.
type Summarizer interface {
	Summary() string
}

// Fanout delivers every event through all of its transports.
type Fanout struct {
	notifiers []Notifier
}

// NewFanout creates a notifier over the given transports. Nil transports are skipped.
func NewFanout(notifiers ...Notifier) *Fanout {
	f := &Fanout{}
	for _, n := range notifiers {
		if n != nil {
			f.notifiers = append(f.notifiers, n)
		}
	}
	return f
}

// SendToAccount sends through all transports concurrently. The event counts as delivered
// if any transport delivered it.
func (f *Fanout) SendToAccount(ctx context.Context, accountID uint, event string, payload any) bool {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered bool
	)
	for _, n := range f.notifiers {
		wg.Add(1)
		go func(n Notifier) {
			defer wg.Done()
			if n.SendToAccount(ctx, accountID, event, payload) {
				mu.Lock()
				delivered = true
				mu.Unlock()
			}
		}(n)
	}
	wg.Wait()

	if !delivered {
		log.Debug("event not delivered, no session reachable", "accountID", accountID, "event", event)
	}
	return delivered
}

// Presence reports the number of live sessions of an account.
type Presence interface {
	Connected(accountID uint) int
}

// WhileConnected sends through n only while the account has a live session. Push services
// hold messages for offline devices, wrapping them keeps undelivered events from being
// queued for later delivery.
func WhileConnected(p Presence, n Notifier) Notifier {
	return &gated{presence: p, next: n}
}

type gated struct {
	presence Presence
	next     Notifier
}

func (g *gated) SendToAccount(ctx context.Context, accountID uint, event string, payload any) bool {
	if g.presence.Connected(accountID) == 0 {
		return false
	}
	return g.next.SendToAccount(ctx, accountID, event, payload)
}

// Discard drops every event.
type Discard struct{}

func (Discard) SendToAccount(context.Context, uint, string, any) bool { return false }
