// internal/messaging/bus.go
package messaging

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheasmith19/ezapp/api/schemas"
)

// The three execution contexts share no memory; everything crosses the bus
// as an asynchronous request/response pair keyed by a correlation ID. This
// models the host platform's messaging transport closely enough that the
// background and content contexts can be exercised as plain in-process
// functions in tests.

// Address of the background context. Content scripts live at TabAddress(id);
// the popup only ever calls, it never listens.
const AddressBackground = "background"

// TabAddress returns the bus address of the content script attached to a tab.
func TabAddress(tabID string) string {
	return "tab/" + tabID
}

// Delivery is what a handler receives: the payload plus the correlation ID
// of the call it belongs to.
type Delivery struct {
	ID      string
	Payload any
}

// Handler processes one delivery. A handler that answers synchronously calls
// respond before returning and returns false. A handler that must do
// asynchronous work (a network fetch, a storage read) returns true to keep
// the reply channel open and calls respond later from its own goroutine.
// Returning false without responding tears the channel down and the caller
// observes a nil reply, exactly like the platform it models.
type Handler func(ctx context.Context, d Delivery, respond func(any)) (pending bool)

// Bus routes request/response messages between registered addresses.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string]Handler),
		log:      logger.Named("bus"),
	}
}

// Register installs the handler for an address, replacing any previous one.
// A context registers exactly one listener, matching the platform model.
func (b *Bus) Register(address string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[address] = h
}

// Unregister removes the listener at an address. Subsequent Sends fail with
// a ChannelError until a new listener registers.
func (b *Bus) Unregister(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, address)
}

// HasListener reports whether anything is registered at the address.
func (b *Bus) HasListener(address string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.handlers[address]
	return ok
}

// Send delivers one payload to the listener at address and waits for its
// reply. At most one request is in flight per Send; independent Sends may
// interleave freely. There is no mid-flight cancellation beyond the caller's
// context deadline, which is how a stuck handler eventually surfaces.
func (b *Bus) Send(ctx context.Context, address string, payload any) (any, error) {
	b.mu.RLock()
	h, ok := b.handlers[address]
	b.mu.RUnlock()
	if !ok {
		return nil, &schemas.ChannelError{Address: address}
	}

	d := Delivery{ID: uuid.NewString(), Payload: payload}

	replyCh := make(chan any, 1)
	var replyOnce sync.Once
	respond := func(reply any) {
		replyOnce.Do(func() { replyCh <- reply })
	}

	go func() {
		pending := h(ctx, d, respond)
		if !pending {
			// Synchronous handler: if it never responded, the channel is
			// torn down and the caller sees a nil reply.
			respond(nil)
		}
	}()

	select {
	case reply := <-replyCh:
		b.log.Debug("Message answered",
			zap.String("address", address),
			zap.String("correlation_id", d.ID))
		return reply, nil
	case <-ctx.Done():
		b.log.Warn("Message timed out waiting for reply",
			zap.String("address", address),
			zap.String("correlation_id", d.ID))
		return nil, ctx.Err()
	}
}
