// Package events fans out committed ledger changes to subscribers.
package events

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Kind names a ledger change.
type Kind string

const (
	KindFunded    Kind = "funded"
	KindWithdrawn Kind = "withdrawn"
)

// Event is a committed ledger change. Amounts are wei in decimal strings so
// consumers never go through floats.
type Event struct {
	Kind      Kind           `json:"kind"`
	Timestamp time.Time      `json:"ts"`
	Account   common.Address `json:"account"`
	Amount    string         `json:"amount"`
	// Funders is the number of funder list entries reset by a withdrawal.
	Funders int `json:"funders,omitempty"`
}

// Broadcaster fans out events to all subscribers via buffered channels.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping it for slow readers.
func (b *Broadcaster) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
