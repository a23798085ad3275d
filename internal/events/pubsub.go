package events

import (
	"fmt"
	"log/slog"
	"sync"
)

// subscriberBuffer holds several polls' worth of events.
const subscriberBuffer = 256

// Publisher fans events out to every subscriber.
type Publisher struct {
	clients map[chan Event]struct{}
	logger  *slog.Logger
	lock    sync.RWMutex
}

func NewPublisher(logger *slog.Logger) *Publisher {
	return &Publisher{
		clients: make(map[chan Event]struct{}),
		logger:  logger,
	}
}

// Subscribe registers the caller and returns the channel it will receive events on.
func (p *Publisher) Subscribe() <-chan Event {
	p.lock.Lock()
	defer p.lock.Unlock()
	ch := make(chan Event, subscriberBuffer)
	p.clients[ch] = struct{}{}
	p.logger.Debug("subscriber added", slog.Int("subscribers", len(p.clients)))
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (p *Publisher) Unsubscribe(ch <-chan Event) {
	p.lock.Lock()
	defer p.lock.Unlock()
	for c := range p.clients {
		if c == ch {
			delete(p.clients, c)
			close(c)
			break
		}
	}
	p.logger.Debug("subscriber removed", slog.Int("subscribers", len(p.clients)))
}

// Publish sends ev to all subscribers. It never blocks: a subscriber whose
// buffer is full misses the event, and the next poll brings it up to date.
func (p *Publisher) Publish(ev Event) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for ch := range p.clients {
		select {
		case ch <- ev:
		default:
			p.logger.Warn("subscriber too slow, dropping event", slog.String("event", fmt.Sprintf("%T", ev)))
		}
	}
}

func (p *Publisher) Subscribers() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.clients)
}
