package service

import (
	"sync"

	"github.com/invoiceflow/invoiceflow/db/models"
	"github.com/labstack/gommon/random"
)

// TopicAllNotifications receives every notification regardless of recipient.
const TopicAllNotifications = "*"

type Pubsub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan models.Notification
}

func NewPubsub() *Pubsub {
	ps := &Pubsub{}
	ps.subs = make(map[string]map[string]chan models.Notification)
	return ps
}

func (ps *Pubsub) Subscribe(topic string, ch chan models.Notification) (subId string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		ps.subs[topic] = make(map[string]chan models.Notification)
	}
	subId = random.String(32, alphaNumBytes)
	ps.subs[topic][subId] = ch
	return subId
}

func (ps *Pubsub) Unsubscribe(id string, topic string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.subs[topic] == nil {
		return
	}
	if ps.subs[topic][id] == nil {
		return
	}
	close(ps.subs[topic][id])
	delete(ps.subs[topic], id)
	if len(ps.subs[topic]) == 0 {
		delete(ps.subs, topic)
	}
}

// Publish hands msg to every subscriber of topic whose channel has room.
// A full subscriber misses the message; the row is already persisted.
func (ps *Pubsub) Publish(topic string, msg models.Notification) (dropped int) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, ch := range ps.subs[topic] {
		select {
		case ch <- msg:
		default:
			dropped++
		}
	}
	return dropped
}

func (ps *Pubsub) Subscribers(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs[topic])
}
