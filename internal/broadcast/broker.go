package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/DoyleJ11/cricket-live-backend/internal/engine"
	"github.com/DoyleJ11/cricket-live-backend/internal/logging"
	"github.com/DoyleJ11/cricket-live-backend/pkg/types"
	"go.uber.org/zap"
)

// Message is one encoded snapshot as delivered to a subscriber.
type Message struct {
	Topic   string
	Version int
	Payload []byte
}

// PublishError reports subscribers that were dropped because their buffer
// was full. The snapshot still reached everyone else.
type PublishError struct {
	Topic   string
	Version int
	Dropped []string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s v%d: dropped %d slow subscriber(s): %s",
		e.Topic, e.Version, len(e.Dropped), strings.Join(e.Dropped, ","))
}

// Broker fans snapshots out to per-topic subscribers. Publish never blocks
// on a subscriber; one that cannot keep up is closed and must resubscribe.
type Broker struct {
	mu     sync.Mutex
	topics map[string]map[string]chan Message
	nextID uint64
	closed bool
	log    *zap.Logger
}

func NewBroker(log *zap.Logger) *Broker {
	return &Broker{
		topics: make(map[string]map[string]chan Message),
		log:    logging.OrNop(log),
	}
}

type Subscription struct {
	ID    string
	Topic string
	C     <-chan Message

	broker *Broker
	once   sync.Once
}

// Close unsubscribes. Safe to call more than once and after the broker
// already dropped the subscriber.
func (s *Subscription) Close() {
	s.once.Do(func() { s.broker.remove(s.Topic, s.ID) })
}

func (b *Broker) Subscribe(topic string, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := strconv.FormatUint(b.nextID, 10)
	if b.closed {
		close(ch)
		return &Subscription{ID: id, Topic: topic, C: ch, broker: b}
	}
	subs := b.topics[topic]
	if subs == nil {
		subs = make(map[string]chan Message)
		b.topics[topic] = subs
	}
	subs[id] = ch
	return &Subscription{ID: id, Topic: topic, C: ch, broker: b}
}

// Publish encodes snap once and offers it to every subscriber of topic.
func (b *Broker) Publish(ctx context.Context, topic string, snap engine.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(types.SnapshotMessage(snap))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	msg := Message{Topic: topic, Version: snap.Version, Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()

	var dropped []string
	for id, ch := range b.topics[topic] {
		select {
		case ch <- msg:
		default:
			close(ch)
			delete(b.topics[topic], id)
			dropped = append(dropped, id)
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
	if len(dropped) == 0 {
		return nil
	}

	sort.Strings(dropped)
	b.log.Warn("dropped slow subscribers",
		zap.String(logging.FieldTopic, topic),
		zap.Int(logging.FieldVersion, snap.Version),
		zap.Strings(logging.FieldSubscriber, dropped))
	return &PublishError{Topic: topic, Version: snap.Version, Dropped: dropped}
}

func (b *Broker) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.topics))
	for t := range b.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (b *Broker) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

// Close ends every subscription.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.topics {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(b.topics, topic)
	}
	b.closed = true
}

func (b *Broker) remove(topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[topic]
	ch, ok := subs[id]
	if !ok {
		return
	}
	close(ch)
	delete(subs, id)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}
