package hub

import (
	"context"
	"errors"
	"sort"

	"github.com/DoyleJ11/cricket-live-backend/internal/engine"
	"github.com/DoyleJ11/cricket-live-backend/internal/logging"
	"github.com/DoyleJ11/cricket-live-backend/internal/match"
	"go.uber.org/zap"
)

var ErrHubStopped = errors.New("hub stopped")

type HubMsg interface{ isHubMsg() }

type CreateMatch struct {
	Match engine.Match
	Reply chan *match.Machine
}

type GetMatch struct {
	ID    string
	Reply chan *match.Machine
}

type RemoveMatch struct {
	ID string
}

type ListMatches struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateMatch) isHubMsg() {}
func (GetMatch) isHubMsg()    {}
func (RemoveMatch) isHubMsg() {}
func (ListMatches) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

// Hub is the registry of live match machines. All access goes through its
// inbox so the map needs no lock.
type Hub struct {
	inbox   chan HubMsg
	matches map[string]*match.Machine
	deps    match.Deps
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHub starts the registry. deps is handed to every machine it creates.
// With a Recorder configured, completed matches are removed once their final
// snapshot is saved.
func NewHub(parent context.Context, deps match.Deps) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		matches: make(map[string]*match.Machine),
		deps:    deps,
		log:     logging.OrNop(deps.Logger),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

// Create registers a machine for m, or returns the existing one with the
// same id.
func (h *Hub) Create(ctx context.Context, m engine.Match) (*match.Machine, error) {
	reply := make(chan *match.Machine, 1)
	if err := h.send(ctx, CreateMatch{Match: m, Reply: reply}); err != nil {
		return nil, err
	}
	return h.await(ctx, reply)
}

// Get returns nil, nil for an unknown id.
func (h *Hub) Get(ctx context.Context, id string) (*match.Machine, error) {
	reply := make(chan *match.Machine, 1)
	if err := h.send(ctx, GetMatch{ID: id, Reply: reply}); err != nil {
		return nil, err
	}
	return h.await(ctx, reply)
}

func (h *Hub) List(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.send(ctx, ListMatches{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case ids := <-reply:
		return ids, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, ErrHubStopped
	}
}

func (h *Hub) Remove(ctx context.Context, id string) error {
	return h.send(ctx, RemoveMatch{ID: id})
}

// Shutdown closes every machine and waits for the hub loop to exit.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}

func (h *Hub) send(ctx context.Context, msg HubMsg) error {
	select {
	case h.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) await(ctx context.Context, reply chan *match.Machine) (*match.Machine, error) {
	select {
	case mc := <-reply:
		return mc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, ErrHubStopped
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateMatch:
				msg.Reply <- h.ensure(msg.Match)

			case GetMatch:
				msg.Reply <- h.matches[msg.ID] // May be nil

			case RemoveMatch:
				if mc := h.matches[msg.ID]; mc != nil {
					mc.Close()
					delete(h.matches, msg.ID)
					h.deps.Metrics.MatchClosed()
					h.log.Info("match removed", zap.String(logging.FieldMatchID, msg.ID))
				}

			case ListMatches:
				ids := make([]string, 0, len(h.matches))
				for id := range h.matches {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				msg.Reply <- ids

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) ensure(m engine.Match) *match.Machine {
	if mc := h.matches[m.ID]; mc != nil {
		return mc
	}
	deps := h.deps
	if deps.Recorder != nil {
		// Completed matches are served from the archive once saved.
		deps.Retired = h.retire
	}
	mc := match.NewMachine(h.ctx, m, deps)
	h.matches[m.ID] = mc
	h.deps.Metrics.MatchOpened()
	h.log.Info("match registered", zap.String(logging.FieldMatchID, m.ID))
	return mc
}

// retire runs on the machine's publisher goroutine, which RemoveMatch waits
// on, so the removal is sent from a goroutine of its own.
func (h *Hub) retire(id string) {
	go func() { _ = h.Remove(context.Background(), id) }()
}

func (h *Hub) shutdown() {
	for id, mc := range h.matches {
		mc.Close()
		delete(h.matches, id)
		h.deps.Metrics.MatchClosed()
	}
}
