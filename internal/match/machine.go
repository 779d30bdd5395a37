package match

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/DoyleJ11/cricket-live-backend/internal/engine"
	"github.com/DoyleJ11/cricket-live-backend/internal/logging"
	"github.com/DoyleJ11/cricket-live-backend/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrMatchClosed  = errors.New("match is closed")
	ErrUnauthorized = errors.New("not authorized to score this match")
	ErrBusy         = errors.New("match is busy, retry")
	ErrStopped      = errors.New("match machine stopped")
)

const (
	defaultQueueDepth     = 64
	defaultPublishTimeout = 3 * time.Second
)

type Authorizer interface {
	CanScore(ctx context.Context, userID, matchID string) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, snap engine.Snapshot) error
}

// Recorder persists snapshots at innings boundaries.
type Recorder interface {
	SaveSnapshot(ctx context.Context, snap engine.Snapshot) error
}

type Deps struct {
	Authorizer     Authorizer
	Publisher      Publisher
	Recorder       Recorder
	Metrics        *metrics.Recorder
	Logger         *zap.Logger
	QueueDepth     int
	PublishTimeout time.Duration
	// Retired is called once a completed match's final snapshot has been
	// published and saved by Recorder.
	Retired func(matchID string)
}

func Topic(matchID string) string { return "match:" + matchID }

type Msg interface{ isMatchMsg() }

type SubmitBall struct {
	Event engine.BallEvent
	Reply chan Result
}

func (SubmitBall) isMatchMsg() {}

type StartMatch struct {
	Options engine.StartOptions
	Reply   chan Result
}

func (StartMatch) isMatchMsg() {}

type ChangeBowler struct {
	Bowler string
	Reply  chan Result
}

func (ChangeBowler) isMatchMsg() {}

type Shutdown struct{}

func (Shutdown) isMatchMsg() {}

type Result struct {
	Snapshot engine.Snapshot
	Effects  []engine.Effect
	Err      error
}

type outbound struct {
	snap    engine.Snapshot
	persist bool
}

// Machine owns one match. A single loop goroutine applies every change in
// arrival order; a second goroutine publishes the resulting snapshots in the
// same order. Readers never block the loop.
type Machine struct {
	id      string
	inbox   chan Msg
	out     chan outbound
	current atomic.Pointer[engine.Snapshot]
	deps    Deps
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{} // loop exited, every queued message answered
	done    chan struct{}
}

// NewMachine starts the actor for initial at version 0.
func NewMachine(parent context.Context, initial engine.Match, deps Deps) *Machine {
	if deps.QueueDepth <= 0 {
		deps.QueueDepth = defaultQueueDepth
	}
	if deps.PublishTimeout <= 0 {
		deps.PublishTimeout = defaultPublishTimeout
	}
	ctx, cancel := context.WithCancel(parent)

	m := &Machine{
		id:      initial.ID,
		inbox:   make(chan Msg, deps.QueueDepth),
		out:     make(chan outbound, deps.QueueDepth),
		deps:    deps,
		log:     logging.OrNop(deps.Logger).With(zap.String(logging.FieldMatchID, initial.ID)),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	m.current.Store(&engine.Snapshot{Version: 0, Match: initial})

	go m.loop()
	go m.publish()
	return m
}

func (m *Machine) ID() string { return m.id }

// Snapshot returns the latest committed state. Callers must treat the
// returned match as read-only.
func (m *Machine) Snapshot() engine.Snapshot { return *m.current.Load() }

// Submit applies one delivery on behalf of userID.
func (m *Machine) Submit(ctx context.Context, ev engine.BallEvent, userID string) (engine.Snapshot, error) {
	started := time.Now()
	res, err := m.do(ctx, userID, func(reply chan Result) Msg { return SubmitBall{Event: ev, Reply: reply} })
	if err != nil {
		return engine.Snapshot{}, err
	}
	m.deps.Metrics.ObserveSubmit(time.Since(started))
	return res.Snapshot, nil
}

func (m *Machine) Start(ctx context.Context, opts engine.StartOptions, userID string) (engine.Snapshot, error) {
	res, err := m.do(ctx, userID, func(reply chan Result) Msg { return StartMatch{Options: opts, Reply: reply} })
	return res.Snapshot, err
}

func (m *Machine) ChangeBowler(ctx context.Context, bowler, userID string) (engine.Snapshot, error) {
	res, err := m.do(ctx, userID, func(reply chan Result) Msg { return ChangeBowler{Bowler: bowler, Reply: reply} })
	return res.Snapshot, err
}

// Close stops the loop and waits for committed snapshots to be published.
// Messages still queued are answered with ErrStopped.
func (m *Machine) Close() {
	m.cancel()
	<-m.done
}

// Done is closed once the machine has fully stopped.
func (m *Machine) Done() <-chan struct{} { return m.done }

func (m *Machine) do(ctx context.Context, userID string, build func(chan Result) Msg) (Result, error) {
	if err := m.authorize(ctx, userID); err != nil {
		return Result{}, err
	}
	if m.ctx.Err() != nil {
		return Result{}, ErrStopped
	}

	reply := make(chan Result, 1)
	select {
	case m.inbox <- build(reply):
	default:
		m.deps.Metrics.Rejected(metrics.RejectBusy)
		return Result{}, ErrBusy
	}

	select {
	case res := <-reply:
		return res, res.Err
	case <-ctx.Done():
		// The message may still be applied; the caller learns the outcome
		// from the broadcast.
		return Result{}, ctx.Err()
	case <-m.stopped:
		// The loop answers before it stops, so a reply may be waiting.
		select {
		case res := <-reply:
			return res, res.Err
		default:
			return Result{}, ErrStopped
		}
	}
}

func (m *Machine) authorize(ctx context.Context, userID string) error {
	if m.deps.Authorizer == nil || userID == "" {
		m.deps.Metrics.Rejected(metrics.RejectUnauthorized)
		return ErrUnauthorized
	}
	ok, err := m.deps.Authorizer.CanScore(ctx, userID, m.id)
	if err != nil {
		return fmt.Errorf("check scorer: %w", err)
	}
	if !ok {
		m.deps.Metrics.Rejected(metrics.RejectUnauthorized)
		return ErrUnauthorized
	}
	return nil
}

func (m *Machine) loop() {
	defer close(m.out)
	defer close(m.stopped)
	for {
		select {
		case <-m.ctx.Done():
			m.drain()
			return

		case msg := <-m.inbox:
			if m.ctx.Err() != nil {
				refuse(msg)
				m.drain()
				return
			}
			switch msg := msg.(type) {
			case SubmitBall:
				msg.Reply <- m.applyBall(msg.Event)
			case StartMatch:
				msg.Reply <- m.start(msg.Options)
			case ChangeBowler:
				msg.Reply <- m.changeBowler(msg.Bowler)
			case Shutdown:
				m.cancel()
				m.drain()
				return
			}
		}
	}
}

func (m *Machine) drain() {
	for {
		select {
		case msg := <-m.inbox:
			refuse(msg)
		default:
			return
		}
	}
}

func refuse(msg Msg) {
	stopped := Result{Err: ErrStopped}
	switch msg := msg.(type) {
	case SubmitBall:
		msg.Reply <- stopped
	case StartMatch:
		msg.Reply <- stopped
	case ChangeBowler:
		msg.Reply <- stopped
	}
}

func (m *Machine) applyBall(ev engine.BallEvent) Result {
	cur := m.current.Load().Match
	if cur.Status == engine.StatusCompleted {
		m.deps.Metrics.Rejected(metrics.RejectClosed)
		return Result{Err: ErrMatchClosed}
	}

	next := cur
	if next.Status == engine.StatusUpcoming {
		started, err := engine.Start(next, engine.StartOptions{})
		if err != nil {
			return m.reject(err)
		}
		next = started
	}

	effects, next, err := engine.Apply(next, ev)
	if err != nil {
		return m.reject(err)
	}
	m.deps.Metrics.BallApplied(string(ev.Action))

	persist := false
	if out, ok := engine.Evaluate(next.Innings[next.Current], effects, next.Config); ok {
		next = engine.Advance(next, out)
		persist = true
		m.log.Info("innings complete",
			zap.Int("innings", out.Innings),
			zap.String(logging.FieldReason, string(out.Reason)),
			zap.Int("runs", out.Runs),
			zap.Int("wickets", out.Wickets))
		if next.Status == engine.StatusCompleted {
			m.deps.Metrics.MatchCompleted()
		}
	}

	return Result{Snapshot: m.commit(next, persist), Effects: effects}
}

func (m *Machine) start(opts engine.StartOptions) Result {
	cur := m.current.Load().Match
	if cur.Status == engine.StatusCompleted {
		m.deps.Metrics.Rejected(metrics.RejectClosed)
		return Result{Err: ErrMatchClosed}
	}
	next, err := engine.Start(cur, opts)
	if err != nil {
		return m.reject(err)
	}
	return Result{Snapshot: m.commit(next, true)}
}

func (m *Machine) changeBowler(name string) Result {
	cur := m.current.Load().Match
	if cur.Status == engine.StatusCompleted {
		m.deps.Metrics.Rejected(metrics.RejectClosed)
		return Result{Err: ErrMatchClosed}
	}
	next, err := engine.ChangeBowler(cur, name)
	if err != nil {
		return m.reject(err)
	}
	return Result{Snapshot: m.commit(next, false)}
}

func (m *Machine) reject(err error) Result {
	if errors.Is(err, engine.ErrRuleViolation) {
		m.deps.Metrics.Rejected(metrics.RejectRuleViolation)
	}
	m.log.Debug("change rejected", zap.Error(err))
	return Result{Err: err}
}

func (m *Machine) commit(next engine.Match, persist bool) engine.Snapshot {
	snap := engine.Snapshot{Version: m.current.Load().Version + 1, Match: next}
	m.current.Store(&snap)

	// Never skipped: the publisher drains out until the loop closes it.
	m.out <- outbound{snap: snap, persist: persist}
	return snap
}

func (m *Machine) publish() {
	defer close(m.done)
	topic := Topic(m.id)
	for o := range m.out {
		ctx, cancel := context.WithTimeout(context.Background(), m.deps.PublishTimeout)

		if m.deps.Publisher != nil {
			if err := m.deps.Publisher.Publish(ctx, topic, o.snap); err != nil {
				m.deps.Metrics.PublishFailed()
				m.log.Warn("publish failed", zap.Int(logging.FieldVersion, o.snap.Version), zap.Error(err))
			}
		}
		if o.persist && m.deps.Recorder != nil {
			err := m.deps.Recorder.SaveSnapshot(ctx, o.snap)
			switch {
			case err != nil:
				m.log.Error("save snapshot failed", zap.Int(logging.FieldVersion, o.snap.Version), zap.Error(err))
			case o.snap.Match.Status == engine.StatusCompleted && m.deps.Retired != nil:
				m.deps.Retired(m.id)
			}
		}
		cancel()
	}
}
