package match

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/cricket-live-backend/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authorizeFunc func(ctx context.Context, userID, matchID string) (bool, error)

func (f authorizeFunc) CanScore(ctx context.Context, userID, matchID string) (bool, error) {
	return f(ctx, userID, matchID)
}

var allowScorer = authorizeFunc(func(_ context.Context, userID, _ string) (bool, error) {
	return userID == "scorer", nil
})

type recordingPublisher struct {
	mu       sync.Mutex
	versions []int
	gate     chan struct{}
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, snap engine.Snapshot) error {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.versions = append(p.versions, snap.Version)
	return nil
}

func (p *recordingPublisher) published() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.versions...)
}

type recordingRecorder struct {
	mu    sync.Mutex
	saved []engine.Snapshot
}

func (r *recordingRecorder) SaveSnapshot(_ context.Context, snap engine.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, snap)
	return nil
}

func squad(prefix string, n int) []engine.Player {
	players := make([]engine.Player, n)
	for i := range players {
		players[i] = engine.Player{Name: prefix + string(rune('1'+i))}
	}
	return players
}

func upcomingMatch(t *testing.T, cfg engine.Config) engine.Match {
	t.Helper()
	m, err := engine.NewMatch("m1", cfg, [2]engine.Team{
		{Name: "Lions", Players: squad("L", 4)},
		{Name: "Tigers", Players: squad("T", 4)},
	})
	require.NoError(t, err)
	return m
}

func liveMatch(t *testing.T, cfg engine.Config) engine.Match {
	t.Helper()
	m, err := engine.Start(upcomingMatch(t, cfg), engine.StartOptions{Bowler: "T1"})
	require.NoError(t, err)
	return m
}

func dot() engine.BallEvent { return engine.BallEvent{Action: engine.ActionRuns} }

func TestMachine_ConcurrentSubmissionsAreSerialized(t *testing.T) {
	pub := &recordingPublisher{}
	m := NewMachine(context.Background(), liveMatch(t, engine.Config{OversPerInnings: 5}), Deps{
		Authorizer: allowScorer,
		Publisher:  pub,
	})

	const n = 6
	var wg sync.WaitGroup
	versions := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := m.Submit(context.Background(), engine.BallEvent{Action: engine.ActionRuns, Runs: 1}, "scorer")
			assert.NoError(t, err)
			versions <- snap.Version
		}()
	}
	wg.Wait()
	close(versions)

	seen := map[int]bool{}
	for v := range versions {
		assert.False(t, seen[v], "version %d returned twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)

	snap := m.Snapshot()
	assert.Equal(t, n, snap.Version)
	inn := snap.Match.Innings[0]
	assert.Equal(t, n, inn.LegalBalls)
	assert.Equal(t, n, inn.Runs)
	require.Len(t, inn.Overs, 1)
	for i, b := range inn.Overs[0].Balls {
		assert.Equal(t, i+1, b.Seq)
	}

	m.Close()
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, pub.published())
}

func TestMachine_LazyStartOnFirstBall(t *testing.T) {
	m := NewMachine(context.Background(), upcomingMatch(t, engine.Config{OversPerInnings: 2}), Deps{Authorizer: allowScorer})
	defer m.Close()

	// No bowler yet: rejected, nothing changes.
	_, err := m.Submit(context.Background(), dot(), "scorer")
	require.ErrorIs(t, err, engine.ErrBowlerRequired)
	assert.Equal(t, 0, m.Snapshot().Version)
	assert.Equal(t, engine.StatusUpcoming, m.Snapshot().Match.Status)

	snap, err := m.Submit(context.Background(), engine.BallEvent{Action: engine.ActionRuns, Runs: 4, Bowler: "T2"}, "scorer")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, engine.StatusLive, snap.Match.Status)
	assert.Equal(t, 4, snap.Match.Innings[0].Runs)
}

func TestMachine_Authorization(t *testing.T) {
	boom := errors.New("grants table unavailable")
	failing := authorizeFunc(func(context.Context, string, string) (bool, error) { return false, boom })

	m := NewMachine(context.Background(), liveMatch(t, engine.Config{OversPerInnings: 2}), Deps{Authorizer: allowScorer})
	defer m.Close()
	_, err := m.Submit(context.Background(), dot(), "viewer")
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = m.Submit(context.Background(), dot(), "")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, m.Snapshot().Version)

	broken := NewMachine(context.Background(), liveMatch(t, engine.Config{OversPerInnings: 2}), Deps{Authorizer: failing})
	defer broken.Close()
	_, err = broken.Submit(context.Background(), dot(), "scorer")
	require.ErrorIs(t, err, boom)

	noAuth := NewMachine(context.Background(), liveMatch(t, engine.Config{OversPerInnings: 2}), Deps{})
	defer noAuth.Close()
	_, err = noAuth.Submit(context.Background(), dot(), "scorer")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestMachine_CompletedMatchIsClosedAndRecorded(t *testing.T) {
	rec := &recordingRecorder{}
	m := NewMachine(context.Background(), liveMatch(t, engine.Config{OversPerInnings: 1, Innings: 1}), Deps{
		Authorizer: allowScorer,
		Recorder:   rec,
	})

	for i := 0; i < engine.BallsPerOver; i++ {
		_, err := m.Submit(context.Background(), dot(), "scorer")
		require.NoError(t, err)
	}
	snap := m.Snapshot()
	assert.Equal(t, engine.StatusCompleted, snap.Match.Status)
	assert.Equal(t, engine.ReasonOversExhausted, snap.Match.Reason)

	_, err := m.Submit(context.Background(), dot(), "scorer")
	require.ErrorIs(t, err, ErrMatchClosed)
	_, err = m.ChangeBowler(context.Background(), "T2", "scorer")
	require.ErrorIs(t, err, ErrMatchClosed)
	assert.Equal(t, engine.BallsPerOver, m.Snapshot().Version)

	m.Close()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.saved, 1)
	assert.Equal(t, engine.BallsPerOver, rec.saved[0].Version)
	assert.Equal(t, engine.StatusCompleted, rec.saved[0].Match.Status)
}

func TestMachine_StartAndChangeBowler(t *testing.T) {
	rec := &recordingRecorder{}
	m := NewMachine(context.Background(), upcomingMatch(t, engine.Config{OversPerInnings: 3}), Deps{
		Authorizer: allowScorer,
		Recorder:   rec,
	})
	defer m.Close()

	snap, err := m.Start(context.Background(), engine.StartOptions{
		TossWinner: "Tigers", Elected: "bat", Openers: [2]string{"T3", "T4"}, Bowler: "L1",
	}, "scorer")
	require.NoError(t, err)
	inn := snap.Match.Innings[0]
	assert.Equal(t, 1, inn.Batting)
	assert.Equal(t, "T3", inn.Striker)

	_, err = m.Start(context.Background(), engine.StartOptions{}, "scorer")
	require.ErrorIs(t, err, engine.ErrAlreadyStarted)

	for i := 0; i < engine.BallsPerOver; i++ {
		_, err := m.Submit(context.Background(), dot(), "scorer")
		require.NoError(t, err)
	}
	_, err = m.ChangeBowler(context.Background(), "L1", "scorer")
	require.ErrorIs(t, err, engine.ErrConsecutiveOvers)

	snap, err = m.ChangeBowler(context.Background(), "L2", "scorer")
	require.NoError(t, err)
	assert.Equal(t, "L2", snap.Match.Innings[0].Bowler)
	assert.Equal(t, 8, snap.Version)
}

func TestMachine_BusyWhenInboxFull(t *testing.T) {
	pub := &recordingPublisher{gate: make(chan struct{})}
	m := NewMachine(context.Background(), liveMatch(t, engine.Config{OversPerInnings: 5}), Deps{
		Authorizer:     allowScorer,
		Publisher:      pub,
		QueueDepth:     1,
		PublishTimeout: 5 * time.Second,
	})

	// The publisher is held, so the loop eventually blocks and the one-slot
	// inbox fills.
	busy := false
	for i := 0; i < 10 && !busy; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_, err := m.Submit(ctx, dot(), "scorer")
		cancel()
		busy = errors.Is(err, ErrBusy)
	}
	close(pub.gate)
	require.True(t, busy)

	require.Eventually(t, func() bool {
		return len(pub.published()) == m.Snapshot().Version
	}, time.Second, 10*time.Millisecond)
	m.Close()
	published := pub.published()
	for i := 1; i < len(published); i++ {
		assert.Equal(t, published[i-1]+1, published[i])
	}
}

func TestMachine_StoppedAfterClose(t *testing.T) {
	m := NewMachine(context.Background(), liveMatch(t, engine.Config{OversPerInnings: 2}), Deps{Authorizer: allowScorer})
	m.Close()

	select {
	case <-m.Done():
	default:
		t.Fatalf("expected machine to be done after Close")
	}
	_, err := m.Submit(context.Background(), dot(), "scorer")
	require.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, 0, m.Snapshot().Version)
}

func TestMachine_ParentCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMachine(ctx, liveMatch(t, engine.Config{OversPerInnings: 2}), Deps{Authorizer: allowScorer})
	cancel()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatalf("machine did not stop when parent context was cancelled")
	}
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "match:abc", Topic("abc"))
}

// oneBallFromEnd is a single-innings, one-over match with five dots bowled,
// so the next legal ball completes it.
func oneBallFromEnd(t *testing.T) engine.Match {
	t.Helper()
	m := liveMatch(t, engine.Config{OversPerInnings: 1, Innings: 1})
	for i := 0; i < engine.BallsPerOver-1; i++ {
		var err error
		_, m, err = engine.Apply(m, dot())
		require.NoError(t, err)
	}
	return m
}

func TestMachine_AcceptedBallSurvivesShutdown(t *testing.T) {
	for i := 0; i < 200; i++ {
		pub := &recordingPublisher{}
		rec := &recordingRecorder{}
		ctx, cancel := context.WithCancel(context.Background())
		m := NewMachine(ctx, oneBallFromEnd(t), Deps{
			Authorizer: allowScorer,
			Publisher:  pub,
			Recorder:   rec,
		})

		reply := make(chan Result, 1)
		m.inbox <- SubmitBall{Event: dot(), Reply: reply}
		cancel()
		<-m.Done()

		var res Result
		select {
		case res = <-reply:
		default:
			t.Fatalf("iteration %d: queued ball was never answered", i)
		}
		if res.Err != nil {
			require.ErrorIs(t, res.Err, ErrStopped)
			assert.Empty(t, pub.published())
			continue
		}

		assert.Equal(t, []int{res.Snapshot.Version}, pub.published(), "iteration %d", i)
		rec.mu.Lock()
		require.Len(t, rec.saved, 1, "iteration %d", i)
		assert.Equal(t, engine.StatusCompleted, rec.saved[0].Match.Status)
		rec.mu.Unlock()
	}
}

func TestMachine_CallerSeesOutcomeOfStoppedMachine(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMachine(ctx, liveMatch(t, engine.Config{OversPerInnings: 2}), Deps{Authorizer: allowScorer})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := m.Submit(context.Background(), engine.BallEvent{Action: engine.ActionWide}, "scorer")
			if err != nil {
				assert.ErrorIs(t, err, ErrStopped)
				return
			}
			// A success is always a committed version.
			assert.LessOrEqual(t, snap.Version, m.Snapshot().Version)
			assert.Positive(t, snap.Version)
		}()
	}
	cancel()
	wg.Wait()
	<-m.Done()
}

func TestMachine_StartOnCompletedMatchIsClosed(t *testing.T) {
	m := NewMachine(context.Background(), oneBallFromEnd(t), Deps{Authorizer: allowScorer})
	defer m.Close()

	_, err := m.Submit(context.Background(), dot(), "scorer")
	require.NoError(t, err)
	require.Equal(t, engine.StatusCompleted, m.Snapshot().Match.Status)

	_, err = m.Start(context.Background(), engine.StartOptions{}, "scorer")
	require.ErrorIs(t, err, ErrMatchClosed)
}

func TestMachine_RetiredAfterFinalSnapshotSaved(t *testing.T) {
	rec := &recordingRecorder{}
	retired := make(chan string, 1)
	m := NewMachine(context.Background(), oneBallFromEnd(t), Deps{
		Authorizer: allowScorer,
		Recorder:   rec,
		Retired:    func(id string) { retired <- id },
	})
	defer m.Close()

	_, err := m.Submit(context.Background(), dot(), "scorer")
	require.NoError(t, err)

	select {
	case id := <-retired:
		assert.Equal(t, "m1", id)
	case <-time.After(time.Second):
		t.Fatalf("completed match was not retired")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.saved, 1)
}
