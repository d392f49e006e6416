package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pricepro2006/crewd/internal/retrieval"
)

// fakeAgent is a minimal agent for pool tests.
type fakeAgent struct {
	Toolbox
	tag         string
	initialized bool
}

func (f *fakeAgent) Type() string { return f.tag }

func (f *fakeAgent) Initialize(ctx context.Context) error {
	f.initialized = true
	return nil
}

func (f *fakeAgent) Execute(ctx context.Context, task string, docs []retrieval.Document) (*Result, error) {
	return &Result{Success: true, Output: task}, nil
}

func fakeFactory(tag string) Factory {
	return func() (Agent, error) {
		return &fakeAgent{tag: tag}, nil
	}
}

func newTestPool(cfg PoolConfig, tags ...string) *PoolRegistry {
	p := NewPoolRegistry(cfg)
	for _, tag := range tags {
		p.RegisterCapability(tag, fakeFactory(tag))
	}
	return p
}

func TestAcquireConstructsAndInitializes(t *testing.T) {
	p := newTestPool(PoolConfig{MaxAgents: 4, IdleTimeout: time.Minute}, "research")

	a, err := p.Acquire(context.Background(), "research")
	require.NoError(t, err)
	assert.True(t, a.(*fakeAgent).initialized)

	status := p.PoolStatus()
	assert.Equal(t, 1, status["research"].Active)
	assert.Equal(t, 0, status["research"].Idle)
}

func TestAcquireUnknownTag(t *testing.T) {
	p := newTestPool(PoolConfig{MaxAgents: 4, IdleTimeout: time.Minute})

	_, err := p.Acquire(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestAcquireReusesActiveInstance(t *testing.T) {
	p := newTestPool(PoolConfig{MaxAgents: 4, IdleTimeout: time.Minute}, "research")
	ctx := context.Background()

	a1, err := p.Acquire(ctx, "research")
	require.NoError(t, err)

	// Reacquiring before release returns the same instance from the
	// active set rather than constructing a second one.
	a2, err := p.Acquire(ctx, "research")
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.Len(t, p.ActiveAgents(), 1)
}

func TestReleaseReturnsToIdlePool(t *testing.T) {
	p := newTestPool(PoolConfig{MaxAgents: 4, IdleTimeout: time.Minute}, "research")
	ctx := context.Background()

	a, err := p.Acquire(ctx, "research")
	require.NoError(t, err)
	p.Release("research", a)

	status := p.PoolStatus()
	assert.Equal(t, 1, status["research"].Idle)
	assert.Equal(t, 0, status["research"].Active)

	// The pooled instance is handed back out.
	again, err := p.Acquire(ctx, "research")
	require.NoError(t, err)
	assert.Same(t, a, again)
}

func TestReleaseUnknownInstanceIsNoOp(t *testing.T) {
	p := newTestPool(PoolConfig{MaxAgents: 4, IdleTimeout: time.Minute}, "research")

	stray := &fakeAgent{tag: "research"}
	p.Release("research", stray)

	status := p.PoolStatus()
	assert.Equal(t, 0, status["research"].Idle)
	assert.Equal(t, 0, status["research"].Active)
}

func TestIdleTimeoutReclaimsActiveAgent(t *testing.T) {
	p := newTestPool(PoolConfig{MaxAgents: 4, IdleTimeout: 30 * time.Millisecond}, "research")

	a, err := p.Acquire(context.Background(), "research")
	require.NoError(t, err)
	_ = a

	// The timer force-releases the never-released instance.
	require.Eventually(t, func() bool {
		status := p.PoolStatus()
		return status["research"].Idle == 1 && status["research"].Active == 0
	}, time.Second, 10*time.Millisecond)
}

// snapshotActive returns the single active entry's key and armed timer.
func snapshotActive(t *testing.T, p *PoolRegistry) (string, *time.Timer) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.active, 1)
	for k, e := range p.active {
		return k, e.timer
	}
	return "", nil
}

func TestStaleIdleTimerIgnoresRelentInstance(t *testing.T) {
	p := newTestPool(PoolConfig{MaxAgents: 4, IdleTimeout: time.Minute}, "research")

	a, err := p.Acquire(context.Background(), "research")
	require.NoError(t, err)
	oldKey, oldTimer := snapshotActive(t, p)

	// The instance is returned and lent out again under a fresh key.
	p.Release("research", a)
	_, err = p.Acquire(context.Background(), "research")
	require.NoError(t, err)

	// A timer from the first lend-out that fired mid-race must not
	// force-release the new lend-out.
	p.reclaim(oldKey, oldTimer)

	status := p.PoolStatus()
	assert.Equal(t, 1, status["research"].Active)
	assert.Equal(t, 0, status["research"].Idle)
}

func TestStaleIdleTimerIgnoresRearmedEntry(t *testing.T) {
	p := newTestPool(PoolConfig{MaxAgents: 4, IdleTimeout: time.Minute}, "research")

	_, err := p.Acquire(context.Background(), "research")
	require.NoError(t, err)
	key, oldTimer := snapshotActive(t, p)

	// Re-acquiring re-arms the same entry with a fresh timer.
	_, err = p.Acquire(context.Background(), "research")
	require.NoError(t, err)

	p.reclaim(key, oldTimer)

	status := p.PoolStatus()
	assert.Equal(t, 1, status["research"].Active)
}

func TestCapacityDropAtPerTagCap(t *testing.T) {
	// maxAgents=2 and two registered tags gives ceil(2/2)=1 idle slot
	// per tag.
	p := newTestPool(PoolConfig{MaxAgents: 2, IdleTimeout: time.Minute}, "research", "code")

	first := &fakeAgent{tag: "research"}
	second := &fakeAgent{tag: "research"}

	p.mu.Lock()
	p.idle["research"] = []Agent{first}
	entry := p.activateLocked("research", second)
	p.mu.Unlock()
	require.NotNil(t, entry)

	p.Release("research", second)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.idle["research"], 1)
	assert.Same(t, first, p.idle["research"][0].(*fakeAgent))
}

func TestInitializeWarmsPreloadTags(t *testing.T) {
	p := newTestPool(PoolConfig{
		MaxAgents:   4,
		IdleTimeout: time.Minute,
		Preload:     []string{"research", "code"},
	}, "research", "code")

	p.Initialize(context.Background())

	status := p.PoolStatus()
	assert.Equal(t, 1, status["research"].Idle)
	assert.Equal(t, 1, status["code"].Idle)
}

func TestInitializePreloadFailureDoesNotAbort(t *testing.T) {
	p := newTestPool(PoolConfig{
		MaxAgents:   4,
		IdleTimeout: time.Minute,
		Preload:     []string{"broken", "research"},
	}, "research")
	p.RegisterCapability("broken", func() (Agent, error) {
		return nil, errors.New("factory exploded")
	})

	p.Initialize(context.Background())

	status := p.PoolStatus()
	assert.Equal(t, 0, status["broken"].Idle)
	assert.Equal(t, 1, status["research"].Idle)
}

func TestUpdateConfigWarmsNewPreloadTags(t *testing.T) {
	p := newTestPool(PoolConfig{MaxAgents: 4, IdleTimeout: time.Minute}, "research", "writer")

	p.UpdateConfig(PoolConfig{
		MaxAgents:   4,
		IdleTimeout: time.Minute,
		Preload:     []string{"writer"},
	})

	require.Eventually(t, func() bool {
		return p.PoolStatus()["writer"].Idle == 1
	}, time.Second, 10*time.Millisecond)
}

func TestClearPoolDropsEverything(t *testing.T) {
	p := newTestPool(PoolConfig{MaxAgents: 4, IdleTimeout: time.Minute}, "research")
	ctx := context.Background()

	a, err := p.Acquire(ctx, "research")
	require.NoError(t, err)
	p.Release("research", a)
	_, err = p.Acquire(ctx, "research")
	require.NoError(t, err)

	p.ClearPool()

	status := p.PoolStatus()
	assert.Equal(t, 0, status["research"].Idle)
	assert.Equal(t, 0, status["research"].Active)
}
