package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Pricepro2006/crewd/internal/logging"
)

// PoolConfig controls pool sizing and warm-up.
type PoolConfig struct {
	// MaxAgents is the global agent budget the per-tag idle caps are
	// derived from.
	MaxAgents int

	// IdleTimeout reclaims active agents that were never released.
	IdleTimeout time.Duration

	// Preload lists capability tags to eagerly warm on Initialize.
	Preload []string
}

// DefaultPoolConfig returns the standard pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxAgents:   10,
		IdleTimeout: 5 * time.Minute,
		Preload:     []string{TypeResearch},
	}
}

// PoolStat is a point-in-time count for one capability tag.
type PoolStat struct {
	Idle   int `json:"idle"`
	Active int `json:"active"`
}

// ActiveAgent describes one lent-out agent instance.
type ActiveAgent struct {
	Key        string    `json:"key"`
	Tag        string    `json:"tag"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

type activeEntry struct {
	key        string
	tag        string
	agent      Agent
	acquiredAt time.Time
	timer      *time.Timer
}

// PoolRegistry owns construction, pooling, and idle recycling of
// capability-tagged agents. An instance is a member of at most one of
// the idle pool and the active set at any time.
//
// All state is guarded by one mutex. Idle-timer callbacks reclaim by
// acquisition key and timer identity, so a timer that fires after its
// entry was released or re-armed does nothing.
type PoolRegistry struct {
	mu        sync.Mutex
	cfg       PoolConfig
	factories map[string]Factory
	idle      map[string][]Agent
	active    map[string]*activeEntry
	log       *logging.Logger
}

// NewPoolRegistry creates a pool registry with the given configuration.
func NewPoolRegistry(cfg PoolConfig) *PoolRegistry {
	if cfg.MaxAgents <= 0 {
		cfg.MaxAgents = DefaultPoolConfig().MaxAgents
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultPoolConfig().IdleTimeout
	}
	return &PoolRegistry{
		cfg:       cfg,
		factories: make(map[string]Factory),
		idle:      make(map[string][]Agent),
		active:    make(map[string]*activeEntry),
		log:       logging.New("agent-pool"),
	}
}

// RegisterCapability adds or overwrites a factory for a tag. Instances
// already pooled under the tag are unaffected.
func (p *PoolRegistry) RegisterCapability(tag string, factory Factory) {
	p.mu.Lock()
	p.factories[tag] = factory
	p.mu.Unlock()
}

// Initialize eagerly warms one instance per preload tag. Construction
// failures are logged and do not abort warm-up of the other tags.
func (p *PoolRegistry) Initialize(ctx context.Context) {
	p.mu.Lock()
	preload := append([]string(nil), p.cfg.Preload...)
	p.mu.Unlock()

	for _, tag := range preload {
		if err := p.warm(ctx, tag); err != nil {
			p.log.Warn("preload_failed", map[string]interface{}{"tag": tag}, err)
		}
	}
}

func (p *PoolRegistry) warm(ctx context.Context, tag string) error {
	p.mu.Lock()
	factory, ok := p.factories[tag]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("no factory registered for %q", tag)
	}

	inst, err := factory()
	if err != nil {
		return fmt.Errorf("construct %q: %w", tag, err)
	}
	if err := inst.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize %q: %w", tag, err)
	}

	p.mu.Lock()
	p.idle[tag] = append(p.idle[tag], inst)
	p.mu.Unlock()
	return nil
}

// UpdateConfig replaces the pool configuration. Tags newly added to the
// preload list are warmed asynchronously.
func (p *PoolRegistry) UpdateConfig(cfg PoolConfig) {
	p.mu.Lock()
	known := make(map[string]bool, len(p.cfg.Preload))
	for _, tag := range p.cfg.Preload {
		known[tag] = true
	}
	var added []string
	for _, tag := range cfg.Preload {
		if !known[tag] {
			added = append(added, tag)
		}
	}
	p.cfg = cfg
	p.mu.Unlock()

	for _, tag := range added {
		tag := tag
		logging.SafeGo("agent-pool", func() {
			if err := p.warm(context.Background(), tag); err != nil {
				p.log.Warn("preload_failed", map[string]interface{}{"tag": tag}, err)
			}
		})
	}
}

// Acquire returns an agent for the capability tag. Preference order:
// an instance already lent out under a live key, then the idle pool,
// then fresh construction. Every branch arms (or re-arms) the idle
// -timeout reclamation for the active entry.
func (p *PoolRegistry) Acquire(ctx context.Context, tag string) (Agent, error) {
	p.mu.Lock()

	// Reuse an already-active instance of this tag.
	for _, entry := range p.active {
		if entry.tag == tag {
			p.armTimerLocked(entry)
			agent := entry.agent
			p.mu.Unlock()
			return agent, nil
		}
	}

	// Pop from the idle pool.
	if pool := p.idle[tag]; len(pool) > 0 {
		inst := pool[len(pool)-1]
		p.idle[tag] = pool[:len(pool)-1]
		entry := p.activateLocked(tag, inst)
		p.mu.Unlock()
		p.log.Debug("acquired_idle", map[string]interface{}{"tag": tag, "key": entry.key})
		return inst, nil
	}

	factory, ok := p.factories[tag]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no factory registered for %q", tag)
	}

	inst, err := factory()
	if err != nil {
		return nil, fmt.Errorf("construct %q: %w", tag, err)
	}
	if err := inst.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize %q: %w", tag, err)
	}

	p.mu.Lock()
	entry := p.activateLocked(tag, inst)
	p.mu.Unlock()
	p.log.Debug("acquired_new", map[string]interface{}{"tag": tag, "key": entry.key})
	return inst, nil
}

// activateLocked moves an instance into the active set under a fresh
// acquisition key and arms its idle timer. Caller holds p.mu.
func (p *PoolRegistry) activateLocked(tag string, inst Agent) *activeEntry {
	entry := &activeEntry{
		key:        ulid.Make().String(),
		tag:        tag,
		agent:      inst,
		acquiredAt: time.Now(),
	}
	p.active[entry.key] = entry
	p.armTimerLocked(entry)
	return entry
}

func (p *PoolRegistry) armTimerLocked(entry *activeEntry) {
	if entry.timer != nil {
		entry.timer.Stop()
	}
	key := entry.key
	var t *time.Timer
	t = time.AfterFunc(p.cfg.IdleTimeout, func() {
		p.reclaim(key, t)
	})
	entry.timer = t
}

// reclaim is the idle-timer callback. It drops the entry under key only
// while that exact timer is still the armed one; a stale timer that
// lost a race against a manual release or a re-arm finds nothing to do.
func (p *PoolRegistry) reclaim(key string, t *time.Timer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.active[key]
	if !ok || entry.timer != t {
		return
	}
	delete(p.active, key)
	p.log.Debug("idle_reclaimed", map[string]interface{}{"tag": entry.tag, "key": key})

	if len(p.idle[entry.tag]) < p.idleCapLocked() {
		p.idle[entry.tag] = append(p.idle[entry.tag], entry.agent)
		return
	}
	p.log.Debug("agent_dropped", map[string]interface{}{"tag": entry.tag})
}

// Release returns an active instance to the pool. The instance is kept
// only while the tag's idle pool is under its share of MaxAgents,
// computed as ceil(MaxAgents / registered capability count); otherwise
// it is dropped. Releasing an instance that is not in the active set is
// a no-op, which tolerates idle timers firing after a manual release.
func (p *PoolRegistry) Release(tag string, inst Agent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var entry *activeEntry
	for _, e := range p.active {
		if e.tag == tag && e.agent == inst {
			entry = e
			break
		}
	}
	if entry == nil {
		return
	}

	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(p.active, entry.key)

	if len(p.idle[tag]) < p.idleCapLocked() {
		p.idle[tag] = append(p.idle[tag], inst)
		return
	}
	p.log.Debug("agent_dropped", map[string]interface{}{"tag": tag})
}

// idleCapLocked computes the per-tag idle cap. The global budget is
// split evenly across however many tags are registered right now, so
// the cap shrinks as more capabilities register.
func (p *PoolRegistry) idleCapLocked() int {
	n := len(p.factories)
	if n == 0 {
		return p.cfg.MaxAgents
	}
	return (p.cfg.MaxAgents + n - 1) / n
}

// PoolStatus returns per-tag idle/active counts. Read-only snapshot.
func (p *PoolRegistry) PoolStatus() map[string]PoolStat {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := make(map[string]PoolStat)
	for tag := range p.factories {
		status[tag] = PoolStat{}
	}
	for tag, pool := range p.idle {
		s := status[tag]
		s.Idle = len(pool)
		status[tag] = s
	}
	for _, entry := range p.active {
		s := status[entry.tag]
		s.Active++
		status[entry.tag] = s
	}
	return status
}

// ActiveAgents returns a snapshot of the active set.
func (p *PoolRegistry) ActiveAgents() []ActiveAgent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]ActiveAgent, 0, len(p.active))
	for _, entry := range p.active {
		out = append(out, ActiveAgent{
			Key:        entry.key,
			Tag:        entry.tag,
			AcquiredAt: entry.acquiredAt,
		})
	}
	return out
}

// ClearPool drops all idle and active instances. No teardown capability
// is invoked on them; worker-side cleanup is the worker's own concern.
func (p *PoolRegistry) ClearPool() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range p.active {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
	p.idle = make(map[string][]Agent)
	p.active = make(map[string]*activeEntry)
}

// Shutdown drops everything. Alias of ClearPool today; kept separate so
// callers express intent.
func (p *PoolRegistry) Shutdown() {
	p.ClearPool()
}
