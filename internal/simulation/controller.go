// Package simulation implements the per-connection scheduler (C7): it
// owns N rockets, drives the fixed-dt tick loop, merges operator and
// batched policy actions, tracks per-rocket done state, buffers
// structured logs, and emits outbound telemetry through a typed sink.
package simulation

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adimail/rocket-landing-rl/internal/observability"
	"github.com/adimail/rocket-landing-rl/internal/physics"
	"github.com/adimail/rocket-landing-rl/internal/policy"
	"github.com/adimail/rocket-landing-rl/internal/reward"
	"github.com/adimail/rocket-landing-rl/internal/rocket"
)

// State is the controller's lifecycle state, per spec §4.5:
// Idle -> Paused -> Running -> Paused -> ... -> Stopped.
type State int

const (
	Idle State = iota
	Paused
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Paused:
		return "paused"
	case Running:
		return "playing"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// logFlushThreshold is the in-memory log buffer's flush size (spec §4.5).
const logFlushThreshold = 100

// restartDelay is the short delay before a looped reset+start (spec §5).
const restartDelay = 100 * time.Millisecond

// fatalStepReward and fatalStepLandingCode are applied to a rocket whose
// Step/ComputeReward panics (spec §7's FatalStep): the wire format has no
// dedicated code for this, so it is reported as the worst landing class.
const (
	fatalStepReward      = -1000
	fatalStepLandingCode = 4
)

// Config holds the per-session scheduling parameters resolved from
// config.View at construction.
type Config struct {
	Dt              float64
	MaxEpisodeSteps int
	Loop            bool
	Speed           float64
	LogState        bool
	LogAction       bool
	LogReward       bool
}

// RocketTick is one rocket's full outbound record for a single tick.
type RocketTick struct {
	State       rocket.State
	Reward      float64
	Action      rocket.Action
	Done        bool
	Active      bool
	LandingCode int
}

// Outbound is the typed sink the controller pushes each tick's full
// record set through. The controller never knows about transport.
type Outbound func(ticks []RocketTick)

// finalOutcome caches the terminal classification and reward for a
// rocket so later ticks can keep reporting it after it goes inactive.
type finalOutcome struct {
	landingCode int
	reward      float64
}

// Controller is the per-connection scheduler. All mutable fields are
// guarded by mu; the tick loop itself runs in exactly one goroutine per
// session, started by Start and stopped by Stop or connection close.
type Controller struct {
	mu sync.Mutex

	cfg       Config
	physCfg   physics.Config
	samplerCfg physics.SamplerConfig
	rewardCfg reward.Config

	rockets  []*rocket.Rocket
	sampler  *physics.Sampler

	numRockets int
	done       []bool
	stepCount  []int
	pending    []rocket.Action
	prevAction []rocket.Action
	outcomes   map[int]finalOutcome

	agentControlled map[int]bool
	agentEnabled    bool
	pol             policy.Policy

	state    State
	simSpeed float64

	logger    *logrus.Logger
	logBuffer []logrus.Fields

	metrics *observability.Metrics

	outbound  Outbound
	stopCh    chan struct{}
	loopTimer *time.Timer
}

// New constructs a Controller owning numRockets independently sampled
// rockets, starting in Idle.
func New(numRockets int, physCfg physics.Config, samplerCfg physics.SamplerConfig, rewardCfg reward.Config, cfg Config, pol policy.Policy, logger *logrus.Logger, metrics *observability.Metrics) *Controller {
	initialSpeed := cfg.Speed
	if initialSpeed <= 0 {
		initialSpeed = 1.0
	}
	c := &Controller{
		cfg:        cfg,
		physCfg:    physCfg,
		samplerCfg: samplerCfg,
		rewardCfg:  rewardCfg,
		numRockets: numRockets,
		pol:        pol,
		logger:     logger,
		metrics:    metrics,
		simSpeed:   initialSpeed,
		state:      Idle,
	}
	c.sampler = physics.NewSampler(samplerCfg, rand.NewSource(time.Now().UnixNano()))
	c.agentEnabled = pol != nil
	c.buildRockets()
	return c
}

func (c *Controller) buildRockets() {
	c.rockets = make([]*rocket.Rocket, c.numRockets)
	c.done = make([]bool, c.numRockets)
	c.stepCount = make([]int, c.numRockets)
	c.pending = make([]rocket.Action, c.numRockets)
	c.prevAction = make([]rocket.Action, c.numRockets)
	c.outcomes = make(map[int]finalOutcome)
	c.agentControlled = make(map[int]bool, c.numRockets)
	for i := 0; i < c.numRockets; i++ {
		c.rockets[i] = rocket.New(c.physCfg, c.sampler, c.cfg.Dt)
		if c.agentEnabled {
			c.agentControlled[i] = true
		}
	}
}

// Reset moves the controller to Paused, resets every rocket and session
// cache, and synthesizes a fresh log buffer for the new episode.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.flushLogLocked("reset")
	for i, r := range c.rockets {
		r.Reset()
		c.done[i] = false
		c.stepCount[i] = 0
		c.pending[i] = rocket.Action{}
		c.prevAction[i] = rocket.Action{}
	}
	c.outcomes = make(map[int]finalOutcome)
	c.state = Paused
}

// Start moves Paused/Idle to Running and spawns exactly one loop
// goroutine. Calling Start while already Running is a no-op.
func (c *Controller) Start(outbound Outbound) {
	c.mu.Lock()
	if c.state == Running {
		c.mu.Unlock()
		return
	}
	if c.state == Idle {
		c.resetLocked()
	}
	c.state = Running
	c.outbound = outbound
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	if c.metrics != nil {
		c.metrics.ActiveSessions.Inc()
	}
	c.mu.Unlock()

	go c.loop(stopCh)
}

// Pause flips the running flag; the loop goroutine observes it on its
// next wake and parks with a coarse sleep until stopped, or exits once a
// later Start has spawned its replacement.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		c.state = Paused
		c.flushLogLocked("pause")
	}
}

// Stop forces the loop to exit by its next iteration and flushes the log
// buffer. Safe to call multiple times.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Stopped {
		return
	}
	wasRunning := c.state == Running
	c.state = Stopped
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
	if c.loopTimer != nil {
		c.loopTimer.Stop()
	}
	c.flushLogLocked("stop")
	if wasRunning && c.metrics != nil {
		c.metrics.ActiveSessions.Dec()
	}
}

// ToggleAgent flips agentEnabled, a no-op if no policy was ever loaded
// (spec's PolicyLoad error kind: the controller just proceeds without
// agent control).
func (c *Controller) ToggleAgent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pol == nil {
		return
	}
	c.agentEnabled = !c.agentEnabled
}

// AgentEnabled reports whether policy control is currently active.
func (c *Controller) AgentEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentEnabled
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetSpeed clamps and applies a new simulation speed multiplier.
func (c *Controller) SetSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.simSpeed = clamp(speed, 0.01, 10)
}

// SetOperatorAction records a one-shot operator action for rocketIndex
// and marks that rocket as operator-controlled from now on, per
// SPEC_FULL's per-rocket operator/agent split.
func (c *Controller) SetOperatorAction(rocketIndex int, action rocket.Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rocketIndex < 0 || rocketIndex >= c.numRockets {
		return
	}
	c.pending[rocketIndex] = action.Clamp()
	c.agentControlled[rocketIndex] = false
}

// loop drives the per-connection tick loop in its own goroutine. Every
// rocket-level panic is already recovered inside stepRocketLocked; this
// top-level recover is a last line of defense against a panic anywhere
// else in the loop body (the outbound sink, a future addition) so that
// one session's bug is logged and the session stopped, never taking
// down the process and every other session with it (spec §5: sessions
// share no mutable state and must fail independently).
func (c *Controller) loop(stopCh chan struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			if c.logger != nil {
				c.logger.Errorf("simulation: session loop panicked, stopping session: %v", rec)
			}
			c.Stop()
		}
	}()

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		c.mu.Lock()
		// A Start after Pause replaces stopCh and spawns a fresh loop; this
		// one exits so only a single loop goroutine ticks the session.
		if c.state == Stopped || c.stopCh != stopCh {
			c.mu.Unlock()
			return
		}
		if c.state == Paused {
			c.mu.Unlock()
			select {
			case <-stopCh:
				return
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}
		c.mu.Unlock()

		start := time.Now()
		allDone := c.tick()
		elapsed := time.Since(start)

		if c.metrics != nil {
			c.metrics.TicksTotal.Inc()
			c.metrics.TickDuration.Observe(elapsed.Seconds())
		}

		if allDone {
			c.mu.Lock()
			loop := c.cfg.Loop
			c.flushLogLocked("end_of_episode")
			c.mu.Unlock()
			if loop {
				c.scheduleLoopRestart()
			}
			return
		}

		c.mu.Lock()
		dt, speed := c.cfg.Dt, c.simSpeed
		c.mu.Unlock()
		sleepFor := time.Duration(dt/speed*float64(time.Second)) - elapsed
		if sleepFor > 0 {
			select {
			case <-stopCh:
				return
			case <-time.After(sleepFor):
			}
		}
	}
}

func (c *Controller) scheduleLoopRestart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Stopped {
		return
	}
	outbound := c.outbound
	c.loopTimer = time.AfterFunc(restartDelay, func() {
		c.Reset()
		c.Start(outbound)
	})
}

// tick runs exactly one fixed-dt simulation step across every rocket and
// returns true once every rocket is done. Rockets are stepped in index
// order (spec §5's sequential-within-a-tick guarantee).
func (c *Controller) tick() bool {
	c.mu.Lock()
	actions := make([]rocket.Action, c.numRockets)
	copy(actions, c.pending)

	agentEnabled := c.agentEnabled
	var agentIdx []int
	var agentObs []policy.Observation
	if agentEnabled && c.pol != nil {
		for i := 0; i < c.numRockets; i++ {
			if c.done[i] || !c.agentControlled[i] {
				continue
			}
			s := c.rockets[i].State()
			agentIdx = append(agentIdx, i)
			agentObs = append(agentObs, policy.Observation{
				X: s.X, Y: s.Y, Vx: s.Vx, Vy: s.Vy,
				Ax: s.Ax, Ay: s.Ay, Angle: s.Angle, AngularVelocity: s.AngularVelocity,
			})
		}
	}
	c.mu.Unlock()

	if len(agentIdx) > 0 {
		predicted, err := c.pol.PredictBatch(agentObs)
		switch {
		case err != nil:
			if c.logger != nil {
				c.logger.Warnf("simulation: policy predictBatch failed, falling back to zero action: %v", err)
			}
			if c.metrics != nil {
				c.metrics.PolicyFailures.Inc()
			}
		case len(predicted) != len(agentIdx):
			// PolicyPredictFailure (spec §7): an opaque external
			// collaborator returning a mismatched batch is treated the
			// same as an error — fall back to zero action for every
			// agent-controlled rocket in this tick rather than index out
			// of range.
			if c.logger != nil {
				c.logger.Warnf("simulation: policy predictBatch returned %d actions for %d observations, falling back to zero action", len(predicted), len(agentIdx))
			}
			if c.metrics != nil {
				c.metrics.PolicyFailures.Inc()
			}
		default:
			for j, idx := range agentIdx {
				actions[idx] = rocket.Action{Throttle: predicted[j].Throttle, ColdGas: predicted[j].ColdGas}
			}
		}
	}

	ticks := make([]RocketTick, c.numRockets)

	c.mu.Lock()
	allDone := true
	for i := 0; i < c.numRockets; i++ {
		if c.done[i] {
			outcome := c.outcomes[i]
			ticks[i] = RocketTick{
				State:       c.rockets[i].State(),
				Reward:      outcome.reward,
				Action:      rocket.Action{},
				Done:        true,
				Active:      false,
				LandingCode: outcome.landingCode,
			}
			c.prevAction[i] = rocket.Action{}
			continue
		}

		if !c.stepRocketLocked(i, actions[i], ticks) {
			allDone = false
		}
	}

	for i := range c.pending {
		c.pending[i] = rocket.Action{}
	}

	outbound := c.outbound
	c.mu.Unlock()

	if outbound != nil {
		outbound(ticks)
	}

	return allDone
}

// stepRocketLocked steps, rewards, and buffers the log record for rocket
// i, returning whether it is still active (not done). Called with c.mu
// held. Any panic inside the rocket's Step or reward computation is
// recovered here — spec §7's FatalStep: the panicking rocket is marked
// done with a large negative reward and the tick still completes for
// every other rocket, so one bad collaborator (a policy-driven action, a
// degenerate state) can never take down the whole session.
func (c *Controller) stepRocketLocked(i int, action rocket.Action, ticks []RocketTick) (active bool) {
	defer func() {
		if rec := recover(); rec != nil {
			if c.logger != nil {
				c.logger.WithField("index", i).Errorf("simulation: rocket step panicked, marking done: %v", rec)
			}
			if c.metrics != nil {
				c.metrics.LandingOutcomes.WithLabelValues("fatal_step").Inc()
			}
			c.outcomes[i] = finalOutcome{landingCode: fatalStepLandingCode, reward: fatalStepReward}
			c.done[i] = true
			c.prevAction[i] = rocket.Action{}
			ticks[i] = RocketTick{
				State:       c.rockets[i].State(),
				Reward:      fatalStepReward,
				Action:      rocket.Action{},
				Done:        true,
				Active:      false,
				LandingCode: fatalStepLandingCode,
			}
			active = false
		}
	}()

	before := c.rockets[i].State()
	after := c.rockets[i].Step(action)
	r, terminatedOnGround := reward.ComputeReward(c.rewardCfg, toSnapshot(before), toSnapshot(after), struct{ Throttle, ColdGas float64 }{action.Throttle, action.ColdGas})
	c.stepCount[i]++

	landingCode := 0
	done := false
	if terminatedOnGround {
		landing := reward.EvaluateLanding(c.rewardCfg, toSnapshot(after))
		landingCode = reward.LandingCode(landing.Message)
		c.outcomes[i] = finalOutcome{landingCode: landingCode, reward: r}
		done = true
		if c.metrics != nil {
			c.metrics.LandingOutcomes.WithLabelValues(landing.Message).Inc()
		}
	} else if c.cfg.MaxEpisodeSteps > 0 && c.stepCount[i] >= c.cfg.MaxEpisodeSteps {
		c.outcomes[i] = finalOutcome{landingCode: 0, reward: r}
		done = true
	}
	c.done[i] = done
	c.prevAction[i] = action

	if c.metrics != nil {
		c.metrics.RewardPerStep.Observe(r)
	}

	ticks[i] = RocketTick{
		State:       after,
		Reward:      r,
		Action:      action,
		Done:        done,
		Active:      !done,
		LandingCode: landingCode,
	}

	c.bufferLogLocked(i, c.stepCount[i], action, after, r, done)
	return !done
}

func toSnapshot(s rocket.State) reward.StateSnapshot {
	return reward.StateSnapshot{X: s.X, Y: s.Y, Vx: s.Vx, Vy: s.Vy, Angle: s.Angle, AngularVelocity: s.AngularVelocity}
}

func (c *Controller) bufferLogLocked(index, step int, action rocket.Action, state rocket.State, reward float64, done bool) {
	if c.logger == nil {
		return
	}
	fields := logrus.Fields{"index": index, "step": step, "done": done}
	if c.cfg.LogState {
		fields["state"] = state
	}
	if c.cfg.LogAction {
		fields["action"] = action
	}
	if c.cfg.LogReward {
		fields["reward"] = reward
	}
	c.logBuffer = append(c.logBuffer, fields)
	if len(c.logBuffer) >= logFlushThreshold {
		c.flushLogLocked("buffer_full")
	}
}

func (c *Controller) flushLogLocked(reason string) {
	if c.logger == nil || len(c.logBuffer) == 0 {
		return
	}
	for _, fields := range c.logBuffer {
		c.logger.WithFields(fields).Info("tick")
	}
	c.logger.WithField("flush_reason", reason).WithField("count", len(c.logBuffer)).Debug("flushed log buffer")
	c.logBuffer = c.logBuffer[:0]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
