package simulation

import (
	"sync"
	"testing"
	"time"

	"github.com/adimail/rocket-landing-rl/internal/physics"
	"github.com/adimail/rocket-landing-rl/internal/policy"
	"github.com/adimail/rocket-landing-rl/internal/reward"
	"github.com/adimail/rocket-landing-rl/internal/rocket"
)

func testPhysCfg() physics.Config {
	return physics.Config{
		Gravity: -9.81, AirDensity: 0, ThrustPower: 5_000_000,
		ColdGasThrustPower: 5000, FuelConsumptionRate: 1700,
		DragCoefficient: 0, ReferenceArea: 10.8, Radius: 1.85,
		ColdGasMomentArm: 1.85, AngularDamping: 0.05,
	}
}

func testSamplerCfg(y, fuel float64) physics.SamplerConfig {
	return physics.SamplerConfig{
		Position: [2]physics.Range{{0, 0}, {y, y}},
		Velocity: [2]physics.Range{{0, 0}, {0, 0}},
		Accel:    [2]physics.Range{{0, 0}, {0, 0}},
		Attitude: [2]physics.Range{{0, 0}, {0, 0}},
		Mass:     [2]physics.Range{{25000, 25000}, {fuel, fuel}},
	}
}

func testRewardCfg() reward.Config {
	return reward.Config{
		Perfect: reward.BandThresholds{SpeedVx: 20, SpeedVy: 20, Angle: 5},
		Good:    reward.BandThresholds{SpeedVx: 30, SpeedVy: 30, Angle: 5},
		Ok:      reward.BandThresholds{SpeedVx: 40, SpeedVy: 40, Angle: 80},
		LandingPerfect: 1000, LandingGood: 500, LandingOk: 100,
		CrashGround: -500, OutOfBounds: -100, TippedOver: -200, Gamma: 0.99,
		ThrottleDescentRewardScale: 0.1, FreeFallPenaltyScale: 0.2,
		ColdGasRewardScale: 0.3, AngleAwareThrottleScale: 0.2, CorrectDirectionBonus: 0.05,
		MaxHorizontalPosition: 50000, MaxAltitude: 20000, TipOverAngle: 90,
	}
}

// stubPolicy always returns a constant action, per spec §8 scenario 5.
type stubPolicy struct{ throttle, coldGas float64 }

func (p stubPolicy) PredictBatch(states []policy.Observation) ([]policy.Action, error) {
	out := make([]policy.Action, len(states))
	for i := range out {
		out[i] = policy.Action{Throttle: p.throttle, ColdGas: p.coldGas}
	}
	return out, nil
}

func TestFreeFallToCrash(t *testing.T) {
	// The fall from 1000 m takes about 143 ticks; at 10x speed that is
	// roughly 1.4 s of wall time, well inside the 5 s deadline below.
	cfg := Config{Dt: 0.1, MaxEpisodeSteps: 10000, Loop: false, Speed: 10}
	c := New(1, testPhysCfg(), testSamplerCfg(1000, 0), testRewardCfg(), cfg, nil, nil, nil)

	var mu sync.Mutex
	var last RocketTick
	done := make(chan struct{})
	c.Start(func(ticks []RocketTick) {
		mu.Lock()
		last = ticks[0]
		mu.Unlock()
		if ticks[0].Done {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("simulation did not terminate within 5s")
	}
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	if last.LandingCode != 4 {
		t.Errorf("expected crash landingCode=4, got %d", last.LandingCode)
	}
	if last.Active {
		t.Errorf("expected terminated rocket to be inactive")
	}
}

func TestOneShotOperatorAction(t *testing.T) {
	cfg := Config{Dt: 0.1, MaxEpisodeSteps: 10000, Loop: false}
	c := New(1, testPhysCfg(), testSamplerCfg(1000, 5000), testRewardCfg(), cfg, nil, nil, nil)
	c.Reset()

	c.SetOperatorAction(0, rocket.Action{Throttle: 1, ColdGas: 0})

	var seen []rocket.Action
	var mu sync.Mutex
	tickN := 0
	doneCh := make(chan struct{})
	c.Start(func(ticks []RocketTick) {
		mu.Lock()
		seen = append(seen, ticks[0].Action)
		tickN++
		if tickN >= 2 {
			select {
			case <-doneCh:
			default:
				close(doneCh)
			}
		}
		mu.Unlock()
	})

	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("did not observe two ticks in time")
	}
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 2 {
		t.Fatalf("expected at least 2 ticks, got %d", len(seen))
	}
	if seen[0].Throttle != 1 {
		t.Errorf("expected first tick to apply the operator action, got throttle=%v", seen[0].Throttle)
	}
	if seen[1].Throttle != 0 {
		t.Errorf("expected one-shot action cleared by the second tick, got throttle=%v", seen[1].Throttle)
	}
}

func TestPolicyTakeoverBatchesTwoRockets(t *testing.T) {
	cfg := Config{Dt: 0.1, MaxEpisodeSteps: 10000, Loop: false}
	pol := stubPolicy{throttle: 1, coldGas: 0}
	c := New(2, testPhysCfg(), testSamplerCfg(1000, 5000), testRewardCfg(), cfg, pol, nil, nil)
	c.Reset()

	var mu sync.Mutex
	var firstTick []RocketTick
	gotTick := make(chan struct{})
	c.Start(func(ticks []RocketTick) {
		mu.Lock()
		if firstTick == nil {
			firstTick = append([]RocketTick{}, ticks...)
			close(gotTick)
		}
		mu.Unlock()
	})

	select {
	case <-gotTick:
	case <-time.After(2 * time.Second):
		t.Fatal("did not observe a tick in time")
	}
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(firstTick) != 2 {
		t.Fatalf("expected 2 rocket ticks, got %d", len(firstTick))
	}
	for i, rt := range firstTick {
		if rt.Action.Throttle != 1 || rt.Action.ColdGas != 0 {
			t.Errorf("rocket %d: expected policy action {1,0}, got %+v", i, rt.Action)
		}
	}
}

func TestPauseStopLifecycle(t *testing.T) {
	cfg := Config{Dt: 0.05, MaxEpisodeSteps: 10000, Loop: false}
	c := New(1, testPhysCfg(), testSamplerCfg(1000, 5000), testRewardCfg(), cfg, nil, nil, nil)
	c.Reset()
	if c.State() != Paused {
		t.Fatalf("expected Paused after Reset, got %v", c.State())
	}

	c.Start(func(ticks []RocketTick) {})
	time.Sleep(50 * time.Millisecond)
	if c.State() != Running {
		t.Fatalf("expected Running after Start, got %v", c.State())
	}

	c.Pause()
	if c.State() != Paused {
		t.Fatalf("expected Paused after Pause, got %v", c.State())
	}

	c.Stop()
	if c.State() != Stopped {
		t.Fatalf("expected Stopped after Stop, got %v", c.State())
	}
}
