package physics

import (
	"math"
	"math/rand"
	"testing"
)

func testConfig() Config {
	return Config{
		Gravity:             -9.81,
		AirDensity:          0,
		ThrustPower:         5_000_000,
		ColdGasThrustPower:  5000,
		FuelConsumptionRate: 1700,
		DragCoefficient:     0,
		ReferenceArea:       10.8,
		Radius:              1.85,
		ColdGasMomentArm:    1.85,
		AngularDamping:      0.05,
	}
}

func TestGravityForceDirection(t *testing.T) {
	f := GravityForce(testConfig(), 1000)
	if f.X != 0 {
		t.Errorf("gravity force should have zero X component, got %v", f.X)
	}
	if f.Y >= 0 {
		t.Errorf("gravity force should point downward (negative Y), got %v", f.Y)
	}
}

func TestThrustForceZeroBelowThreshold(t *testing.T) {
	f := ThrustForce(testConfig(), 1e-7, 0)
	if f.X != 0 || f.Y != 0 {
		t.Errorf("thrust below 1e-6 threshold should be zero, got %+v", f)
	}
}

func TestThrustForceVertical(t *testing.T) {
	f := ThrustForce(testConfig(), 1.0, 0)
	if math.Abs(f.X) > 1e-9 {
		t.Errorf("thrust at angle=0 should have zero X component, got %v", f.X)
	}
	if f.Y <= 0 {
		t.Errorf("thrust at angle=0 should push upward, got %v", f.Y)
	}
}

func TestDragForceZeroBelowThreshold(t *testing.T) {
	f := DragForce(testConfig(), 1e-6, 1e-6)
	if f.X != 0 || f.Y != 0 {
		t.Errorf("drag below the 1e-9 speed-squared floor should be zero, got %+v", f)
	}
}

func TestDragOpposesVelocity(t *testing.T) {
	cfg := testConfig()
	cfg.AirDensity = 1.225
	cfg.DragCoefficient = 0.8
	f := DragForce(cfg, 100, 0)
	if f.X >= 0 {
		t.Errorf("drag should oppose positive vx, got %v", f.X)
	}
}

func TestLinearAccelDegenerateMass(t *testing.T) {
	a := LinearAccel(Vec2{X: 100, Y: 100}, 1e-7)
	if a.X != 0 || a.Y != 0 {
		t.Errorf("linear accel for near-zero mass should be zero, got %+v", a)
	}
}

func TestAngularAccelSign(t *testing.T) {
	cfg := testConfig()
	pos := AngularAccel(cfg, 1.0, 1000)
	neg := AngularAccel(cfg, -1.0, 1000)
	if pos <= 0 || neg >= 0 {
		t.Errorf("angular accel should flip sign with cold gas direction, got pos=%v neg=%v", pos, neg)
	}
	if math.Abs(pos+neg) > 1e-9 {
		t.Errorf("angular accel should be antisymmetric in cold gas, got pos=%v neg=%v", pos, neg)
	}
}

func TestNormalizeAngleRange(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{180, -180},
		{-180, -180},
		{270, -90},
		{-270, 90},
		{360, 0},
		{720 + 10, 10},
	}
	for _, c := range cases {
		got := NormalizeAngle(c.in)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("NormalizeAngle(%v) = %v, want %v", c.in, got, c.want)
		}
		if got < -180 || got >= 180 {
			t.Errorf("NormalizeAngle(%v) = %v out of [-180,180)", c.in, got)
		}
	}
}

func TestFuelConsumedMonotonic(t *testing.T) {
	cfg := testConfig()
	c := FuelConsumed(cfg, 0.5, 0.1)
	if c <= 0 {
		t.Errorf("fuel consumption at positive throttle should be positive, got %v", c)
	}
	c0 := FuelConsumed(cfg, 0, 0.1)
	if c0 != 0 {
		t.Errorf("fuel consumption at zero throttle should be zero, got %v", c0)
	}
}

// TestVerletFreeFallMatchesClosedForm checks that, with zero controls and
// zero drag, the Verlet trajectory matches the closed-form projectile
// solution to within O(dt^2), per the "Verlet consistency" property.
func TestVerletFreeFallMatchesClosedForm(t *testing.T) {
	cfg := testConfig()
	cfg.AirDensity = 0
	dt := 0.01
	g := cfg.Gravity

	// Bootstrap: y0=1000, v0=0, back-integrate previous from a(0)=g.
	y0 := 1000.0
	v0 := 0.0
	yPrev := y0 - v0*dt + 0.5*g*dt*dt

	current := VerletInput{Y: y0, Ay: g}
	previous := VerletInput{Y: yPrev}

	steps := 50
	for i := 0; i < steps; i++ {
		out := StepVerlet(cfg, current, previous, dt)
		previous = current
		current = VerletInput{Y: out.Y, Ay: g}
	}

	elapsed := float64(steps) * dt
	want := y0 + 0.5*g*elapsed*elapsed
	tolerance := 1e-6 * math.Abs(want) + 1e-6
	if math.Abs(current.Y-want) > tolerance {
		t.Errorf("free-fall Verlet: after %d steps got y=%v, want %v (tol %v)", steps, current.Y, want, tolerance)
	}
	t.Logf("free fall: got y=%.6f want=%.6f", current.Y, want)
}

func TestSamplerBounds(t *testing.T) {
	cfg := SamplerConfig{
		Position: [2]Range{{-10, 10}, {500, 1500}},
		Velocity: [2]Range{{-5, 5}, {-5, 5}},
		Accel:    [2]Range{{0, 0}, {0, 0}},
		Attitude: [2]Range{{-15, 15}, {-2, 2}},
		Mass:     [2]Range{{1000, 1000}, {0, 500}},
	}
	s := NewSampler(cfg, rand.NewSource(42))
	for i := 0; i < 200; i++ {
		st := s.Sample()
		if st.X < -10 || st.X > 10 {
			t.Fatalf("x out of bounds: %v", st.X)
		}
		if st.Y < 500 || st.Y > 1500 {
			t.Fatalf("y out of bounds: %v", st.Y)
		}
		if st.FuelMass < 0 || st.FuelMass > 500 {
			t.Fatalf("fuelMass out of bounds: %v", st.FuelMass)
		}
	}
}
