package main

import (
	"github.com/adimail/rocket-landing-rl/internal/config"
	"github.com/adimail/rocket-landing-rl/internal/physics"
	"github.com/adimail/rocket-landing-rl/internal/reward"
	"github.com/adimail/rocket-landing-rl/internal/simulation"
)

// resolvedConfig is every typed value pulled from config.View at process
// start. Construction fails fast (spec §7 ConfigMissing) by returning the
// first missing/malformed key as an error.
type resolvedConfig struct {
	numRockets   int
	physics      physics.Config
	sampler      physics.SamplerConfig
	reward       reward.Config
	simulation   simulation.Config
	modelVersion string
	logsDir      string
}

func resolveConfig(v *config.View) (resolvedConfig, error) {
	var rc resolvedConfig
	var err error

	if rc.numRockets, err = v.Int("environment.num_rockets"); err != nil {
		return rc, err
	}

	if rc.physics, err = resolvePhysics(v); err != nil {
		return rc, err
	}
	if rc.sampler, err = resolveSampler(v); err != nil {
		return rc, err
	}
	if rc.reward, err = resolveReward(v); err != nil {
		return rc, err
	}
	if rc.simulation, err = resolveSimulation(v); err != nil {
		return rc, err
	}

	rc.modelVersion = v.OptString("model.version")
	if rc.logsDir, err = v.String("paths.logs_dir"); err != nil {
		return rc, err
	}

	return rc, nil
}

func resolvePhysics(v *config.View) (physics.Config, error) {
	var cfg physics.Config
	var err error

	if cfg.Gravity, err = v.Float64("environment.gravity"); err != nil {
		return cfg, err
	}
	if cfg.AirDensity, err = v.Float64("environment.air_density"); err != nil {
		return cfg, err
	}
	if cfg.ThrustPower, err = v.Float64("rocket.thrust_power"); err != nil {
		return cfg, err
	}
	if cfg.ColdGasThrustPower, err = v.Float64("rocket.cold_gas_thrust_power"); err != nil {
		return cfg, err
	}
	if cfg.FuelConsumptionRate, err = v.Float64("rocket.fuel_consumption_rate"); err != nil {
		return cfg, err
	}
	if cfg.DragCoefficient, err = v.Float64("rocket.drag_coefficient"); err != nil {
		return cfg, err
	}
	if cfg.ReferenceArea, err = v.Float64("rocket.reference_area"); err != nil {
		return cfg, err
	}
	if cfg.Radius, err = v.Float64("rocket.radius"); err != nil {
		return cfg, err
	}
	if cfg.ColdGasMomentArm, err = v.Float64("rocket.cold_gas_moment_arm"); err != nil {
		return cfg, err
	}
	if cfg.AngularDamping, err = v.Float64("rocket.angular_damping"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func resolveSampler(v *config.View) (physics.SamplerConfig, error) {
	var cfg physics.SamplerConfig
	var err error

	ranges := []struct {
		path string
		dst  *physics.Range
	}{
		{"rocket.position_limits.x", &cfg.Position[0]},
		{"rocket.position_limits.y", &cfg.Position[1]},
		{"rocket.velocity_limits.vx", &cfg.Velocity[0]},
		{"rocket.velocity_limits.vy", &cfg.Velocity[1]},
		{"rocket.acceleration_limits.ax", &cfg.Accel[0]},
		{"rocket.acceleration_limits.ay", &cfg.Accel[1]},
		{"rocket.attitude_limits.angle", &cfg.Attitude[0]},
		{"rocket.attitude_limits.angular_velocity", &cfg.Attitude[1]},
		{"rocket.mass_limits.dry_mass", &cfg.Mass[0]},
		{"rocket.mass_limits.fuel_mass", &cfg.Mass[1]},
	}
	for _, r := range ranges {
		pair, rerr := v.Range(r.path)
		if rerr != nil {
			return cfg, rerr
		}
		*r.dst = physics.Range(pair)
	}
	return cfg, err
}

func resolveReward(v *config.View) (reward.Config, error) {
	var cfg reward.Config
	var err error

	bands := []struct {
		prefix string
		dst    *reward.BandThresholds
	}{
		{"landing.thresholds.perfect", &cfg.Perfect},
		{"landing.thresholds.good", &cfg.Good},
		{"landing.thresholds.ok", &cfg.Ok},
	}
	for _, b := range bands {
		if b.dst.SpeedVx, err = v.Float64(b.prefix + ".speed_vx"); err != nil {
			return cfg, err
		}
		if b.dst.SpeedVy, err = v.Float64(b.prefix + ".speed_vy"); err != nil {
			return cfg, err
		}
		if b.dst.Angle, err = v.Float64(b.prefix + ".angle"); err != nil {
			return cfg, err
		}
	}

	floats := []struct {
		path string
		dst  *float64
	}{
		{"rl.rewards.landing_perfect", &cfg.LandingPerfect},
		{"rl.rewards.landing_good", &cfg.LandingGood},
		{"rl.rewards.landing_ok", &cfg.LandingOk},
		{"rl.rewards.crash_ground", &cfg.CrashGround},
		{"rl.rewards.out_of_bounds", &cfg.OutOfBounds},
		{"rl.rewards.tipped_over", &cfg.TippedOver},
		{"rl.rewards.gamma", &cfg.Gamma},
		{"rl.rewards.throttle_descent_reward_scale", &cfg.ThrottleDescentRewardScale},
		{"rl.rewards.free_fall_penalty_scale", &cfg.FreeFallPenaltyScale},
		{"rl.rewards.cold_gas_reward_scale", &cfg.ColdGasRewardScale},
		{"rl.rewards.angle_aware_throttle_scale", &cfg.AngleAwareThrottleScale},
		{"rl.rewards.correct_direction_bonus", &cfg.CorrectDirectionBonus},
		{"rl.max_horizontal_position", &cfg.MaxHorizontalPosition},
		{"rl.max_altitude", &cfg.MaxAltitude},
		{"rl.tip_over_angle", &cfg.TipOverAngle},
	}
	for _, f := range floats {
		if *f.dst, err = v.Float64(f.path); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func resolveSimulation(v *config.View) (simulation.Config, error) {
	var cfg simulation.Config
	var err error

	if cfg.Dt, err = v.Float64("simulation.time_step"); err != nil {
		return cfg, err
	}

	// simulation.max_steps is the host-level hard ceiling on any one
	// episode; rl.max_episode_steps is the RL truncation horizon the
	// reward function reasons about (spec §6 lists both). The scheduler
	// enforces whichever is tighter so a misconfigured training horizon
	// can never outrun the host's own safety cap.
	episodeSteps, err := v.Int("rl.max_episode_steps")
	if err != nil {
		return cfg, err
	}
	hardCap, err := v.Int("simulation.max_steps")
	if err != nil {
		return cfg, err
	}
	cfg.MaxEpisodeSteps = episodeSteps
	if hardCap > 0 && (episodeSteps <= 0 || hardCap < episodeSteps) {
		cfg.MaxEpisodeSteps = hardCap
	}

	if cfg.Loop, err = v.Bool("simulation.loop"); err != nil {
		return cfg, err
	}
	if cfg.Speed, err = v.Float64("simulation.speed"); err != nil {
		return cfg, err
	}
	if cfg.LogState, err = v.Bool("logging.log_state"); err != nil {
		return cfg, err
	}
	if cfg.LogAction, err = v.Bool("logging.log_action"); err != nil {
		return cfg, err
	}
	if cfg.LogReward, err = v.Bool("logging.log_reward"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

