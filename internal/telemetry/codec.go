// Package telemetry implements the binary wire codec for per-tick rocket
// state (C8): a 1-byte message type followed by a fixed-width, 16-float32
// little-endian frame per rocket.
package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MsgTelemetry is the single message type byte this codec emits.
const MsgTelemetry byte = 1

// fieldsPerRocket is the fixed field count per spec §3/§4.6.
const fieldsPerRocket = 16

// bytesPerRocket is 16 float32 fields, 4 bytes each.
const bytesPerRocket = fieldsPerRocket * 4

// Frame is one rocket's telemetry record, in wire field order.
type Frame struct {
	X, Y                       float32
	Vx, Vy                     float32
	Ax, Ay                     float32
	Angle                      float32
	AngularVelocity            float32
	AngularAcceleration        float32
	Mass, FuelMass             float32
	Reward                     float32 // NaN when Active is false
	Throttle, ColdGas          float32
	LandingCode                float32 // 0..4
	IsActive                   float32 // 1.0 or 0.0
}

// InactiveFrame builds the wire representation for a terminated rocket:
// zeroed kinematics, NaN reward, zeroed actions, the cached landing code
// from its terminal step (or 0 if it never terminated), and IsActive=0.
func InactiveFrame(cachedLandingCode int) Frame {
	return Frame{
		Reward:      float32(math.NaN()),
		LandingCode: float32(cachedLandingCode),
		IsActive:    0,
	}
}

// Encode packs a message-type byte followed by one 64-byte block per
// frame, in order.
func Encode(frames []Frame) []byte {
	buf := make([]byte, 1+len(frames)*bytesPerRocket)
	buf[0] = MsgTelemetry
	for i, f := range frames {
		off := 1 + i*bytesPerRocket
		putFrame(buf[off:off+bytesPerRocket], f)
	}
	return buf
}

func putFrame(b []byte, f Frame) {
	vals := [fieldsPerRocket]float32{
		f.X, f.Y, f.Vx, f.Vy, f.Ax, f.Ay, f.Angle, f.AngularVelocity,
		f.AngularAcceleration, f.Mass, f.FuelMass, f.Reward,
		f.Throttle, f.ColdGas, f.LandingCode, f.IsActive,
	}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:i*4+4], math.Float32bits(v))
	}
}

// Decode validates and unpacks a telemetry message into its per-rocket
// frames. numRockets must match the value the encoder used; Decode
// returns an error if the byte length doesn't match 1 + numRockets*64 or
// the leading message-type byte isn't MsgTelemetry.
func Decode(data []byte, numRockets int) ([]Frame, error) {
	want := 1 + numRockets*bytesPerRocket
	if len(data) != want {
		return nil, fmt.Errorf("telemetry: expected %d bytes for %d rockets, got %d", want, numRockets, len(data))
	}
	if data[0] != MsgTelemetry {
		return nil, fmt.Errorf("telemetry: expected message type %d, got %d", MsgTelemetry, data[0])
	}

	frames := make([]Frame, numRockets)
	for i := range frames {
		off := 1 + i*bytesPerRocket
		frames[i] = getFrame(data[off : off+bytesPerRocket])
	}
	return frames, nil
}

func getFrame(b []byte) Frame {
	var vals [fieldsPerRocket]float32
	for i := range vals {
		vals[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
	return Frame{
		X: vals[0], Y: vals[1], Vx: vals[2], Vy: vals[3],
		Ax: vals[4], Ay: vals[5],
		Angle: vals[6], AngularVelocity: vals[7], AngularAcceleration: vals[8],
		Mass: vals[9], FuelMass: vals[10],
		Reward:      vals[11],
		Throttle:    vals[12],
		ColdGas:     vals[13],
		LandingCode: vals[14],
		IsActive:    vals[15],
	}
}
