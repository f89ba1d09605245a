package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adimail/rocket-landing-rl/internal/physics"
	"github.com/adimail/rocket-landing-rl/internal/reward"
	"github.com/adimail/rocket-landing-rl/internal/simulation"
)

func testController() *simulation.Controller {
	physCfg := physics.Config{
		Gravity: -9.81, ThrustPower: 5_000_000, ColdGasThrustPower: 5000,
		FuelConsumptionRate: 1700, DragCoefficient: 0.8, ReferenceArea: 10.8,
		Radius: 1.85, ColdGasMomentArm: 1.85, AngularDamping: 0.05,
	}
	samplerCfg := physics.SamplerConfig{
		Position: [2]physics.Range{{0, 0}, {1000, 1000}},
		Velocity: [2]physics.Range{{0, 0}, {0, 0}},
		Accel:    [2]physics.Range{{0, 0}, {0, 0}},
		Attitude: [2]physics.Range{{0, 0}, {0, 0}},
		Mass:     [2]physics.Range{{25000, 25000}, {5000, 5000}},
	}
	rewardCfg := reward.Config{
		Perfect: reward.BandThresholds{SpeedVx: 20, SpeedVy: 20, Angle: 5},
		Good:    reward.BandThresholds{SpeedVx: 30, SpeedVy: 30, Angle: 5},
		Ok:      reward.BandThresholds{SpeedVx: 40, SpeedVy: 40, Angle: 80},
		LandingPerfect: 1000, LandingGood: 500, LandingOk: 100,
		CrashGround: -500, OutOfBounds: -100, TippedOver: -200, Gamma: 0.99,
		MaxHorizontalPosition: 50000, MaxAltitude: 20000, TipOverAngle: 90,
	}
	simCfg := simulation.Config{Dt: 0.05, MaxEpisodeSteps: 100000}
	return simulation.New(1, physCfg, samplerCfg, rewardCfg, simCfg, nil, nil, nil)
}

func TestClientStartProducesBinaryTelemetry(t *testing.T) {
	controller := testController()
	var upgradedClient *Client

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := Upgrade(w, r, controller, 1, nil)
		if err != nil {
			t.Errorf("Upgrade: %v", err)
			return
		}
		upgradedClient = c
		c.Run()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(InboundMessage{Command: "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	gotBinary := false
	gotStatus := false
	for i := 0; i < 10 && !(gotBinary && gotStatus); i++ {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		switch msgType {
		case websocket.BinaryMessage:
			if len(data) > 0 && data[0] == 1 {
				gotBinary = true
			}
		case websocket.TextMessage:
			var status OutboundStatus
			if json.Unmarshal(data, &status) == nil && status.Status == "playing" {
				gotStatus = true
			}
		}
	}

	if !gotStatus {
		t.Errorf("expected a {status: playing} text frame after start")
	}
	if !gotBinary {
		t.Errorf("expected at least one binary telemetry frame after start")
	}

	_ = upgradedClient
	controller.Stop()
}
