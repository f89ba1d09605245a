// Package session adapts inbound JSON control/action messages to a
// simulation.Controller and assembles its outbound callback into binary
// telemetry plus text status/envelope frames over one websocket
// connection (C9).
package session

import (
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/adimail/rocket-landing-rl/internal/simulation"
	"github.com/adimail/rocket-landing-rl/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256

	// inboundRate bounds how many control/action messages per second a
	// single connection may push into the controller; an operator input
	// websocket is attacker-reachable in a way the teacher's internal
	// broadcast-only manager is not.
	inboundRate  = 50
	inboundBurst = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     createOriginChecker(),
}

// Client owns one websocket connection plus the simulation.Controller
// driving it. Exactly one readPump and one writePump goroutine run per
// Client, matching the per-connection scheduling model of spec §5.
type Client struct {
	ID         string
	conn       *websocket.Conn
	controller *simulation.Controller
	numRockets int

	send    chan wireMessage
	limiter *rate.Limiter
	logger  *logrus.Logger

	mu     sync.Mutex
	closed bool
}

type wireMessage struct {
	msgType int // websocket.TextMessage or websocket.BinaryMessage
	data    []byte
}

// Upgrade accepts an inbound HTTP request as a websocket connection and
// returns a Client bound to the given controller. The caller is
// responsible for invoking Run to start the read/write pumps.
func Upgrade(w http.ResponseWriter, r *http.Request, controller *simulation.Controller, numRockets int, logger *logrus.Logger) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return &Client{
		ID:         uuid.NewString(),
		conn:       conn,
		controller: controller,
		numRockets: numRockets,
		send:       make(chan wireMessage, sendBufferSize),
		limiter:    rate.NewLimiter(inboundRate, inboundBurst),
		logger:     logger,
	}, nil
}

// Run starts the read/write pumps and blocks until the connection
// closes, at which point it stops the controller (spec §5: "Connection
// close => C7.stop()").
func (c *Client) Run() {
	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()
	c.readPump()
	c.controller.Stop()
	<-done
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		c.closeSend()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if !c.limiter.Allow() {
			c.logf("dropping inbound message: rate limit exceeded")
			continue
		}
		c.handleMessage(data)
	}
}

// handleMessage dispatches one inbound control/action envelope. Malformed
// or unknown messages are logged and ignored, never propagated (spec
// §7's MalformedInbound).
func (c *Client) handleMessage(data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logf("malformed inbound message: %v", err)
		return
	}

	switch msg.Command {
	case "pause":
		c.controller.Pause()
		c.sendStatus()
		return
	case "start":
		c.controller.Start(c.pushTicks)
		c.sendStatus()
		return
	case "restart":
		c.controller.Reset()
		c.sendEnvelope(true)
		c.controller.Start(c.pushTicks)
		c.sendStatus()
		return
	case "toggle_agent":
		c.controller.ToggleAgent()
		c.sendStatus()
		return
	}

	if msg.Speed != nil {
		c.controller.SetSpeed(*msg.Speed)
	}

	if msg.Action != nil && msg.RocketIndex != nil {
		c.controller.SetOperatorAction(*msg.RocketIndex, msg.Action.toAction())
	}
}

// pushTicks is the simulation.Outbound callback: it encodes every tick
// into the binary telemetry frame and queues it for the write pump.
func (c *Client) pushTicks(ticks []simulation.RocketTick) {
	frames := make([]telemetry.Frame, len(ticks))
	for i, t := range ticks {
		if !t.Active {
			frames[i] = telemetry.InactiveFrame(t.LandingCode)
			continue
		}
		frames[i] = telemetry.Frame{
			X: float32(t.State.X), Y: float32(t.State.Y),
			Vx: float32(t.State.Vx), Vy: float32(t.State.Vy),
			Ax: float32(t.State.Ax), Ay: float32(t.State.Ay),
			Angle:               float32(t.State.Angle),
			AngularVelocity:     float32(t.State.AngularVelocity),
			AngularAcceleration: float32(t.State.AngularAcceleration),
			Mass:                float32(t.State.Mass),
			FuelMass:            float32(t.State.FuelMass),
			Reward:              float32(t.Reward),
			Throttle:            float32(t.Action.Throttle),
			ColdGas:             float32(t.Action.ColdGas),
			LandingCode:         float32(t.LandingCode),
			IsActive:            1,
		}
	}
	c.enqueue(wireMessage{msgType: websocket.BinaryMessage, data: telemetry.Encode(frames)})
}

// sendStatus pushes the {status, agent_enabled} text-frame snapshot spec
// §4.7 requires after any lifecycle/switch command.
func (c *Client) sendStatus() {
	status := "paused"
	if c.controller.State() == simulation.Running {
		status = "playing"
	}
	payload, err := json.Marshal(OutboundStatus{Status: status, AgentEnabled: c.controller.AgentEnabled()})
	if err != nil {
		return
	}
	c.enqueue(wireMessage{msgType: websocket.TextMessage, data: payload})
}

// SendInitial pushes the zeroed initial envelope a freshly connected
// client expects before the first tick.
func (c *Client) SendInitial() {
	c.sendEnvelopeWithFlag(false, true)
}

func (c *Client) sendEnvelope(restart bool) {
	c.sendEnvelopeWithFlag(restart, false)
}

func (c *Client) sendEnvelopeWithFlag(restart, initial bool) {
	env := OutboundEnvelope{
		Step: StepPayload{
			Done: make([]bool, c.numRockets),
		},
		Initial: initial,
		Restart: restart,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.enqueue(wireMessage{msgType: websocket.TextMessage, data: payload})
}

func (c *Client) enqueue(msg wireMessage) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.logf("send buffer full, dropping outbound message")
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.msgType, msg.data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) logf(format string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.WithField("client_id", c.ID).Warnf(format, args...)
}

// createOriginChecker validates websocket origins, allowing localhost in
// development.
func createOriginChecker() func(r *http.Request) bool {
	isDev := os.Getenv("ROCKETSIM_ENV") == "development"
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return isDev
		}
		originURL, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if isDev {
			host := strings.ToLower(originURL.Hostname())
			if host == "localhost" || host == "127.0.0.1" || host == "::1" {
				return true
			}
		}
		return isDev
	}
}
