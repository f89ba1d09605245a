package session

import "github.com/adimail/rocket-landing-rl/internal/rocket"

// InboundMessage is the single inbound JSON control/action envelope spec
// §4.7 defines. Unknown/malformed fields are simply left zero; validation
// happens in Client.handleMessage.
type InboundMessage struct {
	Command     string         `json:"command,omitempty"`
	Speed       *float64       `json:"speed,omitempty"`
	Action      *ActionPayload `json:"action,omitempty"`
	RocketIndex *int           `json:"rocket_index,omitempty"`
}

// ActionPayload is the operator override action shape.
type ActionPayload struct {
	Throttle float64 `json:"throttle"`
	ColdGas  float64 `json:"coldGas"`
}

func (a ActionPayload) toAction() rocket.Action {
	return rocket.Action{Throttle: a.Throttle, ColdGas: a.ColdGas}
}

// OutboundStatus is the status text-frame snapshot spec §6 fixes.
type OutboundStatus struct {
	Status       string `json:"status"`
	AgentEnabled bool   `json:"agent_enabled"`
}

// StepPayload is one rocket's state/reward/done fields inside an
// initial/restart envelope.
type StepPayload struct {
	State           rocket.State `json:"state"`
	Reward          *float64     `json:"reward"`
	Done            []bool       `json:"done"`
	PrevActionTaken *ActionPayload `json:"prev_action_taken"`
}

// OutboundEnvelope is the initial/restart text frame spec §6 fixes:
// {step: {...}, initial|restart: true}.
type OutboundEnvelope struct {
	Step    StepPayload `json:"step"`
	Initial bool        `json:"initial,omitempty"`
	Restart bool        `json:"restart,omitempty"`
}
