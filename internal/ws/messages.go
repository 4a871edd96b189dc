package ws

import "encoding/json"

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgStepStarted  MessageType = "step_started"
	MsgStepFinished MessageType = "step_finished"
	MsgPlanFinished MessageType = "plan_finished"
	MsgHistory      MessageType = "history"
	MsgError        MessageType = "error"
	MsgSync         MessageType = "sync"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StepEvent describes one plan step starting or finishing.
type StepEvent struct {
	PlanID     string `json:"plan_id"`
	Database   string `json:"database,omitempty"`
	Table      string `json:"table"`
	Column     string `json:"column"`
	StepID     string `json:"step"`
	Action     string `json:"action"`
	Kind       string `json:"kind,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	SQL        string `json:"sql"`
	Status     string `json:"status"` // started, ok or failed
	Error      string `json:"error,omitempty"`
	ElapsedMS  int64  `json:"elapsed_ms,omitempty"`
}

// PlanEvent summarizes a finished plan.
type PlanEvent struct {
	PlanID   string `json:"plan_id"`
	Database string `json:"database,omitempty"`
	Table    string `json:"table"`
	Column   string `json:"column"`
	Executed int    `json:"executed"`
	Total    int    `json:"total"`
	Status   string `json:"status"` // applied or failed
	Error    string `json:"error,omitempty"`
}

// NewMessage creates a new Message with the given type and payload.
func NewMessage(typ MessageType, payload any) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Message{Type: typ, Payload: p})
}
