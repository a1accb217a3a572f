// ABOUTME: Data model for per-agent status updates reported by the remote analysis pipeline.
// ABOUTME: Defines Update, Status, the system agent name, and the slot identity rules used for merging.
package reconcile

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Status is the lifecycle state an agent reports. The server may send values
// outside the known set; they are carried verbatim.
type Status string

const (
	StatusPending  Status = "pending"  // implicit: no update seen yet
	StatusThinking Status = "thinking" // agent is working
	StatusComplete Status = "complete" // agent finished, response available
	StatusError    Status = "error"    // agent reported a failure
)

// Control statuses used on the system agent.
const (
	StatusStarting Status = "starting"
	StatusStopped  Status = "stopped"
)

// SystemAgent is the bookkeeping agent name. It is never rendered as a card.
const SystemAgent = "system"

// NoStage is the sort position used for agents that carry no stage.
const NoStage = 999

// Update is one reported fact about one agent at one point in time.
type Update struct {
	Agent     string `json:"agent"`
	Stage     *int   `json:"stage,omitempty"`
	Iteration *int   `json:"iteration,omitempty"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	Response  string `json:"response,omitempty"`
	Done      bool   `json:"done,omitempty"`
}

// Int returns a pointer to v, for building updates with a stage or iteration.
func Int(v int) *int {
	return &v
}

// Decode parses a JSON payload into an Update. The response field is accepted
// as a string or as any other JSON value, which is kept in its compact JSON
// form so the text normalizer can dig the text out of it later.
func Decode(payload []byte) (Update, error) {
	var raw struct {
		Agent     string          `json:"agent"`
		Stage     *int            `json:"stage"`
		Iteration *int            `json:"iteration"`
		Status    Status          `json:"status"`
		Message   json.RawMessage `json:"message"`
		Response  json.RawMessage `json:"response"`
		Done      bool            `json:"done"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Update{}, fmt.Errorf("decode update: %w", err)
	}
	message, err := RawText(raw.Message)
	if err != nil {
		return Update{}, fmt.Errorf("decode update message: %w", err)
	}
	response, err := RawText(raw.Response)
	if err != nil {
		return Update{}, fmt.Errorf("decode update response: %w", err)
	}
	return Update{
		Agent:     raw.Agent,
		Stage:     raw.Stage,
		Iteration: raw.Iteration,
		Status:    raw.Status,
		Message:   message,
		Response:  response,
		Done:      raw.Done,
	}, nil
}

// RawText returns a JSON string value as-is and any other non-null value as
// its JSON text.
func RawText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

// IsSystem reports whether the update belongs to the bookkeeping agent.
func (u Update) IsSystem() bool {
	return u.Agent == SystemAgent
}

// StageOrder returns the stage used for sorting, NoStage when absent.
func (u Update) StageOrder() int {
	if u.Stage == nil {
		return NoStage
	}
	return *u.Stage
}

// Key returns the identity key of the slot this update refers to.
func (u Update) Key() Key {
	k := Key{Agent: u.Agent}
	if u.Stage != nil {
		k.Stage = *u.Stage
		k.Staged = true
	}
	return k
}

// Key identifies one logical agent slot: (agent, stage), or agent alone when
// the stage is unknown.
type Key struct {
	Agent  string
	Stage  int
	Staged bool
}

// String renders the key as "agent" or "agent#stage".
func (k Key) String() string {
	if !k.Staged {
		return k.Agent
	}
	return k.Agent + "#" + strconv.Itoa(k.Stage)
}

// Matches reports whether two keys name the same slot: agents are equal and
// either the stages are equal or at least one side carries no stage.
func (k Key) Matches(other Key) bool {
	if k.Agent != other.Agent {
		return false
	}
	if k.Staged && other.Staged {
		return k.Stage == other.Stage
	}
	return true
}

// exact reports whether both keys carry the same stage, or both none.
func (k Key) exact(other Key) bool {
	return k == other
}

// sameUpdate compares two updates by value, following the optional pointers.
func sameUpdate(a, b Update) bool {
	return a.Agent == b.Agent &&
		sameInt(a.Stage, b.Stage) &&
		sameInt(a.Iteration, b.Iteration) &&
		a.Status == b.Status &&
		a.Message == b.Message &&
		a.Response == b.Response &&
		a.Done == b.Done
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
