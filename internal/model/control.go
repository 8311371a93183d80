package model

import (
	"fmt"
	"strings"
)

// Action is a closed set of control verbs. Unknown actions are rejected
// at parse time rather than silently ignored.
type Action string

const (
	ActionSubscribe   Action = "SUBSCRIBE"
	ActionUnsubscribe Action = "UNSUBSCRIBE"
	ActionPause       Action = "PAUSE"
	ActionResume      Action = "RESUME"
)

// ParseAction normalizes and validates a control verb.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case ActionSubscribe:
		return ActionSubscribe, nil
	case ActionUnsubscribe:
		return ActionUnsubscribe, nil
	case ActionPause:
		return ActionPause, nil
	case ActionResume:
		return ActionResume, nil
	default:
		return "", fmt.Errorf("unknown control action %q", s)
	}
}

// ControlMessage mutates the subscription set of a session.
//
// Symbol and Interval are required for SUBSCRIBE/UNSUBSCRIBE and ignored
// for the session-global PAUSE/RESUME.
type ControlMessage struct {
	Action   Action            `json:"action"`
	Symbol   string            `json:"symbol,omitempty"`
	Interval string            `json:"interval,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// Key derives the subscription key, applying the default interval.
func (m ControlMessage) Key() Key {
	interval := m.Interval
	if interval == "" {
		interval = DefaultInterval
	}
	return Key{Symbol: m.Symbol, Interval: interval}
}
