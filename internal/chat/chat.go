// Package chat defines the engine's view of the chat platform: inbound
// trigger and action events, the outward message surface, and profile
// lookups. The Slack implementation lives in the slack subpackage.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/vmglabs/luncheon-roulette/internal/model"
)

// TriggerEvent is an inbound mention addressed to the bot. Delivery is
// at-least-once and unordered across channels; ID is the transport's unique
// event identifier and drives duplicate suppression.
type TriggerEvent struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Channel string `json:"channel"`
	Sender  string `json:"sender"`
}

// ActionEvent is a button interaction on a previously posted message.
type ActionEvent struct {
	ActionID string
	Value    string
	Message  MessageRef
	Channel  string
	Sender   string
}

// MessageRef identifies one posted chat message. Its Key doubles as the
// correlation key sessions are stored under.
type MessageRef struct {
	Channel   string
	Timestamp string
}

// Key flattens the ref into a single store key.
func (r MessageRef) Key() string {
	return r.Channel + "/" + r.Timestamp
}

// IsZero reports an unset ref.
func (r MessageRef) IsZero() bool {
	return r.Channel == "" && r.Timestamp == ""
}

// ParseMessageRef splits a session key back into a message ref.
func ParseMessageRef(key string) (MessageRef, error) {
	channel, ts, ok := strings.Cut(key, "/")
	if !ok || channel == "" || ts == "" {
		return MessageRef{}, fmt.Errorf("malformed message ref %q", key)
	}
	return MessageRef{Channel: channel, Timestamp: ts}, nil
}

// Messenger is the outward display surface. PostMessage only returns a ref
// once the platform has acknowledged the message; the engine conditions
// session persistence on that.
type Messenger interface {
	PostMessage(ctx context.Context, channel string, blocks []model.Block) (MessageRef, error)
	UpdateMessage(ctx context.Context, ref MessageRef, blocks []model.Block) error
	PostEphemeral(ctx context.Context, channel, user string, blocks []model.Block) error
}

// Profile is a user's display identity.
type Profile struct {
	DisplayName string
	RealName    string
	Avatar      string
}

// VoterName is the identity votes are attributed to: the display name when
// set, the real name otherwise.
func (p Profile) VoterName() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.RealName
}

// ProfileProvider resolves a platform user reference to a profile.
type ProfileProvider interface {
	GetProfile(ctx context.Context, userRef string) (Profile, error)
}
