// Package slack adapts the chat collaborator interfaces to the Slack Web
// and Events APIs.
package slack

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"github.com/vmglabs/luncheon-roulette/internal/chat"
	"github.com/vmglabs/luncheon-roulette/internal/model"
)

// Client implements chat.Messenger and chat.ProfileProvider over the Slack
// Web API.
type Client struct {
	api *slack.Client
}

// NewClient wraps an authenticated Slack API client.
func NewClient(api *slack.Client) *Client {
	return &Client{api: api}
}

// PostMessage posts the rendered blocks and returns the message ref Slack
// acknowledged, which becomes the session's correlation key.
func (c *Client) PostMessage(ctx context.Context, channel string, blocks []model.Block) (chat.MessageRef, error) {
	ch, ts, err := c.api.PostMessageContext(ctx, channel,
		slack.MsgOptionBlocks(toSlackBlocks(blocks)...))
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("post message: %w", err)
	}
	return chat.MessageRef{Channel: ch, Timestamp: ts}, nil
}

// UpdateMessage replaces the blocks of a previously posted message.
func (c *Client) UpdateMessage(ctx context.Context, ref chat.MessageRef, blocks []model.Block) error {
	_, _, _, err := c.api.UpdateMessageContext(ctx, ref.Channel, ref.Timestamp,
		slack.MsgOptionBlocks(toSlackBlocks(blocks)...))
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// PostEphemeral shows blocks to a single user in a channel.
func (c *Client) PostEphemeral(ctx context.Context, channel, user string, blocks []model.Block) error {
	_, err := c.api.PostEphemeralContext(ctx, channel, user,
		slack.MsgOptionBlocks(toSlackBlocks(blocks)...))
	if err != nil {
		return fmt.Errorf("post ephemeral: %w", err)
	}
	return nil
}

// GetProfile resolves a Slack user ID to their display identity.
func (c *Client) GetProfile(ctx context.Context, userRef string) (chat.Profile, error) {
	p, err := c.api.GetUserProfileContext(ctx, &slack.GetUserProfileParameters{UserID: userRef})
	if err != nil {
		return chat.Profile{}, fmt.Errorf("get user profile: %w", err)
	}
	return chat.Profile{
		DisplayName: p.DisplayName,
		RealName:    p.RealName,
		Avatar:      p.Image192,
	}, nil
}
