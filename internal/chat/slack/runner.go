package slack

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/vmglabs/luncheon-roulette/internal/chat"
)

// Handler is the engine surface the runner dispatches events into.
type Handler interface {
	HandleTrigger(ctx context.Context, ev chat.TriggerEvent) error
	HandleAction(ctx context.Context, ev chat.ActionEvent) error
}

// Runner pumps socket-mode envelopes into the handler. Every envelope is
// acked immediately; Slack redelivers unacked envelopes, which is exactly
// the at-least-once behavior the engine's dedup cache absorbs.
type Runner struct {
	client  *socketmode.Client
	handler Handler
	log     zerolog.Logger
}

// NewRunner builds a runner over a connected socket-mode client.
func NewRunner(client *socketmode.Client, handler Handler, log zerolog.Logger) *Runner {
	return &Runner{client: client, handler: handler, log: log}
}

// Run starts the socket-mode connection and dispatches events until the
// context is canceled. Each event is handled on its own goroutine so one
// hung external call never blocks other events.
func (r *Runner) Run(ctx context.Context) error {
	go func() {
		if err := r.client.RunContext(ctx); err != nil && ctx.Err() == nil {
			r.log.Error().Err(err).Msg("socket mode connection ended")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-r.client.Events:
			if !ok {
				return nil
			}
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				r.handleEventsAPI(ctx, evt)
			case socketmode.EventTypeInteractive:
				r.handleInteractive(ctx, evt)
			}
		}
	}
}

func (r *Runner) handleEventsAPI(ctx context.Context, evt socketmode.Event) {
	if evt.Request != nil {
		r.client.Ack(*evt.Request)
	}

	apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		return
	}
	mention, ok := apiEvent.InnerEvent.Data.(*slackevents.AppMentionEvent)
	if !ok {
		return
	}

	// The payload-level event_id is stable across Slack's redeliveries,
	// unlike the envelope id.
	var meta struct {
		EventID string `json:"event_id"`
	}
	if evt.Request != nil {
		_ = json.Unmarshal(evt.Request.Payload, &meta)
	}

	ev := chat.TriggerEvent{
		ID:      meta.EventID,
		Text:    mention.Text,
		Channel: mention.Channel,
		Sender:  mention.User,
	}
	go func() {
		if err := r.handler.HandleTrigger(ctx, ev); err != nil {
			r.log.Error().Err(err).Str("event_id", ev.ID).Msg("trigger handling failed")
		}
	}()
}

func (r *Runner) handleInteractive(ctx context.Context, evt socketmode.Event) {
	if evt.Request != nil {
		r.client.Ack(*evt.Request)
	}

	cb, ok := evt.Data.(slack.InteractionCallback)
	if !ok {
		return
	}

	for _, action := range cb.ActionCallback.BlockActions {
		ev := chat.ActionEvent{
			ActionID: action.ActionID,
			Value:    action.Value,
			Message: chat.MessageRef{
				Channel:   cb.Channel.ID,
				Timestamp: cb.Message.Timestamp,
			},
			Channel: cb.Channel.ID,
			Sender:  cb.User.ID,
		}
		go func() {
			if err := r.handler.HandleAction(ctx, ev); err != nil {
				r.log.Error().Err(err).Str("action", ev.ActionID).Msg("action handling failed")
			}
		}()
	}
}
