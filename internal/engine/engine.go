// Package engine coordinates the poll-session lifecycle: spins, idempotent
// event intake and transactional vote application.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vmglabs/luncheon-roulette/internal/catalog"
	"github.com/vmglabs/luncheon-roulette/internal/chat"
	"github.com/vmglabs/luncheon-roulette/internal/dedup"
	"github.com/vmglabs/luncheon-roulette/internal/metrics"
	"github.com/vmglabs/luncheon-roulette/internal/model"
	"github.com/vmglabs/luncheon-roulette/internal/store"
)

const (
	defaultPrompt      = "It's lunch o'clock! Where are we headed?"
	defaultOptionCount = 4
	maxAddChoices      = 5

	greetingText = "Hi! Say `spin` to start a lunch poll, or `add <keyword>` to grow the venue pool."
)

// Broadcaster fans freshly rendered sessions out to live subscribers. May
// be nil when no live feed is wired.
type Broadcaster interface {
	Broadcast(sessionKey string, payload []byte)
}

// Config collects the engine's collaborators.
type Config struct {
	Store       store.SessionStore
	Pool        store.PoolStore
	Catalog     catalog.Catalog
	Source      OptionSource
	Chat        chat.Messenger
	Profiles    chat.ProfileProvider
	Inflight    *dedup.Inflight
	Metrics     *metrics.EngineMetrics
	Broadcaster Broadcaster
	// SelfMention is the bot's own mention token, stripped from trigger
	// text before command parsing.
	SelfMention string
	OptionCount int
	Prompt      string
	// Tokenize splits trigger text into verb plus arguments. Defaults to
	// strings.Fields.
	Tokenize func(string) []string
	Logger   zerolog.Logger
}

// Engine is the top-level poll coordinator.
type Engine struct {
	store       store.SessionStore
	pool        store.PoolStore
	catalog     catalog.Catalog
	source      OptionSource
	chat        chat.Messenger
	profiles    chat.ProfileProvider
	inflight    *dedup.Inflight
	metrics     *metrics.EngineMetrics
	hub         Broadcaster
	selfMention string
	optionCount int
	prompt      string
	tokenize    func(string) []string
	log         zerolog.Logger
}

// New wires an engine from its collaborators.
func New(cfg Config) *Engine {
	if cfg.OptionCount <= 0 {
		cfg.OptionCount = defaultOptionCount
	}
	if cfg.Prompt == "" {
		cfg.Prompt = defaultPrompt
	}
	if cfg.Tokenize == nil {
		cfg.Tokenize = strings.Fields
	}
	return &Engine{
		store:       cfg.Store,
		pool:        cfg.Pool,
		catalog:     cfg.Catalog,
		source:      cfg.Source,
		chat:        cfg.Chat,
		profiles:    cfg.Profiles,
		inflight:    cfg.Inflight,
		metrics:     cfg.Metrics,
		hub:         cfg.Broadcaster,
		selfMention: cfg.SelfMention,
		optionCount: cfg.OptionCount,
		prompt:      cfg.Prompt,
		tokenize:    cfg.Tokenize,
		log:         cfg.Logger,
	}
}

// HandleTrigger is the idempotent intake for mention events. A duplicate
// delivery of an id already in flight is dropped silently; the id is
// released once handling completes on success and failure alike.
func (e *Engine) HandleTrigger(ctx context.Context, ev chat.TriggerEvent) error {
	if ev.ID != "" {
		if !e.inflight.TryBegin(ev.ID) {
			e.metrics.DuplicateEvents.Inc()
			e.log.Debug().Str("event_id", ev.ID).Msg("dropping duplicate event")
			return nil
		}
		defer e.inflight.End(ev.ID)
	}

	verb, args := e.parseCommand(ev.Text)
	switch verb {
	case "":
		return e.postText(ctx, ev.Channel, greetingText)

	case "spin":
		_, err := e.Spin(ctx, ev.Channel)
		return err

	case "add":
		if len(args) == 0 {
			return e.postEphemeralText(ctx, ev.Channel, ev.Sender, "Usage: `add <keyword>`.")
		}
		return e.Add(ctx, ev.Channel, ev.Sender, strings.Join(args, " "))

	default:
		reply := fmt.Sprintf("I don't know %q. Try `spin` or `add <keyword>`.", verb)
		return e.postEphemeralText(ctx, ev.Channel, ev.Sender, reply)
	}
}

// parseCommand strips the bot's own mention token, then splits the text
// into a lowercased verb and its arguments.
func (e *Engine) parseCommand(text string) (string, []string) {
	if e.selfMention != "" {
		text = strings.ReplaceAll(text, e.selfMention, " ")
	}
	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return "", nil
	}
	return strings.ToLower(tokens[0]), tokens[1:]
}

// Spin creates a session: sample options, post the poll, then persist the
// session under the posted message's key. The key exists only once the
// platform has acknowledged the message, so creation is two-phase and a
// failed post leaves nothing behind.
func (e *Engine) Spin(ctx context.Context, channel string) (*model.PollSession, error) {
	e.metrics.SpinsStarted.Inc()

	options, err := e.source.Options(ctx, e.optionCount)
	if err != nil {
		e.log.Error().Err(err).Msg("option source failed")
	}
	if len(options) == 0 {
		return nil, e.postText(ctx, channel, "I couldn't find anywhere to eat. Try again in a minute.")
	}

	session := model.NewPollSession(e.prompt, options)
	ref, err := e.chat.PostMessage(ctx, channel, session.Render())
	if err != nil {
		return nil, fmt.Errorf("post poll: %w", err)
	}

	session.Key = ref.Key()
	if err := e.store.Set(ctx, session.Key, session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	e.log.Info().Str("session", session.Key).Int("options", len(session.Options)).Msg("poll spun")
	e.broadcast(session)
	return session, nil
}

// HandleAction routes button interactions.
func (e *Engine) HandleAction(ctx context.Context, ev chat.ActionEvent) error {
	switch ev.ActionID {
	case model.ActionVote:
		_, err := e.Vote(ctx, ev.Message, ev.Value, ev.Sender)
		return err

	case model.ActionAddChoice:
		return e.addChoice(ctx, ev)

	default:
		e.log.Debug().Str("action", ev.ActionID).Msg("ignoring unrecognized action")
		return nil
	}
}

// Vote applies one vote as a single transactional read-modify-write. A
// missing session or option is a legitimate race (retention, stale
// buttons) and no-ops without a display update; the returned session is
// nil in that case. The profile lookup happens inside the transaction body
// but is read-only, so reruns under conflict retry are safe.
func (e *Engine) Vote(ctx context.Context, ref chat.MessageRef, optionKey, senderRef string) (*model.PollSession, error) {
	start := time.Now()
	defer func() {
		e.metrics.VoteDuration.Observe(time.Since(start).Seconds())
	}()

	key := ref.Key()
	committed, err := e.store.RunTransaction(ctx, key, func(tx store.Tx) error {
		session, err := tx.Get()
		if err != nil {
			return err
		}

		profile, err := e.profiles.GetProfile(ctx, senderRef)
		if err != nil {
			return fmt.Errorf("profile lookup: %w", err)
		}

		if err := session.ApplyVote(optionKey, profile.VoterName(), profile.Avatar); err != nil {
			return err
		}
		tx.Set(session)
		return nil
	})

	switch {
	case errors.Is(err, store.ErrNotFound):
		e.metrics.VotesDropped.WithLabelValues(metrics.DropNoSession).Inc()
		e.log.Debug().Str("session", key).Msg("vote against unknown session")
		return nil, nil

	case errors.Is(err, model.ErrOptionNotFound):
		e.metrics.VotesDropped.WithLabelValues(metrics.DropNoOption).Inc()
		e.log.Debug().Str("session", key).Str("option", optionKey).Msg("vote against unknown option")
		return nil, nil

	case err != nil:
		e.metrics.VotesDropped.WithLabelValues(metrics.DropUpstream).Inc()
		return nil, fmt.Errorf("apply vote: %w", err)
	}

	if err := e.chat.UpdateMessage(ctx, ref, committed.Render()); err != nil {
		// The vote is committed; the display catches up on the next one.
		e.log.Error().Err(err).Str("session", key).Msg("display update failed")
	}

	e.metrics.VotesApplied.Inc()
	e.broadcast(committed)
	return committed, nil
}

// Add looks up venues matching the keyword and shows the invoker an
// ephemeral chooser; picking one appends it to the venue pool.
func (e *Engine) Add(ctx context.Context, channel, sender, keyword string) error {
	venues, err := e.catalog.Search(ctx, keyword)
	if err != nil {
		e.log.Error().Err(err).Str("keyword", keyword).Msg("venue search failed")
		return e.postEphemeralText(ctx, channel, sender, "Venue lookup is unavailable right now. Try again later.")
	}
	if len(venues) == 0 {
		return e.postEphemeralText(ctx, channel, sender, fmt.Sprintf("No venues matched %q.", keyword))
	}
	if len(venues) > maxAddChoices {
		venues = venues[:maxAddChoices]
	}

	blocks := []model.Block{
		{Type: model.BlockHeading, Text: fmt.Sprintf("Results for %q — pick one to add to the pool:", keyword)},
		{Type: model.BlockDivider},
	}
	for _, v := range venues {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode venue choice: %w", err)
		}
		blocks = append(blocks, model.Block{
			Type:        model.BlockOption,
			Text:        v.Name,
			Description: v.Address,
			Action:      model.ActionAddChoice,
			Value:       string(payload),
		})
	}

	return e.chat.PostEphemeral(ctx, channel, sender, blocks)
}

// addChoice lands a chooser pick in the venue pool.
func (e *Engine) addChoice(ctx context.Context, ev chat.ActionEvent) error {
	var v catalog.Venue
	if err := json.Unmarshal([]byte(ev.Value), &v); err != nil {
		return fmt.Errorf("decode venue choice: %w", err)
	}

	venues, err := e.pool.LoadPool(ctx)
	if err != nil {
		return fmt.Errorf("load venue pool: %w", err)
	}
	for _, existing := range venues {
		if existing.ID == v.ID {
			return e.postEphemeralText(ctx, ev.Channel, ev.Sender,
				fmt.Sprintf("%s is already in the pool.", v.Name))
		}
	}

	venues = append(venues, v)
	if err := e.pool.SavePool(ctx, venues); err != nil {
		return fmt.Errorf("save venue pool: %w", err)
	}

	e.log.Info().Str("venue", v.ID).Msg("venue added to pool")
	return e.postEphemeralText(ctx, ev.Channel, ev.Sender,
		fmt.Sprintf("%s added to the lunch pool.", v.Name))
}

func (e *Engine) broadcast(s *model.PollSession) {
	if e.hub == nil {
		return
	}
	payload, err := json.Marshal(s.Render())
	if err != nil {
		e.log.Error().Err(err).Msg("encode render for broadcast")
		return
	}
	e.hub.Broadcast(s.Key, payload)
}

func (e *Engine) postText(ctx context.Context, channel, text string) error {
	blocks := []model.Block{{Type: model.BlockHeading, Text: text}}
	if _, err := e.chat.PostMessage(ctx, channel, blocks); err != nil {
		return fmt.Errorf("post reply: %w", err)
	}
	return nil
}

func (e *Engine) postEphemeralText(ctx context.Context, channel, user, text string) error {
	blocks := []model.Block{{Type: model.BlockHeading, Text: text}}
	return e.chat.PostEphemeral(ctx, channel, user, blocks)
}
