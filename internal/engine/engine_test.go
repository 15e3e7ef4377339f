package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmglabs/luncheon-roulette/internal/catalog"
	"github.com/vmglabs/luncheon-roulette/internal/chat"
	"github.com/vmglabs/luncheon-roulette/internal/dedup"
	"github.com/vmglabs/luncheon-roulette/internal/metrics"
	"github.com/vmglabs/luncheon-roulette/internal/model"
	"github.com/vmglabs/luncheon-roulette/internal/store"
)

type postedMessage struct {
	Channel string
	Blocks  []model.Block
}

type ephemeralMessage struct {
	Channel string
	User    string
	Blocks  []model.Block
}

type fakeMessenger struct {
	mu         sync.Mutex
	posts      []postedMessage
	updates    map[string][]model.Block
	ephemerals []ephemeralMessage
	postErr    error
	nextTS     int
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{updates: make(map[string][]model.Block)}
}

func (f *fakeMessenger) PostMessage(_ context.Context, channel string, blocks []model.Block) (chat.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return chat.MessageRef{}, f.postErr
	}
	f.posts = append(f.posts, postedMessage{Channel: channel, Blocks: blocks})
	f.nextTS++
	return chat.MessageRef{Channel: channel, Timestamp: fmt.Sprintf("100.%03d", f.nextTS)}, nil
}

func (f *fakeMessenger) UpdateMessage(_ context.Context, ref chat.MessageRef, blocks []model.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[ref.Key()] = blocks
	return nil
}

func (f *fakeMessenger) PostEphemeral(_ context.Context, channel, user string, blocks []model.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemerals = append(f.ephemerals, ephemeralMessage{Channel: channel, User: user, Blocks: blocks})
	return nil
}

func (f *fakeMessenger) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

func (f *fakeMessenger) updateFor(key string) []model.Block {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[key]
}

type fakeProfiles struct {
	profiles map[string]chat.Profile
	err      error
}

func (f *fakeProfiles) GetProfile(_ context.Context, userRef string) (chat.Profile, error) {
	if f.err != nil {
		return chat.Profile{}, f.err
	}
	p, ok := f.profiles[userRef]
	if !ok {
		return chat.Profile{}, errors.New("unknown user")
	}
	return p, nil
}

type fixture struct {
	engine    *Engine
	store     *store.MemoryStore
	messenger *fakeMessenger
	profiles  *fakeProfiles
}

func tenVenueCatalog() *catalog.Static {
	venues := make([]catalog.Venue, 0, 10)
	for i := 0; i < 10; i++ {
		venues = append(venues, catalog.Venue{
			ID:      fmt.Sprintf("place-%d", i),
			Name:    fmt.Sprintf("Venue %d", i),
			Address: fmt.Sprintf("%d Main St", i),
		})
	}
	return catalog.NewStatic(venues)
}

func newFixture(t *testing.T, c catalog.Catalog) *fixture {
	t.Helper()

	mem := store.NewMemoryStore()
	messenger := newFakeMessenger()
	profiles := &fakeProfiles{profiles: map[string]chat.Profile{
		"U_MICHAEL": {DisplayName: "michael", RealName: "Michael Scott", Avatar: "https://avatars/m.png"},
		"U_DWIGHT":  {DisplayName: "dwight", RealName: "Dwight Schrute", Avatar: "https://avatars/d.png"},
		"U_PAM":     {RealName: "Pam Beesly", Avatar: "https://avatars/p.png"},
	}}

	eng := New(Config{
		Store:       mem,
		Pool:        mem,
		Catalog:     c,
		Source:      NewLiveSource(c, mem, rand.New(rand.NewSource(42)), zerolog.Nop()),
		Chat:        messenger,
		Profiles:    profiles,
		Inflight:    dedup.New(time.Minute),
		Metrics:     metrics.New(prometheus.NewRegistry()),
		SelfMention: "<@U_BOT>",
		OptionCount: 4,
		Logger:      zerolog.Nop(),
	})

	return &fixture{engine: eng, store: mem, messenger: messenger, profiles: profiles}
}

func countBlocks(blocks []model.Block, kind model.BlockType) int {
	n := 0
	for _, b := range blocks {
		if b.Type == kind {
			n++
		}
	}
	return n
}

func TestSpinPersistsSessionUnderPostedKey(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())

	session, err := f.engine.Spin(context.Background(), "C1")
	require.NoError(t, err)
	require.NotNil(t, session)

	require.Len(t, session.Options, 4)
	seen := make(map[string]bool)
	for _, o := range session.Options {
		assert.False(t, seen[o.ID])
		seen[o.ID] = true
	}

	stored, err := f.store.Get(context.Background(), session.Key)
	require.NoError(t, err)
	assert.Equal(t, session, stored)

	require.Equal(t, 1, f.messenger.postCount())
	blocks := f.messenger.posts[0].Blocks
	assert.Equal(t, 4, countBlocks(blocks, model.BlockOption))
	assert.Equal(t, 0, countBlocks(blocks, model.BlockVoters))
}

func TestSpinPaginatedCandidatePool(t *testing.T) {
	// Two catalog pages of five venues each feed one ten-venue pool.
	p := &pagedProvider{pages: [][]catalog.Venue{
		{{ID: "a0", Name: "A0"}, {ID: "a1", Name: "A1"}, {ID: "a2", Name: "A2"}, {ID: "a3", Name: "A3"}, {ID: "a4", Name: "A4"}},
		{{ID: "b0", Name: "B0"}, {ID: "b1", Name: "B1"}, {ID: "b2", Name: "B2"}, {ID: "b3", Name: "B3"}, {ID: "b4", Name: "B4"}},
	}}
	f := newFixture(t, catalog.NewNearby(p, 0, zerolog.Nop()))

	session, err := f.engine.Spin(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, session.Options, 4)

	seen := make(map[string]bool)
	for _, o := range session.Options {
		assert.False(t, seen[o.ID])
		seen[o.ID] = true
	}
}

type pagedProvider struct {
	pages [][]catalog.Venue
}

func (p *pagedProvider) SearchPage(_ context.Context, req catalog.PageRequest) (catalog.Page, error) {
	i := 0
	if req.PageToken != "" {
		if _, err := fmt.Sscanf(req.PageToken, "page-%d", &i); err != nil {
			return catalog.Page{}, err
		}
	}
	page := catalog.Page{Venues: p.pages[i]}
	if i+1 < len(p.pages) {
		page.NextPageToken = fmt.Sprintf("page-%d", i+1)
	}
	return page, nil
}

func TestSpinPostFailurePersistsNothing(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())
	f.messenger.postErr = errors.New("channel archived")

	_, err := f.engine.Spin(context.Background(), "C1")
	assert.Error(t, err)

	// No session reachable under any key: the store was never touched.
	_, getErr := f.store.Get(context.Background(), "C1/100.001")
	assert.ErrorIs(t, getErr, store.ErrNotFound)
}

func TestVoteCommitsAndUpdatesDisplay(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())
	session, err := f.engine.Spin(context.Background(), "C1")
	require.NoError(t, err)

	ref, err := chat.ParseMessageRef(session.Key)
	require.NoError(t, err)
	target := session.Options[0].Name

	updated, err := f.engine.Vote(context.Background(), ref, target, "U_MICHAEL")
	require.NoError(t, err)
	require.NotNil(t, updated)

	opt, err := updated.Option(target)
	require.NoError(t, err)
	require.Len(t, opt.Votes, 1)
	assert.Equal(t, "michael", opt.Votes[0].Voter)

	blocks := f.messenger.updateFor(session.Key)
	require.NotNil(t, blocks)
	assert.Equal(t, 1, countBlocks(blocks, model.BlockVoters))
}

func TestConcurrentVotesSameOption(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())
	session, err := f.engine.Spin(context.Background(), "C1")
	require.NoError(t, err)

	ref, err := chat.ParseMessageRef(session.Key)
	require.NoError(t, err)
	target := session.Options[1].Name

	var wg sync.WaitGroup
	for _, voter := range []string{"U_MICHAEL", "U_DWIGHT"} {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			_, err := f.engine.Vote(context.Background(), ref, target, v)
			assert.NoError(t, err)
		}(voter)
	}
	wg.Wait()

	stored, err := f.store.Get(context.Background(), session.Key)
	require.NoError(t, err)
	opt, err := stored.Option(target)
	require.NoError(t, err)
	assert.Len(t, opt.Votes, 2)

	// The committed state renders both markers in commit order.
	rendered := stored.Render()
	assert.Equal(t, 1, countBlocks(rendered, model.BlockVoters))
	for _, b := range rendered {
		if b.Type == model.BlockVoters {
			assert.Len(t, b.Markers, 2)
		}
	}
}

func TestVotesSurviveInducedConflictRetries(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())
	session, err := f.engine.Spin(context.Background(), "C1")
	require.NoError(t, err)

	ref, err := chat.ParseMessageRef(session.Key)
	require.NoError(t, err)
	target := session.Options[0].Name

	// Force the first commit attempt of every transaction to lose.
	f.store.CommitHook = func(key string, attempt int) {
		if attempt != 0 {
			return
		}
		out, err := f.store.Get(context.Background(), key)
		if err == nil {
			_ = f.store.Set(context.Background(), key, out)
		}
	}

	for i := 0; i < 3; i++ {
		_, err := f.engine.Vote(context.Background(), ref, target, "U_MICHAEL")
		require.NoError(t, err)
	}
	f.store.CommitHook = nil

	stored, err := f.store.Get(context.Background(), session.Key)
	require.NoError(t, err)
	opt, err := stored.Option(target)
	require.NoError(t, err)
	assert.Len(t, opt.Votes, 3)
}

func TestVoteUnknownSessionNoOps(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())

	updated, err := f.engine.Vote(context.Background(),
		chat.MessageRef{Channel: "C1", Timestamp: "999.999"}, "Venue 1", "U_MICHAEL")
	require.NoError(t, err)
	assert.Nil(t, updated)
	assert.Empty(t, f.messenger.updates)
}

func TestVoteUnknownOptionNoOps(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())
	session, err := f.engine.Spin(context.Background(), "C1")
	require.NoError(t, err)

	ref, err := chat.ParseMessageRef(session.Key)
	require.NoError(t, err)

	updated, err := f.engine.Vote(context.Background(), ref, "Closed Diner", "U_MICHAEL")
	require.NoError(t, err)
	assert.Nil(t, updated)

	stored, err := f.store.Get(context.Background(), session.Key)
	require.NoError(t, err)
	assert.Equal(t, session, stored)
	assert.Empty(t, f.messenger.updates)
}

func TestVoteProfileFallsBackToRealName(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())
	session, err := f.engine.Spin(context.Background(), "C1")
	require.NoError(t, err)

	ref, err := chat.ParseMessageRef(session.Key)
	require.NoError(t, err)
	target := session.Options[2].Name

	updated, err := f.engine.Vote(context.Background(), ref, target, "U_PAM")
	require.NoError(t, err)
	require.NotNil(t, updated)

	opt, err := updated.Option(target)
	require.NoError(t, err)
	require.Len(t, opt.Votes, 1)
	assert.Equal(t, "Pam Beesly", opt.Votes[0].Voter)
}

func TestVoteProfileLookupFailureAborts(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())
	session, err := f.engine.Spin(context.Background(), "C1")
	require.NoError(t, err)

	ref, err := chat.ParseMessageRef(session.Key)
	require.NoError(t, err)
	f.profiles.err = errors.New("profile service down")

	_, err = f.engine.Vote(context.Background(), ref, session.Options[0].Name, "U_MICHAEL")
	assert.Error(t, err)

	stored, err := f.store.Get(context.Background(), session.Key)
	require.NoError(t, err)
	assert.Equal(t, session, stored)
}

func TestHandleTriggerDuplicateSuppression(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())

	ev := chat.TriggerEvent{ID: "ev-1", Text: "<@U_BOT> spin", Channel: "C1", Sender: "U_MICHAEL"}

	// The duplicate arrives while the first delivery is still in flight.
	release := make(chan struct{})
	blocking := &blockingCatalog{inner: tenVenueCatalog(), entered: make(chan struct{}), release: release}
	f.engine.catalog = blocking
	f.engine.source = NewLiveSource(blocking, nil, rand.New(rand.NewSource(1)), zerolog.Nop())

	done := make(chan error, 2)
	go func() { done <- f.engine.HandleTrigger(context.Background(), ev) }()
	<-blocking.entered
	go func() { done <- f.engine.HandleTrigger(context.Background(), ev) }()

	// The duplicate returns immediately without dispatching.
	require.NoError(t, <-done)
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, f.messenger.postCount())
}

type blockingCatalog struct {
	inner   catalog.Catalog
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingCatalog) Search(ctx context.Context, keyword string) ([]catalog.Venue, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.inner.Search(ctx, keyword)
}

func TestHandleTriggerReleasesIDAfterCompletion(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())

	ev := chat.TriggerEvent{ID: "ev-2", Text: "<@U_BOT> spin", Channel: "C1", Sender: "U_MICHAEL"}
	require.NoError(t, f.engine.HandleTrigger(context.Background(), ev))
	require.NoError(t, f.engine.HandleTrigger(context.Background(), ev))

	// Sequential redelivery after completion dispatches again; the
	// in-flight set is not a durable dedup mechanism.
	assert.Equal(t, 2, f.messenger.postCount())
}

func TestHandleTriggerGreeting(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())

	ev := chat.TriggerEvent{ID: "ev-3", Text: "<@U_BOT>", Channel: "C1", Sender: "U_MICHAEL"}
	require.NoError(t, f.engine.HandleTrigger(context.Background(), ev))

	require.Equal(t, 1, f.messenger.postCount())
	assert.Contains(t, f.messenger.posts[0].Blocks[0].Text, "spin")
}

func TestHandleTriggerUnknownCommand(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())

	ev := chat.TriggerEvent{ID: "ev-4", Text: "<@U_BOT> dance", Channel: "C1", Sender: "U_MICHAEL"}
	require.NoError(t, f.engine.HandleTrigger(context.Background(), ev))

	assert.Equal(t, 0, f.messenger.postCount())
	require.Len(t, f.messenger.ephemerals, 1)
	assert.Contains(t, f.messenger.ephemerals[0].Blocks[0].Text, "dance")
}

func TestAddFlowEndToEnd(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())

	// "add venue 7" shows an ephemeral chooser scoped to the keyword.
	ev := chat.TriggerEvent{ID: "ev-5", Text: "<@U_BOT> add venue 7", Channel: "C1", Sender: "U_PAM"}
	require.NoError(t, f.engine.HandleTrigger(context.Background(), ev))

	require.Len(t, f.messenger.ephemerals, 1)
	chooser := f.messenger.ephemerals[0]
	require.Equal(t, 1, countBlocks(chooser.Blocks, model.BlockOption))

	var choice model.Block
	for _, b := range chooser.Blocks {
		if b.Type == model.BlockOption {
			choice = b
		}
	}
	assert.Equal(t, model.ActionAddChoice, choice.Action)

	// Picking the venue lands it in the pool.
	action := chat.ActionEvent{
		ActionID: choice.Action,
		Value:    choice.Value,
		Channel:  "C1",
		Sender:   "U_PAM",
	}
	require.NoError(t, f.engine.HandleAction(context.Background(), action))

	venues, err := f.store.LoadPool(context.Background())
	require.NoError(t, err)
	require.Len(t, venues, 1)
	assert.Equal(t, "place-7", venues[0].ID)

	// Picking it again is a friendly no-op.
	require.NoError(t, f.engine.HandleAction(context.Background(), action))
	venues, err = f.store.LoadPool(context.Background())
	require.NoError(t, err)
	assert.Len(t, venues, 1)
}

func TestAddedVenueReceivesVotesWithRealNameFallback(t *testing.T) {
	// Scenario: a pool-added venue later wins a vote from a profile with
	// no display name.
	f := newFixture(t, tenVenueCatalog())

	pizza := catalog.Venue{ID: "pizza-1", Name: "Alfredo's Pizza", Address: "801 Mulberry St"}
	payload, err := json.Marshal(pizza)
	require.NoError(t, err)
	require.NoError(t, f.engine.HandleAction(context.Background(), chat.ActionEvent{
		ActionID: model.ActionAddChoice, Value: string(payload), Channel: "C1", Sender: "U_PAM",
	}))

	// Spin against a tiny catalog so the pool venue always makes the cut.
	tiny := catalog.NewStatic([]catalog.Venue{{ID: "x1", Name: "X1", Address: "1 X St"}})
	f.engine.catalog = tiny
	f.engine.source = NewLiveSource(tiny, f.store, rand.New(rand.NewSource(3)), zerolog.Nop())

	session, err := f.engine.Spin(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, session.Options, 2)

	ref, err := chat.ParseMessageRef(session.Key)
	require.NoError(t, err)

	updated, err := f.engine.Vote(context.Background(), ref, "Alfredo's Pizza", "U_PAM")
	require.NoError(t, err)
	require.NotNil(t, updated)

	opt, err := updated.Option("Alfredo's Pizza")
	require.NoError(t, err)
	require.Len(t, opt.Votes, 1)
	assert.Equal(t, "Pam Beesly", opt.Votes[0].Voter)
}

func TestSpinEmptyCatalogRepliesInsteadOfPolling(t *testing.T) {
	f := newFixture(t, tenVenueCatalog())
	empty := catalog.NewStatic(nil)
	f.engine.source = NewLiveSource(empty, nil, rand.New(rand.NewSource(1)), zerolog.Nop())

	session, err := f.engine.Spin(context.Background(), "C1")
	require.NoError(t, err)
	assert.Nil(t, session)

	require.Equal(t, 1, f.messenger.postCount())
	assert.Equal(t, 0, countBlocks(f.messenger.posts[0].Blocks, model.BlockOption))
}
