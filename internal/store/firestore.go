package store

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vmglabs/luncheon-roulette/internal/catalog"
	"github.com/vmglabs/luncheon-roulette/internal/model"
)

// FirestoreStore keeps sessions as documents in a "sessions" collection.
// Firestore's native RunTransaction supplies the optimistic-conflict retry
// the transaction contract asks for.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore initializes the Firebase app and connects a Firestore
// client. credentialsFile may be empty when ambient credentials exist.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to firestore: %w", err)
	}

	return &FirestoreStore{client: client}, nil
}

// Session keys embed a "/", which Firestore document IDs disallow.
func docID(key string) string {
	return strings.ReplaceAll(key, "/", "~")
}

func (fs *FirestoreStore) sessionDoc(key string) *firestore.DocumentRef {
	return fs.client.Collection("sessions").Doc(docID(key))
}

func (fs *FirestoreStore) poolDoc() *firestore.DocumentRef {
	return fs.client.Collection("settings").Doc("venue-pool")
}

// Get fetches the session stored under key.
func (fs *FirestoreStore) Get(ctx context.Context, key string) (*model.PollSession, error) {
	snap, err := fs.sessionDoc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s model.PollSession
	if err := snap.DataTo(&s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Set stores the session under key.
func (fs *FirestoreStore) Set(ctx context.Context, key string, s *model.PollSession) error {
	if _, err := fs.sessionDoc(key).Set(ctx, s); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

type firestoreTx struct {
	ftx    *firestore.Transaction
	ref    *firestore.DocumentRef
	staged *model.PollSession
	dirty  bool
}

func (t *firestoreTx) Get() (*model.PollSession, error) {
	snap, err := t.ftx.Get(t.ref)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transactional get: %w", err)
	}

	var s model.PollSession
	if err := snap.DataTo(&s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (t *firestoreTx) Set(s *model.PollSession) {
	t.staged = s
	t.dirty = true
}

// RunTransaction delegates conflict detection and retry to Firestore. The
// body may rerun; the staged session of the committed attempt is returned.
func (fs *FirestoreStore) RunTransaction(ctx context.Context, key string, fn func(tx Tx) error) (*model.PollSession, error) {
	ref := fs.sessionDoc(key)
	var staged *model.PollSession

	err := fs.client.RunTransaction(ctx, func(_ context.Context, ftx *firestore.Transaction) error {
		tx := &firestoreTx{ftx: ftx, ref: ref}
		if err := fn(tx); err != nil {
			return err
		}
		if !tx.dirty {
			staged = nil
			return nil
		}
		if err := ftx.Set(ref, tx.staged); err != nil {
			return fmt.Errorf("stage session write: %w", err)
		}
		staged = tx.staged
		return nil
	})
	if err != nil {
		return nil, err
	}
	return staged, nil
}

type poolDocument struct {
	Venues []catalog.Venue `firestore:"venues"`
}

// LoadPool fetches the user-curated venue pool.
func (fs *FirestoreStore) LoadPool(ctx context.Context) ([]catalog.Venue, error) {
	snap, err := fs.poolDoc().Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get venue pool: %w", err)
	}

	var doc poolDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode venue pool: %w", err)
	}
	return doc.Venues, nil
}

// SavePool replaces the venue pool.
func (fs *FirestoreStore) SavePool(ctx context.Context, venues []catalog.Venue) error {
	if _, err := fs.poolDoc().Set(ctx, poolDocument{Venues: venues}); err != nil {
		return fmt.Errorf("set venue pool: %w", err)
	}
	return nil
}

// Close releases the client's connections.
func (fs *FirestoreStore) Close() error {
	if err := fs.client.Close(); err != nil {
		return fmt.Errorf("close firestore client: %w", err)
	}
	return nil
}
