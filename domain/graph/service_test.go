package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragedhq/raged/pkg/apperror"
)

type fakeStore struct {
	entities map[string]*Entity
	edges    []Relationship
	mentions map[uuid.UUID][]MentionDocument
	delay    time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities: map[string]*Entity{},
		mentions: map[uuid.UUID][]MentionDocument{},
	}
}

func (f *fakeStore) addEntity(name string) *Entity {
	e := &Entity{ID: uuid.New(), Collection: "default", Name: name, Type: "concept"}
	f.entities[name] = e
	return e
}

func (f *fakeStore) addEdge(source, target string) {
	f.edges = append(f.edges, Relationship{
		ID: uuid.New(), Collection: "default",
		SourceEntity: source, TargetEntity: target, Type: "related_to",
	})
}

func (f *fakeStore) EntityByName(ctx context.Context, collection, name string) (*Entity, error) {
	if e, ok := f.entities[name]; ok {
		return e, nil
	}
	return nil, apperror.ErrNotFound
}

func (f *fakeStore) EntitiesByName(ctx context.Context, collection string, names []string) ([]Entity, error) {
	var out []Entity
	for _, n := range names {
		if e, ok := f.entities[n]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) RelationshipsTouching(ctx context.Context, collection string, names []string) ([]Relationship, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	in := map[string]bool{}
	for _, n := range names {
		in[n] = true
	}
	var out []Relationship
	for _, r := range f.edges {
		if in[r.SourceEntity] || in[r.TargetEntity] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) MentionsFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]MentionDocument, error) {
	return f.mentions, nil
}

func testService(store Store) *Service {
	return &Service{
		store: store,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestExpandSeedNotFound(t *testing.T) {
	svc := testService(newFakeStore())
	_, err := svc.Expand(context.Background(), "default", "ghost", Limits{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestExpandNeighbourhood(t *testing.T) {
	store := newFakeStore()
	store.addEntity("alpha")
	store.addEntity("beta")
	store.addEntity("gamma")
	store.addEdge("alpha", "beta")
	store.addEdge("beta", "gamma")

	svc := testService(store)
	result, err := svc.Expand(context.Background(), "default", "alpha", Limits{MaxDepth: 2})
	require.NoError(t, err)

	names := map[string]int{}
	for _, e := range result.Entities {
		names[e.Name] = e.Depth
	}
	assert.Equal(t, 0, names["alpha"])
	assert.Equal(t, 1, names["beta"])
	assert.Equal(t, 2, names["gamma"])
	assert.Len(t, result.Relationships, 2)
	assert.False(t, result.Meta.Capped)
	assert.False(t, result.Meta.TimedOut)
}

func TestExpandDepthLimit(t *testing.T) {
	store := newFakeStore()
	store.addEntity("alpha")
	store.addEntity("beta")
	store.addEntity("gamma")
	store.addEdge("alpha", "beta")
	store.addEdge("beta", "gamma")

	svc := testService(store)
	result, err := svc.Expand(context.Background(), "default", "alpha", Limits{MaxDepth: 1})
	require.NoError(t, err)

	assert.Len(t, result.Entities, 2)
	assert.Len(t, result.Relationships, 1)
}

func TestExpandEntityCap(t *testing.T) {
	store := newFakeStore()
	store.addEntity("hub")
	for i := 0; i < 10; i++ {
		name := fmt.Sprintf("spoke-%d", i)
		store.addEntity(name)
		store.addEdge("hub", name)
	}

	svc := testService(store)
	result, err := svc.Expand(context.Background(), "default", "hub", Limits{MaxDepth: 1, MaxEntities: 4})
	require.NoError(t, err)

	assert.True(t, result.Meta.Capped)
	assert.Len(t, result.Entities, 4)
}

func TestExpandTimeout(t *testing.T) {
	store := newFakeStore()
	store.addEntity("alpha")
	store.addEntity("beta")
	store.addEdge("alpha", "beta")
	store.delay = 200 * time.Millisecond

	svc := testService(store)
	result, err := svc.Expand(context.Background(), "default", "alpha", Limits{
		MaxDepth: 3,
		Timeout:  50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, result.Meta.TimedOut)
}

func TestExpandUnknownNeighbourWarning(t *testing.T) {
	store := newFakeStore()
	store.addEntity("alpha")
	store.addEdge("alpha", "phantom")

	svc := testService(store)
	result, err := svc.Expand(context.Background(), "default", "alpha", Limits{MaxDepth: 1})
	require.NoError(t, err)
	require.Len(t, result.Meta.Warnings, 1)
	assert.Contains(t, result.Meta.Warnings[0], "phantom")
}

func TestExpandAttachesMentions(t *testing.T) {
	store := newFakeStore()
	alpha := store.addEntity("alpha")
	store.mentions[alpha.ID] = []MentionDocument{{BaseID: "doc-1", Source: "a.md", Count: 3}}

	svc := testService(store)
	result, err := svc.Expand(context.Background(), "default", "alpha", Limits{})
	require.NoError(t, err)
	require.Len(t, result.Entities[0].Documents, 1)
	assert.Equal(t, "doc-1", result.Entities[0].Documents[0].BaseID)
}
