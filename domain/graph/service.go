package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ragedhq/raged/pkg/logger"
)

// Limits bound the traversal: depth, total entity count and wall-clock
// time.
type Limits struct {
	MaxDepth    int
	MaxEntities int
	Timeout     time.Duration
}

// DefaultLimits are applied when the caller does not override them.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:    2,
		MaxEntities: 50,
		Timeout:     2 * time.Second,
	}
}

// Store is the persistence the traversal reads from.
type Store interface {
	EntityByName(ctx context.Context, collection, name string) (*Entity, error)
	EntitiesByName(ctx context.Context, collection string, names []string) ([]Entity, error)
	RelationshipsTouching(ctx context.Context, collection string, names []string) ([]Relationship, error)
	MentionsFor(ctx context.Context, entityIDs []uuid.UUID) (map[uuid.UUID][]MentionDocument, error)
}

// Service answers read-only graph expansion queries.
type Service struct {
	store Store
	log   *slog.Logger
}

// NewService creates the graph service
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{
		store: repo,
		log:   log.With(logger.Scope("graph")),
	}
}

// ExpandMeta reports how the traversal ended.
type ExpandMeta struct {
	Capped   bool     `json:"capped"`
	TimedOut bool     `json:"timedOut"`
	Warnings []string `json:"warnings,omitempty"`
}

// ExpandedEntity is one entity in the expansion result.
type ExpandedEntity struct {
	Entity
	Depth     int               `json:"depth"`
	Documents []MentionDocument `json:"documents,omitempty"`
}

// Expansion is the full result of a graph expansion.
type Expansion struct {
	Seed          string           `json:"seed"`
	Entities      []ExpandedEntity `json:"entities"`
	Relationships []Relationship   `json:"relationships"`
	Meta          ExpandMeta       `json:"meta"`
}

// Expand returns the seed entity and its neighbourhood up to the
// configured depth, with explicit caps on entity count and time.
func (s *Service) Expand(ctx context.Context, collection, name string, limits Limits) (*Expansion, error) {
	if limits.MaxDepth <= 0 {
		limits.MaxDepth = DefaultLimits().MaxDepth
	}
	if limits.MaxEntities <= 0 {
		limits.MaxEntities = DefaultLimits().MaxEntities
	}
	if limits.Timeout <= 0 {
		limits.Timeout = DefaultLimits().Timeout
	}

	ctx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	seed, err := s.store.EntityByName(ctx, collection, name)
	if err != nil {
		return nil, err
	}

	result := &Expansion{
		Seed:          seed.Name,
		Entities:      []ExpandedEntity{{Entity: *seed, Depth: 0}},
		Relationships: []Relationship{},
	}

	depthOf := map[string]int{seed.Name: 0}
	seenEdges := map[uuid.UUID]bool{}
	frontier := []string{seed.Name}

	for depth := 1; depth <= limits.MaxDepth && len(frontier) > 0; depth++ {
		if time.Until(deadline) <= 0 {
			result.Meta.TimedOut = true
			break
		}

		rels, err := s.store.RelationshipsTouching(ctx, collection, frontier)
		if err != nil {
			if ctx.Err() != nil {
				result.Meta.TimedOut = true
				break
			}
			return nil, err
		}

		var next []string
		for _, rel := range rels {
			if seenEdges[rel.ID] {
				continue
			}
			seenEdges[rel.ID] = true
			result.Relationships = append(result.Relationships, rel)

			for _, neighbour := range []string{rel.SourceEntity, rel.TargetEntity} {
				if _, known := depthOf[neighbour]; known {
					continue
				}
				if len(depthOf) >= limits.MaxEntities {
					result.Meta.Capped = true
					continue
				}
				depthOf[neighbour] = depth
				next = append(next, neighbour)
			}
		}

		if len(next) > 0 {
			entities, err := s.store.EntitiesByName(ctx, collection, next)
			if err != nil {
				if ctx.Err() != nil {
					result.Meta.TimedOut = true
					break
				}
				return nil, err
			}
			found := map[string]bool{}
			for _, e := range entities {
				found[e.Name] = true
				result.Entities = append(result.Entities, ExpandedEntity{Entity: e, Depth: depth})
			}
			for _, n := range next {
				if !found[n] {
					result.Meta.Warnings = append(result.Meta.Warnings,
						"relationship references unknown entity "+n)
				}
			}
		}

		frontier = next
	}

	if err := s.attachMentions(ctx, result); err != nil {
		result.Meta.Warnings = append(result.Meta.Warnings, "document mentions unavailable")
		s.log.Warn("mention lookup failed", logger.Error(err))
	}

	return result, nil
}

func (s *Service) attachMentions(ctx context.Context, result *Expansion) error {
	ids := make([]uuid.UUID, len(result.Entities))
	for i, e := range result.Entities {
		ids[i] = e.ID
	}

	mentions, err := s.store.MentionsFor(ctx, ids)
	if err != nil {
		return err
	}
	for i := range result.Entities {
		result.Entities[i].Documents = mentions[result.Entities[i].ID]
	}
	return nil
}
