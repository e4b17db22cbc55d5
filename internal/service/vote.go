package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tripmate/server/internal/docstore"
	"tripmate/server/internal/identity"
	"tripmate/server/internal/models"
)

// VoteService manages a group's polls.
type VoteService struct {
	store docstore.Store
	now   func() time.Time
}

func NewVoteService(store docstore.Store) *VoteService {
	return &VoteService{store: store, now: time.Now}
}

func votesOf(groupID string) string {
	return models.GroupCollection(groupID, models.VotesCollection)
}

func (s *VoteService) Create(ctx context.Context, groupID string, in models.VoteInput, actor identity.Identity) (models.Vote, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return models.Vote{}, invalid("question", "Question is required")
	}

	options := make([]string, 0, len(in.Options))
	seen := make(map[string]bool, len(in.Options))
	for _, o := range in.Options {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		options = append(options, o)
	}
	if len(options) < 2 {
		return models.Vote{}, invalid("options", "At least two different options are required")
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.now()) {
		return models.Vote{}, invalid("expiresAt", "Expiry must be in the future")
	}

	votes := make(map[string][]string, len(options))
	for _, o := range options {
		votes[o] = []string{}
	}
	v := models.Vote{
		Question:      question,
		Options:       options,
		Votes:         votes,
		CreatedBy:     actor.Name,
		ExpiresAt:     in.ExpiresAt,
		AllowMultiple: in.AllowMultiple,
	}
	data, err := docstore.Encode(v)
	if err != nil {
		return models.Vote{}, err
	}
	id, err := s.store.Add(ctx, votesOf(groupID), data)
	if err != nil {
		return models.Vote{}, fmt.Errorf("create vote: %w", err)
	}
	return s.Get(ctx, groupID, id)
}

func (s *VoteService) Get(ctx context.Context, groupID, id string) (models.Vote, error) {
	return getAs[models.Vote](ctx, s.store, docstore.Join(votesOf(groupID), id))
}

// Cast applies a ballot against the freshest copy of the vote.
func (s *VoteService) Cast(ctx context.Context, groupID, id, option string, actor identity.Identity) (models.Vote, error) {
	if !actor.Valid() {
		return models.Vote{}, invalid("actor", "Set a display name first")
	}
	path := docstore.Join(votesOf(groupID), id)
	err := mutate(ctx, s.store, path, func(doc *docstore.Document) (map[string]any, error) {
		var v models.Vote
		if err := docstore.Decode(doc, &v); err != nil {
			return nil, err
		}
		if v.Expired(s.now()) {
			return nil, ErrVoteClosed
		}
		next, err := ApplyCast(v, option, actor.Name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"votes": next.Votes}, nil
	})
	if err != nil {
		return models.Vote{}, err
	}
	return s.Get(ctx, groupID, id)
}

func (s *VoteService) Delete(ctx context.Context, groupID, id string) error {
	return s.store.Delete(ctx, docstore.Join(votesOf(groupID), id))
}

func (s *VoteService) List(ctx context.Context, groupID string) ([]models.Vote, error) {
	return listAs[models.Vote](ctx, s.store, docstore.Query{Collection: votesOf(groupID), Direction: docstore.Desc}, nil)
}

func (s *VoteService) Subscribe(ctx context.Context, groupID string, fn func([]models.Vote)) (docstore.Unsubscribe, error) {
	return subscribeAs[models.Vote](ctx, s.store, docstore.Query{Collection: votesOf(groupID), Direction: docstore.Desc}, nil, fn)
}
