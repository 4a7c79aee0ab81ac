// Package leaderboard derives the uploader ranking from current
// counters. There is no stored rank: every request recomputes from the
// store so the board never lags a vote or download.
package leaderboard

import (
	"context"
	"errors"
	"sort"

	"github.com/studyshelf/studyshelf/internal/fault"
	"github.com/studyshelf/studyshelf/internal/storage"
)

// Entry is one ranked uploader.
type Entry struct {
	UserID         string  `json:"userId"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	Branch         string  `json:"branch,omitempty"`
	NotesUploaded  int64   `json:"notesUploaded"`
	TotalDownloads int64   `json:"totalDownloads"`
	TotalViews     int64   `json:"totalViews"`
	Reputation     int64   `json:"reputation"`
	AvgDownloads   float64 `json:"avgDownloads"`
}

// RankerConfig describes the ranker dependencies.
type RankerConfig struct {
	Store storage.Store
}

// Ranker computes the engagement leaderboard.
type Ranker struct {
	store storage.Store
}

// NewRanker constructs a Ranker.
func NewRanker(cfg RankerConfig) (*Ranker, error) {
	if cfg.Store == nil {
		return nil, errors.New("leaderboard: store required")
	}
	return &Ranker{store: cfg.Store}, nil
}

// Rank returns every user with at least one uploaded note, ordered by
// totalDownloads desc, then avgDownloads desc, then createdAt asc so
// earlier joiners rank above ties.
func (r *Ranker) Rank(ctx context.Context) ([]Entry, error) {
	users, err := r.store.ListUploaders(ctx)
	if err != nil {
		return nil, fault.Unavailable(err)
	}

	sort.Slice(users, func(i, j int) bool {
		left, right := users[i], users[j]
		if left.TotalDownloads != right.TotalDownloads {
			return left.TotalDownloads > right.TotalDownloads
		}
		leftAvg := avgDownloads(left)
		rightAvg := avgDownloads(right)
		if leftAvg != rightAvg {
			return leftAvg > rightAvg
		}
		return left.CreatedAt.Before(right.CreatedAt)
	})

	entries := make([]Entry, 0, len(users))
	for _, user := range users {
		entries = append(entries, Entry{
			UserID:         user.ID,
			Name:           user.Name,
			Role:           string(user.Role),
			Branch:         user.Branch,
			NotesUploaded:  user.NotesUploaded,
			TotalDownloads: user.TotalDownloads,
			TotalViews:     user.TotalViews,
			Reputation:     user.Reputation,
			AvgDownloads:   avgDownloads(user),
		})
	}
	return entries, nil
}

func avgDownloads(user storage.User) float64 {
	if user.NotesUploaded == 0 {
		return 0
	}
	return float64(user.TotalDownloads) / float64(user.NotesUploaded)
}
