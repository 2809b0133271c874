package app

import (
	"context"
	"log"
	"sync"

	"lms-ranking-service/internal/domain"
)

// globalScope keys the global ranking inside the subscriber map.
const globalScope = ""

// LeaderboardFeed fans recomputed leaderboards out to live subscribers.
// Writers call Publish after every progress or attempt write; the feed pulls
// a fresh ranking and broadcasts it, so subscribers only ever see views
// derived from current data, never a cached score.
type LeaderboardFeed struct {
	rankings *RankingService

	mu   sync.Mutex
	subs map[string]map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardFeed(rankings *RankingService) *LeaderboardFeed {
	return &LeaderboardFeed{
		rankings: rankings,
		subs:     make(map[string]map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe registers for updates on one scope: a course id, or the global
// ranking when courseID is empty. The first frame is an immediate snapshot.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *LeaderboardFeed) Subscribe(ctx context.Context, courseID string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := f.compute(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan domain.Leaderboard, 8)

	f.mu.Lock()
	if f.subs[courseID] == nil {
		f.subs[courseID] = make(map[chan domain.Leaderboard]struct{})
	}
	f.subs[courseID][ch] = struct{}{}
	f.mu.Unlock()

	ch <- initial

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[courseID][ch]; ok {
			delete(f.subs[courseID], ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel, nil
}

// Publish recomputes and broadcasts the rankings affected by a write to
// courseID: the course scope and the global scope. Nil feeds and scopes with
// no subscribers are no-ops, so services can publish unconditionally.
func (f *LeaderboardFeed) Publish(ctx context.Context, courseID string) {
	if f == nil {
		return
	}
	f.publishScope(ctx, courseID)
	f.publishScope(ctx, globalScope)
}

func (f *LeaderboardFeed) publishScope(ctx context.Context, scope string) {
	f.mu.Lock()
	empty := len(f.subs[scope]) == 0
	f.mu.Unlock()
	if empty {
		return
	}

	lb, err := f.compute(ctx, scope)
	if err != nil {
		log.Printf("leaderboard feed: compute scope %q: %v", scope, err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[scope] {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: drop its stale frame and replace it with the
			// current one instead of blocking the broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

func (f *LeaderboardFeed) compute(ctx context.Context, scope string) (domain.Leaderboard, error) {
	if scope == globalScope {
		return f.rankings.GlobalLeaderboard(ctx, 0)
	}
	return f.rankings.CourseLeaderboard(ctx, scope)
}
