package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
)

const (
	// LeaderboardKey holds every user's score as a sorted set member.
	LeaderboardKey = "leaderboard:score"

	leaderboardTmpPrefix = "leaderboard:rebuild:"
	rebuildChunk         = 1000
)

// Leaderboard is the ranked view of user scores. Postgres stays the source
// of truth; the sorted set can always be rebuilt from it.
type Leaderboard interface {
	// SetScore writes the user's absolute score (ZADD, not ZINCRBY), so a
	// replay of the same write is harmless.
	SetScore(ctx context.Context, userID, score int64) error

	Remove(ctx context.Context, userID int64) error

	// Top returns the highest scores, ranked from 1.
	Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)

	// Rebuild atomically replaces the whole set with entries.
	Rebuild(ctx context.Context, entries []model.LeaderboardEntry) error
}

// RedisLeaderboard implements Leaderboard using a Redis sorted set.
type RedisLeaderboard struct {
	client *redis.Client
	key    string
}

func NewLeaderboard(client *redis.Client) Leaderboard {
	return &RedisLeaderboard{client: client, key: LeaderboardKey}
}

func member(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func (l *RedisLeaderboard) SetScore(ctx context.Context, userID, score int64) error {
	err := l.client.ZAdd(ctx, l.key, redis.Z{Score: float64(score), Member: member(userID)}).Err()
	if err != nil {
		return fmt.Errorf("zadd leaderboard: %w", err)
	}
	return nil
}

func (l *RedisLeaderboard) Remove(ctx context.Context, userID int64) error {
	if err := l.client.ZRem(ctx, l.key, member(userID)).Err(); err != nil {
		return fmt.Errorf("zrem leaderboard: %w", err)
	}
	return nil
}

func (l *RedisLeaderboard) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		return []model.LeaderboardEntry{}, nil
	}

	results, err := l.client.ZRevRangeWithScores(ctx, l.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrange leaderboard: %w", err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(results))
	for i, z := range results {
		raw, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected leaderboard member %v", z.Member)
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse leaderboard member %q: %w", raw, err)
		}
		entries = append(entries, model.LeaderboardEntry{
			Rank:   i + 1,
			UserID: id,
			Score:  int64(z.Score),
		})
	}
	return entries, nil
}

// Rebuild fills a temporary key in chunks and RENAMEs it over the live key,
// so readers see either the old set or the complete new one.
func (l *RedisLeaderboard) Rebuild(ctx context.Context, entries []model.LeaderboardEntry) error {
	startTime := time.Now()
	tmp := leaderboardTmpPrefix + strconv.FormatInt(startTime.UnixNano(), 10)

	if len(entries) == 0 {
		if err := l.client.Del(ctx, l.key).Err(); err != nil {
			return fmt.Errorf("clear leaderboard: %w", err)
		}
		return nil
	}

	for start := 0; start < len(entries); start += rebuildChunk {
		end := start + rebuildChunk
		if end > len(entries) {
			end = len(entries)
		}

		members := make([]redis.Z, 0, end-start)
		for _, e := range entries[start:end] {
			members = append(members, redis.Z{Score: float64(e.Score), Member: member(e.UserID)})
		}

		pipe := l.client.Pipeline()
		pipe.ZAdd(ctx, tmp, members...)
		pipe.Expire(ctx, tmp, 10*time.Minute)
		if _, err := pipe.Exec(ctx); err != nil {
			l.client.Del(context.WithoutCancel(ctx), tmp)
			return fmt.Errorf("fill leaderboard rebuild: %w", err)
		}
	}

	pipe := l.client.TxPipeline()
	pipe.Rename(ctx, tmp, l.key)
	pipe.Persist(ctx, l.key)
	if _, err := pipe.Exec(ctx); err != nil {
		l.client.Del(context.WithoutCancel(ctx), tmp)
		return fmt.Errorf("swap leaderboard: %w", err)
	}

	log.Printf("[Leaderboard] Rebuild OK: members=%d duration=%v", len(entries), time.Since(startTime))
	return nil
}
