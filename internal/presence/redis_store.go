package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	viewersPrefix = "live:viewers:" // ZSET: viewer id -> heartbeat unix time
	seenPrefix    = "live:seen:"    // SET: every viewer ever seen in the session
	dedupePrefix  = "live:join:"    // short-TTL join dedupe markers
	seqPrefix     = "live:seq:"     // counter: membership change sequence
)

// RedisStore keeps presence state in Redis so it survives process restarts
// and is shared across instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed presence store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func viewersKey(sessionID uuid.UUID) string { return viewersPrefix + sessionID.String() }
func seenKey(sessionID uuid.UUID) string    { return seenPrefix + sessionID.String() }
func seqKey(sessionID uuid.UUID) string     { return seqPrefix + sessionID.String() }
func dedupeKey(sessionID, viewerID uuid.UUID) string {
	return dedupePrefix + sessionID.String() + ":" + viewerID.String()
}

// AddViewer registers a viewer in the session's live set. Joins within the
// dedupe window are absorbed; audience size is the ZSET cardinality, so a
// duplicate member can never double-count.
func (s *RedisStore) AddViewer(ctx context.Context, sessionID, viewerID uuid.UUID, dedupe time.Duration) (JoinResult, error) {
	fresh, err := s.client.SetNX(ctx, dedupeKey(sessionID, viewerID), 1, dedupe).Result()
	if err != nil {
		return JoinResult{}, fmt.Errorf("dedupe marker: %w", err)
	}
	if !fresh {
		count, err := s.client.ZCard(ctx, viewersKey(sessionID)).Result()
		if err != nil {
			return JoinResult{}, err
		}
		return JoinResult{Deduped: true, LiveCount: count}, nil
	}

	// The sequence increment runs in the same transaction as the ZSET
	// mutation, so count-at-seq pairs reflect commit order even when the
	// publish behind them is delayed.
	now := float64(time.Now().Unix())
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, viewersKey(sessionID), redis.Z{Score: now, Member: viewerID.String()})
	firstEver := pipe.SAdd(ctx, seenKey(sessionID), viewerID.String())
	card := pipe.ZCard(ctx, viewersKey(sessionID))
	seq := pipe.Incr(ctx, seqKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return JoinResult{}, err
	}
	return JoinResult{
		FirstEver: firstEver.Val() == 1,
		LiveCount: card.Val(),
		Seq:       seq.Val(),
	}, nil
}

// RemoveViewer drops a viewer from the live set. The dedupe marker is
// cleared so an immediate rejoin counts again.
func (s *RedisStore) RemoveViewer(ctx context.Context, sessionID, viewerID uuid.UUID) (LeaveResult, error) {
	pipe := s.client.TxPipeline()
	removed := pipe.ZRem(ctx, viewersKey(sessionID), viewerID.String())
	pipe.Del(ctx, dedupeKey(sessionID, viewerID))
	card := pipe.ZCard(ctx, viewersKey(sessionID))
	seq := pipe.Incr(ctx, seqKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return LeaveResult{}, err
	}
	return LeaveResult{Removed: removed.Val() == 1, LiveCount: card.Val(), Seq: seq.Val()}, nil
}

// Heartbeat refreshes the viewer's liveness score. A heartbeat for a viewer
// who is not present is ignored.
func (s *RedisStore) Heartbeat(ctx context.Context, sessionID, viewerID uuid.UUID) error {
	return s.client.ZAddXX(ctx, viewersKey(sessionID), redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: viewerID.String(),
	}).Err()
}

// Stale returns viewers whose heartbeat is older than olderThan, grouped by
// session.
func (s *RedisStore) Stale(ctx context.Context, olderThan time.Duration) (map[uuid.UUID][]uuid.UUID, error) {
	cutoff := fmt.Sprintf("%d", time.Now().Add(-olderThan).Unix())
	result := make(map[uuid.UUID][]uuid.UUID)

	iter := s.client.Scan(ctx, 0, viewersPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		sessionID, err := uuid.Parse(strings.TrimPrefix(key, viewersPrefix))
		if err != nil {
			continue
		}
		members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			viewerID, err := uuid.Parse(m)
			if err != nil {
				continue
			}
			result[sessionID] = append(result[sessionID], viewerID)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Purge removes all presence keys for a session. Dedupe markers expire on
// their own TTL.
func (s *RedisStore) Purge(ctx context.Context, sessionID uuid.UUID) error {
	return s.client.Del(ctx, viewersKey(sessionID), seenKey(sessionID), seqKey(sessionID)).Err()
}
