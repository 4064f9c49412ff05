package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDYING NOW
// ══════════════════════════════════════════════════════════════════════════════

// StudyingNow implements study.StudyingNowTracker.
//
// Layout:
//
//	<ns>:studying_now              ZSET  member=userID score=unix time first marked
//	<ns>:studying_now:<userID>     SET   open sources (manual, presence, focus)
//
// A user leaves the sorted set when their last source is removed.
type StudyingNow struct {
	cache *Cache
	clock timeutil.Clock
}

// NewStudyingNow creates the tracker.
func NewStudyingNow(cache *Cache, clock timeutil.Clock) *StudyingNow {
	return &StudyingNow{cache: cache, clock: clock}
}

func (s *StudyingNow) indexKey() string {
	return s.cache.Key("studying_now")
}

func (s *StudyingNow) sourcesKey(userID shared.UserID) string {
	return s.cache.Key("studying_now", userID.String())
}

// MarkStudying adds source to the user's open sources.
func (s *StudyingNow) MarkStudying(ctx context.Context, userID shared.UserID, source study.Source) error {
	_, err := s.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.sourcesKey(userID), string(source))
		pipe.ZAddNX(ctx, s.indexKey(), redis.Z{
			Score:  float64(s.clock.Now().Unix()),
			Member: userID.String(),
		})
		return nil
	})
	if err != nil {
		return shared.Storage("studying_now", "MarkStudying", err)
	}
	return nil
}

// MarkStopped removes source. The check-and-remove of the index entry runs
// in a Lua script so a concurrent MarkStudying cannot be lost.
func (s *StudyingNow) MarkStopped(ctx context.Context, userID shared.UserID, source study.Source) error {
	err := markStoppedScript.Run(ctx, s.cache.Client(),
		[]string{s.sourcesKey(userID), s.indexKey()},
		string(source), userID.String(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return shared.Storage("studying_now", "MarkStopped", err)
	}
	return nil
}

var markStoppedScript = redis.NewScript(`
redis.call('SREM', KEYS[1], ARGV[1])
if redis.call('SCARD', KEYS[1]) == 0 then
	redis.call('ZREM', KEYS[2], ARGV[2])
end
return 1
`)

// ListStudying returns everyone with an open source, earliest first.
func (s *StudyingNow) ListStudying(ctx context.Context) ([]study.StudyingEntry, error) {
	client := s.cache.Client()

	ids, err := client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, shared.Storage("studying_now", "ListStudying", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.StringSliceCmd, len(ids))
	_, err = client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.SMembers(ctx, s.sourcesKey(shared.UserID(id)))
		}
		return nil
	})
	if err != nil {
		return nil, shared.Storage("studying_now", "ListStudying", err)
	}

	out := make([]study.StudyingEntry, 0, len(ids))
	for i, id := range ids {
		members := cmds[i].Val()
		if len(members) == 0 {
			continue
		}
		entry := study.StudyingEntry{UserID: shared.UserID(id)}
		for _, m := range members {
			entry.Sources = append(entry.Sources, study.Source(m))
		}
		sort.Slice(entry.Sources, func(a, b int) bool { return entry.Sources[a] < entry.Sources[b] })
		out = append(out, entry)
	}
	return out, nil
}

// Reset clears the view. Called at startup, since sessions do not survive a
// restart and the mirror must not claim otherwise.
func (s *StudyingNow) Reset(ctx context.Context) error {
	client := s.cache.Client()

	ids, err := client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return shared.Storage("studying_now", "Reset", err)
	}

	keys := []string{s.indexKey()}
	for _, id := range ids {
		keys = append(keys, s.sourcesKey(shared.UserID(id)))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		return shared.Storage("studying_now", "Reset", err)
	}
	return nil
}

// PruneOlderThan drops users first marked before cutoff. A server that dies
// without reaching Reset leaves entries behind; this bounds how long they linger.
func (s *StudyingNow) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	client := s.cache.Client()

	ids, err := client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("(%d", cutoff.Unix()),
	}).Result()
	if err != nil {
		return 0, shared.Storage("studying_now", "PruneOlderThan", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		members := make([]interface{}, len(ids))
		for i, id := range ids {
			members[i] = id
			pipe.Del(ctx, s.sourcesKey(shared.UserID(id)))
		}
		pipe.ZRem(ctx, s.indexKey(), members...)
		return nil
	})
	if err != nil {
		return 0, shared.Storage("studying_now", "PruneOlderThan", err)
	}
	return len(ids), nil
}
