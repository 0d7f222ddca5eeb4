package groundtruth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// Suffixes of the mirrored classification sets.
const (
	setSuffixOK   = ":ok"
	setSuffixGood = ":good"
	setSuffixJunk = ":junk"
)

// RedisStore keeps one hash per query, keyed <prefix><query_id>, mapping
// image identifier to relevance code.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	mirrorSets bool
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	URL    string
	Prefix string

	// MirrorSets also writes the classified ok/good/junk members as sets
	// under <prefix><query_id>:ok|good|junk on every PutRelevance.
	MirrorSets bool
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	ropts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(ropts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.RedisError("connecting to redis", err)
	}

	return &RedisStore{
		client:     client,
		prefix:     opts.Prefix,
		mirrorSets: opts.MirrorSets,
	}, nil
}

func (rs *RedisStore) key(queryID string) string {
	return rs.prefix + queryID
}

// GetRelevance reads the relevance hash of queryID.
func (rs *RedisStore) GetRelevance(ctx context.Context, queryID string) (evaluation.RelevanceMap, error) {
	m, err := rs.client.HGetAll(ctx, rs.key(queryID)).Result()
	if err != nil {
		if isWrongType(err) {
			return nil, apperrors.ValidationError(
				fmt.Sprintf("key %s is not a relevance hash", rs.key(queryID))).
				WithDetail("query_id", queryID)
		}
		return nil, apperrors.RedisError("reading relevance", err)
	}
	if len(m) == 0 {
		return nil, apperrors.NotFoundError("relevance record").WithDetail("query_id", queryID)
	}
	return evaluation.RelevanceMap(m), nil
}

// PutRelevance replaces the relevance hash of queryID.
func (rs *RedisStore) PutRelevance(ctx context.Context, queryID string, m evaluation.RelevanceMap) error {
	key := rs.key(queryID)

	pipe := rs.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(m) > 0 {
		fields := make(map[string]any, len(m))
		for id, code := range m {
			fields[id] = code
		}
		pipe.HSet(ctx, key, fields)
	}

	if rs.mirrorSets {
		sets := evaluation.Classify(m)
		mirror := func(suffix string, ids evaluation.IDSet) {
			setKey := key + suffix
			pipe.Del(ctx, setKey)
			if ids.Len() == 0 {
				return
			}
			members := make([]any, 0, ids.Len())
			for _, id := range ids.Sorted() {
				members = append(members, id)
			}
			pipe.SAdd(ctx, setKey, members...)
		}
		mirror(setSuffixOK, sets.OK)
		mirror(setSuffixGood, sets.Good)
		mirror(setSuffixJunk, sets.Junk)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.RedisError("writing relevance", err)
	}
	return nil
}

// QueryIDs scans for relevance hashes under the prefix.
func (rs *RedisStore) QueryIDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := rs.client.ScanType(ctx, cursor, rs.prefix+"*", 500, "hash").Result()
		if err != nil {
			return nil, apperrors.RedisError("scanning query ids", err)
		}
		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, rs.prefix))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the relevance hash of queryID and its mirrored sets.
func (rs *RedisStore) Delete(ctx context.Context, queryID string) error {
	key := rs.key(queryID)
	err := rs.client.Del(ctx, key, key+setSuffixOK, key+setSuffixGood, key+setSuffixJunk).Err()
	if err != nil {
		return apperrors.RedisError("deleting relevance", err)
	}
	return nil
}

// Ping checks the connection.
func (rs *RedisStore) Ping(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return apperrors.RedisError("ping", err)
	}
	return nil
}

// Close closes the Redis connection.
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

func isWrongType(err error) bool {
	return strings.HasPrefix(err.Error(), "WRONGTYPE")
}
