// Package access answers the two questions every request triggers: which
// access groups does this API key hold, and which filesets can those groups
// see. Group resolution is cached in Redis so a busy key does not hit
// Postgres on every request; the permitted-hash checks always go to the
// store because they are already single indexed lookups.
//
// Everything here fails closed: an unknown key, an empty group set, or a
// store error all resolve to "no access".
package access

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/versecast/versecast/internal/metrics"
	"github.com/versecast/versecast/internal/store"
)

// groupCacheTTL bounds how long a key's group set can be stale after an
// access-group change in the catalog.
const groupCacheTTL = 30 * time.Minute

// Resolver resolves an API key (plus the caller's geo hints) to a set of
// access-group IDs.
type Resolver struct {
	store  store.Store
	rdb    *redis.Client // nil disables caching
	logger *slog.Logger
}

// NewResolver builds a Resolver. rdb may be nil; resolution then always
// queries the store.
func NewResolver(st store.Store, rdb *redis.Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: st, rdb: rdb, logger: logger}
}

// Groups returns the access-group IDs the key is entitled to: its direct
// memberships plus, when a geo rule matches the caller's country or
// continent, that rule's default group. The result is sorted and
// deduplicated, so equal entitlements always produce the same slice.
//
// An empty result is a valid answer meaning "no access"; it is cached like
// any other so unknown keys cannot stampede the database.
func (r *Resolver) Groups(ctx context.Context, apiKey, countryCode, continentCode string) ([]int64, error) {
	cacheKey := r.cacheKey(apiKey, countryCode, continentCode)

	if r.rdb == nil {
		metrics.GroupCacheEvents.WithLabelValues("uncached").Inc()
	} else {
		if cached, err := r.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var groups []int64
			if json.Unmarshal([]byte(cached), &groups) == nil {
				metrics.GroupCacheEvents.WithLabelValues("hit").Inc()
				return groups, nil
			}
		}
		metrics.GroupCacheEvents.WithLabelValues("miss").Inc()
	}

	direct, err := r.store.ListAccessGroupsForKey(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("access groups for key: %w", err)
	}

	groups := make([]int64, 0, len(direct)+1)
	groups = append(groups, direct...)

	if countryCode != "" || continentCode != "" {
		geoGroup, ok, err := r.store.FindGeoAccessGroup(ctx, countryCode, continentCode)
		if err != nil {
			return nil, fmt.Errorf("geo access group: %w", err)
		}
		if ok {
			groups = append(groups, geoGroup)
		}
	}

	groups = normalize(groups)

	if r.rdb != nil {
		if b, err := json.Marshal(groups); err == nil {
			if err := r.rdb.Set(ctx, cacheKey, b, groupCacheTTL).Err(); err != nil {
				r.logger.Warn("access group cache write failed", "error", err)
			}
		}
	}
	return groups, nil
}

// Flush drops every cached group set. Called after access-group edits so
// changes take effect without waiting out the TTL.
func (r *Resolver) Flush(ctx context.Context) error {
	if r.rdb == nil {
		return nil
	}
	iter := r.rdb.Scan(ctx, 0, "access_groups:*", 200).Iterator()
	for iter.Next(ctx) {
		if err := r.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// cacheKey hashes the API key so raw credentials never land in Redis.
func (r *Resolver) cacheKey(apiKey, countryCode, continentCode string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return fmt.Sprintf("access_groups:%s:%s:%s",
		hex.EncodeToString(sum[:])[:16], countryCode, continentCode)
}

// normalize sorts and dedupes a group set in place so caching and
// comparisons are order-independent.
func normalize(groups []int64) []int64 {
	if len(groups) == 0 {
		return []int64{}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	out := groups[:1]
	for _, g := range groups[1:] {
		if g != out[len(out)-1] {
			out = append(out, g)
		}
	}
	return out
}
