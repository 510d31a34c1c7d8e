package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/statement-ledger/pkg/logger"
	"github.com/nimasrn/statement-ledger/pkg/redis"
)

var (
	ErrCommitInFlight = errors.New("a commit with this idempotency key is already in progress")
	ErrEmptyKey       = errors.New("idempotency key is empty")
)

type Config struct {
	// LockTTL bounds how long an in-flight commit blocks duplicates if the
	// process dies before releasing it.
	LockTTL time.Duration

	// ProcessedTTL is how long a finished result is replayed.
	ProcessedTTL time.Duration

	KeyPrefix string
}

func DefaultConfig() Config {
	return Config{
		LockTTL:      30 * time.Second,
		ProcessedTTL: 24 * time.Hour,
		KeyPrefix:    "import:commit:",
	}
}

// Store makes a user-scoped operation replay-safe: the first caller with a
// key runs it, later callers get the stored result.
type Store struct {
	redis  redis.RedisAdapter
	config Config
}

func NewStore(redisAdapter redis.RedisAdapter, config Config) *Store {
	return &Store{
		redis:  redisAdapter,
		config: config,
	}
}

// Claim is held by the single caller allowed to run the operation.
type Claim struct {
	key       string
	store     *Store
	finalized bool
}

// Begin either replays a finished result into out (returning a nil Claim and
// replayed=true) or takes the in-flight lock and returns a Claim. A second
// caller while the lock is held gets ErrCommitInFlight.
func (s *Store) Begin(ctx context.Context, userID, key string, out any) (*Claim, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	base := s.config.KeyPrefix + userID + ":" + key

	stored, err := s.redis.Get(ctx, base+":result")
	switch {
	case err == nil:
		if err = json.Unmarshal(stored, out); err != nil {
			return nil, false, fmt.Errorf("decode stored result: %w", err)
		}
		logger.Info("replaying idempotent commit", "user_id", userID, "key", key)
		return nil, true, nil
	case !errors.Is(err, redis.NilError):
		return nil, false, fmt.Errorf("read stored result: %w", err)
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(ctx, base+":lock", lockValue, s.config.LockTTL)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		logger.Info("idempotent commit already in flight", "user_id", userID, "key", key)
		return nil, false, ErrCommitInFlight
	}

	return &Claim{key: base, store: s}, false, nil
}

// Complete stores result for replay and releases the lock.
func (c *Claim) Complete(ctx context.Context, result any) error {
	if c == nil || c.finalized {
		return nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err = c.store.redis.Set(ctx, c.key+":result", b, c.store.config.ProcessedTTL); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	c.finalized = true
	if err = c.store.redis.Del(ctx, c.key+":lock"); err != nil {
		logger.Warn("failed to release idempotency lock", "key", c.key, "error", err)
	}
	return nil
}

// Release drops the lock without storing anything so the caller may retry.
// It is a no-op after Complete.
func (c *Claim) Release(ctx context.Context) {
	if c == nil || c.finalized {
		return
	}
	c.finalized = true
	if err := c.store.redis.Del(ctx, c.key+":lock"); err != nil {
		logger.Warn("failed to release idempotency lock", "key", c.key, "error", err)
	}
}
