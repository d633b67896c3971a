package kvstore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/scamshield/internal/logging"
	"github.com/example/scamshield/internal/retry"
)

// Scoped namespaces keys under "session:<id>:" and retries transient
// backend errors.
type Scoped struct {
	store     Store
	sessionID string
	ttl       time.Duration
	logger    *zap.Logger
	policy    retry.Policy
}

// NewScoped returns a writer for a single session's keys.
func NewScoped(store Store, sessionID string, ttl time.Duration, logger *zap.Logger) *Scoped {
	return &Scoped{
		store:     store,
		sessionID: sessionID,
		ttl:       ttl,
		logger:    logger.Named("kvstore"),
		policy:    retry.DefaultPolicy,
	}
}

// Key returns the backend key for a session-local key.
func Key(sessionID, key string) string {
	return "session:" + sessionID + ":" + key
}

// Set writes key=value for the session.
func (s *Scoped) Set(ctx context.Context, key, value string) error {
	full := Key(s.sessionID, key)
	return retry.Do(ctx, s.logger, s.policy, "kvstore.set", s.sessionID, func() error {
		return s.store.Set(ctx, full, value, s.ttl)
	})
}

// Get reads key for the session. A missing key is reported as ErrNotFound
// without retrying.
func (s *Scoped) Get(ctx context.Context, key string) (string, error) {
	full := Key(s.sessionID, key)
	var (
		value   string
		missing bool
	)
	err := retry.Do(ctx, s.logger, s.policy, "kvstore.get", s.sessionID, func() error {
		v, err := s.store.Get(ctx, full)
		if errors.Is(err, ErrNotFound) {
			missing = true
			return nil
		}
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return "", err
	}
	if missing {
		return "", logging.NewOperationError("kvstore.get", s.sessionID, ErrNotFound)
	}
	return value, nil
}
