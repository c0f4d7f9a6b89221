package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

const oauthStateKeyPrefix = "oauth_state:"

// OAuthStateAdapter implements out.OAuthStateStore on Redis. State tokens
// are single-use: Consume uses GETDEL so a redirect replay can never
// redeem the same flow twice.
type OAuthStateAdapter struct {
	client *redis.Client
}

func NewOAuthStateAdapter(client *redis.Client) *OAuthStateAdapter {
	return &OAuthStateAdapter{client: client}
}

var _ out.OAuthStateStore = (*OAuthStateAdapter)(nil)

func (s *OAuthStateAdapter) Store(ctx context.Context, state string, flow *domain.PendingOAuthFlow, ttl time.Duration) error {
	data, err := json.Marshal(flow)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, oauthStateKeyPrefix+state, data, ttl).Err()
}

func (s *OAuthStateAdapter) Consume(ctx context.Context, state string) (*domain.PendingOAuthFlow, error) {
	raw, err := s.client.GetDel(ctx, oauthStateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	var flow domain.PendingOAuthFlow
	if err := json.Unmarshal([]byte(raw), &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}
