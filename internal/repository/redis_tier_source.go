package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"IgniteX/internal/domain/models"
	"IgniteX/internal/domain/repository"
)

// RedisTierSource reads the subscription store maintained by the billing
// service. This core never writes it. Users without an entry default to
// FREE; members of each tier are kept in a set per tier.
type RedisTierSource struct {
	client *redis.Client
	prefix string
}

// NewRedisTierSource creates a subscription reader.
func NewRedisTierSource(client *redis.Client, prefix string) *RedisTierSource {
	if prefix == "" {
		prefix = "ignitex"
	}
	return &RedisTierSource{client: client, prefix: prefix}
}

func (s *RedisTierSource) TierOf(ctx context.Context, userID string) (models.Tier, error) {
	v, err := s.client.Get(ctx, fmt.Sprintf("%s:sub:tier:%s", s.prefix, userID)).Result()
	if err == redis.Nil {
		return models.TierFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("tier lookup: %w", err)
	}
	tier, perr := models.ParseTier(v)
	if perr != nil {
		// corrupt entry; fail safe to the lowest tier
		return models.TierFree, nil
	}
	return tier, nil
}

func (s *RedisTierSource) Recipients(ctx context.Context, tier models.Tier) ([]string, error) {
	members, err := s.client.SMembers(ctx, fmt.Sprintf("%s:sub:members:%s", s.prefix, tier)).Result()
	if err != nil {
		return nil, fmt.Errorf("recipients lookup: %w", err)
	}
	return members, nil
}

var _ repository.TierSource = (*RedisTierSource)(nil)
