// Package taxa proxies the external taxonomy API. Lookups are keyed by
// taxon id and cached in redis; the service knows nothing about what the
// taxa mean.
package taxa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stevengranter/wilderquest-sub002/internal/shared/apperr"
)

type Taxon struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	PreferredCommonName string `json:"preferred_common_name,omitempty"`
	Rank                string `json:"rank,omitempty"`
}

type Service struct {
	client  *http.Client
	redis   *redis.Client
	log     *zap.Logger
	baseURL string
	ttl     time.Duration
}

func NewService(baseURL string, ttl time.Duration, redisClient *redis.Client, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		client:  &http.Client{Timeout: 10 * time.Second},
		redis:   redisClient,
		log:     log,
		baseURL: baseURL,
		ttl:     ttl,
	}
}

func (s *Service) Lookup(ctx context.Context, taxonID int64) (Taxon, error) {
	if cached, ok := s.fromCache(ctx, taxonID); ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/taxa/%d", s.baseURL, taxonID), nil)
	if err != nil {
		return Taxon{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Taxon{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Taxon{}, apperr.NotFound("taxon not found")
	}
	if resp.StatusCode != http.StatusOK {
		return Taxon{}, errors.New("taxonomy service returned " + resp.Status)
	}

	var payload struct {
		Results []Taxon `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Taxon{}, err
	}
	if len(payload.Results) == 0 {
		return Taxon{}, apperr.NotFound("taxon not found")
	}

	taxon := payload.Results[0]
	s.toCache(ctx, taxon)
	return taxon, nil
}

func (s *Service) fromCache(ctx context.Context, taxonID int64) (Taxon, bool) {
	if s.redis == nil {
		return Taxon{}, false
	}
	raw, err := s.redis.Get(ctx, cacheKey(taxonID)).Bytes()
	if err != nil {
		return Taxon{}, false
	}
	var taxon Taxon
	if err := json.Unmarshal(raw, &taxon); err != nil {
		return Taxon{}, false
	}
	return taxon, true
}

func (s *Service) toCache(ctx context.Context, taxon Taxon) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(taxon)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey(taxon.ID), raw, s.ttl).Err(); err != nil {
		s.log.Warn("taxa cache set failed", zap.Int64("taxon_id", taxon.ID), zap.Error(err))
	}
}

func cacheKey(taxonID int64) string {
	return "taxa:" + strconv.FormatInt(taxonID, 10)
}
