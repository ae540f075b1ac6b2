package playerlist

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/playerlist/errors"
	"github.com/c360/playerlist/metric"
	"github.com/c360/playerlist/pkg/cache"
	"github.com/c360/playerlist/upstream"
)

// NicknameResolver resolves a username to its curated nickname.
type NicknameResolver interface {
	Resolve(username string) (string, bool)
}

const defaultLookupLimit = 8

// Service builds the aggregate player snapshot: server status from the
// status API, profile metadata through the TTL cache, nicknames from the
// store.
type Service struct {
	status   upstream.StatusSource
	profiles upstream.ProfileSource
	cache    *cache.TTLCache[upstream.Profile]
	avatars  *AvatarURLBuilder

	nicknames   NicknameResolver
	logger      *slog.Logger
	metrics     *metric.CoreMetrics
	lookupLimit int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNicknames attaches a nickname resolver.
func WithNicknames(r NicknameResolver) ServiceOption {
	return func(s *Service) { s.nicknames = r }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger.With("component", "playerlist")
		}
	}
}

// WithMetrics attaches the core service metrics.
func WithMetrics(m *metric.CoreMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLookupLimit bounds how many live profile lookups one aggregation
// runs concurrently.
func WithLookupLimit(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.lookupLimit = n
		}
	}
}

// NewService creates the aggregation service.
func NewService(
	status upstream.StatusSource,
	profiles upstream.ProfileSource,
	profileCache *cache.TTLCache[upstream.Profile],
	avatars *AvatarURLBuilder,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		status:      status,
		profiles:    profiles,
		cache:       profileCache,
		avatars:     avatars,
		logger:      slog.Default().With("component", "playerlist"),
		lookupLimit: defaultLookupLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchStatus returns the current upstream server status.
func (s *Service) FetchStatus(ctx context.Context) (*upstream.ServerStatus, error) {
	return s.status.Fetch(ctx)
}

// Aggregate builds the snapshot for the watched server. Only a status fetch
// failure is an error; individual profile lookup failures leave that
// player's UUID and avatar URL empty and never fail the batch.
func (s *Service) Aggregate(ctx context.Context) (Status, error) {
	serverStatus, err := s.status.Fetch(ctx)
	if err != nil {
		return Status{}, errors.Wrap(err, "playerlist", "Aggregate", "fetch server status")
	}

	if !serverStatus.Online {
		if s.metrics != nil {
			s.metrics.PlayersOnline.Set(0)
		}
		return Status{Online: false}, nil
	}

	names := serverStatus.Players.List
	players := make([]Player, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.lookupLimit)
	for i, name := range names {
		g.Go(func() error {
			players[i] = s.buildPlayer(gctx, name)
			return nil
		})
	}
	_ = g.Wait()

	if s.metrics != nil {
		s.metrics.PlayersOnline.Set(float64(serverStatus.Players.Online))
	}

	return Status{
		Online:        true,
		PlayersOnline: serverStatus.Players.Online,
		Players:       players,
	}, nil
}

// buildPlayer assembles one player entry, consulting the cache first and
// falling back to a live lookup.
func (s *Service) buildPlayer(ctx context.Context, username string) Player {
	player := Player{
		Username: username,
		Nickname: s.resolveNickname(username),
	}

	entry, ok := s.cache.GetEntry(username)
	if !ok {
		if err := s.Warm(ctx, username); err != nil {
			s.logger.Warn("profile lookup failed", "username", username, "error", err)
			return player
		}
		entry, ok = s.cache.GetEntry(username)
		if !ok {
			return player
		}
	}

	player.UUID = entry.Value.UUID
	player.HeadImageURL = s.avatars.URL(entry.Value.UUID, entry.FetchedAt)
	return player
}

// Warm looks up one username and stores the profile in the cache. Used by
// both cache misses during aggregation and the refresh scheduler.
func (s *Service) Warm(ctx context.Context, username string) error {
	start := time.Now()
	profile, err := s.profiles.Lookup(ctx, username)
	if s.metrics != nil {
		s.metrics.LookupDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.LookupFailures.Inc()
		}
		return err
	}

	s.cache.Put(username, profile)
	return nil
}

func (s *Service) resolveNickname(username string) *string {
	if s.nicknames == nil {
		return nil
	}
	if nick, ok := s.nicknames.Resolve(username); ok {
		return &nick
	}
	return nil
}
