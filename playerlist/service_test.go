package playerlist

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/playerlist/errors"
	"github.com/c360/playerlist/pkg/cache"
	"github.com/c360/playerlist/upstream"
)

type fakeStatusSource struct {
	mu     sync.Mutex
	status upstream.ServerStatus
	err    error
	calls  int
}

func (f *fakeStatusSource) Fetch(_ context.Context) (*upstream.ServerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	return &status, nil
}

type fakeProfileSource struct {
	mu       sync.Mutex
	profiles map[string]upstream.Profile
	failing  map[string]bool
	delays   map[string]time.Duration
	lookups  atomic.Int64
}

func newFakeProfiles() *fakeProfileSource {
	return &fakeProfileSource{
		profiles: make(map[string]upstream.Profile),
		failing:  make(map[string]bool),
		delays:   make(map[string]time.Duration),
	}
}

func (f *fakeProfileSource) Lookup(_ context.Context, username string) (upstream.Profile, error) {
	f.lookups.Add(1)

	f.mu.Lock()
	delay := f.delays[username]
	failing := f.failing[username]
	profile, known := f.profiles[username]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failing || !known {
		return upstream.Profile{}, errors.ErrLookupFailed
	}
	return profile, nil
}

type mapResolver map[string]string

func (m mapResolver) Resolve(username string) (string, bool) {
	nick, ok := m[username]
	return nick, ok
}

func onlineStatus(names ...string) upstream.ServerStatus {
	return upstream.ServerStatus{
		Online: true,
		Players: upstream.PlayerCount{
			Online: len(names),
			Max:    20,
			List:   names,
		},
	}
}

func newTestService(t *testing.T, status *fakeStatusSource, profiles *fakeProfileSource, opts ...ServiceOption) *Service {
	t.Helper()
	profileCache, err := cache.NewTTL[upstream.Profile](10 * time.Minute)
	require.NoError(t, err)
	avatars := NewAvatarURLBuilder("https://avatars.example.com", 32)
	return NewService(status, profiles, profileCache, avatars, opts...)
}

func TestService_AggregateEnrichesPlayers(t *testing.T) {
	status := &fakeStatusSource{status: onlineStatus("Alice", "Bob")}
	profiles := newFakeProfiles()
	profiles.profiles["Alice"] = upstream.Profile{UUID: "f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2", Username: "Alice"}
	profiles.profiles["Bob"] = upstream.Profile{UUID: "069a79f4-44e9-4726-a5be-fca90e38aaf5", Username: "Bob"}

	svc := newTestService(t, status, profiles, WithNicknames(mapResolver{"Alice": "Ace"}))

	got, err := svc.Aggregate(context.Background())
	require.NoError(t, err)

	assert.True(t, got.Online)
	assert.Equal(t, 2, got.PlayersOnline)
	require.Len(t, got.Players, 2)

	alice := got.Players[0]
	assert.Equal(t, "Alice", alice.Username)
	require.NotNil(t, alice.Nickname)
	assert.Equal(t, "Ace", *alice.Nickname)
	assert.Equal(t, "f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2", alice.UUID)
	assert.Contains(t, alice.HeadImageURL, "f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2")
	assert.Contains(t, alice.HeadImageURL, "size=32")

	bob := got.Players[1]
	assert.Equal(t, "Bob", bob.Username)
	assert.Nil(t, bob.Nickname)
	assert.Equal(t, "069a79f4-44e9-4726-a5be-fca90e38aaf5", bob.UUID)
}

func TestService_AggregateOfflineSkipsLookups(t *testing.T) {
	status := &fakeStatusSource{status: upstream.ServerStatus{Online: false}}
	profiles := newFakeProfiles()

	svc := newTestService(t, status, profiles)

	got, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	assert.False(t, got.Online)
	assert.Empty(t, got.Players)
	assert.Equal(t, int64(0), profiles.lookups.Load())
}

func TestService_AggregateStatusFetchError(t *testing.T) {
	status := &fakeStatusSource{err: errors.ErrUpstreamUnavailable}
	svc := newTestService(t, status, newFakeProfiles())

	_, err := svc.Aggregate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUpstreamUnavailable)
}

func TestService_AggregatePreservesUpstreamOrder(t *testing.T) {
	names := make([]string, 12)
	profiles := newFakeProfiles()
	for i := range names {
		names[i] = fmt.Sprintf("player%02d", i)
		profiles.profiles[names[i]] = upstream.Profile{
			UUID:     fmt.Sprintf("00000000-0000-4000-8000-%012d", i),
			Username: names[i],
		}
		// Earlier players finish last.
		profiles.delays[names[i]] = time.Duration(len(names)-i) * 3 * time.Millisecond
	}
	status := &fakeStatusSource{status: onlineStatus(names...)}

	svc := newTestService(t, status, profiles, WithLookupLimit(6))

	got, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Players, len(names))
	for i, player := range got.Players {
		assert.Equal(t, names[i], player.Username)
		assert.Equal(t, profiles.profiles[names[i]].UUID, player.UUID)
	}
}

func TestService_AggregateAbsorbsLookupFailure(t *testing.T) {
	status := &fakeStatusSource{status: onlineStatus("Alice", "Ghost", "Bob")}
	profiles := newFakeProfiles()
	profiles.profiles["Alice"] = upstream.Profile{UUID: "f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2", Username: "Alice"}
	profiles.profiles["Bob"] = upstream.Profile{UUID: "069a79f4-44e9-4726-a5be-fca90e38aaf5", Username: "Bob"}
	profiles.failing["Ghost"] = true

	svc := newTestService(t, status, profiles)

	got, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Players, 3)

	ghost := got.Players[1]
	assert.Equal(t, "Ghost", ghost.Username)
	assert.Empty(t, ghost.UUID)
	assert.Empty(t, ghost.HeadImageURL)

	// Siblings unaffected.
	assert.NotEmpty(t, got.Players[0].UUID)
	assert.NotEmpty(t, got.Players[2].UUID)
}

func TestService_AggregateServesFromCache(t *testing.T) {
	status := &fakeStatusSource{status: onlineStatus("Alice")}
	profiles := newFakeProfiles()
	profiles.profiles["Alice"] = upstream.Profile{UUID: "f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2", Username: "Alice"}

	svc := newTestService(t, status, profiles)

	_, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	_, err = svc.Aggregate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), profiles.lookups.Load())
}

func TestService_PassesUpstreamCountVerbatim(t *testing.T) {
	// Count disagrees with the list length; the count wins.
	status := &fakeStatusSource{status: upstream.ServerStatus{
		Online: true,
		Players: upstream.PlayerCount{
			Online: 7,
			Max:    20,
			List:   []string{"Alice"},
		},
	}}
	profiles := newFakeProfiles()
	profiles.profiles["Alice"] = upstream.Profile{UUID: "f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2", Username: "Alice"}

	svc := newTestService(t, status, profiles)

	got, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got.PlayersOnline)
	assert.Len(t, got.Players, 1)
}

func TestService_NicknameReloadVisibleNextAggregate(t *testing.T) {
	status := &fakeStatusSource{status: onlineStatus("Alice")}
	profiles := newFakeProfiles()
	profiles.profiles["Alice"] = upstream.Profile{UUID: "f84c6a79-0a4e-45e0-879b-cd49ebd4c4e2", Username: "Alice"}

	nicks := mapResolver{}
	svc := newTestService(t, status, profiles, WithNicknames(nicks))

	got, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got.Players[0].Nickname)

	nicks["Alice"] = "Ace"
	got, err = svc.Aggregate(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got.Players[0].Nickname)
	assert.Equal(t, "Ace", *got.Players[0].Nickname)
}
