package command

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/whitetemp/duration"
	"github.com/jmcleod/whitetemp/storage/memory"
	"github.com/jmcleod/whitetemp/whitelist"
)

var now = time.UnixMilli(1_760_000_000_000)

func clock() time.Time { return now }

func newTestSurface(t *testing.T, opts ...Option) (*Surface, *whitelist.Store, *memory.Backend) {
	t.Helper()
	backend := memory.NewBackend()
	store := whitelist.New(backend, whitelist.WithClock(clock))
	return New(store, append([]Option{WithClock(clock)}, opts...)...), store, backend
}

func TestGrant(t *testing.T) {
	s, store, _ := newTestSurface(t)
	reply, err := s.Grant("Alice", "10m")
	require.NoError(t, err)
	assert.Equal(t, "Added Alice to the whitelist for 10m.", reply)

	got, ok := store.Expiration("alice")
	require.True(t, ok)
	assert.Equal(t, now.Add(10*time.Minute).UnixMilli(), got.UnixMilli())
}

func TestGrant_RejectsBadDurations(t *testing.T) {
	s, store, backend := newTestSurface(t)
	for _, text := range []string{"", "10", "ten", "0s", "0Y", "-1d", "1w", "999999999999Y"} {
		_, err := s.Grant("alice", text)
		assert.ErrorIs(t, err, duration.ErrInvalidFormat, text)
	}
	assert.Zero(t, store.Len())
	assert.Zero(t, backend.Saves())
}

func TestGrant_Centuries(t *testing.T) {
	s, store, _ := newTestSurface(t)
	reply, expiresAt, err := s.GrantUntil("bob", "999Y")
	require.NoError(t, err)
	assert.Equal(t, "Added bob to the whitelist for 999Y.", reply)
	assert.Equal(t, now.UnixMilli()+999*duration.Year, expiresAt.UnixMilli())

	got, ok := store.Expiration("bob")
	require.True(t, ok)
	assert.Equal(t, expiresAt.UnixMilli(), got.UnixMilli())

	reply, err = s.Check("bob")
	require.NoError(t, err)
	assert.Equal(t, "Player bob is whitelisted for: 364635d", reply)
}

func TestRevoke_AlwaysSucceeds(t *testing.T) {
	s, store, _ := newTestSurface(t)
	require.NoError(t, store.Grant("bob", now.Add(time.Hour)))

	reply, err := s.Revoke("BOB")
	require.NoError(t, err)
	assert.Equal(t, "Removed BOB from the whitelist.", reply)
	assert.Zero(t, store.Len())

	reply, err = s.Revoke("nobody")
	require.NoError(t, err)
	assert.Equal(t, "Removed nobody from the whitelist.", reply)
}

func TestProlong(t *testing.T) {
	s, store, _ := newTestSurface(t)
	require.NoError(t, store.Grant("alice", now.Add(time.Hour)))

	reply, err := s.Prolong("alice", "1d")
	require.NoError(t, err)
	assert.Equal(t, "Prolonged alice's whitelist time by 1d. Remaining: 1d 1h.", reply)
}

func TestProlongUntil(t *testing.T) {
	s, store, _ := newTestSurface(t)
	require.NoError(t, store.Grant("alice", now.Add(time.Hour)))

	_, expiresAt, err := s.ProlongUntil("alice", "300Y")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour).UnixMilli()+300*duration.Year, expiresAt.UnixMilli())

	_, _, err = s.ProlongUntil("ghost", "1h")
	assert.ErrorIs(t, err, ErrNotWhitelisted)
}

func TestProlong_Expired(t *testing.T) {
	s, store, _ := newTestSurface(t)
	require.NoError(t, store.Grant("alice", now.Add(-48*time.Hour)))

	reply, err := s.Prolong("alice", "30m")
	require.NoError(t, err)
	assert.Equal(t, "Prolonged alice's whitelist time by 30m. Remaining: 30m.", reply)
}

func TestProlong_NeverGranted(t *testing.T) {
	s, store, _ := newTestSurface(t)
	_, err := s.Prolong("ghost", "1h")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotWhitelisted)
	assert.ErrorIs(t, err, whitelist.ErrNoSuchIdentity)
	assert.Zero(t, store.Len(), "prolong must not grant")
}

func TestProlong_BadDuration(t *testing.T) {
	s, store, _ := newTestSurface(t)
	require.NoError(t, store.Grant("alice", now.Add(time.Hour)))
	_, err := s.Prolong("alice", "0m")
	assert.ErrorIs(t, err, duration.ErrInvalidFormat)

	got, _ := store.Expiration("alice")
	assert.Equal(t, now.Add(time.Hour).UnixMilli(), got.UnixMilli())
}

func TestCheck(t *testing.T) {
	s, store, _ := newTestSurface(t)
	require.NoError(t, store.Grant("alice", now.Add(26*time.Hour+5*time.Second)))
	require.NoError(t, store.Grant("carol", now.Add(-time.Minute)))

	reply, err := s.Check("Alice")
	require.NoError(t, err)
	assert.Equal(t, "Player Alice is whitelisted for: 1d 2h 5s", reply)

	reply, err = s.Check("carol")
	require.NoError(t, err)
	assert.Equal(t, "Player carol is whitelisted for: expired", reply)

	_, err = s.Check("dave")
	assert.ErrorIs(t, err, ErrNotWhitelisted)
	assert.EqualError(t, err, "player dave is not in the whitelist")
}

func TestList(t *testing.T) {
	s, store, _ := newTestSurface(t)
	reply, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, "The whitelist is empty.", reply)

	require.NoError(t, store.Grant("bob", now.Add(time.Hour)))
	require.NoError(t, store.Grant("alice", now.Add(-time.Hour)))
	reply, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, "2 whitelisted:\n  alice: expired\n  bob: 1h", reply)
}

func TestPersistenceFailureWarns(t *testing.T) {
	s, store, backend := newTestSurface(t)
	backend.FailWith(errors.New("read-only filesystem"))

	reply, err := s.Grant("alice", "1h")
	require.NoError(t, err)
	assert.Equal(t, "Added alice to the whitelist for 1h."+saveWarning, reply)
	_, ok := store.Expiration("alice")
	assert.True(t, ok)

	reply, err = s.Prolong("alice", "1h")
	require.NoError(t, err)
	assert.Contains(t, reply, saveWarning)

	reply, err = s.Revoke("alice")
	require.NoError(t, err)
	assert.Contains(t, reply, saveWarning)
}
