package server

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRoster_Claim(t *testing.T) {
	req := require.New(t)
	roster := NewRoster()
	alice := uuid.NewString()
	bob := uuid.NewString()

	req.NoError(roster.Claim(alice, "alice"))
	req.ErrorIs(roster.Claim(bob, "alice"), ErrUsernameRejected)
	req.ErrorIs(roster.Claim(bob, ""), ErrUsernameRejected)
	req.NoError(roster.Claim(bob, "bob"))

	req.Equal([]string{"alice", "bob"}, roster.Users())
	req.Equal(2, roster.Len())
}

func TestRoster_ClaimReplacesPreviousName(t *testing.T) {
	req := require.New(t)
	roster := NewRoster()
	conn := uuid.NewString()

	req.NoError(roster.Claim(conn, "alice"))
	req.NoError(roster.Claim(conn, "alicia"))

	req.Equal([]string{"alicia"}, roster.Users())
	username, ok := roster.Username(conn)
	req.True(ok)
	req.Equal("alicia", username)
}

func TestRoster_Release(t *testing.T) {
	req := require.New(t)
	roster := NewRoster()
	conn := uuid.NewString()
	req.NoError(roster.Claim(conn, "alice"))

	username, ok := roster.Release(conn)
	req.True(ok)
	req.Equal("alice", username)
	req.Empty(roster.Users())

	_, ok = roster.Release(conn)
	req.False(ok)
	req.NoError(roster.Claim(uuid.NewString(), "alice"))
}

func TestRoster_ConcurrentClaimsGrantEachNameOnce(t *testing.T) {
	roster := NewRoster()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if roster.Claim(uuid.NewString(), "alice") == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, granted)
	require.Equal(t, []string{"alice"}, roster.Users())
}
