package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partyline/server/internal/types"
)

func newTestAuthenticator() *Authenticator {
	return NewAuthenticator("a-very-long-secret-used-only-in-tests", "wss://party.example.com/ws", "partyline-1")
}

func TestSignAndVerifyInvite(t *testing.T) {
	a := newTestAuthenticator()

	token, err := a.SignInvite()
	require.NoError(t, err)

	require.NoError(t, a.VerifyInvite(token))
}

func TestJoinThenAuthenticateRoundTrip(t *testing.T) {
	// Mirrors spec.md §8's round-trip law: authenticate with a token
	// produced by join returns the same peer id.
	a := newTestAuthenticator()

	invite, err := a.SignInvite()
	require.NoError(t, err)
	require.NoError(t, a.VerifyInvite(invite))

	session, err := a.SignSession(types.PeerID("peer-123"))
	require.NoError(t, err)

	peerID, err := a.VerifySession(session)
	require.NoError(t, err)
	assert.Equal(t, types.PeerID("peer-123"), peerID)
}

func TestVerifyInvite_WrongServerRejected(t *testing.T) {
	minter := NewAuthenticator("a-very-long-secret-used-only-in-tests", "wss://other.example.com/ws", "other-server")
	verifier := newTestAuthenticator()

	token, err := minter.SignInvite()
	require.NoError(t, err)

	err = verifier.VerifyInvite(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifySession_WrongSecretRejected(t *testing.T) {
	minter := NewAuthenticator("a-different-secret-entirely-long-enough", "wss://party.example.com/ws", "partyline-1")
	verifier := newTestAuthenticator()

	token, err := minter.SignSession(types.PeerID("peer-1"))
	require.NoError(t, err)

	_, err = verifier.VerifySession(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyInvite_GarbageToken(t *testing.T) {
	a := newTestAuthenticator()
	err := a.VerifyInvite("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifySession_UsingInviteTokenRejected(t *testing.T) {
	// An invite token has no "i" claim, so a session-verify of it must fail.
	a := newTestAuthenticator()
	invite, err := a.SignInvite()
	require.NoError(t, err)

	_, err = a.VerifySession(invite)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
