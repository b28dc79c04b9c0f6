// Package auth mints and verifies the two short opaque tokens the
// coordination engine relies on: a join-invite (issued out-of-band, lets a
// client call join) and a session token (issued by join, consumed by
// authenticate on reconnect). Grounded on the teacher's
// internal/v1/auth.Validator shape, but HS256/symmetric-secret instead of
// Auth0's JWKS, per spec.md's "pluggable symmetric-key authenticator".
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/partyline/server/internal/types"
)

// ErrInvalidToken is returned (wrapped) for any verification failure: bad
// signature, wrong claim type, or a WSURL/ServerName mismatch.
var ErrInvalidToken = errors.New("invalid token")

// inviteClaims binds a token to this server instance without naming a peer.
type inviteClaims struct {
	WSURL      string `json:"u"`
	ServerName string `json:"n"`
	jwt.RegisteredClaims
}

// sessionClaims additionally binds the token to a specific peer id.
type sessionClaims struct {
	WSURL      string `json:"u"`
	ServerName string `json:"n"`
	PeerID     string `json:"i"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies join-invite and session tokens scoped to
// one server instance (its WSURL and ServerName). Both claim sets use the
// single field name "u" for ws_url end to end, resolving the distillation's
// Open Question about divergent field names (spec.md §9).
type Authenticator struct {
	secret     []byte
	wsURL      string
	serverName string
}

// NewAuthenticator builds an Authenticator bound to this server's public
// ws_url and name; verification rejects any token minted for a different
// server.
func NewAuthenticator(secret, wsURL, serverName string) *Authenticator {
	return &Authenticator{secret: []byte(secret), wsURL: wsURL, serverName: serverName}
}

// SignInvite mints a join-invite token, typically handed out of band (e.g.
// by an operator tool, not by this engine) to let a client call join.
func (a *Authenticator) SignInvite() (string, error) {
	claims := inviteClaims{
		WSURL:      a.wsURL,
		ServerName: a.serverName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// SignSession mints a session token binding a peer id to this server,
// returned from a successful join and consumed by authenticate on
// reconnect.
func (a *Authenticator) SignSession(peerID types.PeerID) (string, error) {
	claims := sessionClaims{
		WSURL:      a.wsURL,
		ServerName: a.serverName,
		PeerID:     string(peerID),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// VerifyInvite parses tokenString as a join-invite and checks it was minted
// for this server.
func (a *Authenticator) VerifyInvite(tokenString string) error {
	claims := &inviteClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, a.keyFunc, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.WSURL != a.wsURL || claims.ServerName != a.serverName {
		return fmt.Errorf("%w: server mismatch", ErrInvalidToken)
	}
	return nil
}

// VerifySession parses tokenString as a session token, checks it was minted
// for this server, and returns the embedded peer id.
func (a *Authenticator) VerifySession(tokenString string) (types.PeerID, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, a.keyFunc, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.WSURL != a.wsURL || claims.ServerName != a.serverName {
		return "", fmt.Errorf("%w: server mismatch", ErrInvalidToken)
	}
	if claims.PeerID == "" {
		return "", fmt.Errorf("%w: missing peer id", ErrInvalidToken)
	}
	return types.PeerID(claims.PeerID), nil
}

func (a *Authenticator) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return a.secret, nil
}
