package util

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raids-lab/cobrew/dao/model"
)

func TestTokenManagerRoundTrip(t *testing.T) {
	tm := NewTokenManager("access", "refresh", 1, 24)
	msg := &JWTMessage{UserID: uuid.New(), Email: "alice@example.com", RolePlatform: model.RoleUser}

	access, refresh, err := tm.CreateTokens(msg)
	require.NoError(t, err)

	got, err := tm.CheckToken(access)
	require.NoError(t, err)
	assert.Equal(t, *msg, got)

	_, err = tm.CheckToken(refresh)
	assert.Error(t, err, "a refresh token must not pass as an access token")

	got, err = tm.CheckRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, msg.UserID, got.UserID)

	_, err = tm.CheckRefreshToken(access)
	assert.Error(t, err)
}

func TestRespondSigner(t *testing.T) {
	signer := NewRespondSigner("secret", time.Hour)
	app, owner := uuid.New(), uuid.New()

	token, err := signer.Sign(app, RespondAccept, owner)
	require.NoError(t, err)

	got, err := signer.Verify(token, app, RespondAccept)
	require.NoError(t, err)
	assert.Equal(t, owner, got)

	_, err = signer.Verify(token, app, RespondReject)
	assert.ErrorIs(t, err, ErrRespondTokenMismatch)

	_, err = signer.Verify(token, uuid.New(), RespondAccept)
	assert.ErrorIs(t, err, ErrRespondTokenMismatch)

	_, err = NewRespondSigner("other", time.Hour).Verify(token, app, RespondAccept)
	assert.Error(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = signer.Verify(token, app, RespondAccept)
	assert.Error(t, err, "expired tokens are refused")
}

func TestRespondLinks(t *testing.T) {
	links := &RespondLinks{BaseURL: "https://api.cobrew.app/", Signer: NewRespondSigner("secret", time.Hour)}
	app, owner := uuid.New(), uuid.New()

	accept, reject, err := links.Pair(app, owner)
	require.NoError(t, err)

	u, err := url.Parse(accept)
	require.NoError(t, err)
	assert.Equal(t, "/applications/respond", u.Path)
	assert.Equal(t, app.String(), u.Query().Get("applicationId"))
	assert.Equal(t, "accept", u.Query().Get("action"))

	_, err = links.Signer.Verify(u.Query().Get("token"), app, RespondAccept)
	assert.NoError(t, err)

	u, err = url.Parse(reject)
	require.NoError(t, err)
	assert.Equal(t, "reject", u.Query().Get("action"))
}

func TestParseRespondAction(t *testing.T) {
	a, ok := ParseRespondAction("accept")
	assert.True(t, ok)
	assert.Equal(t, RespondAccept, a)
	_, ok = ParseRespondAction("approve")
	assert.False(t, ok)
}
