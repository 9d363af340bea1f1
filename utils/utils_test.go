package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidInterval(t *testing.T) {
	for _, ok := range []string{"Minute", "Hour", "Day", "Week", "Month", "Quarter", "Year"} {
		assert.True(t, IsValidInterval(ok), ok)
	}
	for _, bad := range []string{"", "day", "Second", "Hour; DROP TABLE"} {
		assert.False(t, IsValidInterval(bad), bad)
	}
}

func TestNormalizeInterval(t *testing.T) {
	got, ok := NormalizeInterval("day")
	assert.True(t, ok)
	assert.Equal(t, "Day", got)

	got, ok = NormalizeInterval("QUARTER")
	assert.True(t, ok)
	assert.Equal(t, "Quarter", got)

	_, ok = NormalizeInterval("fortnight")
	assert.False(t, ok)
}

func TestSessionToken_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, expiresAt, err := issuer.GenerateSessionToken("sess-42")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 2*time.Second)

	claims, err := issuer.ValidateSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-42", claims.SessionID)
	assert.Equal(t, "sess-42", claims.Subject)
}

func TestSessionToken_Rejections(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, _, err := issuer.GenerateSessionToken("sess-1")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenIssuer("other", time.Hour).ValidateSessionToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		late := NewTokenIssuer("secret", time.Hour)
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.ValidateSessionToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.ValidateSessionToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &SessionClaims{SessionID: "sess-1"})
		s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.ValidateSessionToken(s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestGenerateIDs(t *testing.T) {
	a, b := GenerateSessionID(), GenerateSessionID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)

	id, err := uuid.Parse(GenerateEventID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}
