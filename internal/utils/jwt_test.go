package utils

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestGetClaimsFromToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, jwt.MapClaims{"userId": "665f1c", "name": "Abebe", "exp": exp.Unix()})

	claims, err := GetClaimsFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "665f1c", claims.UserID)
	assert.Equal(t, "Abebe", claims.Name)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.False(t, claims.Expired(time.Now()))

	_, found := AuthCache.Get(token)
	assert.True(t, found)
}

func TestGetClaimsFromToken_NumericID(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"userID": float64(42)})
	claims, err := GetClaimsFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
}

func TestGetClaimsFromToken_MissingUser(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"name": "nobody"})
	_, err := GetClaimsFromToken(token)
	assert.Error(t, err)
}

func TestGetClaimsFromToken_Garbage(t *testing.T) {
	_, err := GetClaimsFromToken("not-a-token")
	assert.Error(t, err)
}

func TestFileTokenStore(t *testing.T) {
	store := FileTokenStore{Path: filepath.Join(t.TempDir(), "tokens.json")}

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoToken)

	pair := TokenPair{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, store.Save(pair))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, pair, loaded)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestKeyringTokenStore(t *testing.T) {
	store := NewKeyringTokenStore(keyring.NewArrayKeyring(nil))

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoToken)

	pair := TokenPair{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, store.Save(pair))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, pair, loaded)

	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoToken)
}
