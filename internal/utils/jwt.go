package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
)

type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenStore persists the token pair between runs.
type TokenStore interface {
	Load() (TokenPair, error)
	Save(TokenPair) error
	Clear() error
}

var ErrNoToken = errors.New("no stored token")

// FileTokenStore keeps the token pair in a JSON file readable only by the
// current user.
type FileTokenStore struct {
	Path string
}

func DefaultTokenPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".addis-broker.json"
	}
	return filepath.Join(homeDir, ".addis-broker.json")
}

func (s FileTokenStore) Save(tokenPair TokenPair) error {
	data, err := json.Marshal(tokenPair)
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0600)
}

func (s FileTokenStore) Load() (TokenPair, error) {
	var tokenPair TokenPair
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return tokenPair, ErrNoToken
		}
		return tokenPair, err
	}
	if err := json.Unmarshal(data, &tokenPair); err != nil {
		return tokenPair, err
	}
	if tokenPair.AccessToken == "" {
		return tokenPair, ErrNoToken
	}
	return tokenPair, nil
}

func (s FileTokenStore) Clear() error {
	err := os.Remove(s.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

const (
	keyringService = "addis-broker"
	keyringItem    = "token-pair"
)

// KeyringTokenStore keeps the token pair in the OS keyring.
type KeyringTokenStore struct {
	ring keyring.Keyring
}

func NewKeyringTokenStore(ring keyring.Keyring) *KeyringTokenStore {
	return &KeyringTokenStore{ring: ring}
}

// OpenKeyring opens the system keyring, falling back to an encrypted file
// under dir when no native backend is available.
func OpenKeyring(dir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt(keyringService + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

func (s *KeyringTokenStore) Save(tokenPair TokenPair) error {
	data, err := json.Marshal(tokenPair)
	if err != nil {
		return err
	}
	if err := s.ring.Set(keyring.Item{Key: keyringItem, Data: data}); err != nil {
		return fmt.Errorf("setting credential %q: %w", keyringItem, err)
	}
	return nil
}

func (s *KeyringTokenStore) Load() (TokenPair, error) {
	var tokenPair TokenPair
	item, err := s.ring.Get(keyringItem)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return tokenPair, ErrNoToken
		}
		return tokenPair, fmt.Errorf("getting credential %q: %w", keyringItem, err)
	}
	if err := json.Unmarshal(item.Data, &tokenPair); err != nil {
		return tokenPair, err
	}
	if tokenPair.AccessToken == "" {
		return tokenPair, ErrNoToken
	}
	return tokenPair, nil
}

func (s *KeyringTokenStore) Clear() error {
	err := s.ring.Remove(keyringItem)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", keyringItem, err)
	}
	return nil
}

// Claims is the subset of access token claims the client relies on.
type Claims struct {
	UserID    string
	Name      string
	ExpiresAt time.Time
}

func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// GetClaimsFromToken decodes the access token without verifying its
// signature; the backend verifies it on every request. Decoded claims are
// cached in AuthCache.
func GetClaimsFromToken(token string) (Claims, error) {
	if cached, found := AuthCache.Get(token); found {
		return cached.(Claims), nil
	}

	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mapClaims); err != nil {
		return Claims{}, fmt.Errorf("parsing token: %w", err)
	}

	claims := Claims{
		UserID: firstClaim(mapClaims, "userId", "userID", "id", "_id", "sub"),
		Name:   firstClaim(mapClaims, "name", "username", "email"),
	}
	if claims.UserID == "" {
		return Claims{}, errors.New("token carries no user id")
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	AuthCache.Set(token, claims, cache.DefaultExpiration)
	return claims, nil
}

func firstClaim(claims jwt.MapClaims, keys ...string) string {
	for _, k := range keys {
		switch v := claims[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
