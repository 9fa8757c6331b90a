package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/addisbroker/realtime/internal/models"
	"github.com/addisbroker/realtime/internal/utils"
)

type authResponse struct {
	AccessToken  string   `json:"accessToken"`
	Token        string   `json:"token"`
	RefreshToken string   `json:"refreshToken"`
	User         authUser `json:"user"`
}

type authUser struct {
	ID       string `json:"id"`
	LegacyID string `json:"_id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

// Login authenticates with email and password, stores the token pair and
// returns the logged in user.
func (c *APIClient) Login(ctx context.Context, email, password string) (models.Participant, error) {
	body, err := c.doRequestJSON(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return models.Participant{}, err
	}

	res, err := decodeObject[authResponse](body, "data")
	if err != nil {
		return models.Participant{}, fmt.Errorf("decoding login response: %w", err)
	}
	access := res.AccessToken
	if access == "" {
		access = res.Token
	}
	if access == "" {
		return models.Participant{}, errors.New("login failed: missing access token")
	}

	pair := utils.TokenPair{AccessToken: access, RefreshToken: res.RefreshToken}
	c.SetTokens(pair)
	if c.tokens != nil {
		if err := c.tokens.Save(pair); err != nil {
			c.log.Warn().Err(err).Msg("failed to persist token pair")
		}
	}

	user := models.Participant{ID: res.User.ID, Name: res.User.Name, Avatar: res.User.Avatar}
	if user.ID == "" {
		user.ID = res.User.LegacyID
	}
	if user.ID == "" {
		claims, err := utils.GetClaimsFromToken(access)
		if err != nil {
			return models.Participant{}, fmt.Errorf("resolving user: %w", err)
		}
		user.ID = claims.UserID
		if user.Name == "" {
			user.Name = claims.Name
		}
	}
	return user, nil
}

// CurrentUser resolves the user behind the current access token without a
// network call.
func (c *APIClient) CurrentUser() (models.Participant, error) {
	token := c.AccessToken()
	if token == "" {
		return models.Participant{}, utils.ErrNoToken
	}
	claims, err := utils.GetClaimsFromToken(token)
	if err != nil {
		return models.Participant{}, err
	}
	if claims.Expired(time.Now()) && c.tokenPair().RefreshToken == "" {
		return models.Participant{}, errors.New("access token expired")
	}
	return models.Participant{ID: claims.UserID, Name: claims.Name}, nil
}

// Logout forgets the token pair locally and in the token store.
func (c *APIClient) Logout() error {
	pair := c.tokenPair()
	utils.AuthCache.Delete(pair.AccessToken)
	utils.AuthCache.Delete(pair.RefreshToken)

	c.SetTokens(utils.TokenPair{})
	if c.tokens != nil {
		if err := c.tokens.Clear(); err != nil {
			return fmt.Errorf("error clearing token pair: %w", err)
		}
	}
	return nil
}

func (c *APIClient) refreshTokens(ctx context.Context) error {
	body, err := c.doRequestJSON(ctx, "/auth/refresh", map[string]string{
		"refreshToken": c.tokenPair().RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	res, err := decodeObject[authResponse](body, "data")
	if err != nil {
		return err
	}
	access := res.AccessToken
	if access == "" {
		access = res.Token
	}
	if access == "" || res.RefreshToken == "" {
		return errors.New("refresh failed: missing tokens")
	}

	pair := utils.TokenPair{AccessToken: access, RefreshToken: res.RefreshToken}
	c.SetTokens(pair)
	if c.tokens != nil {
		_ = c.tokens.Save(pair)
	}
	return nil
}

// doRequestJSON posts without the refresh-and-retry wrapper; the auth
// endpoints must not recurse into a refresh.
func (c *APIClient) doRequestJSON(ctx context.Context, path string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, path, payload)
}
