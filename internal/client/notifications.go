package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/addisbroker/realtime/internal/models"
)

// GetNotifications fetches every notification of userID.
func (c *APIClient) GetNotifications(ctx context.Context, userID string) ([]models.RawNotification, error) {
	body, err := c.get(ctx, "/notifications/user/"+url.PathEscape(userID))
	if err != nil {
		return nil, err
	}
	items, err := decodeList[models.RawNotification](body, "notifications", "data")
	if err != nil {
		return nil, fmt.Errorf("decoding notifications: %w", err)
	}
	return items, nil
}

func (c *APIClient) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := c.patch(ctx, "/notifications/"+url.PathEscape(id)+"/read", nil)
	return err
}

func (c *APIClient) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := c.patch(ctx, "/notifications/user/"+url.PathEscape(userID)+"/read-all", nil)
	return err
}

func (c *APIClient) DeleteNotification(ctx context.Context, id string) error {
	_, err := c.delete(ctx, "/notifications/"+url.PathEscape(id))
	return err
}

func (c *APIClient) ClearNotifications(ctx context.Context, userID string) error {
	_, err := c.delete(ctx, "/notifications/user/"+url.PathEscape(userID))
	return err
}
