package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/addisbroker/realtime/internal/models"
)

// GetConversation fetches the message history with counterpartID.
func (c *APIClient) GetConversation(ctx context.Context, counterpartID string) ([]models.RawMessage, error) {
	body, err := c.get(ctx, "/messages/conversation/"+url.PathEscape(counterpartID))
	if err != nil {
		return nil, err
	}
	items, err := decodeList[models.RawMessage](body, "messages", "data")
	if err != nil {
		return nil, fmt.Errorf("decoding conversation: %w", err)
	}
	return items, nil
}

// SendMessage persists a message and returns the canonical record.
func (c *APIClient) SendMessage(ctx context.Context, recipientID, content string) (models.RawMessage, error) {
	body, err := c.post(ctx, "/messages", map[string]string{
		"recipientId": recipientID,
		"content":     content,
	})
	if err != nil {
		return models.RawMessage{}, err
	}
	msg, err := decodeObject[models.RawMessage](body, "message", "data")
	if err != nil {
		return models.RawMessage{}, fmt.Errorf("decoding sent message: %w", err)
	}
	return msg, nil
}

func (c *APIClient) MarkConversationRead(ctx context.Context, counterpartID string) error {
	_, err := c.patch(ctx, "/messages/conversation/"+url.PathEscape(counterpartID)+"/read", nil)
	return err
}
