package apiclient

import (
	"context"
	"errors"
	"fmt"

	"go-logrelay/internal/models"
)

// ErrSendFailed wraps every failed delivery.
var ErrSendFailed = errors.New("send failed")

// Sender delivers entries one per request. Only 2xx responses count as delivered.
type Sender struct {
	client *Client
}

// NewSender creates a Sender on top of client.
func NewSender(client *Client) *Sender {
	return &Sender{client: client}
}

func (s *Sender) Send(ctx context.Context, endpoint string, entry models.Entry) error {
	resp, err := s.client.Post(ctx, endpoint, entry)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: %s returned status %d", ErrSendFailed, endpoint, resp.StatusCode())
	}
	return nil
}
