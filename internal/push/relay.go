// Package push delivers rendered notifications to the user's devices. Two
// transports are provided: an HTTP push relay guarded by a circuit breaker,
// and an SQS queue for deployments where a downstream worker owns the last
// mile. A metrics decorator records delivery outcomes on either transport.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"pantrywatch/internal/notify"
	"pantrywatch/internal/types"
)

// Message is the wire shape both transports send.
type Message struct {
	MessageID string    `json:"messageId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Body      string    `json:"body"`
	Types     string    `json:"types"`
	Items     []string  `json:"items"`
	SentAt    time.Time `json:"sentAt"`
}

func newMessage(p notify.Payload, at time.Time) Message {
	return Message{
		MessageID: uuid.NewString(),
		Title:     p.Title,
		Content:   p.Content,
		Body:      p.Body,
		Types:     p.Types,
		Items:     p.Items,
		SentAt:    at,
	}
}

// RelayNotifier posts the payload to an HTTP push relay. Calls are wrapped in
// a circuit breaker so a dead relay degrades to skipped deliveries instead of
// hammering it from every retry alarm.
//
// A 403 from the relay means the device revoked notification permission; that
// is reported as not-shown with no error, so delivery bookkeeping does not
// advance.
type RelayNotifier struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	url     string
	clock   types.Clock
	logger  types.Logger
}

// NewRelayNotifier creates a RelayNotifier targeting the relay URL.
func NewRelayNotifier(client *http.Client, url string, clock types.Clock, logger types.Logger) *RelayNotifier {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "push-relay",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &RelayNotifier{
		client:  client,
		breaker: cb,
		url:     url,
		clock:   clock,
		logger:  logger,
	}
}

// Send posts the payload to the relay.
func (n *RelayNotifier) Send(ctx context.Context, p notify.Payload) (bool, error) {
	msg := newMessage(p, n.clock.Now())
	body, err := json.Marshal(msg)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode push message", err)
	}

	resp, err := n.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		r, err := n.client.Do(req)
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= 500 {
			r.Body.Close()
			return nil, fmt.Errorf("relay returned %d", r.StatusCode)
		}
		return r, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, types.NewAppError(types.ErrCodeUpstreamPushRelay,
				"push relay circuit breaker is open", err)
		}
		return false, types.NewAppError(types.ErrCodeUpstreamPushRelay, "push relay request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		n.logger.Warn("push relay reports notification permission revoked", "messageId", msg.MessageID)
		return false, nil
	case resp.StatusCode >= 400:
		return false, types.NewAppError(types.ErrCodeUpstreamPushRelay,
			fmt.Sprintf("push relay returned %d", resp.StatusCode), nil)
	}

	n.logger.Info("push message relayed", "messageId", msg.MessageID, "types", msg.Types)
	return true, nil
}

var _ notify.Notifier = (*RelayNotifier)(nil)
