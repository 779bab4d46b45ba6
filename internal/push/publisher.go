package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"pantrywatch/internal/notify"
	"pantrywatch/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueueNotifier publishes rendered payloads to an SQS queue for a downstream
// delivery worker. Enqueueing counts as shown: the worker owns the last mile
// and its failures are retried on its side, not replayed through the engine's
// bookkeeping.
type QueueNotifier struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   types.Logger
}

// NewQueueNotifier creates a QueueNotifier targeting the given queue.
func NewQueueNotifier(client SQSSender, queueURL string, clock types.Clock, logger types.Logger) *QueueNotifier {
	return &QueueNotifier{
		client:   client,
		queueURL: queueURL,
		clock:    clock,
		logger:   logger,
	}
}

// Send serializes the payload and enqueues it.
func (n *QueueNotifier) Send(ctx context.Context, p notify.Payload) (bool, error) {
	msg := newMessage(p, n.clock.Now())
	body, err := json.Marshal(msg)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode push message", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if _, err := n.client.SendMessage(ctx, input); err != nil {
		return false, types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to enqueue push message to %s", n.queueURL), err)
	}

	n.logger.Info("push message enqueued", "messageId", msg.MessageID, "types", msg.Types)
	return true, nil
}

var _ notify.Notifier = (*QueueNotifier)(nil)
