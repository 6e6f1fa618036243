package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"poshub-api/domain"
)

const defaultSendTimeout = 5 * time.Second

// Queue submits created orders to the outbound orders queue. Sends are bounded
// by a timeout so a slow queue cannot stall the request path.
type Queue struct {
	client      *azqueue.QueueClient
	sendTimeout time.Duration
}

// NewQueue creates a queue client from the given connection string.
func NewQueue(connStr, queueName string, sendTimeout time.Duration) (*Queue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	client, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Queue{client: client, sendTimeout: sendTimeout}, nil
}

// Send serializes the order and enqueues it, returning the queue message ID.
func (q *Queue) Send(ctx context.Context, order domain.Order) (string, error) {
	data, err := sonic.Marshal(order)
	if err != nil {
		return "", err
	}

	sendCtx, cancel := context.WithTimeout(ctx, q.sendTimeout)
	defer cancel()

	resp, err := q.client.EnqueueMessage(sendCtx, string(data), nil)
	if err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 || resp.Messages[0].MessageID == nil {
		return "", errors.New("queue returned no message id")
	}
	return *resp.Messages[0].MessageID, nil
}
