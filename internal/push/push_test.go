package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantrywatch/internal/notify"
	"pantrywatch/internal/types"
)

type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

type nopLogger struct{}

func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) With(...any) types.Logger { return nopLogger{} }

var testPayload = notify.Payload{
	Title:   "Items Need Your Attention!",
	Content: "Items Expired",
	Body:    "⚠️ Expired Items:\n• Milk",
	Types:   "expired",
	Items:   []string{"Milk"},
}

func testClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func TestRelaySendSuccess(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.Client(), srv.URL, testClock(), nopLogger{})
	shown, err := n.Send(context.Background(), testPayload)
	require.NoError(t, err)
	assert.True(t, shown)
	assert.Equal(t, "Items Need Your Attention!", got.Title)
	assert.Equal(t, "expired", got.Types)
	assert.NotEmpty(t, got.MessageID)
}

func TestRelayPermissionRevokedIsNotShown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.Client(), srv.URL, testClock(), nopLogger{})
	shown, err := n.Send(context.Background(), testPayload)
	require.NoError(t, err)
	assert.False(t, shown)
}

func TestRelayServerErrorIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.Client(), srv.URL, testClock(), nopLogger{})
	shown, err := n.Send(context.Background(), testPayload)
	require.Error(t, err)
	assert.False(t, shown)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamPushRelay))
}

func TestRelayBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewRelayNotifier(srv.Client(), srv.URL, testClock(), nopLogger{})
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err := n.Send(ctx, testPayload)
		require.Error(t, err)
	}

	// Breaker tripped: the next call fails without reaching the relay.
	srv.Close()
	shown, err := n.Send(ctx, testPayload)
	require.Error(t, err)
	assert.False(t, shown)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamPushRelay))
}

type fakeSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, params)
	return &sqs.SendMessageOutput{}, f.err
}

func TestQueueNotifierEnqueues(t *testing.T) {
	client := &fakeSQS{}
	n := NewQueueNotifier(client, "https://sqs.test/queue", testClock(), nopLogger{})

	shown, err := n.Send(context.Background(), testPayload)
	require.NoError(t, err)
	assert.True(t, shown)

	require.Len(t, client.inputs, 1)
	assert.Equal(t, "https://sqs.test/queue", *client.inputs[0].QueueUrl)

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(*client.inputs[0].MessageBody), &msg))
	assert.Equal(t, []string{"Milk"}, msg.Items)
}

func TestQueueNotifierSendFailure(t *testing.T) {
	client := &fakeSQS{err: errors.New("boom")}
	n := NewQueueNotifier(client, "https://sqs.test/queue", testClock(), nopLogger{})

	shown, err := n.Send(context.Background(), testPayload)
	require.Error(t, err)
	assert.False(t, shown)
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamQueue))
}

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

type stubNotifier struct {
	shown bool
	err   error
}

func (s *stubNotifier) Send(context.Context, notify.Payload) (bool, error) {
	return s.shown, s.err
}

func TestInstrumentedNotifierRecordsOutcome(t *testing.T) {
	cases := []struct {
		name  string
		shown bool
		err   error
		want  string
	}{
		{"success", true, nil, "success"},
		{"declined", false, nil, "declined"},
		{"error", false, errors.New("boom"), "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cw := &fakeCloudWatch{}
			metrics := NewDeliveryMetrics(cw, nopLogger{})
			n := NewInstrumentedNotifier(&stubNotifier{shown: tc.shown, err: tc.err}, metrics, "relay", testClock())

			shown, err := n.Send(context.Background(), testPayload)
			assert.Equal(t, tc.shown, shown)
			assert.Equal(t, tc.err, err)

			// One latency datum plus one attempt datum.
			require.Len(t, cw.inputs, 2)
			attempt := cw.inputs[1].MetricData[0]
			assert.Equal(t, "DeliveryAttempt", *attempt.MetricName)
			var result string
			for _, d := range attempt.Dimensions {
				if *d.Name == "Result" {
					result = *d.Value
				}
			}
			assert.Equal(t, tc.want, result)
		})
	}
}
