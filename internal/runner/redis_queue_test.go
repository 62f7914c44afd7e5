package runner

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ipvm-wg/homestar/internal/logging"
)

// TestRedisQueuePublishSubscribeRoundTrips is an integration test and
// assumes Redis is running on localhost:6379, the same assumption the
// teacher's workflow-runner integration suite makes.
func TestRedisQueuePublishSubscribeRoundTrips(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Ping(ctx).Err(), "Redis must be running on localhost:6379")

	log := logging.New("error", "json")
	queue := NewRedisQueue(client, log)

	topic := "homestar-test-notifications"
	received := make(chan []byte, 1)

	err := queue.Subscribe(ctx, topic, func(_ context.Context, msg []byte) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond) // let the subscription confirm before publishing

	require.NoError(t, queue.Publish(ctx, topic, []byte("hello-workflow")))

	select {
	case msg := <-received:
		require.Equal(t, "hello-workflow", string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive published message within timeout")
	}

	require.NoError(t, queue.Close())
}
