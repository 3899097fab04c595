package services

import (
	"context"
	"testing"
	"time"

	"visitguard/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestQueue(t *testing.T) (*miniredis.Miniredis, *RedisNotificationQueue) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisNotificationQueue(client, "")
}

func TestRedisNotificationQueue_FIFO(t *testing.T) {
	_, queue := setupTestQueue(t)
	ctx := context.Background()

	for _, kind := range []string{models.NotificationPanicAlert, models.NotificationMissedCheckIn} {
		require.NoError(t, queue.Notify(ctx, models.Notification{
			VisitID: "visit-1",
			Kind:    kind,
			Recipients: []models.NotificationRecipient{
				{Name: "Central", Channel: models.ChannelSMS, Address: "+5511900000000"},
			},
		}))
	}

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	first, err := queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, models.NotificationPanicAlert, first.Kind)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())
	require.Len(t, first.Recipients, 1)
	assert.Equal(t, "+5511900000000", first.Recipients[0].Address)

	second, err := queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, models.NotificationMissedCheckIn, second.Kind)
	assert.NotEqual(t, first.ID, second.ID)

	n, err = queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisNotificationQueue_KeepsGivenIDAndAttempts(t *testing.T) {
	_, queue := setupTestQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Notify(ctx, models.Notification{ID: "n-7", Attempts: 2}))

	got, err := queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "n-7", got.ID)
	assert.Equal(t, 2, got.Attempts)
}

func TestRedisNotificationQueue_EmptyDequeue(t *testing.T) {
	_, queue := setupTestQueue(t)

	got, err := queue.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisNotificationQueue_DropsUndecodablePayload(t *testing.T) {
	mr, queue := setupTestQueue(t)
	ctx := context.Background()

	_, err := mr.Lpush(DefaultNotificationQueueKey, "{not json")
	require.NoError(t, err)
	require.NoError(t, queue.Notify(ctx, models.Notification{ID: "n-ok"}))

	got, err := queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = queue.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "n-ok", got.ID)
}

func TestRedisNotificationQueue_RedisDown(t *testing.T) {
	mr, queue := setupTestQueue(t)
	mr.Close()

	err := queue.Notify(context.Background(), models.Notification{ID: "n-1"})
	assert.Error(t, err)

	_, err = queue.Dequeue(context.Background(), time.Second)
	assert.Error(t, err)
}
