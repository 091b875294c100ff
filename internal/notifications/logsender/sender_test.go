package logsender

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/palmiyeitadmin/monitorsystem/internal/notifications"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSender_Send(t *testing.T) {
	var buf bytes.Buffer
	s := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	assert.Equal(t, notifications.ChannelTypeLog, s.Type())

	err := s.Send(context.Background(), notifications.Notification{
		To:      "ops",
		Subject: "[Host Down] web-1",
		Body:    "Host web-1 is DOWN",
		Type:    notifications.MessageTypeHostDown,
	})
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "notification", record["msg"])
	assert.Equal(t, "ops", record["to"])
	assert.Equal(t, "host_down", record["type"])
	assert.Equal(t, "[Host Down] web-1", record["subject"])
}

func TestSender_SendCanceled(t *testing.T) {
	var buf bytes.Buffer
	s := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Send(ctx, notifications.Notification{To: "ops"})
	require.Error(t, err)

	var re *notifications.RetryableError
	require.ErrorAs(t, err, &re)
	assert.True(t, re.IsRetryable())
	assert.Zero(t, buf.Len())
}
