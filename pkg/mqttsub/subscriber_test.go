package mqttsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sguter90/heatmaestro/pkg/decoder"
	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/sguter90/heatmaestro/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscriber(ingest IngestFunc) *Subscriber {
	cfg := settings.Defaults().MQTT
	cfg.Broker = "tcp://127.0.0.1:1"
	return NewSubscriber(cfg, ingest, nil)
}

func TestHandleMessage(t *testing.T) {
	testCases := []struct {
		name     string
		topic    string
		payload  string
		expected models.ReadingInput
	}{
		{
			name:     "Origin from payload",
			topic:    "heatmaestro/readings/lab",
			payload:  `{"temperature": 23.4, "humidity": 48, "origin": "raspberry-picoW"}`,
			expected: models.ReadingInput{Temperature: 23.4, Humidity: 48, Origin: "raspberry-picoW"},
		},
		{
			name:     "Origin defaults to topic",
			topic:    "heatmaestro/readings/raspberry-1",
			payload:  `{"temperatura": 25, "humedad": 52}`,
			expected: models.ReadingInput{Temperature: 25, Humidity: 52, Origin: "heatmaestro/readings/raspberry-1"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got []models.ReadingInput
			s := newTestSubscriber(func(_ context.Context, in models.ReadingInput) error {
				got = append(got, in)
				return nil
			})

			require.NoError(t, s.handleMessage(tc.topic, []byte(tc.payload)))
			require.Len(t, got, 1)
			assert.Equal(t, tc.expected, got[0])
		})
	}
}

func TestHandleMessage_MalformedIsDropped(t *testing.T) {
	called := false
	s := newTestSubscriber(func(context.Context, models.ReadingInput) error {
		called = true
		return nil
	})

	for _, payload := range []string{`not json`, `{"temperature": 20}`, `{"temperature": "x", "humidity": 1}`} {
		err := s.handleMessage("heatmaestro/readings/x", []byte(payload))
		require.Error(t, err, payload)
		assert.True(t, decoder.IsClientError(err), payload)
	}
	assert.False(t, called)
}

func TestHandleMessage_IngestError(t *testing.T) {
	boom := errors.New("store unavailable")
	s := newTestSubscriber(func(context.Context, models.ReadingInput) error { return boom })

	err := s.handleMessage("t", []byte(`{"temperature": 20, "humidity": 40}`))
	assert.ErrorIs(t, err, boom)
	assert.False(t, decoder.IsClientError(err))
}

func TestStart_CancelledContext(t *testing.T) {
	s := newTestSubscriber(func(context.Context, models.ReadingInput) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := s.Start(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), connectTimeout+5*time.Second)
}

func TestClose_WithoutConnection(t *testing.T) {
	s := newTestSubscriber(nil)
	assert.NotPanics(t, s.Close)
}
