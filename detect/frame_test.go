package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside-data/playerlock/internal/monitoring"
)

func TestParseFrame(t *testing.T) {
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	t.Run("full detector event", func(t *testing.T) {
		data := []byte(`{
			"type": "detections",
			"timestampMs": 1500,
			"frameWidth": 1920,
			"frameHeight": 1080,
			"players": [
				{"id": "player_1", "x": 0.5, "y": 0.5, "centerX": 0.5, "centerY": 0.5,
				 "topLeftX": 0.47, "topLeftY": 0.43, "width": 0.06, "height": 0.14,
				 "confidence": 0.95},
				{"id": "player_2", "x": 0.2, "y": 0.6, "width": 0.05, "height": 0.12,
				 "confidence": 0.81}
			]
		}`)
		f, err := ParseFrame(data)
		require.NoError(t, err)

		assert.Equal(t, 1500*time.Millisecond, f.Timeline)
		assert.Equal(t, 1920, f.FrameWidth)
		assert.Equal(t, 1080, f.FrameHeight)
		require.Len(t, f.Detections, 2)
		assert.Zero(t, f.Skipped)

		assert.Equal(t, "player_1", f.Detections[0].ID)
		assert.InDelta(t, 0.47, f.Detections[0].X, 1e-6)
		assert.InDelta(t, 0.2, f.Detections[1].CenterX, 1e-6)
		assert.InDelta(t, 0.175, f.Detections[1].X, 1e-5)
	})

	t.Run("malformed entry dropped, batch survives", func(t *testing.T) {
		data := []byte(`{
			"timestampMs": 40,
			"players": [
				{"id": "good", "x": 0.5, "y": 0.5, "width": 0.1, "height": 0.1, "confidence": 0.9},
				{"id": "bad", "x": 0.5, "y": 0.5, "confidence": 0.9},
				{"id": "also_good", "x": 0.3, "y": 0.3, "width": 0.1, "height": 0.1, "confidence": 0.8}
			]
		}`)
		f, err := ParseFrame(data)
		require.NoError(t, err)
		require.Len(t, f.Detections, 2)
		assert.Equal(t, 1, f.Skipped)
		assert.Equal(t, "good", f.Detections[0].ID)
		assert.Equal(t, "also_good", f.Detections[1].ID)
	})

	t.Run("empty player list is a valid frame", func(t *testing.T) {
		f, err := ParseFrame([]byte(`{"timestampMs": 0, "players": []}`))
		require.NoError(t, err)
		assert.Empty(t, f.Detections)
	})

	t.Run("missing timestamp rejected", func(t *testing.T) {
		_, err := ParseFrame([]byte(`{"players": []}`))
		assert.ErrorIs(t, err, ErrInvalidTimestamp)
	})

	t.Run("negative timestamp rejected", func(t *testing.T) {
		_, err := ParseFrame([]byte(`{"timestampMs": -20, "players": []}`))
		assert.ErrorIs(t, err, ErrInvalidTimestamp)
	})

	t.Run("foreign event type rejected", func(t *testing.T) {
		_, err := ParseFrame([]byte(`{"type": "status", "timestampMs": 0}`))
		assert.Error(t, err)
	})

	t.Run("invalid json rejected", func(t *testing.T) {
		_, err := ParseFrame([]byte(`{"timestampMs": `))
		assert.Error(t, err)
	})

	t.Run("fractional milliseconds survive", func(t *testing.T) {
		f, err := ParseFrame([]byte(`{"timestampMs": 33.4, "players": []}`))
		require.NoError(t, err)
		assert.Equal(t, time.Duration(33.4*float64(time.Millisecond)), f.Timeline)
	})
}
