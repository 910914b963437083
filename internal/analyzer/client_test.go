package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		var req extractRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "uploads/videos/a.mp4", req.InputRef)
		fmt.Fprint(w, `{"duration": 1800, "energy_mean": 0.7, "speech_rate_wpm": 140}`)
	}))
	defer srv.Close()

	a := NewAudio(Config{URL: srv.URL, MaxRetryTime: time.Second}, nil)
	f, err := a.Extract(context.Background(), "uploads/videos/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, 1800.0, f.DurationOr())
	assert.Equal(t, 0.7, f.EnergyMeanOr())
	assert.Equal(t, 140.0, f.SpeechRateOr())
	// absent keys stay absent
	assert.Nil(t, f.PauseRatio)
	assert.Equal(t, 0.15, f.PauseRatioOr())
}

func TestVisualExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"gesture_count": 22, "face_confidence": 0.9, "eye_contact_ratio": 0.6}`)
	}))
	defer srv.Close()

	v := NewVisual(Config{URL: srv.URL, MaxRetryTime: time.Second}, nil)
	f, err := v.Extract(context.Background(), "x.mp4")
	require.NoError(t, err)
	assert.Equal(t, 22, f.GestureCountOr())
	assert.Equal(t, 0.9, f.FaceConfidenceOr())
	assert.Equal(t, 0.6, f.EyeContactOr())
}

func TestExtractRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"gesture_count": 1}`)
	}))
	defer srv.Close()

	v := NewVisual(Config{URL: srv.URL, MaxRetryTime: 5 * time.Second}, nil)
	_, err := v.Extract(context.Background(), "x.mp4")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestExtractClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unsupported codec", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	a := NewAudio(Config{URL: srv.URL, MaxRetryTime: 5 * time.Second}, nil)
	_, err := a.Extract(context.Background(), "x.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported codec")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestExtractNoEndpoint(t *testing.T) {
	_, err := NewAudio(Config{}, nil).Extract(context.Background(), "x.mp4")
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestExtractMock(t *testing.T) {
	a, err := NewAudio(Config{Mock: true}, nil).Extract(context.Background(), "x.mp4")
	require.NoError(t, err)
	assert.Equal(t, 1800.0, a.DurationOr())

	v, err := NewVisual(Config{Mock: true}, nil).Extract(context.Background(), "x.mp4")
	require.NoError(t, err)
	assert.Equal(t, 15, v.GestureCountOr())
}
