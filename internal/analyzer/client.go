// Package analyzer talks to the audio DSP and vision landmark sidecars. Each sidecar
// takes {"input_ref": "..."} and answers with a flat JSON feature object.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"mentor-insights-go/internal/logger"
	"mentor-insights-go/internal/types"
)

// ErrNoEndpoint is returned when the sidecar URL is empty and mock mode is off.
var ErrNoEndpoint = errors.New("analyzer endpoint not configured")

type Config struct {
	URL          string
	HTTPTimeout  time.Duration
	MaxRetryTime time.Duration
	Mock         bool
}

type client struct {
	cfg  Config
	http *http.Client
	log  *logrus.Entry
}

func newClient(cfg Config, log *logrus.Entry, module string) client {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 12 * time.Second
	}
	if cfg.MaxRetryTime <= 0 {
		cfg.MaxRetryTime = 30 * time.Second
	}
	if log == nil {
		log = logger.Discard()
	}
	return client{cfg: cfg, http: &http.Client{Timeout: cfg.HTTPTimeout}, log: log.WithField("module", module)}
}

type extractRequest struct {
	InputRef string `json:"input_ref"`
}

func (c *client) post(ctx context.Context, inputRef string, target any) error {
	if c.cfg.URL == "" {
		return ErrNoEndpoint
	}
	payload, err := json.Marshal(extractRequest{InputRef: inputRef})
	if err != nil {
		return err
	}
	endpoint := strings.TrimRight(c.cfg.URL, "/") + "/extract"

	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.log.WithError(err).Warn("analyzer request failed")
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("analyzer server error %d: %s", resp.StatusCode, string(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("analyzer rejected request %d: %s", resp.StatusCode, string(body))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("decode analyzer response: %w", err)
			return backoff.Permanent(lastErr)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryTime
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return lastErr
	}
	return nil
}

// Audio extracts prosody features from the lecture's audio track.
type Audio struct{ client }

func NewAudio(cfg Config, log *logrus.Entry) *Audio {
	return &Audio{newClient(cfg, log, "audio-analyzer")}
}

func (a *Audio) Extract(ctx context.Context, inputRef string) (*types.AudioFeatures, error) {
	if a.cfg.Mock {
		return mockAudio(), nil
	}
	var out types.AudioFeatures
	if err := a.post(ctx, inputRef, &out); err != nil {
		return nil, err
	}
	a.log.WithField("input_ref", inputRef).Debug("audio features extracted")
	return &out, nil
}

// Visual extracts presence and gesture features from sampled frames.
type Visual struct{ client }

func NewVisual(cfg Config, log *logrus.Entry) *Visual {
	return &Visual{newClient(cfg, log, "visual-analyzer")}
}

func (v *Visual) Extract(ctx context.Context, inputRef string) (*types.VisualFeatures, error) {
	if v.cfg.Mock {
		return types.PlaceholderVisualFeatures(), nil
	}
	var out types.VisualFeatures
	if err := v.post(ctx, inputRef, &out); err != nil {
		return nil, err
	}
	v.log.WithField("input_ref", inputRef).Debug("visual features extracted")
	return &out, nil
}

func mockAudio() *types.AudioFeatures {
	return &types.AudioFeatures{
		Duration:      types.Float(1800),
		EnergyMean:    types.Float(0.62),
		EnergyStd:     types.Float(0.18),
		PitchMean:     types.Float(175),
		PitchStd:      types.Float(42),
		SpeechRateWPM: types.Float(145),
		PauseRatio:    types.Float(0.12),
		SampleRate:    types.Float(22050),
	}
}
