package logger

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"":        logrus.InfoLevel,
		"debug":   logrus.DebugLevel,
		"WARN":    logrus.WarnLevel,
		"warning": logrus.WarnLevel,
		"error":   logrus.ErrorLevel,
		"verbose": logrus.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestJSONOutputCarriesJobAndError(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "info")

	var buf bytes.Buffer
	log := NewWithOutput(&buf)
	(&Logger{Entry: log.WithJob("job-1")}).WithError(errors.New("boom")).Info("stage failed")

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"job_id":"job-1"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"msg":"stage failed"`)
}

func TestWithRequestUsesHeaderID(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	var buf bytes.Buffer
	log := NewWithOutput(&buf)

	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	log.WithRequest(req).Info("health check")

	assert.Contains(t, buf.String(), `"req_id":"req-42"`)
	assert.Contains(t, buf.String(), `"path":"/healthz"`)
}

func TestWithErrorNil(t *testing.T) {
	log := NewWithOutput(&bytes.Buffer{})
	assert.Same(t, log.Entry, log.WithError(nil))
}
