package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"plain":        `{"a":1}`,
		"fenced":       "```json\n{\"a\":1}\n```",
		"prose around": `Sure! Here it is: {"a":1} hope that helps`,
		"nested":       `{"a":{"b":2}}`,
		"brace in str": `{"a":"}"}`,
	}
	want := map[string]string{
		"plain":        `{"a":1}`,
		"fenced":       `{"a":1}`,
		"prose around": `{"a":1}`,
		"nested":       `{"a":{"b":2}}`,
		"brace in str": `{"a":"}"}`,
	}
	for name, in := range cases {
		assert.Equal(t, want[name], extractJSON(in), name)
	}
	assert.Empty(t, extractJSON("no json here"))
	assert.Empty(t, extractJSON(`{"unterminated": 1`))
}

func TestExtractContentFromChoices(t *testing.T) {
	body := `{"choices":[{"message":{"content":"` + "```json\\n{\\\"clarity\\\":0.8}\\n```" + `"}}]}`
	assert.Equal(t, `{"clarity":0.8}`, extractContentFromChoices([]byte(body)))
	assert.Empty(t, extractContentFromChoices([]byte(`{"choices":[]}`)))
	assert.Empty(t, extractContentFromChoices([]byte(`not json`)))
}

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestGatewayCompleteJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1:8b", req["model"])
		fmt.Fprint(w, chatReply(`{"technical_depth": 0.9, "clarity": 0.5, "structure": 0.4}`))
	}))
	defer srv.Close()

	g := NewGateway(GatewayConfig{URL: srv.URL, APIKey: "secret", Model: "llama3.1:8b", MaxRetryTime: time.Second}, nil)
	var sig signals
	require.NoError(t, g.CompleteJSON(context.Background(), "prompt", &sig))
	require.NotNil(t, sig.TechnicalDepth)
	assert.InDelta(t, 0.9, *sig.TechnicalDepth, 1e-9)
}

func TestGatewayRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, chatReply(`{"clarity": 0.3}`))
	}))
	defer srv.Close()

	g := NewGateway(GatewayConfig{URL: srv.URL, APIKey: "k", MaxRetryTime: 5 * time.Second}, nil)
	var out map[string]float64
	require.NoError(t, g.CompleteJSON(context.Background(), "p", &out))
	assert.InDelta(t, 0.3, out["clarity"], 1e-9)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGatewayClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := NewGateway(GatewayConfig{URL: srv.URL, APIKey: "k", MaxRetryTime: 5 * time.Second}, nil)
	var out map[string]any
	require.Error(t, g.CompleteJSON(context.Background(), "p", &out))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGatewayNotConfigured(t *testing.T) {
	g := NewGateway(GatewayConfig{}, nil)
	var out map[string]any
	assert.ErrorIs(t, g.CompleteJSON(context.Background(), "p", &out), ErrNotConfigured)
}

type fakeCompleter struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, prompt string, target any) error {
	f.prompt = prompt
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), target)
}

func TestScorerClampsSignalsAndCountsLocally(t *testing.T) {
	fc := &fakeCompleter{reply: `{"technical_depth": 1.4, "clarity": -0.2, "structure": 0.55}`}
	s := NewScorer(fc, false)
	transcript := "Is this an algorithm? The API calls a server. Why? Deep learning and machine learning."

	nlp, err := s.Score(context.Background(), transcript)
	require.NoError(t, err)
	td, _ := nlp.TechnicalDepth()
	cl, _ := nlp.Clarity()
	st, _ := nlp.Structure()
	assert.Equal(t, 1.0, td)
	assert.Equal(t, 0.0, cl)
	assert.InDelta(t, 0.55, st, 1e-9)
	assert.Equal(t, 2, nlp.QuestionCountOr())
	assert.Equal(t, 5, nlp.TechnicalTermCountOr())
	assert.Equal(t, len(strings.Fields(transcript)), *nlp.WordCount)
}

func TestScorerPromptUsesFirstThousandChars(t *testing.T) {
	fc := &fakeCompleter{reply: `{"technical_depth": 0.5, "clarity": 0.5, "structure": 0.5}`}
	s := NewScorer(fc, false)
	transcript := strings.Repeat("a", 1000) + "TAIL"
	_, err := s.Score(context.Background(), transcript)
	require.NoError(t, err)
	assert.NotContains(t, fc.prompt, "TAIL")
}

func TestBuildScoringPromptCutsOnCharacters(t *testing.T) {
	transcript := "a" + strings.Repeat("é", 1200)
	prompt := BuildScoringPrompt(transcript)

	assert.True(t, utf8.ValidString(prompt))
	assert.Contains(t, prompt, "a"+strings.Repeat("é", 999))
	assert.NotContains(t, prompt, strings.Repeat("é", 1000))
}

func TestScorerErrors(t *testing.T) {
	_, err := NewScorer(&fakeCompleter{err: errors.New("down")}, false).Score(context.Background(), "text")
	require.Error(t, err)

	_, err = NewScorer(&fakeCompleter{reply: `{"clarity": 0.5}`}, false).Score(context.Background(), "text")
	require.Error(t, err)

	_, err = NewScorer(nil, false).Score(context.Background(), "text")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestScorerMock(t *testing.T) {
	nlp, err := NewScorer(nil, true).Score(context.Background(), "What is a database query?")
	require.NoError(t, err)
	td, ok := nlp.TechnicalDepth()
	assert.True(t, ok)
	assert.Equal(t, 0.6, td)
	assert.Equal(t, 1, nlp.QuestionCountOr())
	assert.Equal(t, 2, nlp.TechnicalTermCountOr())
}

func TestCountTechnicalTermsCaseInsensitive(t *testing.T) {
	assert.Equal(t, 3, CountTechnicalTerms("ALGORITHM, Neural Network and data structure"))
	assert.Equal(t, 0, CountTechnicalTerms("functional classes"))
}

func TestScorerRejectsMistypedReply(t *testing.T) {
	fc := &fakeCompleter{reply: `{"technical_depth": "high", "clarity": 0.5, "structure": 0.5}`}
	_, err := NewScorer(fc, false).Score(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "technical_depth")
}
