package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradecoach/market"
)

type stubReasoner struct {
	prompt string
	reply  string
	err    error
}

func (s *stubReasoner) Generate(_ context.Context, messages []Message) (string, error) {
	s.prompt = messages[len(messages)-1].Content
	return s.reply, s.err
}

func TestFlattenIncludesSystemPrompt(t *testing.T) {
	t.Parallel()

	got := flatten([]Message{{Role: "user", Content: "what is RSI?"}})
	assert.True(t, strings.HasPrefix(got, SystemPrompt))
	assert.Contains(t, got, "User: what is RSI?")
	assert.True(t, strings.HasSuffix(got, "Assistant:"))
}

func TestCoachPrompt(t *testing.T) {
	t.Parallel()

	r := &stubReasoner{reply: "lesson"}
	svc := NewService(r)

	out, err := svc.Coach(context.Background(), "what is an EMA?", "", "")
	require.NoError(t, err)
	assert.Equal(t, "lesson", out)
	assert.Contains(t, r.prompt, "beginner-level")
	assert.Contains(t, r.prompt, "what is an EMA?")
}

func TestCritiquePromptCarriesIndicators(t *testing.T) {
	t.Parallel()

	r := &stubReasoner{reply: "HOLD"}
	svc := NewService(r)

	snap := market.Snapshot{Symbol: "AAPL", Close: 187.12, RSI: 71.3, EMA20: 182.4, EMA50: 175.9}
	out, err := svc.Critique(context.Background(), "AAPL", "buy", "it keeps going up", snap)
	require.NoError(t, err)
	assert.Equal(t, "HOLD", out)
	assert.Contains(t, r.prompt, "RSI(14): 71.3")
	assert.Contains(t, r.prompt, "EMA20: 182.40")
	assert.Contains(t, r.prompt, "it keeps going up")
}

func TestPlanPrompt(t *testing.T) {
	t.Parallel()

	r := &stubReasoner{reply: "plan"}
	svc := NewService(r)

	_, err := svc.Plan(context.Background(), "learn options with $500", "", []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	assert.Contains(t, r.prompt, "learn options with $500")
	assert.Contains(t, r.prompt, "medium")
	assert.Contains(t, r.prompt, "AAPL, MSFT")
}

func TestServicePropagatesUnavailable(t *testing.T) {
	t.Parallel()

	svc := NewService(&stubReasoner{err: ErrUnavailable})
	_, err := svc.Coach(context.Background(), "q", "", "")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOllamaGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		fmt.Fprint(w, `{"response":"RSI measures momentum."}`)
	}))
	t.Cleanup(srv.Close)

	o := NewOllama(srv.URL, "gemma3:1b")
	out, err := o.Generate(context.Background(), []Message{{Role: "user", Content: "what is RSI?"}})
	require.NoError(t, err)
	assert.Equal(t, "RSI measures momentum.", out)
}

func TestOllamaErrorsAreUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	o := NewOllama(srv.URL, "")
	_, err := o.Generate(context.Background(), []Message{{Role: "user", Content: "q"}})
	assert.ErrorIs(t, err, ErrUnavailable)

	// Down entirely.
	srv.Close()
	_, err = o.Generate(context.Background(), []Message{{Role: "user", Content: "q"}})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTimeoutWrapperCancels(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server watches the connection and cancels
		// r.Context() when the client gives up; otherwise Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	slow := NewOllama(srv.URL, "")
	wrapped := Timeout{Inner: slow, D: 50 * time.Millisecond}

	start := time.Now()
	_, err := wrapped.Generate(context.Background(), []Message{{Role: "user", Content: "q"}})
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
