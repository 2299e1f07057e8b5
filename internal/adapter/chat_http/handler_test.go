package chat_http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-chatbot/internal/adapter/chat_http"
	"kb-chatbot/internal/usecase"
)

// stubChatTurn replays a canned answer.
type stubChatTurn struct {
	output  *usecase.ChatTurnOutput
	execErr error
}

func (s *stubChatTurn) Execute(ctx context.Context, input usecase.ChatTurnInput) (*usecase.ChatTurnOutput, error) {
	if s.execErr != nil {
		return nil, s.execErr
	}
	return s.output, nil
}

func (s *stubChatTurn) Stream(ctx context.Context, input usecase.ChatTurnInput) <-chan usecase.StreamEvent {
	events := make(chan usecase.StreamEvent, 8)
	go func() {
		defer close(events)
		if s.execErr != nil {
			events <- usecase.StreamEvent{Kind: usecase.StreamEventKindError, Payload: s.execErr.Error()}
			return
		}
		words := strings.Fields(s.output.Answer)
		for i := range words {
			events <- usecase.StreamEvent{
				Kind:    usecase.StreamEventKindDelta,
				Payload: strings.Join(words[:i+1], " "),
			}
		}
		events <- usecase.StreamEvent{Kind: usecase.StreamEventKindDone, Payload: s.output}
	}()
	return events
}

func newTestServer(t *testing.T, chatTurn usecase.ChatTurnUsecase, ready func(context.Context) error) *echo.Echo {
	t.Helper()
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	e := echo.New()
	chat_http.NewHandler(chatTurn, ready, logger).RegisterRoutes(e)
	return e
}

func postJSON(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateSession(t *testing.T) {
	e := newTestServer(t, &stubChatTurn{}, nil)

	t.Run("mints conversation and user ids", func(t *testing.T) {
		rec := postJSON(e, "/v1/sessions", `{}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		_, err := uuid.Parse(resp["conversation_id"])
		assert.NoError(t, err)
		assert.NotEmpty(t, resp["user_id"])
	})

	t.Run("keeps a provided user id", func(t *testing.T) {
		rec := postJSON(e, "/v1/sessions", `{"user_id":"alice"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "alice", resp["user_id"])
	})
}

func TestChat(t *testing.T) {
	stub := &stubChatTurn{output: &usecase.ChatTurnOutput{
		Answer:   "Refunds take five days.",
		Contexts: []usecase.ContextItem{{Source: "policy.md", Page: 2, Score: 0.9}},
	}}
	e := newTestServer(t, stub, nil)

	rec := postJSON(e, "/v1/chat", `{"user_id":"u1","conversation_id":"c1","question":"How long?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Answer   string `json:"answer"`
		Fallback bool   `json:"fallback"`
		Sources  []struct {
			Source string `json:"source"`
			Page   int    `json:"page"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Refunds take five days.", resp.Answer)
	assert.False(t, resp.Fallback)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "policy.md", resp.Sources[0].Source)
	assert.Equal(t, 2, resp.Sources[0].Page)
}

func TestChat_Validation(t *testing.T) {
	e := newTestServer(t, &stubChatTurn{}, nil)

	t.Run("missing question", func(t *testing.T) {
		rec := postJSON(e, "/v1/chat", `{"user_id":"u1","conversation_id":"c1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing conversation id", func(t *testing.T) {
		rec := postJSON(e, "/v1/chat", `{"user_id":"u1","question":"hi"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := postJSON(e, "/v1/chat", `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChat_InternalError(t *testing.T) {
	e := newTestServer(t, &stubChatTurn{execErr: errors.New("boom")}, nil)

	rec := postJSON(e, "/v1/chat", `{"user_id":"u1","conversation_id":"c1","question":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChatStream_CumulativePartials(t *testing.T) {
	stub := &stubChatTurn{output: &usecase.ChatTurnOutput{Answer: "A B C"}}
	e := newTestServer(t, stub, nil)

	rec := postJSON(e, "/v1/chat/stream", `{"user_id":"u1","conversation_id":"c1","question":"spell"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var deltas []string
	var doneAnswer string
	for _, frame := range strings.Split(rec.Body.String(), "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		isDone := strings.Contains(frame, "event: done")
		for _, line := range strings.Split(frame, "\n") {
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			var body struct {
				Answer string `json:"answer"`
			}
			require.NoError(t, json.Unmarshal([]byte(payload), &body))
			if isDone {
				doneAnswer = body.Answer
			} else {
				deltas = append(deltas, body.Answer)
			}
		}
	}

	assert.Equal(t, []string{"A", "A B", "A B C"}, deltas)
	assert.Equal(t, "A B C", doneAnswer)
}

func TestChatStream_Validation(t *testing.T) {
	e := newTestServer(t, &stubChatTurn{}, nil)

	rec := postJSON(e, "/v1/chat/stream", `{"user_id":"u1","conversation_id":"c1","question":" "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	t.Run("healthz is always ok", func(t *testing.T) {
		e := newTestServer(t, &stubChatTurn{}, nil)
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz reflects index availability", func(t *testing.T) {
		e := newTestServer(t, &stubChatTurn{}, func(context.Context) error {
			return errors.New("index not built")
		})
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
