package chatbot

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smartcampus/campus-api/internal/chat"
	"github.com/smartcampus/campus-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newHandler(t *testing.T, upstream http.HandlerFunc) http.Handler {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	proxy := chat.NewProxy(chat.NewGatewayClient(srv.URL, "google/gemini-2.5-flash", srv.Client()),
		"LOVABLE_API_KEY", zap.NewNop()).
		WithKeyLookup(func(string) string { return "key" })

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chatbot", New(proxy))
	return middleware.CORS(mux)
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, chat.Response) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chatbot", strings.NewReader(body)))

	var got chat.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	return w, got
}

func TestChatbot(t *testing.T) {
	h := newHandler(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"Try the admin block."}}]}`)
	})

	w, got := post(t, h, `{"message":"Where do I pay fees?"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, chat.Response{Response: "Try the admin block."}, got)
}

func TestChatbotRateLimited(t *testing.T) {
	h := newHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	w, got := post(t, h, `{"message":"hi"}`)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, chat.RateLimitError, got.Error)
	assert.Equal(t, chat.RateLimitReply, got.Response)
}

func TestChatbotMalformedBody(t *testing.T) {
	called := false
	h := newHandler(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	w, got := post(t, h, `{"message":`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, got.Error)
	assert.Equal(t, chat.GenericReply, got.Response)
	assert.False(t, called)
}

func TestChatbotPreflight(t *testing.T) {
	h := newHandler(t, func(w http.ResponseWriter, r *http.Request) {})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/chatbot", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "authorization, x-client-info, apikey, content-type",
		w.Header().Get("Access-Control-Allow-Headers"))
}
