package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smartcampus/campus-api/internal/auth"
	"github.com/smartcampus/campus-api/internal/chat"
	"github.com/smartcampus/campus-api/internal/config"
	"github.com/smartcampus/campus-api/internal/health"
	"github.com/smartcampus/campus-api/internal/http/handlers/live"
	"github.com/smartcampus/campus-api/internal/metrics"
	"github.com/smartcampus/campus-api/internal/realtime"
	"github.com/smartcampus/campus-api/internal/storage/sqldb"
	"github.com/smartcampus/campus-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Live subscriptions run a read loop per connection; none may outlive its test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type cannedCompleter string

func (c cannedCompleter) Complete(context.Context, string, string, string) (string, error) {
	return string(c), nil
}

type harness struct {
	t      *testing.T
	store  *sqldb.Store
	hub    *realtime.Hub
	server *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := &config.Config{Database: config.Database{Driver: "sqlite", StoragePath: ":memory:"}}
	store, err := sqldb.New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	log := zap.NewNop()
	hub := realtime.NewHub(16, log)
	stop, cancel := context.WithCancel(context.Background())

	handler := New(Deps{
		Store: store,
		Auth:  auth.NewService(store, "test-secret", time.Hour, log),
		Chat: chat.NewProxy(cannedCompleter("Hello!"), "CHAT_KEY", log).
			WithKeyLookup(func(string) string { return "k" }),
		Hub:     hub,
		Health:  health.NewChecker(store, nil, log),
		Metrics: metrics.New("test"),
		Log:     log,
		Stop:    stop,
	})

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})

	return &harness{t: t, store: store, hub: hub, server: server}
}

// do sends body as JSON and decodes the reply into out when out is non-nil.
func (h *harness) do(method, path, token string, body any, out any) int {
	h.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(h.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.server.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// signUp registers and signs in, returning the session.
func (h *harness) signUp(email string, role types.Role) types.Session {
	h.t.Helper()
	status := h.do(http.MethodPost, "/api/auth/signup", "", types.SignUpRequest{
		Email: email, Password: "hunter22", FullName: strings.Split(email, "@")[0], Role: role,
	}, nil)
	require.Equal(h.t, http.StatusCreated, status)
	return h.signIn(email)
}

func (h *harness) signIn(email string) types.Session {
	h.t.Helper()
	var session types.Session
	status := h.do(http.MethodPost, "/api/auth/signin", "",
		types.SignInRequest{Email: email, Password: "hunter22"}, &session)
	require.Equal(h.t, http.StatusOK, status)
	return session
}

// admin creates an admin directly in the store; sign-up never grants it.
func (h *harness) admin() types.Session {
	h.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(h.t, err)
	require.NoError(h.t, h.store.CreateProfile(context.Background(), &types.Profile{
		Email: "dean@campus.edu", PasswordHash: string(hash), FullName: "Dean", Role: types.RoleAdmin,
	}))
	return h.signIn("dean@campus.edu")
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)

	session := h.signUp("asha@campus.edu", types.RoleFaculty)
	assert.Equal(t, "bearer", session.TokenType)

	var me types.Profile
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/auth/me", session.AccessToken, nil, &me))
	assert.Equal(t, "asha@campus.edu", me.Email)
	assert.Equal(t, types.RoleFaculty, me.Role)

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/api/auth/signup", "", types.SignUpRequest{
		Email: "asha@campus.edu", Password: "hunter22", FullName: "Again",
	}, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/auth/signup", "", types.SignUpRequest{
		Email: "admin@campus.edu", Password: "hunter22", FullName: "Nope", Role: types.RoleAdmin,
	}, nil))
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/auth/signin", "",
		types.SignInRequest{Email: "asha@campus.edu", Password: "wrong"}, nil))
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/auth/me", "", nil, nil))
}

func TestLostAndFoundRoutes(t *testing.T) {
	h := newHarness(t)
	owner := h.signUp("owner@campus.edu", "")
	other := h.signUp("other@campus.edu", "")
	dean := h.admin()

	sub := h.hub.Subscribe(types.TableLostAndFound)
	defer sub.Close()

	var item types.LostItem
	status := h.do(http.MethodPost, "/api/lost-found", owner.AccessToken, types.CreateLostItemRequest{
		Title: "Calculator", Description: "Casio fx-991", Category: "electronics", Location: "Room 204",
	}, &item)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, types.ItemLost, item.Status)
	assert.Equal(t, "owner", item.OwnerName)

	change := <-sub.C
	assert.Equal(t, realtime.Insert, change.Type)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/lost-found", owner.AccessToken,
		types.CreateLostItemRequest{Title: "x", Description: "y", Category: "pets", Location: "z"}, nil))

	var items []types.LostItem
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/lost-found?category=electronics", other.AccessToken, nil, &items))
	require.Len(t, items, 1)

	path := "/api/lost-found/" + item.ID
	claim := types.UpdateItemStatusRequest{Status: types.ItemClaimed}

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPatch, path+"/status", other.AccessToken, claim, nil))

	var updated types.LostItem
	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, path+"/status", owner.AccessToken, claim, &updated))
	assert.Equal(t, types.ItemClaimed, updated.Status)
	assert.Equal(t, realtime.Update, (<-sub.C).Type)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, path, other.AccessToken, nil, nil))
	assert.Equal(t, http.StatusOK, h.do(http.MethodDelete, path, dean.AccessToken, nil, nil))
	assert.Equal(t, realtime.Delete, (<-sub.C).Type)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, path, owner.AccessToken, nil, nil))
}

func TestEventRoutes(t *testing.T) {
	h := newHarness(t)
	prof := h.signUp("prof@campus.edu", types.RoleFaculty)
	alice := h.signUp("alice@campus.edu", "")
	bob := h.signUp("bob@campus.edu", "")

	one := 1
	req := types.CreateEventRequest{
		Title: "Robotics demo", Description: "Line followers", Category: "tech",
		Location: "Workshop", EventDate: time.Date(2026, 12, 1, 15, 0, 0, 0, time.UTC), MaxAttendees: &one,
	}

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/api/events", alice.AccessToken, req, nil))

	var created types.Event
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/events", prof.AccessToken, req, &created))
	assert.Equal(t, "prof", created.OrganizerName)

	register := "/api/events/" + created.ID + "/register"

	var registered types.Event
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, register, alice.AccessToken, nil, &registered))
	assert.Equal(t, 1, registered.AttendeeCount)

	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, register, alice.AccessToken, nil, nil), "duplicate")
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, register, bob.AccessToken, nil, nil), "full")
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/api/events/nope/register", bob.AccessToken, nil, nil))

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, "/api/events/"+created.ID, bob.AccessToken, nil, nil))
	assert.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/api/events/"+created.ID, prof.AccessToken, nil, nil))

	var events []types.Event
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/events", bob.AccessToken, nil, &events))
	assert.Empty(t, events)
}

func TestClubRoutes(t *testing.T) {
	h := newHarness(t)
	prof := h.signUp("prof@campus.edu", types.RoleFaculty)
	kiran := h.signUp("kiran@campus.edu", "")

	var club types.Club
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/clubs", prof.AccessToken,
		types.CreateClubRequest{Name: "Chess", Description: "Weekly games", Category: "games", PresidentID: kiran.User.ID}, &club))
	require.NotNil(t, club.PresidentName)
	assert.Equal(t, "kiran", *club.PresidentName)

	join := "/api/clubs/" + club.ID + "/join"
	var joined types.Club
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, join, kiran.AccessToken, nil, &joined))
	assert.Equal(t, 1, joined.MemberCount)
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, join, kiran.AccessToken, nil, nil))

	var clubs []types.Club
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/clubs", kiran.AccessToken, nil, &clubs))
	require.Len(t, clubs, 1)
	assert.Equal(t, 1, clubs[0].MemberCount)
}

func TestFeedbackRoutes(t *testing.T) {
	h := newHarness(t)
	alice := h.signUp("alice@campus.edu", "")
	bob := h.signUp("bob@campus.edu", "")
	dean := h.admin()

	var fb types.Feedback
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/feedback", alice.AccessToken,
		types.CreateFeedbackRequest{Category: "hostel", Subject: "Wi-Fi", Message: "Drops at night"}, &fb))
	assert.Equal(t, types.FeedbackPending, fb.Status)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/feedback", bob.AccessToken,
		types.CreateFeedbackRequest{Category: "canteen", Subject: "Tea", Message: "Too sweet"}, nil))

	var list []types.Feedback
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/feedback?all=true", alice.AccessToken, nil, &list))
	assert.Len(t, list, 1, "all=true is ignored for students")

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/feedback?all=true", dean.AccessToken, nil, &list))
	assert.Len(t, list, 2)

	respond := types.RespondFeedbackRequest{Status: types.FeedbackResolved, Response: "Router replaced"}
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPatch, "/api/feedback/"+fb.ID, alice.AccessToken, respond, nil))

	var answered types.Feedback
	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, "/api/feedback/"+fb.ID, dean.AccessToken, respond, &answered))
	assert.Equal(t, types.FeedbackResolved, answered.Status)
}

func TestChatbotAndOps(t *testing.T) {
	h := newHarness(t)

	var reply chat.Response
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/chatbot", "", chat.Request{Message: "hi"}, &reply))
	assert.Equal(t, "Hello!", reply.Response)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "", nil, nil))

	resp, err := h.server.Client().Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_http_requests_total{code="200",route="POST /api/chatbot"} 1`)
}

func (h *harness) dial(table, token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/realtime/v1/" + table + "?access_token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestRealtimeStream(t *testing.T) {
	h := newHarness(t)
	owner := h.signUp("owner@campus.edu", "")

	_, resp, err := h.dial(types.TableLostAndFound, "bad-token")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = h.dial(types.TableProfiles, owner.AccessToken)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn, _, err := h.dial(types.TableLostAndFound, owner.AccessToken)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	var item types.LostItem
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/lost-found", owner.AccessToken, types.CreateLostItemRequest{
		Title: "Scarf", Description: "Red wool", Category: "clothing", Location: "Auditorium", Status: types.ItemFound,
	}, &item))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var change realtime.Change
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, types.TableLostAndFound, change.Table)
	assert.Equal(t, realtime.Insert, change.Type)

	rows, err := realtime.Apply([]types.LostItem{}, change, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, item.ID, rows[0].ID)
	assert.Equal(t, "owner", rows[0].OwnerName)
}

func TestRealtimeFeedbackIsPrivate(t *testing.T) {
	h := newHarness(t)
	alice := h.signUp("alice@campus.edu", "")
	bob := h.signUp("bob@campus.edu", "")

	conn, _, err := h.dial(types.TableFeedback, alice.AccessToken)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/feedback", bob.AccessToken,
		types.CreateFeedbackRequest{Category: "sports", Subject: "Nets", Message: "Torn"}, nil))

	var mine types.Feedback
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/feedback", alice.AccessToken,
		types.CreateFeedbackRequest{Category: "academic", Subject: "Timetable", Message: "Clash"}, &mine))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var change realtime.Change
	require.NoError(t, conn.ReadJSON(&change))

	var row types.Feedback
	require.NoError(t, json.Unmarshal(change.Record, &row))
	assert.Equal(t, mine.ID, row.ID, "bob's entry is never delivered to alice")
}

func TestRealtimeEviction(t *testing.T) {
	h := newHarness(t)
	owner := h.signUp("owner@campus.edu", "")

	conn, _, err := h.dial(types.TableEvents, owner.AccessToken)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	// Flood the hub faster than an unread socket drains.
	for i := 0; i < 1_000_000 && h.hub.Subscribers() > 0; i++ {
		h.hub.Publish(context.Background(), realtime.NewDelete(types.TableEvents, "x"))
	}
	require.Zero(t, h.hub.Subscribers())

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			assert.Equal(t, live.CloseEvicted, closeErr.Code)
			return
		}
	}
}
