package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cuongbtq/gigflow/internal/api/dto"
	"github.com/cuongbtq/gigflow/internal/api/handler"
	"github.com/cuongbtq/gigflow/internal/chat"
	"github.com/cuongbtq/gigflow/internal/joblock"
	"github.com/cuongbtq/gigflow/internal/marketplace"
	"github.com/cuongbtq/gigflow/internal/realtime"
	"github.com/cuongbtq/gigflow/internal/storage"
	"github.com/cuongbtq/gigflow/shared/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type apiFixture struct {
	engine *gin.Engine
	auth   *TokenAuth
	store  *storage.MemoryStore
}

func newAPIFixture(t *testing.T, healthCheck func(ctx context.Context) error) *apiFixture {
	t.Helper()

	log := logger.NewNop()
	store := storage.NewMemoryStore()
	locks := joblock.New()
	registry := realtime.NewRegistry()
	rooms := realtime.NewRooms()
	rt := realtime.NewRouter(log, registry, rooms)

	market := marketplace.NewService(&marketplace.Config{
		Logger:   log,
		Store:    store,
		Locks:    locks,
		Notifier: rt,
	})
	chatService := chat.NewService(&chat.Config{
		Logger: log,
		Store:  store,
		Gate:   chat.NewGate(store, false),
		Locks:  locks,
		Fanout: rt,
	})
	hub := realtime.NewHub(&realtime.HubConfig{
		Logger:   log,
		Registry: registry,
		Rooms:    rooms,
		Router:   rt,
		Chat:     chatService,
	})

	auth := NewTokenAuth(testSecret, "", "token")
	engine := SetupRouter(&Config{
		Deps: &handler.Dependencies{
			Logger:      log,
			Marketplace: market,
			Chat:        chatService,
			Hub:         hub,
		},
		Auth:        auth,
		HealthCheck: healthCheck,
		ServiceName: "gigflow-api",
	})

	return &apiFixture{engine: engine, auth: auth, store: store}
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := f.auth.Issue(userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (f *apiFixture) postJob(t *testing.T, ownerID, title string) dto.JobDTO {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/jobs", ownerID, map[string]any{
		"title":       title,
		"description": "Needs doing",
		"budget":      "150.00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[dto.JobDTO](t, w)
}

func (f *apiFixture) bid(t *testing.T, jobID, bidderID, price string) *httptest.ResponseRecorder {
	t.Helper()
	return f.do(t, http.MethodPost, "/api/v1/jobs/"+jobID+"/bids", bidderID, map[string]any{
		"message": "I can do this",
		"price":   price,
	})
}

func TestAPI_HireScenario(t *testing.T) {
	f := newAPIFixture(t, nil)
	const owner, b1, b2, b3 = "owner", "bidder-1", "bidder-2", "bidder-3"

	job := f.postJob(t, owner, "Landing page")
	assert.Equal(t, "open", job.Status)
	assert.Equal(t, owner, job.OwnerID)

	w := f.bid(t, job.JobID, b1, "100")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bid1 := decode[dto.BidDTO](t, w)

	w = f.bid(t, job.JobID, b2, "120")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bid2 := decode[dto.BidDTO](t, w)

	// owners cannot bid, bidders cannot bid twice
	w = f.bid(t, job.JobID, owner, "90")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.bid(t, job.JobID, b1, "95")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", decode[dto.ErrorResponse](t, w).Code)

	// only the owner sees the bids
	w = f.do(t, http.MethodGet, "/api/v1/jobs/"+job.JobID+"/bids", b1, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/jobs/"+job.JobID+"/bids", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[dto.ListBidsResponse](t, w).Bids, 2)

	// no chat before the hire
	w = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/messages", b1, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// only the owner hires
	w = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/bids/"+bid1.BidID+"/hire", b2, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/bids/"+bid1.BidID+"/hire", owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "hired", decode[dto.BidDTO](t, w).Status)

	w = f.do(t, http.MethodGet, "/api/v1/jobs/"+job.JobID+"/bids", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	statuses := make(map[string]string)
	for _, b := range decode[dto.ListBidsResponse](t, w).Bids {
		statuses[b.BidID] = b.Status
	}
	assert.Equal(t, "hired", statuses[bid1.BidID])
	assert.Equal(t, "rejected", statuses[bid2.BidID])

	w = f.do(t, http.MethodGet, "/api/v1/jobs/"+job.JobID, b3, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "assigned", decode[dto.JobDTO](t, w).Status)

	// a second hire loses
	w = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/bids/"+bid2.BidID+"/hire", owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", decode[dto.ErrorResponse](t, w).Code)

	// bidding is closed
	w = f.bid(t, job.JobID, b3, "80")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/messages", b1, map[string]string{"text": "hi"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sent := decode[dto.MessageDTO](t, w)
	assert.Equal(t, owner, sent.ReceiverID)

	w = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/messages", b3, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = f.do(t, http.MethodGet, "/api/v1/jobs/"+job.JobID+"/messages", b3, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/jobs/"+job.JobID+"/messages", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[dto.ListMessagesResponse](t, w).Messages
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Text)

	w = f.do(t, http.MethodGet, "/api/v1/bids/assigned", b1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assigned := decode[dto.ListBidsWithJobsResponse](t, w).Bids
	require.Len(t, assigned, 1)
	assert.Equal(t, job.JobID, assigned[0].Job.JobID)

	w = f.do(t, http.MethodGet, "/api/v1/bids/applications", b2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	applications := decode[dto.ListBidsWithJobsResponse](t, w).Bids
	require.Len(t, applications, 1)
	assert.Equal(t, "rejected", applications[0].Bid.Status)

	w = f.do(t, http.MethodGet, "/api/v1/jobs/mine", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[dto.ListPostedJobsResponse](t, w).Jobs
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].HiredBid)
	assert.Equal(t, bid1.BidID, mine[0].HiredBid.BidID)

	// strangers cannot complete
	w = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/complete", b3, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/complete", owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", decode[dto.JobDTO](t, w).Status)

	w = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/messages", b1, map[string]string{"text": "thanks"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/jobs/"+job.JobID+"/complete", owner, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAPI_ListJobsPagination(t *testing.T) {
	f := newAPIFixture(t, nil)

	for i := 0; i < 5; i++ {
		f.postJob(t, "owner", fmt.Sprintf("Job %d", i))
	}
	f.postJob(t, "owner", "Unrelated gig")

	seen := make(map[string]bool)
	path := "/api/v1/jobs?page_size=2&search=job"
	for pages := 0; ; pages++ {
		require.Less(t, pages, 5, "pagination did not terminate")

		w := f.do(t, http.MethodGet, path, "viewer", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		page := decode[dto.ListJobsResponse](t, w)
		assert.LessOrEqual(t, len(page.Jobs), 2)

		for _, job := range page.Jobs {
			assert.False(t, seen[job.JobID], "job listed twice")
			seen[job.JobID] = true
		}
		if page.NextCursor == "" {
			break
		}
		path = "/api/v1/jobs?page_size=2&search=job&cursor=" + page.NextCursor
	}
	assert.Len(t, seen, 5)
}

func TestAPI_ListJobsWithoutToken(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.postJob(t, "owner", "Logo design")

	w := f.do(t, http.MethodGet, "/api/v1/jobs", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode[dto.ListJobsResponse](t, w)
	require.Len(t, page.Jobs, 1)
	assert.Equal(t, "Logo design", page.Jobs[0].Title)

	// a garbage token is ignored on the public listing
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_RequestValidation(t *testing.T) {
	f := newAPIFixture(t, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		userID     string
		body       any
		wantStatus int
	}{
		{name: "no token", method: http.MethodGet, path: "/api/v1/jobs/mine", wantStatus: http.StatusUnauthorized},
		{name: "no token on post", method: http.MethodPost, path: "/api/v1/jobs", body: map[string]any{"title": "t", "description": "d", "budget": 10}, wantStatus: http.StatusUnauthorized},
		{name: "bad job id", method: http.MethodGet, path: "/api/v1/jobs/not-a-uuid", userID: "u", wantStatus: http.StatusBadRequest},
		{name: "unknown job", method: http.MethodGet, path: "/api/v1/jobs/7a0e3f5c-3b1e-4a53-9f43-0a5bb1b0e5e1", userID: "u", wantStatus: http.StatusNotFound},
		{name: "missing title", method: http.MethodPost, path: "/api/v1/jobs", userID: "u", body: map[string]any{"description": "d", "budget": 10}, wantStatus: http.StatusBadRequest},
		{name: "zero budget", method: http.MethodPost, path: "/api/v1/jobs", userID: "u", body: map[string]any{"title": "t", "description": "d", "budget": 0}, wantStatus: http.StatusBadRequest},
		{name: "budget finer than a cent", method: http.MethodPost, path: "/api/v1/jobs", userID: "u", body: map[string]any{"title": "t", "description": "d", "budget": "10.005"}, wantStatus: http.StatusBadRequest},
		{name: "budget out of range", method: http.MethodPost, path: "/api/v1/jobs", userID: "u", body: map[string]any{"title": "t", "description": "d", "budget": "1000000000000"}, wantStatus: http.StatusBadRequest},
		{name: "bad cursor", method: http.MethodGet, path: "/api/v1/jobs?cursor=!!!", userID: "u", wantStatus: http.StatusBadRequest},
		{name: "bad bid id", method: http.MethodPost, path: "/api/v1/jobs/7a0e3f5c-3b1e-4a53-9f43-0a5bb1b0e5e1/bids/nope/hire", userID: "u", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, tt.method, tt.path, tt.userID, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestAPI_CookieAuthentication(t *testing.T) {
	f := newAPIFixture(t, nil)

	token, err := f.auth.Issue("owner", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/mine", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t, func(ctx context.Context) error { return nil })
	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	f = newAPIFixture(t, func(ctx context.Context) error { return errors.New("db down") })
	w = f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTokenAuth_Verify(t *testing.T) {
	auth := NewTokenAuth(testSecret, "gigflow", "")

	valid, err := auth.Issue("user-1", time.Hour)
	require.NoError(t, err)

	expired, err := auth.Issue("user-1", -time.Minute)
	require.NoError(t, err)

	otherSecret, err := NewTokenAuth("another-secret", "gigflow", "").Issue("user-1", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := NewTokenAuth(testSecret, "elsewhere", "").Issue("user-1", time.Hour)
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": "gigflow"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	userID, err := auth.Verify(valid)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	for name, token := range map[string]string{
		"expired":      expired,
		"other secret": otherSecret,
		"wrong issuer": wrongIssuer,
		"no user":      noUser,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Verify(token)
			assert.Error(t, err)
		})
	}
}
