package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"

	"studio-booking-backend/config"
	"studio-booking-backend/internal/booking"
	"studio-booking-backend/internal/db"
	"studio-booking-backend/internal/logx"
	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// clock is the fixed "now" of every API test: the day before the bookings they make.
var clock = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(day, hour, min int) time.Time {
	return time.Date(2025, 3, day, hour, min, 0, 0, time.UTC)
}

type testEnv struct {
	router  *gin.Engine
	store   store.Store
	handler *Handler
	cache   *cache.Cache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}, logx.Discard())
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	s := store.NewGormStore(gormDB)
	require.NoError(t, s.UpsertStudios(context.Background(), []model.Studio{
		{ID: 1, Name: "Noise Lab", Code: "NOI", City: "Pune", NumStudios: 2},
		{ID: 2, Name: "Vox Box", Code: "VOX", City: "Pune", NumStudios: 1},
		{ID: 3, Name: "Echo Room", Code: "ECH", City: "Mumbai", NumStudios: 1},
	}))

	policy := booking.Policy{Padding: 10 * time.Minute, Location: time.UTC, Now: func() time.Time { return clock }}
	manager := booking.NewManager(s, policy, logx.Discard())
	h := NewHandler(s, manager, nil, logx.Discard())

	c := cache.New(time.Minute, time.Minute)
	router := NewRouter(h, config.ServerConfig{CacheTTL: time.Minute}, RouterOptions{
		RateLimit: func(c *gin.Context) { c.Next() },
		Cache:     c,
	})
	return &testEnv{router: router, store: s, handler: h, cache: c}
}

var (
	faculty     = map[string]string{headerActorID: "u-1", headerActorRole: "faculty", headerActorName: "Asha Rao", headerActorEmail: "asha@example.edu"}
	otherUser   = map[string]string{headerActorID: "u-2", headerActorRole: "faculty"}
	noiAdmin    = map[string]string{headerActorID: "a-1", headerActorRole: "studio_admin", headerActorStudios: "1"}
	voxAdmin    = map[string]string{headerActorID: "a-2", headerActorRole: "studio_admin", headerActorStudios: "2"}
	superAdmin  = map[string]string{headerActorID: "s-1", headerActorRole: "super_admin"}
	anonymous   = map[string]string{}
	unknownRole = map[string]string{headerActorID: "u-3", headerActorRole: "dean"}
)

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) book(t *testing.T, unit string, start, end time.Time, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, "/api/bookings", gin.H{
		"studio_id": 1, "unit": unit, "start": start, "end": end,
	}, headers)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error          string     `json:"error"`
	Message        string     `json:"message"`
	SuggestedStart *time.Time `json:"suggested_start"`
}
