package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drummonds/playday/config"
	"github.com/drummonds/playday/database"
	"github.com/drummonds/playday/igdb"
)

const gtaJSON = `{"id":1020,"name":"Grand Theft Auto V","cover":{"id":1,"image_id":"co2lbd"},"release_dates":[{"id":2,"date":1429574400,"human":"Apr 21, 2015","platform":{"id":6,"name":"PC (Microsoft Windows)","slug":"win"}}]}`

func newTestHandler(t *testing.T) *ServerHandler {
	t.Helper()
	db, err := database.SetupSQLiteDatabase(filepath.Join(t.TempDir(), "playday.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	index, err := database.NewMemCatalogIndex()
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	e := echo.New()
	e.HideBanner = true
	serverHandler := &ServerHandler{
		DB:       db,
		SearchDB: index,
		Echo:     e,
		ServerConfig: config.ServerConfig{
			DatabaseType: database.DialectSQLite,
			Reminders:    config.ReminderConfig{IntervalMinutes: 60, WindowDays: 3},
			User:         config.UserConfig{Name: "Player One", Email: "player@localhost"},
		},
	}
	require.NoError(t, serverHandler.StartupChecks())
	serverHandler.RegisterRoutes(e)
	return serverHandler
}

// fakeCatalogServer answers token and games requests the way IGDB does
func fakeCatalogServer(t *testing.T, games string) *igdb.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"access_token":"tok","expires_in":3600}`)
	})
	mux.HandleFunc("/v4/games", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, games)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return igdb.NewClient(igdb.Config{ClientID: "id", ClientSecret: "secret", APIURL: srv.URL + "/v4", TokenURL: srv.URL + "/token"})
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSearchGames(t *testing.T) {
	serverHandler := newTestHandler(t)
	e := serverHandler.Echo

	t.Run("missing keyword", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/api/search", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = serve(e, http.MethodGet, "/api/search?keyword=%20", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("local catalog", func(t *testing.T) {
		require.NoError(t, serverHandler.SearchDB.IndexGames([]igdb.Game{{ID: 7346, Name: "The Legend of Zelda: Breath of the Wild"}}))
		rec := serve(e, http.MethodGet, "/api/search?keyword=zelda", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var games []igdb.Game
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &games))
		require.Len(t, games, 1)
		assert.Equal(t, int64(7346), games[0].ID)

		rec = serve(e, http.MethodGet, "/api/search?keyword=nothingmatches", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("igdb results are indexed", func(t *testing.T) {
		serverHandler.IGDB = fakeCatalogServer(t, "["+gtaJSON+"]")
		defer func() { serverHandler.IGDB = nil }()

		rec := serve(e, http.MethodGet, "/api/search?keyword=grand", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var games []igdb.Game
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &games))
		require.Len(t, games, 1)

		local, err := serverHandler.SearchDB.Search("grand", 10)
		require.NoError(t, err)
		assert.Len(t, local, 1)
	})

	t.Run("catalog failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()
		serverHandler.IGDB = igdb.NewClient(igdb.Config{ClientID: "id", ClientSecret: "secret", APIURL: srv.URL, TokenURL: srv.URL})
		defer func() { serverHandler.IGDB = nil }()

		rec := serve(e, http.MethodGet, "/api/search?keyword=mario", "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestWishlistLifecycle(t *testing.T) {
	serverHandler := newTestHandler(t)
	e := serverHandler.Echo

	rec := serve(e, http.MethodGet, "/api/wishlist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(e, http.MethodPost, "/api/wishlist", "["+gtaJSON+`,{"id":26226,"name":"Celeste"}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	var added []database.WishedGame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	require.Len(t, added, 2)
	assert.Equal(t, "Grand Theft Auto V", added[0].Title)
	assert.Equal(t, int64(1429574400), added[0].PCReleaseDate)
	assert.Equal(t, int64(0), added[1].PCReleaseDate)
	assert.JSONEq(t, gtaJSON, string(added[0].IGDBInfo))

	// posting the same game again stores nothing
	rec = serve(e, http.MethodPost, "/api/wishlist", "["+gtaJSON+"]")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/api/wishlist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stored []database.WishedGame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.Len(t, stored, 2)

	rec = serve(e, http.MethodDelete, "/api/wishlist/"+stored[0].ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(e, http.MethodDelete, "/api/wishlist/unknown", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(e, http.MethodGet, "/api/wishlist", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	require.Len(t, stored, 1)
	assert.Equal(t, "Celeste", stored[0].Title)
}

func TestAddGamesRejectsBadBodies(t *testing.T) {
	serverHandler := newTestHandler(t)
	e := serverHandler.Echo

	for _, body := range []string{`{"id":1}`, `[{"name":"no id"}]`, `not json`} {
		rec := serve(e, http.MethodPost, "/api/wishlist", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestUpcomingWithin(t *testing.T) {
	now := time.Unix(1700000000, 0)
	games := []database.WishedGame{
		{Title: "Released", PCReleaseDate: now.Unix() - 10},
		{Title: "Tomorrow", PCReleaseDate: now.Unix() + 20*60*60},
		{Title: "Three days", PCReleaseDate: now.Unix() + 3*secondsPerDay},
		{Title: "Next month", PCReleaseDate: now.Unix() + 30*secondsPerDay},
	}
	upcoming := upcomingWithin(games, now, 3)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "Tomorrow", upcoming[0].Title)
	assert.Equal(t, 1, upcoming[0].DaysLeft)
	assert.Equal(t, 3, upcoming[1].DaysLeft)
}

func TestGetUpcoming(t *testing.T) {
	serverHandler := newTestHandler(t)
	soon := time.Now().Unix() + secondsPerDay
	game := `{"id":5,"name":"Soon","release_dates":[{"id":1,"date":` + jsonInt(soon) + `,"platform":{"id":6}}]}`
	rec := serve(serverHandler.Echo, http.MethodPost, "/api/wishlist", "["+game+`,{"id":6,"name":"Undated"}]`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(serverHandler.Echo, http.MethodGet, "/api/wishlist/upcoming", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var upcoming []UpcomingGame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &upcoming))
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Soon", upcoming[0].Title)
	assert.Equal(t, 1, upcoming[0].DaysLeft)
}

func TestRefreshReleasesUpdatesDates(t *testing.T) {
	serverHandler := newTestHandler(t)
	now := time.Unix(1700000000, 0)
	_, err := serverHandler.DB.AddGamesToWishlist([]database.WishedGame{{
		ID: "01HF0000000000000000000000", UserID: serverHandler.User.ID, Title: "Delayed",
		IGDBID: 42, IGDBInfo: json.RawMessage(`{"id":42,"name":"Delayed"}`), AddedOn: now.Unix(),
		PCReleaseDate: now.Unix() + 10*secondsPerDay,
	}})
	require.NoError(t, err)

	moved := now.Unix() + 2*secondsPerDay
	serverHandler.IGDB = fakeCatalogServer(t, `[{"id":42,"name":"Delayed","release_dates":[{"id":1,"date":`+jsonInt(moved)+`,"platform":{"id":6}}]}]`)

	upcoming, err := serverHandler.refreshReleases(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, 2, upcoming[0].DaysLeft)

	stored, err := serverHandler.DB.GetWishlist(serverHandler.User.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, moved, stored[0].PCReleaseDate)
}

func TestRefreshReleasesWithoutCatalog(t *testing.T) {
	serverHandler := newTestHandler(t)
	now := time.Unix(1700000000, 0)
	_, err := serverHandler.DB.AddGamesToWishlist([]database.WishedGame{{
		ID: "01HF0000000000000000000001", UserID: serverHandler.User.ID, Title: "Local",
		IGDBID: 9, IGDBInfo: json.RawMessage(`{}`), AddedOn: now.Unix(), PCReleaseDate: now.Unix() + secondsPerDay,
	}})
	require.NoError(t, err)

	upcoming, err := serverHandler.refreshReleases(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Local", upcoming[0].Title)
}

func TestRefreshEndpointAndAbout(t *testing.T) {
	serverHandler := newTestHandler(t)

	rec := serve(serverHandler.Echo, http.MethodPost, "/api/releases/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(serverHandler.Echo, http.MethodGet, "/api/about", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var about map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &about))
	assert.Equal(t, "sqlite", about["databaseType"])
	assert.Equal(t, "local", about["catalog"])
	assert.Equal(t, "Player One", about["user"])
}

// blockingDB holds GetFutureWishlistGames until release is closed
type blockingDB struct {
	database.DBInterface
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingDB) GetFutureWishlistGames(after int64) ([]database.WishedGame, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
	}
	<-b.release
	return b.DBInterface.GetFutureWishlistGames(after)
}

func TestReleaseJobRunsDoNotOverlap(t *testing.T) {
	serverHandler := newTestHandler(t)
	db := &blockingDB{DBInterface: serverHandler.DB, entered: make(chan struct{}), release: make(chan struct{})}
	serverHandler.DB = db

	done := make(chan struct{})
	go func() {
		serverHandler.releaseJob().Run()
		close(done)
	}()
	<-db.entered

	// a second run while the first is busy returns without touching the database
	serverHandler.releaseJob().Run()
	assert.Equal(t, int32(1), db.calls.Load())

	close(db.release)
	<-done
}

func TestGetCoverWithoutCache(t *testing.T) {
	serverHandler := newTestHandler(t)
	rec := serve(serverHandler.Echo, http.MethodGet, "/api/cover/co2lbd", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
