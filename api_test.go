package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/drummonds/playday/config"
	database "github.com/drummonds/playday/database"
	engine "github.com/drummonds/playday/engine"
	"github.com/drummonds/playday/igdb"
	"github.com/drummonds/playday/webapp"
	"github.com/drummonds/playday/wishlist"
)

// setupTestServer creates a test server with all routes configured against a throwaway SQLite
// database and an in-memory catalog index
func setupTestServer(t *testing.T) (*echo.Echo, *engine.ServerHandler) {
	t.Helper()
	serverConfig, logger := config.SetupServerFromFile(filepath.Join(t.TempDir(), "missing.toml"))
	injectGlobals(logger)

	db, err := database.SetupSQLiteDatabase(filepath.Join(t.TempDir(), "playday.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	searchDB, err := database.NewMemCatalogIndex()
	require.NoError(t, err)
	t.Cleanup(func() { searchDB.Close() })

	e := echo.New()
	e.HideBanner = true
	serverHandler := &engine.ServerHandler{
		DB:           db,
		SearchDB:     searchDB,
		Echo:         e,
		ServerConfig: serverConfig,
	}
	require.NoError(t, serverHandler.StartupChecks())
	registerRoutes(e, serverHandler, webapp.Handler())
	return e, serverHandler
}

func seedCatalog(t *testing.T, serverHandler *engine.ServerHandler) {
	t.Helper()
	release := int64(1600300800)
	require.NoError(t, serverHandler.SearchDB.IndexGames([]igdb.Game{
		{ID: 11133, Name: "Super Mario Odyssey"},
		{ID: 2155, Name: "Mario Kart 8 Deluxe"},
		{ID: 113112, Name: "Hades", ReleaseDates: []igdb.ReleaseDate{{ID: 1, Date: &release, Platform: igdb.Platform{ID: igdb.PCPlatformID}}}},
	}))
}

// TestAddGamesThroughTheDialog drives the selection controller against the real routes
func TestAddGamesThroughTheDialog(t *testing.T) {
	e, serverHandler := setupTestServer(t)
	seedCatalog(t, serverHandler)
	server := httptest.NewServer(e)
	defer server.Close()

	client := wishlist.NewClient(server.URL)
	ctrl := wishlist.NewController(client)
	ctx := context.Background()

	ctrl.Open()
	ctrl.SetKeyword("mario")
	require.NoError(t, ctrl.Search(ctx))
	results := ctrl.State().Results
	require.Len(t, results, 2)

	for _, game := range results {
		ctrl.Select(game)
	}
	ctrl.Select(results[0])
	require.Len(t, ctrl.State().Selected, 2)

	require.NoError(t, ctrl.AddToWishlist(ctx))
	state := ctrl.State()
	assert.False(t, state.Open)
	assert.Empty(t, state.Selected)
	assert.Empty(t, state.Results)
	assert.Equal(t, "", state.Keyword)

	entries, err := client.Wishlist(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	titles := []string{entries[0].Title, entries[1].Title}
	assert.ElementsMatch(t, []string{"Super Mario Odyssey", "Mario Kart 8 Deluxe"}, titles)

	require.NoError(t, client.Remove(ctx, entries[0].ID))
	entries, err = client.Wishlist(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

// TestReleaseDateIsKept checks the PC release date survives the round trip to the wishlist
func TestReleaseDateIsKept(t *testing.T) {
	e, serverHandler := setupTestServer(t)
	seedCatalog(t, serverHandler)
	server := httptest.NewServer(e)
	defer server.Close()

	client := wishlist.NewClient(server.URL)
	games, err := client.Search(context.Background(), "hades")
	require.NoError(t, err)
	require.Len(t, games, 1)
	require.NoError(t, client.AddToWishlist(context.Background(), games))

	entries, err := client.Wishlist(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1600300800), entries[0].PCReleaseDate)
	assert.Equal(t, int64(113112), entries[0].IGDBID)
}

func TestSearchEndpoint(t *testing.T) {
	e, serverHandler := setupTestServer(t)
	seedCatalog(t, serverHandler)

	t.Run("Search - empty keyword", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/search?keyword=", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Search - keyword is escaped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/search?keyword=mario%20kart", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var games []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &games))
		assert.NotEmpty(t, games)
	})
}

func TestErrorHandling(t *testing.T) {
	e, _ := setupTestServer(t)

	t.Run("Invalid JSON in request body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/wishlist", strings.NewReader("{invalid json}"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Cover without a cache", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/cover/co2lbd", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestConcurrentRequests(t *testing.T) {
	e, serverHandler := setupTestServer(t)
	seedCatalog(t, serverHandler)
	server := httptest.NewServer(e)
	defer server.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(server.URL + "/api/wishlist")
			if !assert.NoError(t, err) {
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}()
	}
	wg.Wait()
}

func TestAboutEndpoint(t *testing.T) {
	e, _ := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/about", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var about map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &about))
	assert.Equal(t, "sqlite", about["databaseType"])
	assert.Equal(t, "Player One", about["user"])
}
