package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"

	"github.com/drummonds/playday/config"
	"github.com/drummonds/playday/covers"
	"github.com/drummonds/playday/database"
	"github.com/drummonds/playday/igdb"
)

// Version is set at build time via ldflags
var Version = "dev"

const searchLimit = 50

// Catalog answers keyword searches over the games catalog
type Catalog interface {
	Search(ctx context.Context, keyword string) ([]igdb.Game, error)
}

// localCatalog searches the games already seen by this server
type localCatalog struct {
	index *database.CatalogIndex
}

func (l localCatalog) Search(_ context.Context, keyword string) ([]igdb.Game, error) {
	return l.index.Search(keyword, searchLimit)
}

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.DBInterface
	SearchDB     *database.CatalogIndex
	IGDB         *igdb.Client
	Covers       *covers.Cache
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	User         *database.User

	releaseJobOnce    sync.Once
	releaseJobChained cron.Job
}

// UpcomingGame is a wished game with the whole days left until its PC release
type UpcomingGame struct {
	database.WishedGame
	DaysLeft int `json:"days_left"`
}

func (serverHandler *ServerHandler) usingIGDB() bool {
	return serverHandler.IGDB != nil && serverHandler.IGDB.Configured()
}

func (serverHandler *ServerHandler) catalog() Catalog {
	if serverHandler.usingIGDB() {
		return serverHandler.IGDB
	}
	return localCatalog{index: serverHandler.SearchDB}
}

func jsonError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

// RegisterRoutes adds the API routes, the UI handler is registered separately by main
func (serverHandler *ServerHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/search", serverHandler.SearchGames)
	e.GET("/api/wishlist", serverHandler.GetWishlist)
	e.POST("/api/wishlist", serverHandler.AddGamesToWishlist)
	e.GET("/api/wishlist/upcoming", serverHandler.GetUpcoming)
	e.DELETE("/api/wishlist/:id", serverHandler.RemoveGameFromWishlist)
	e.POST("/api/releases/refresh", serverHandler.RefreshReleasesNow)
	e.GET("/api/cover/:imageID", serverHandler.GetCover)
	e.GET("/api/about", serverHandler.GetAboutInfo)
}

// StartupChecks makes sure the configured user exists
func (serverHandler *ServerHandler) StartupChecks() error {
	userConfig := serverHandler.ServerConfig.User
	user, err := serverHandler.DB.EnsureUser(userConfig.Name, userConfig.Email)
	if err != nil {
		Logger.Error("Unable to create or load the wishlist owner", "email", userConfig.Email, "error", err)
		return err
	}
	serverHandler.User = user
	Logger.Info("Wishlist owner ready", "id", user.ID, "email", user.Email)
	return nil
}

// SearchGames searches the catalog for the keyword query parameter
func (serverHandler *ServerHandler) SearchGames(c echo.Context) error {
	keyword := strings.TrimSpace(c.QueryParam("keyword"))
	if keyword == "" {
		return jsonError(c, http.StatusBadRequest, "missing keyword")
	}
	games, err := serverHandler.catalog().Search(c.Request().Context(), keyword)
	if err != nil {
		Logger.Error("Catalog search failed", "keyword", keyword, "error", err)
		return jsonError(c, http.StatusBadGateway, "catalog search failed")
	}
	if games == nil {
		games = []igdb.Game{}
	}
	if serverHandler.usingIGDB() && serverHandler.SearchDB != nil {
		if err := serverHandler.SearchDB.IndexGames(games); err != nil {
			Logger.Warn("Unable to index search results", "error", err)
		}
	}
	Logger.Debug("Catalog search", "keyword", keyword, "results", len(games))
	return c.JSON(http.StatusOK, games)
}

// GetWishlist returns the owner's wished games
func (serverHandler *ServerHandler) GetWishlist(c echo.Context) error {
	games, err := serverHandler.DB.GetWishlist(serverHandler.User.ID)
	if err != nil {
		Logger.Error("Unable to read wishlist", "error", err)
		return jsonError(c, http.StatusInternalServerError, "unable to read wishlist")
	}
	return c.JSON(http.StatusOK, games)
}

// AddGamesToWishlist stores a JSON array of catalog games on the wishlist
func (serverHandler *ServerHandler) AddGamesToWishlist(c echo.Context) error {
	var raws []json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&raws); err != nil {
		Logger.Warn("Bad wishlist body", "error", err)
		return jsonError(c, http.StatusBadRequest, "expected a JSON array of games")
	}

	now := time.Now()
	wished := make([]database.WishedGame, 0, len(raws))
	catalogGames := make([]igdb.Game, 0, len(raws))
	for _, raw := range raws {
		var game igdb.Game
		if err := json.Unmarshal(raw, &game); err != nil || game.ID == 0 {
			return jsonError(c, http.StatusBadRequest, "every game needs a numeric id")
		}
		id, err := database.NewULID(now)
		if err != nil {
			return jsonError(c, http.StatusInternalServerError, "unable to create id")
		}
		var info bytes.Buffer
		if err := json.Compact(&info, raw); err != nil {
			return jsonError(c, http.StatusBadRequest, "invalid game JSON")
		}
		wished = append(wished, database.WishedGame{
			ID:            id.String(),
			UserID:        serverHandler.User.ID,
			Title:         game.Name,
			IGDBID:        game.ID,
			IGDBInfo:      info.Bytes(),
			AddedOn:       now.Unix(),
			PCReleaseDate: game.PCReleaseDate(),
		})
		catalogGames = append(catalogGames, game)
	}

	added, err := serverHandler.DB.AddGamesToWishlist(wished)
	if err != nil {
		Logger.Error("Unable to add games to wishlist", "count", len(wished), "error", err)
		return jsonError(c, http.StatusInternalServerError, "unable to save wishlist")
	}
	Logger.Info("Added games to wishlist", "requested", len(wished), "added", len(added))

	if serverHandler.SearchDB != nil {
		if err := serverHandler.SearchDB.IndexGames(catalogGames); err != nil {
			Logger.Warn("Unable to index wished games", "error", err)
		}
	}
	serverHandler.prefetchCovers(catalogGames)
	return c.JSON(http.StatusOK, added)
}

func (serverHandler *ServerHandler) prefetchCovers(games []igdb.Game) {
	if serverHandler.Covers == nil {
		return
	}
	ids := make([]string, 0, len(games))
	for _, game := range games {
		ids = append(ids, game.CoverImageID())
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := serverHandler.Covers.Prefetch(ctx, ids); err != nil {
			Logger.Warn("Some covers could not be prefetched", "error", err)
		}
	}()
}

// RemoveGameFromWishlist deletes one wished game, removing a missing one is not an error
func (serverHandler *ServerHandler) RemoveGameFromWishlist(c echo.Context) error {
	id := c.Param("id")
	if err := serverHandler.DB.RemoveGameFromWishlist(serverHandler.User.ID, id); err != nil {
		Logger.Error("Unable to remove game from wishlist", "id", id, "error", err)
		return jsonError(c, http.StatusInternalServerError, "unable to remove game")
	}
	return c.NoContent(http.StatusNoContent)
}

// GetUpcoming returns the owner's games releasing within the reminder window
func (serverHandler *ServerHandler) GetUpcoming(c echo.Context) error {
	games, err := serverHandler.DB.GetFutureWishlistGames(time.Now().Unix())
	if err != nil {
		Logger.Error("Unable to read upcoming games", "error", err)
		return jsonError(c, http.StatusInternalServerError, "unable to read upcoming games")
	}
	upcoming := []UpcomingGame{}
	for _, game := range upcomingWithin(games, time.Now(), serverHandler.ServerConfig.Reminders.WindowDays) {
		if game.UserID == serverHandler.User.ID {
			upcoming = append(upcoming, game)
		}
	}
	return c.JSON(http.StatusOK, upcoming)
}

// RefreshReleasesNow runs the release refresh job in the background, it is skipped when a
// run is already in progress
func (serverHandler *ServerHandler) RefreshReleasesNow(c echo.Context) error {
	Logger.Info("Manual release refresh triggered via API")
	go func() {
		serverHandler.releaseJob().Run()
		Logger.Info("Manual release refresh finished")
	}()
	return c.String(http.StatusOK, "Release refresh started")
}

// GetCover serves a cached cover, downloading it on first request
func (serverHandler *ServerHandler) GetCover(c echo.Context) error {
	if serverHandler.Covers == nil {
		return jsonError(c, http.StatusNotFound, "covers disabled")
	}
	path, err := serverHandler.Covers.Get(c.Request().Context(), c.Param("imageID"))
	if errors.Is(err, covers.ErrInvalidImageID) {
		return jsonError(c, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		Logger.Warn("Unable to fetch cover", "image_id", c.Param("imageID"), "error", err)
		return jsonError(c, http.StatusBadGateway, "unable to fetch cover")
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=604800")
	return c.File(path)
}

// GetAboutInfo returns information about the application configuration
func (serverHandler *ServerHandler) GetAboutInfo(c echo.Context) error {
	catalogMode := "local"
	if serverHandler.usingIGDB() {
		catalogMode = "igdb"
	}
	var indexed uint64
	if serverHandler.SearchDB != nil {
		count, err := serverHandler.SearchDB.Count()
		if err != nil {
			Logger.Warn("Unable to count catalog index", "error", err)
		}
		indexed = count
	}
	aboutInfo := map[string]interface{}{
		"version":      Version,
		"databaseType": serverHandler.DB.Dialect(),
		"isEphemeral":  serverHandler.ServerConfig.DatabaseType == database.DialectPostgres && serverHandler.ServerConfig.DatabaseConnString == "",
		"catalog":      catalogMode,
		"indexedGames": indexed,
		"user":         serverHandler.User.Name,
	}
	return c.JSON(http.StatusOK, aboutInfo)
}
