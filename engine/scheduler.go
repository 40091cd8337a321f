package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/drummonds/playday/database"
	"github.com/drummonds/playday/igdb"
)

// Logger is global since we will need it everywhere
var Logger = slog.Default()

const secondsPerDay = 24 * 60 * 60

// InitializeSchedules starts all the cron jobs (currently just one)
func (serverHandler *ServerHandler) InitializeSchedules() *cron.Cron {
	interval := serverHandler.ServerConfig.Reminders.IntervalMinutes

	// Run the release job at startup in a goroutine
	Logger.Info("Running release job at startup")
	go serverHandler.releaseJob().Run()

	c := cron.New()
	if _, err := c.AddJob(fmt.Sprintf("@every %dm", interval), serverHandler.releaseJob()); err != nil {
		Logger.Error("Unable to schedule release job", "interval_minutes", interval, "error", err)
		return c
	}
	Logger.Info("Adding release job scheduler", "interval_minutes", interval)
	c.Start()
	return c
}

// releaseJob is shared by the schedule and the refresh endpoint so runs never overlap
func (serverHandler *ServerHandler) releaseJob() cron.Job {
	serverHandler.releaseJobOnce.Do(func() {
		job := cron.FuncJob(serverHandler.releaseJobFunc)
		serverHandler.releaseJobChained = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(job)
	})
	return serverHandler.releaseJobChained
}

func (serverHandler *ServerHandler) releaseJobFunc() {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in release job", "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	upcoming, err := serverHandler.refreshReleases(ctx, time.Now())
	if err != nil {
		Logger.Error("Release job failed", "error", err)
		return
	}
	for _, game := range upcoming {
		Logger.Info("Wished game releasing soon", "title", game.Title, "user", game.UserID, "days_left", game.DaysLeft)
	}
}

// refreshReleases updates the release info of every wished game that has not been released
// yet and returns those releasing within the reminder window
func (serverHandler *ServerHandler) refreshReleases(ctx context.Context, now time.Time) ([]UpcomingGame, error) {
	games, err := serverHandler.DB.GetFutureWishlistGames(now.Unix())
	if err != nil {
		return nil, fmt.Errorf("unable to load future games: %w", err)
	}
	Logger.Debug("Starting release job", "games", len(games))

	if serverHandler.usingIGDB() && len(games) > 0 {
		if err := serverHandler.updateFromCatalog(ctx, games); err != nil {
			// stale dates are still worth reporting
			Logger.Warn("Unable to refresh release dates from IGDB", "error", err)
		}
	}
	return upcomingWithin(games, now, serverHandler.ServerConfig.Reminders.WindowDays), nil
}

// updateFromCatalog refreshes games in place with the catalog's current info
func (serverHandler *ServerHandler) updateFromCatalog(ctx context.Context, games []database.WishedGame) error {
	seen := map[int64]bool{}
	ids := make([]int64, 0, len(games))
	for _, game := range games {
		if !seen[game.IGDBID] {
			seen[game.IGDBID] = true
			ids = append(ids, game.IGDBID)
		}
	}
	fetched, err := serverHandler.IGDB.GamesByID(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int64]igdb.Game, len(fetched))
	for _, game := range fetched {
		byID[game.ID] = game
	}
	if serverHandler.SearchDB != nil {
		if err := serverHandler.SearchDB.IndexGames(fetched); err != nil {
			Logger.Warn("Unable to index refreshed games", "error", err)
		}
	}

	for i := range games {
		latest, ok := byID[games[i].IGDBID]
		if !ok {
			continue
		}
		info, err := json.Marshal(latest)
		if err != nil {
			return err
		}
		releaseDate := latest.PCReleaseDate()
		if err := serverHandler.DB.UpdateReleaseInfo(games[i].ID, info, releaseDate); err != nil {
			return fmt.Errorf("unable to update %q: %w", games[i].Title, err)
		}
		if releaseDate != games[i].PCReleaseDate {
			Logger.Info("Release date changed", "title", games[i].Title, "from", games[i].PCReleaseDate, "to", releaseDate)
		}
		games[i].IGDBInfo = info
		games[i].PCReleaseDate = releaseDate
	}
	return nil
}

// upcomingWithin keeps the games releasing after now and at most windowDays away
func upcomingWithin(games []database.WishedGame, now time.Time, windowDays int) []UpcomingGame {
	upcoming := []UpcomingGame{}
	for _, game := range games {
		left := game.PCReleaseDate - now.Unix()
		if left <= 0 || left > int64(windowDays)*secondsPerDay {
			continue
		}
		days := int((left + secondsPerDay - 1) / secondsPerDay)
		upcoming = append(upcoming, UpcomingGame{WishedGame: game, DaysLeft: days})
	}
	return upcoming
}
