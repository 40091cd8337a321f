package database

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// Logger is replaced by main with the configured logger
var Logger = slog.Default()

// User owns a wishlist
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"created_at"`
	LastLogin int64  `json:"last_login"`
}

// WishedGame is one catalog game on a user's wishlist
type WishedGame struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Title         string          `json:"title"`
	IGDBID        int64           `json:"igdb_id"`
	IGDBInfo      json.RawMessage `json:"igdb_info"`
	AddedOn       int64           `json:"added_on"`
	PCReleaseDate int64           `json:"pc_release_date"`
}

// DBInterface defines the storage operations, implemented for SQLite and PostgreSQL
type DBInterface interface {
	Close() error
	Dialect() string
	EnsureUser(name, email string) (*User, error)
	GetUser(id string) (*User, error)
	AddGamesToWishlist(games []WishedGame) ([]WishedGame, error)
	GetWishlist(userID string) ([]WishedGame, error)
	RemoveGameFromWishlist(userID, id string) error
	GetFutureWishlistGames(now int64) ([]WishedGame, error)
	UpdateReleaseInfo(id string, info json.RawMessage, pcReleaseDate int64) error
}

// SetupDatabase opens the configured backend
func SetupDatabase(dbType, sqlitePath, connString string) (DBInterface, error) {
	switch dbType {
	case "", DialectSQLite:
		Logger.Info("Setting up SQLite database", "path", sqlitePath)
		db, err := SetupSQLiteDatabase(sqlitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case DialectPostgres:
		if connString == "" {
			return nil, fmt.Errorf("postgres selected but no connection string configured")
		}
		Logger.Info("Setting up PostgreSQL database")
		db, err := SetupPostgresDatabase(connString)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type %q", dbType)
	}
}

// NewULID returns a new ULID using the given time
func NewULID(t time.Time) (ulid.ULID, error) {
	return ulid.New(ulid.Timestamp(t), ulid.DefaultEntropy())
}
