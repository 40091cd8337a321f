package database

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

//go:embed migrations
var migrationFS embed.FS

// SQLDatabase implements DBInterface on database/sql for both dialects
type SQLDatabase struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

var _ DBInterface = (*SQLDatabase)(nil)

// SetupSQLiteDatabase opens (or creates) the SQLite file and runs migrations
func SetupSQLiteDatabase(dbPath string) (*SQLDatabase, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time, WAL lets readers through
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	s := &SQLDatabase{db: db, dialect: DialectSQLite, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// SetupPostgresDatabase connects with a lib/pq connection string and runs migrations
func SetupPostgresDatabase(connString string) (*SQLDatabase, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	s := &SQLDatabase{db: db, dialect: DialectPostgres, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLDatabase) runMigrations() error {
	var driver migratedb.Driver
	var err error
	switch s.dialect {
	case DialectSQLite:
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	case DialectPostgres:
		driver, err = postgres.WithInstance(s.db, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations/"+s.dialect)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, s.dialect, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	Logger.Info("Database migrations completed successfully", "dialect", s.dialect)
	return nil
}

// bind rewrites ? placeholders to $n for postgres
func (s *SQLDatabase) bind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLDatabase) Close() error {
	return s.db.Close()
}

func (s *SQLDatabase) Dialect() string {
	return s.dialect
}

// EnsureUser returns the user with the given email, creating it on first use. The login
// time is refreshed either way.
func (s *SQLDatabase) EnsureUser(name, email string) (*User, error) {
	now := s.now().Unix()
	user := &User{}
	err := s.db.QueryRow(s.bind(`SELECT id, name, email, created_at, last_login FROM users WHERE email = ?`), email).
		Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.LastLogin)
	switch {
	case err == nil:
		if _, err := s.db.Exec(s.bind(`UPDATE users SET last_login = ? WHERE id = ?`), now, user.ID); err != nil {
			return nil, fmt.Errorf("failed to update login time: %w", err)
		}
		user.LastLogin = now
		return user, nil
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, err
	}

	id, err := NewULID(s.now())
	if err != nil {
		return nil, err
	}
	user = &User{ID: id.String(), Name: name, Email: email, CreatedAt: now, LastLogin: now}
	_, err = s.db.Exec(s.bind(`INSERT INTO users (id, name, email, created_at, last_login) VALUES (?, ?, ?, ?, ?)`),
		user.ID, user.Name, user.Email, user.CreatedAt, user.LastLogin)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	Logger.Info("Created user", "id", user.ID, "email", email)
	return user, nil
}

// GetUser returns nil, nil when the user does not exist
func (s *SQLDatabase) GetUser(id string) (*User, error) {
	user := &User{}
	err := s.db.QueryRow(s.bind(`SELECT id, name, email, created_at, last_login FROM users WHERE id = ?`), id).
		Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt, &user.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// AddGamesToWishlist inserts the games in one transaction. Games already on the user's
// wishlist are skipped; the returned slice holds only the rows that were inserted.
func (s *SQLDatabase) AddGamesToWishlist(games []WishedGame) ([]WishedGame, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(s.bind(`
		INSERT INTO wished_games (id, user_id, title, igdb_id, igdb_info, added_on, pc_release_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (igdb_id, user_id) DO NOTHING
	`))
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	added := []WishedGame{}
	for _, game := range games {
		info := game.IGDBInfo
		if len(info) == 0 {
			info = json.RawMessage("{}")
		}
		res, err := stmt.Exec(game.ID, game.UserID, game.Title, game.IGDBID, string(info), game.AddedOn, game.PCReleaseDate)
		if err != nil {
			return nil, fmt.Errorf("failed to insert %q: %w", game.Title, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			Logger.Debug("Game already on wishlist", "igdb_id", game.IGDBID, "user", game.UserID)
			continue
		}
		added = append(added, game)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return added, nil
}

const wishedGameColumns = `id, user_id, title, igdb_id, igdb_info, added_on, pc_release_date`

// GetWishlist returns the user's games, oldest first
func (s *SQLDatabase) GetWishlist(userID string) ([]WishedGame, error) {
	rows, err := s.db.Query(s.bind(`SELECT `+wishedGameColumns+` FROM wished_games WHERE user_id = ? ORDER BY added_on, id`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWishedGames(rows)
}

func (s *SQLDatabase) RemoveGameFromWishlist(userID, id string) error {
	_, err := s.db.Exec(s.bind(`DELETE FROM wished_games WHERE id = ? AND user_id = ?`), id, userID)
	return err
}

// GetFutureWishlistGames returns games of every user that release on PC after now
func (s *SQLDatabase) GetFutureWishlistGames(now int64) ([]WishedGame, error) {
	rows, err := s.db.Query(s.bind(`SELECT `+wishedGameColumns+` FROM wished_games WHERE pc_release_date > ? ORDER BY pc_release_date`), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanWishedGames(rows)
}

func (s *SQLDatabase) UpdateReleaseInfo(id string, info json.RawMessage, pcReleaseDate int64) error {
	_, err := s.db.Exec(s.bind(`UPDATE wished_games SET igdb_info = ?, pc_release_date = ? WHERE id = ?`),
		string(info), pcReleaseDate, id)
	return err
}

func scanWishedGames(rows *sql.Rows) ([]WishedGame, error) {
	games := []WishedGame{}
	for rows.Next() {
		var game WishedGame
		var info []byte
		if err := rows.Scan(&game.ID, &game.UserID, &game.Title, &game.IGDBID, &info, &game.AddedOn, &game.PCReleaseDate); err != nil {
			return nil, err
		}
		game.IGDBInfo = json.RawMessage(info)
		games = append(games, game)
	}
	return games, rows.Err()
}
