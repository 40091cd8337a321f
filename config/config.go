package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// ServerConfig contains all of the server settings defined in the TOML file
type ServerConfig struct {
	ListenAddrIP       string
	ListenAddrPort     string
	DatabaseType       string // sqlite or postgres
	DatabaseConnString string // postgres connection string, empty means ephemeral
	DatabasePath       string // sqlite file
	SearchIndexPath    string // bleve catalog index
	UseReverseProxy    bool
	BaseURL            string
	IGDB               IGDBConfig
	Covers             CoverConfig
	Reminders          ReminderConfig
	User               UserConfig
}

// IGDBConfig holds the catalog credentials, IGDB is only used when both are set
type IGDBConfig struct {
	ClientID     string `json:"-"`
	ClientSecret string `json:"-"`
	APIURL       string
	TokenURL     string
}

type CoverConfig struct {
	CachePath string
	BaseURL   string
	Size      string
	Width     int
	Prefetch  int // parallel downloads when a batch of games is added
}

type ReminderConfig struct {
	IntervalMinutes int
	WindowDays      int
}

// UserConfig is the single wishlist owner
type UserConfig struct {
	Name  string
	Email string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serverConfig.ServerAddr", "")
	v.SetDefault("serverConfig.ServerPort", "8000")
	v.SetDefault("database.Type", "sqlite")
	v.SetDefault("database.Path", "databases/playday.db")
	v.SetDefault("database.ConnString", "")
	v.SetDefault("search.IndexPath", "databases/catalogIndex.bleve")
	v.SetDefault("igdb.APIURL", "https://api.igdb.com/v4")
	v.SetDefault("igdb.TokenURL", "https://id.twitch.tv/oauth2/token")
	v.SetDefault("covers.CachePath", "databases/covers")
	v.SetDefault("covers.BaseURL", "https://images.igdb.com/igdb/image/upload")
	v.SetDefault("covers.Size", "t_cover_big")
	v.SetDefault("covers.Width", 264)
	v.SetDefault("covers.Prefetch", 4)
	v.SetDefault("reminders.IntervalMinutes", 60)
	v.SetDefault("reminders.WindowDays", 3)
	v.SetDefault("user.Name", "Player One")
	v.SetDefault("user.Email", "player@localhost")
	v.SetDefault("logging.Level", "warn")
	v.SetDefault("logging.OutputPath", "stdout")
	v.SetDefault("logging.LogFileLocation", "playday.log")
	v.SetDefault("reverseProxy.ProxyEnabled", false)
	v.SetDefault("reverseProxy.BaseURL", "")
}

// SetupServer does the initial configuration from config/serverConfig.toml or ./serverConfig.toml
func SetupServer() (ServerConfig, *slog.Logger) {
	v := viper.New()
	v.AddConfigPath("config/")
	v.AddConfigPath(".")
	v.SetConfigName("serverConfig")
	return setup(v)
}

// SetupServerFromFile is SetupServer for an explicit config file
func SetupServerFromFile(path string) (ServerConfig, *slog.Logger) {
	v := viper.New()
	v.SetConfigFile(path)
	return setup(v)
}

func setup(v *viper.Viper) (ServerConfig, *slog.Logger) {
	setDefaults(v)
	v.BindEnv("igdb.ClientID", "IGDB_CLIENT_ID")
	v.BindEnv("igdb.ClientSecret", "IGDB_CLIENT_SECRET")
	v.BindEnv("database.ConnString", "DATABASE_URL")
	v.BindEnv("serverConfig.ServerPort", "PLAYDAY_PORT")

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
	if err != nil && !missing {
		panic(fmt.Errorf("fatal error config file: %s \n", err))
	}
	logger := setupLogging(v)
	if missing {
		logger.Warn("No config file found, using defaults")
	} else {
		logger.Info("Config file loaded", "path", v.ConfigFileUsed())
	}

	var serverConfigLive ServerConfig
	serverConfigLive.ListenAddrIP = v.GetString("serverConfig.ServerAddr")
	serverConfigLive.ListenAddrPort = v.GetString("serverConfig.ServerPort")
	serverConfigLive.DatabaseType = strings.ToLower(v.GetString("database.Type"))
	serverConfigLive.DatabaseConnString = v.GetString("database.ConnString")
	serverConfigLive.DatabasePath = absPath(v.GetString("database.Path"), logger)
	serverConfigLive.SearchIndexPath = absPath(v.GetString("search.IndexPath"), logger)
	serverConfigLive.UseReverseProxy = v.GetBool("reverseProxy.ProxyEnabled")
	serverConfigLive.BaseURL = v.GetString("reverseProxy.BaseURL")
	serverConfigLive.IGDB = IGDBConfig{
		ClientID:     v.GetString("igdb.ClientID"),
		ClientSecret: v.GetString("igdb.ClientSecret"),
		APIURL:       v.GetString("igdb.APIURL"),
		TokenURL:     v.GetString("igdb.TokenURL"),
	}
	serverConfigLive.Covers = CoverConfig{
		CachePath: absPath(v.GetString("covers.CachePath"), logger),
		BaseURL:   v.GetString("covers.BaseURL"),
		Size:      v.GetString("covers.Size"),
		Width:     v.GetInt("covers.Width"),
		Prefetch:  v.GetInt("covers.Prefetch"),
	}
	serverConfigLive.Reminders = ReminderConfig{
		IntervalMinutes: v.GetInt("reminders.IntervalMinutes"),
		WindowDays:      v.GetInt("reminders.WindowDays"),
	}
	if serverConfigLive.Reminders.IntervalMinutes <= 0 {
		logger.Warn("Invalid reminder interval, falling back to 60 minutes", "interval", serverConfigLive.Reminders.IntervalMinutes)
		serverConfigLive.Reminders.IntervalMinutes = 60
	}
	serverConfigLive.User = UserConfig{
		Name:  v.GetString("user.Name"),
		Email: v.GetString("user.Email"),
	}
	if serverConfigLive.IGDB.ClientID == "" || serverConfigLive.IGDB.ClientSecret == "" {
		logger.Info("No IGDB credentials configured, searching the local catalog index only")
	}
	return serverConfigLive, logger
}

func absPath(path string, logger *slog.Logger) string {
	abs, err := filepath.Abs(filepath.ToSlash(path))
	if err != nil {
		logger.Error("Failed creating absolute path", "path", path, "error", err)
		return path
	}
	return abs
}

func setupLogging(v *viper.Viper) *slog.Logger {
	var loglevel slog.Level
	switch strings.ToLower(v.GetString("logging.Level")) {
	case "debug":
		loglevel = slog.LevelDebug
	case "info":
		loglevel = slog.LevelInfo
	case "warn":
		loglevel = slog.LevelWarn
	case "error":
		loglevel = slog.LevelError
	default:
		loglevel = slog.LevelWarn
	}

	var logWriter io.Writer
	if v.GetString("logging.OutputPath") == "file" {
		logPath, err := filepath.Abs(filepath.ToSlash(v.GetString("logging.LogFileLocation")))
		if err != nil {
			fmt.Println("Unable to create log file path: ", err)
			logPath = "output.log"
		}
		logFile, err := os.Create(logPath)
		if err != nil {
			fmt.Println("Unable to create log file: ", err)
			logWriter = os.Stdout
		} else {
			logWriter = logFile
			fmt.Println("Logging to file: ", logPath)
		}
	} else {
		logWriter = os.Stdout
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: loglevel})
	return slog.New(handler)
}
