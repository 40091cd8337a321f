package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	config "github.com/drummonds/playday/config"
	"github.com/drummonds/playday/covers"
	database "github.com/drummonds/playday/database"
	engine "github.com/drummonds/playday/engine"
	"github.com/drummonds/playday/igdb"
	"github.com/drummonds/playday/webapp"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	database.Logger = Logger
	config.Logger = Logger
	engine.Logger = Logger
	igdb.Logger = Logger
	covers.Logger = Logger
}

// registerRoutes wires the API and the go-app UI into echo
func registerRoutes(e *echo.Echo, serverHandler *engine.ServerHandler, appHandler http.Handler) {
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))

	// Serve wasm_exec.js (go-app expects it here)
	e.GET("/wasm_exec.js", func(c echo.Context) error {
		return c.File("web/wasm_exec.js")
	})

	// Register go-app specific resources
	e.GET("/app.js", echo.WrapHandler(appHandler))
	e.GET("/app.css", echo.WrapHandler(appHandler))
	e.GET("/manifest.webmanifest", echo.WrapHandler(appHandler))

	// Serve static assets
	e.Static("/web", "web")

	serverHandler.RegisterRoutes(e)

	// Serve go-app handler for all other routes (must be last)
	e.Any("/*", echo.WrapHandler(appHandler))
}

func main() {
	// Parse command-line flags
	devMode := flag.Bool("dev", false, "Run in development mode with ephemeral PostgreSQL")
	configPath := flag.String("config", "", "Path to serverConfig.toml, defaults to config/ or the working directory")
	flag.Parse()

	var serverConfig config.ServerConfig
	var logger *slog.Logger
	if *configPath != "" {
		serverConfig, logger = config.SetupServerFromFile(*configPath)
	} else {
		serverConfig, logger = config.SetupServer()
	}
	injectGlobals(logger) //inject the logger into all of the packages

	// Setup database based on dev mode or configuration
	var db database.DBInterface
	if *devMode {
		fmt.Println("\n" + strings.Repeat("=", 50))
		fmt.Println("DEVELOPMENT MODE - Ephemeral PostgreSQL")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Println("• Wishlist will be destroyed on exit")
		fmt.Println(strings.Repeat("=", 50) + "\n")

		Logger.Info("Starting ephemeral PostgreSQL for development")
		ephemeralDB, err := database.SetupEphemeralPostgresDatabase()
		if err != nil {
			Logger.Error("Failed to setup ephemeral PostgreSQL", "error", err)
			os.Exit(1)
		}
		db = ephemeralDB
		serverConfig.DatabaseType = database.DialectPostgres
		serverConfig.DatabaseConnString = ""
		// Ensure cleanup happens on exit
		defer func() {
			Logger.Info("Shutting down ephemeral PostgreSQL...")
			ephemeralDB.Close()
		}()
	} else {
		Logger.Info("About to setup database", "type", serverConfig.DatabaseType)
		var err error
		db, err = database.SetupDatabase(serverConfig.DatabaseType, serverConfig.DatabasePath, serverConfig.DatabaseConnString)
		if err != nil {
			Logger.Error("Unable to setup database", "type", serverConfig.DatabaseType, "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}
	Logger.Info("Database setup complete, about to setup search DB")
	searchDB, err := database.SetupSearchDB(serverConfig.SearchIndexPath)
	if err != nil {
		Logger.Error("Unable to setup index database", "error", err)
		os.Exit(1)
	}
	defer searchDB.Close()

	coverCache, err := covers.NewCache(covers.Config{
		CachePath: serverConfig.Covers.CachePath,
		BaseURL:   serverConfig.Covers.BaseURL,
		Size:      serverConfig.Covers.Size,
		Width:     serverConfig.Covers.Width,
		Prefetch:  serverConfig.Covers.Prefetch,
	})
	if err != nil {
		// the wishlist still works without pictures
		Logger.Warn("Cover cache disabled", "error", err)
	}
	igdbClient := igdb.NewClient(igdb.Config{
		ClientID:     serverConfig.IGDB.ClientID,
		ClientSecret: serverConfig.IGDB.ClientSecret,
		APIURL:       serverConfig.IGDB.APIURL,
		TokenURL:     serverConfig.IGDB.TokenURL,
	})

	e := echo.New()
	e.HideBanner = true
	serverHandler := &engine.ServerHandler{ //injecting the database into the handler for routes
		DB:           db,
		SearchDB:     searchDB,
		IGDB:         igdbClient,
		Covers:       coverCache,
		Echo:         e,
		ServerConfig: serverConfig,
	}
	if err := serverHandler.StartupChecks(); err != nil {
		os.Exit(1)
	}
	Logger.Info("Startup checks complete, about to initialize schedules")
	scheduler := serverHandler.InitializeSchedules() //initialize all the cron jobs
	defer scheduler.Stop()

	Logger.Info("Setting up go-app WASM UI")
	registerRoutes(e, serverHandler, webapp.Handler())

	if serverConfig.ListenAddrIP == "" {
		Logger.Info("No Ip Addr set, binding on ALL addresses")
	}

	Logger.Info("Starting HTTP server")

	// Try to start server with automatic port increment if port is in use
	maxRetries := 5
	startPort := serverConfig.ListenAddrPort
	var startErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		addr := fmt.Sprintf("%s:%s", serverConfig.ListenAddrIP, serverConfig.ListenAddrPort)
		Logger.Info("Attempting to start server", "address", addr, "attempt", attempt+1)

		startErr = e.Start(addr)

		if startErr != nil && isAddressInUse(startErr) {
			Logger.Warn("Port already in use, trying next port",
				"port", serverConfig.ListenAddrPort,
				"attempt", attempt+1,
				"max_attempts", maxRetries)

			portNum := 0
			fmt.Sscanf(serverConfig.ListenAddrPort, "%d", &portNum)
			portNum++
			serverConfig.ListenAddrPort = fmt.Sprintf("%d", portNum)

			if attempt == maxRetries-1 {
				Logger.Error("Failed to find available port after maximum retries",
					"start_port", startPort,
					"end_port", serverConfig.ListenAddrPort,
					"max_retries", maxRetries)
				os.Exit(1)
			}
		} else if startErr != nil && startErr != http.ErrServerClosed {
			Logger.Error("Failed to start server", "error", startErr)
			os.Exit(1)
		} else {
			break
		}
	}

	if serverConfig.ListenAddrPort != startPort {
		Logger.Warn("Server started on alternative port due to conflicts",
			"requested_port", startPort,
			"actual_port", serverConfig.ListenAddrPort)
	}
}

// isAddressInUse checks if the error is due to address already in use
func isAddressInUse(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "address already in use")
}
