package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
)

// EphemeralPostgres is a throwaway PostgreSQL server for development and tests. Everything
// is deleted on Close.
type EphemeralPostgres struct {
	*SQLDatabase
	server     *embeddedpostgres.EmbeddedPostgres
	runtimeDir string
}

// SetupEphemeralPostgresDatabase starts an embedded PostgreSQL on a free port
func SetupEphemeralPostgresDatabase() (*EphemeralPostgres, error) {
	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("failed to find a free port: %w", err)
	}
	runtimeDir, err := os.MkdirTemp("", "playday-postgres-")
	if err != nil {
		return nil, err
	}

	var logOutput io.Writer = io.Discard
	if Logger.Enabled(context.Background(), slog.LevelDebug) {
		logOutput = os.Stdout
	}
	server := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		Username("postgres").
		Password("postgres").
		Database("playday").
		Port(uint32(port)).
		RuntimePath(filepath.Join(runtimeDir, "runtime")).
		DataPath(filepath.Join(runtimeDir, "data")).
		Logger(logOutput))

	Logger.Info("Starting embedded PostgreSQL", "port", port, "dir", runtimeDir)
	if err := server.Start(); err != nil {
		os.RemoveAll(runtimeDir)
		return nil, fmt.Errorf("failed to start embedded postgres: %w", err)
	}

	connString := fmt.Sprintf("host=localhost port=%d user=postgres password=postgres dbname=playday sslmode=disable", port)
	db, err := SetupPostgresDatabase(connString)
	if err != nil {
		server.Stop()
		os.RemoveAll(runtimeDir)
		return nil, err
	}
	return &EphemeralPostgres{SQLDatabase: db, server: server, runtimeDir: runtimeDir}, nil
}

// Close disconnects, stops the server and removes its files
func (e *EphemeralPostgres) Close() error {
	dbErr := e.SQLDatabase.Close()
	stopErr := e.server.Stop()
	os.RemoveAll(e.runtimeDir)
	if dbErr != nil {
		return dbErr
	}
	return stopErr
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
