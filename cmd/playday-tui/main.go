package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/drummonds/playday/tui"
	"github.com/drummonds/playday/wishlist"
)

func main() {
	server := flag.String("server", "http://localhost:8000", "playday server to talk to")
	logPath := flag.String("log", "", "write debug logs to this file")
	flag.Parse()

	// the terminal belongs to the UI, so logs only go to a file
	var logWriter io.Writer = io.Discard
	if *logPath != "" {
		logFile, err := os.Create(*logPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Unable to create log file:", err)
			os.Exit(1)
		}
		defer logFile.Close()
		logWriter = logFile
	}
	tui.Logger = slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := wishlist.NewController(wishlist.NewClient(*server))
	p := tea.NewProgram(tui.New(ctx, ctrl), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
