// Package cli implements the recall CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/recall/internal/config"
	"github.com/rcliao/recall/internal/server"
	"github.com/rcliao/recall/internal/store"
)

var (
	dbPath     string
	configPath string
	userFlag   string

	cfg    *config.Config
	logger *slog.Logger
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:     "recall",
	Short:   "Per-user memory for AI assistants",
	Long:    "Remember short facts per user. SQLite-backed, full-text ranked search, single binary.",
	Version: server.Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $RECALL_DB or ~/.recall/memory.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $RECALL_CONFIG or ~/.recall/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User id (default: $RECALL_USER or default_user from config)")
}

func loadConfig() {
	c, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		c.DBPath = dbPath
	}
	if userFlag != "" {
		c.DefaultUser = userFlag
	}
	if err := c.Validate(); err != nil {
		exitErr("config", err)
	}
	cfg = c
	logger = c.NewLogger(os.Stderr)
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath, store.Options{
		Logger:              logger,
		BusyTimeout:         cfg.BusyTimeout(),
		DisableRankedSearch: cfg.Store.DisableRankedSearch,
	})
}

// requireUser returns the effective user id or exits.
func requireUser(op string) string {
	if cfg.DefaultUser == "" {
		exitErr(op, store.ErrEmptyUserID)
	}
	return cfg.DefaultUser
}

// splitTags parses a comma-separated tag list. An empty string yields nil
// so that a refresh keeps existing tags.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
