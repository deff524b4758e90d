package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/api"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/cli"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/offline"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/session"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/storage"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/storage/boltdb"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/storage/sqlite"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/vault"
	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/cse"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Server URL")
	dbPath := flag.String("db", "passwords-client.db", "Path to local database")
	backend := flag.String("storage", "bolt", "Offline record backend: bolt or sqlite")
	offlineOn := flag.Bool("offline-enabled", true, "Keep encrypted offline snapshots")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	boltStorage, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		cli.Errf("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := boltStorage.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	// The keychain always lives in the bolt file; the offline records can
	// alternatively go to SQLite.
	var records storage.RecordStore = boltStorage
	if *backend == "sqlite" {
		sqliteStorage, err := sqlite.New(ctx, *dbPath+".sqlite")
		if err != nil {
			cli.Errf("Failed to open sqlite database: %v", err)
			os.Exit(1)
		}
		defer func() {
			if err := sqliteStorage.Close(); err != nil {
				logger.Error("failed to close sqlite database", "error", err)
			}
		}()
		records = sqliteStorage
	}

	cache, err := offline.NewCache(ctx, records, boltStorage, *offlineOn, logger)
	if err != nil {
		cli.Errf("Failed to initialize offline cache: %v", err)
		os.Exit(1)
	}

	apiClient := api.NewHTTPClient(*serverURL)
	sess := session.New(apiClient, boltStorage, logger)
	codec := cse.NewCodec(logger)
	svc := vault.NewService(codec, cache, sess, logger)

	var runErr error
	switch command {
	case "login":
		runErr = cli.RunLogin(ctx, sess, boltStorage, *serverURL)
	case "unlock":
		runErr = cli.RunUnlock(ctx, sess)
	case "status":
		runErr = cli.RunStatus(ctx, sess, svc, cache.Enabled())
	case "otp":
		runErr = cli.RunOTP(ctx, svc, args[1:])
	case "offline":
		runErr = cli.RunOffline(ctx, svc, args[1:])
	case "logout":
		runErr = cli.RunLogout(ctx, sess, boltStorage)
	default:
		cli.Errf("Unknown command: %s", command)
		cli.PrintUsage()
		os.Exit(1)
	}
	if runErr != nil {
		cli.Errf("Error: %v", runErr)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("Passwords Client\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
