package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"nuclight.org/thread-guard-bot/app/storage"
	"nuclight.org/thread-guard-bot/app/storage/migrations"
)

var opts struct {
	DBDriver string `long:"db-driver" env:"DB_DRIVER" default:"sqlite3" choice:"sqlite3" choice:"sqlite" choice:"pgx" description:"database driver"`
	DBPath   string `long:"db-path" env:"DB_PATH" default:"data/bot.sqlite3" description:"sqlite database file or postgres url"`

	Args struct {
		Command string `positional-arg-name:"command" description:"up, up-one, down, status, version or reset"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	_ = godotenv.Load()

	err := parseArgs(os.Args[1:])
	if err != nil {
		os.Exit(exitCode(err))
	}

	db, dialect, err := storage.Connect(context.Background(), opts.DBDriver, opts.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Setup(dialect); err != nil {
		log.Fatalf("setting up migrations: %v", err)
	}
	goose.SetLogger(log.New(os.Stdout, "", 0))

	cmd := opts.Args.Command
	switch cmd {
	case "up":
		err = goose.Up(db, ".")
	case "up-one":
		err = goose.UpByOne(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	case "reset":
		err = goose.Reset(db, ".")
	default:
		err = fmt.Errorf("unknown command")
	}

	if err != nil {
		_ = db.Close()
		log.Fatalf("%s: %v", cmd, err)
	}
}

// parseArgs fills opts. Parse errors and help are printed by the parser.
func parseArgs(args []string) error {
	_, err := flags.NewParser(&opts, flags.Default).ParseArgs(args)
	return err
}

func exitCode(err error) int {
	if flags.WroteHelp(err) {
		return 0
	}
	return 1
}
