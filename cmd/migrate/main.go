// Command migrate applies the embedded schema migrations. The connection
// comes from -dsn, or from the database section of the service config.
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/JaimeStill/attest/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

const usage = `usage: migrate [-config path] [-dsn url] <command>

commands:
  up         apply every pending migration
  down       revert every migration
  steps N    apply N migrations, or revert when N is negative
  version    print the current version
  force N    mark version N as clean after a failed migration
`

func main() {
	var (
		cfgPath = flag.String("config", config.BaseConfigFile, "Service config file")
		dsn     = flag.String("dsn", "", "Database URL, overrides the config")
	)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	url := *dsn
	if url == "" {
		db, err := config.LoadDatabase(*cfgPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		url = db.URL()
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		log.Fatalf("open migrations: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer m.Close()

	if err := run(m, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func run(m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up":
		return report(m.Up(), "schema up to date")
	case "down":
		return report(m.Down(), "schema reverted")
	case "steps":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return report(m.Steps(n), fmt.Sprintf("applied %d steps", n))
	case "force":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return report(m.Force(n), fmt.Sprintf("forced version %d", n))
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("version: %w", err)
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func report(err error, done string) error {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	fmt.Println(done)
	return nil
}

func intArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s needs a number", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", args[0], err)
	}
	return n, nil
}
