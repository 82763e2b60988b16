package main

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ogurasousui/hrbank-api/internal/platform/config"
	"github.com/ogurasousui/hrbank-api/internal/platform/logger"
)

// actions は migrate に渡せる操作です。引数省略時は up です。
var actions = map[string]func(*migrate.Migrate) error{
	"up":   func(m *migrate.Migrate) error { return ignoreNoChange(m.Up()) },
	"down": func(m *migrate.Migrate) error { return ignoreNoChange(m.Down()) },
	"drop": func(m *migrate.Migrate) error { return m.Drop() },
	"version": func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.L().Info().Msg("no migration applied")
			return nil
		}
		if err != nil {
			return err
		}
		logger.L().Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
		return nil
	},
}

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	migrationsDir := flag.String("dir", "assets/migrations", "directory containing migration files")
	flag.Parse()

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}
	log := logger.L().With().Str("action", action).Logger()

	cfg, err := config.Load(config.ResolvePath(*configPath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := run(action, *migrationsDir, cfg.Database.DSN()); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("migration completed")
}

func run(action, dir, dsn string) error {
	fn, ok := actions[action]
	if !ok {
		return fmt.Errorf("unsupported action %q", action)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path for %s: %w", dir, err)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(absDir), dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	return fn(m)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
