package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/whodle/whodle/internal/config"
	"github.com/whodle/whodle/internal/guess"
	"github.com/whodle/whodle/internal/persona"
	"github.com/whodle/whodle/internal/service"
	"github.com/whodle/whodle/internal/store"
	"github.com/whodle/whodle/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(log *logrus.Logger) *cli.App {
	app := &cli.App{
		Name:    "whodle",
		Usage:   "Daily persona-guessing game API",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to config.json"},
		},
		Commands: []*cli.Command{
			serveCmd(log),
			personasCmd(),
			todayCmd(),
		},
	}
	return app
}

// loadConfig resolves configuration for a command invocation.
func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.String("config"))
}

// openStore builds the configured guess store backend.
func openStore(cfg *config.Config, log *logrus.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		log.Warn("memory store configured: guesses will not survive a restart")
		return store.NewMemoryStore(), nil
	case "sqlite":
		return store.OpenSQLite(cfg.DataDir, store.SQLiteOptions{
			MaxOpenConns: cfg.DBMaxOpenConns,
			MaxIdleConns: cfg.DBMaxIdleConns,
		})
	case "badger":
		return store.OpenBadger(filepath.Join(cfg.DataDir, "badger"), log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// serveCmd creates the serve command.
func serveCmd(log *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen interface (overrides config)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if bind := c.String("bind"); bind != "" {
				cfg.Bind = bind
			}
			if port := c.Int("port"); port != 0 {
				cfg.Port = port
			}

			if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
				log.SetLevel(level)
			} else {
				log.WithField("level", cfg.LogLevel).Warn("unknown log level, keeping default")
			}

			catalog, err := persona.LoadCatalog(cfg.PersonaFile)
			if err != nil {
				return err
			}

			st, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			svc := service.New(
				st,
				log,
				cfg.MaxDailyGuesses,
				time.Now,
				time.Duration(cfg.StoreTimeoutSeconds)*time.Second,
			)

			log.WithFields(logrus.Fields{
				"backend":  cfg.StoreBackend,
				"personas": catalog.Len(),
				"cap":      cfg.MaxDailyGuesses,
			}).Info("starting whodle")

			router := web.NewRouter(svc, catalog, cfg.DailySalt, log)
			return web.Run(web.NewServer(router, cfg.Bind, cfg.Port), log)
		},
	}
}

// personasCmd creates the personas command: validate and list the catalog.
func personasCmd() *cli.Command {
	return &cli.Command{
		Name:  "personas",
		Usage: "Validate the persona catalog and list its entries",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Persona file (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			path := cfg.PersonaFile
			if f := c.String("file"); f != "" {
				path = f
			}

			catalog, err := persona.LoadCatalog(path)
			if err != nil {
				return err
			}

			fmt.Printf("%d personas in %s\n", catalog.Len(), path)
			for _, p := range catalog.List() {
				fmt.Println(p.Name)
			}
			return nil
		},
	}
}

// todayCmd creates the today command: print the persona of the day.
func todayCmd() *cli.Command {
	return &cli.Command{
		Name:  "today",
		Usage: "Print today's persona",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Override the date (YYYY-MM-DD)"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			catalog, err := persona.LoadCatalog(cfg.PersonaFile)
			if err != nil {
				return err
			}

			date := guess.DateOf(time.Now())
			if raw := c.String("date"); raw != "" {
				parsed, err := time.Parse("2006-01-02", raw)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", raw, err)
				}
				date = guess.DateOf(parsed)
			}

			fmt.Println(catalog.ForDate(date, cfg.DailySalt))
			return nil
		},
	}
}
