package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"prokat/internal/auth"
	"prokat/internal/bot"
	"prokat/internal/codec"
	"prokat/internal/config"
	"prokat/internal/database"
	"prokat/internal/domain"
	"prokat/internal/events"
	"prokat/internal/google"
	"prokat/internal/logging"
	"prokat/internal/menu"
	"prokat/internal/repository"
	"prokat/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// terminalSession is the menu session of the local operator.
const terminalSession int64 = 0

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := logging.Component(baseLogger, "prokat-main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, cleanup, err := catalogOptions(ctx, cfg, baseLogger)
	if err != nil {
		return err
	}
	defer cleanup()

	catalog := service.NewCatalogService(events.NewEventBus(), logging.Component(baseLogger, "catalog"), opts...)
	access := auth.NewAccess(cfg.Access.Users, cfg.Access.Admins)

	states, redisClient := repository.NewStateRepository(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	m := menu.New(catalog, access, states, cfg.Storage, logging.Component(baseLogger, "menu"))

	var telegramBot *bot.Bot
	if cfg.Telegram.BotToken != "" {
		telegramBot, err = startBot(ctx, cfg, m, states, baseLogger)
		if err != nil {
			return err
		}
		defer telegramBot.Stop()
	}

	err = runTerminal(ctx, m, os.Stdin, os.Stdout)
	if !errors.Is(err, io.EOF) {
		return err
	}
	// Без терминала продолжаем обслуживать бота до сигнала
	if telegramBot != nil {
		logger.Info().Msg("Terminal input closed, serving Telegram only")
		<-ctx.Done()
	}
	return nil
}

// loadConfig falls back to defaults when no file is given. Logs go to
// stderr by default so they do not interleave with the menu.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		cfg.Logging.Output = "stderr"
		return cfg, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Logging.Output == "" || strings.EqualFold(cfg.Logging.Output, "stdout") {
		cfg.Logging.Output = "stderr"
	}
	return cfg, nil
}

func catalogOptions(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) ([]service.Option, func(), error) {
	var opts []service.Option
	cleanup := func() {}

	if cfg.Catalog.SeedPath != "" {
		items, err := codec.LoadSeed(cfg.Catalog.SeedPath)
		if err != nil {
			return nil, cleanup, err
		}
		opts = append(opts, service.WithItems(items...))
		logger.Info().Str("path", cfg.Catalog.SeedPath).Int("count", len(items)).Msg("Catalog seed loaded")
	}

	db, err := database.NewDB(cfg.Storage.SQLitePath, logging.Component(logger, "database"))
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.Storage.SQLitePath).Msg("SQLite unavailable, snapshots disabled")
	} else {
		opts = append(opts, service.WithSnapshotStore(db))
		cleanup = func() { _ = db.Close() }
	}

	if cfg.Google.SheetsEnabled() {
		sheet, err := google.NewCatalogSheet(ctx, cfg.Google.CredentialsFile, cfg.Google.CatalogSpreadsheetID, cfg.Google.SheetName)
		if err != nil {
			logger.Warn().Err(err).Msg("Google Sheets init failed, publishing disabled")
		} else {
			opts = append(opts, service.WithSheetsWriter(sheet))
		}
	}

	return opts, cleanup, nil
}

func startBot(ctx context.Context, cfg *config.Config, m *menu.Menu, states domain.StateRepository, logger *zerolog.Logger) (*bot.Bot, error) {
	wrapper, err := bot.Connect(cfg.Telegram)
	if err != nil {
		return nil, err
	}

	botLogger := logging.Component(logger, "bot")
	telegramBot := bot.NewBot(wrapper, m, states, cfg.Menu, bot.NewMetrics(prometheus.DefaultRegisterer), botLogger)
	botLogger.Info().Str("username", wrapper.Self.UserName).Msg("Telegram bot started")

	go telegramBot.Start(ctx)
	return telegramBot, nil
}

// runTerminal drives one menu session from in until exit or ctx is done.
// It returns io.EOF when in runs out first.
func runTerminal(ctx context.Context, m *menu.Menu, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	fmt.Fprint(out, menu.Text())
	for {
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				if err := <-readErr; err != nil {
					return err
				}
				return io.EOF
			}
			line = l
		}

		reply, err := m.Handle(ctx, terminalSession, line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		switch {
		case reply.Exit:
			fmt.Fprintln(out, reply.Text)
			return nil
		case reply.Done:
			fmt.Fprint(out, reply.Text, "\n\n", menu.Text())
		default:
			fmt.Fprint(out, reply.Text)
		}
	}
}
