package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"peregovorka/internal/api"
	"peregovorka/internal/bot"
	"peregovorka/internal/config"
	"peregovorka/internal/database"
	"peregovorka/internal/domain"
	"peregovorka/internal/events"
	"peregovorka/internal/logging"
	"peregovorka/internal/metrics"
	"peregovorka/internal/models"
	"peregovorka/internal/repository"
	"peregovorka/internal/service"
	"peregovorka/internal/timezone"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, db, err := initRepository(cfg, &logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	eventBus := events.NewEventBus()
	subscribeAudit(eventBus, &logger)

	clock := timezone.NewProvider(repo, &logger)
	reservations := service.NewReservationService(repo, clock, eventBus, &logger)

	if err := reservations.Bootstrap(ctx, cfg.Bot.AdminUserID); err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации администратора")
		return err
	}
	if err := seedRooms(ctx, cfg.Bot.RoomsFile, reservations, &logger); err != nil {
		return err
	}

	limiter := initRateLimiter(ctx, cfg, reservations, &logger)

	if cfg.API.Enabled {
		metrics.Register()
		apiServer := api.NewHTTPServer(cfg.API, reservations, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Backup.Enabled && db != nil {
		backupService := database.NewBackupService(db, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	return startBot(ctx, cfg, reservations, limiter, &logger)
}

// initRepository opens the configured store. db is nil for the in-memory driver.
func initRepository(cfg *config.Config, logger *zerolog.Logger) (domain.Repository, *database.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn().Msg("Using in-memory storage, data is lost on restart")
		return repository.NewInMemoryRepository(), nil, nil
	default:
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
			return nil, nil, err
		}
		return db, db, nil
	}
}

func seedRooms(ctx context.Context, path string, svc *service.ReservationService, logger *zerolog.Logger) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("path", path).Msg("Rooms file not found, skipping seed")
			return nil
		}
		logger.Error().Err(err).Msgf("Ошибка чтения %s", path)
		return err
	}

	var roomsConfig struct {
		Rooms []models.Room `yaml:"rooms"`
	}
	if err := yaml.Unmarshal(data, &roomsConfig); err != nil {
		logger.Error().Err(err).Msgf("Ошибка парсинга %s", path)
		return fmt.Errorf("failed to parse rooms file: %w", err)
	}

	created, err := svc.SeedRooms(ctx, roomsConfig.Rooms)
	if err != nil {
		return err
	}
	logger.Info().Int("created", created).Int("listed", len(roomsConfig.Rooms)).Msg("Rooms seeded")
	return nil
}

// initRateLimiter prefers Redis and falls back to process memory while Redis is down.
func initRateLimiter(ctx context.Context, cfg *config.Config, admins *service.ReservationService, logger *zerolog.Logger) *service.MessageLimiter {
	var primary domain.RateLimiter = repository.NewMemoryRateLimiter()
	if cfg.Redis.Address != "" {
		redisClient := repository.NewRedisClient(cfg.Redis)
		if err := repository.Ping(ctx, redisClient); err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable")
		}
		primary = repository.NewFailoverRateLimiter(
			repository.NewRedisRateLimiter(redisClient),
			repository.NewMemoryRateLimiter(),
			logger,
		)
	}
	return service.NewMessageLimiter(primary, admins, cfg.Bot.RateLimitMessages, cfg.Bot.RateWindow(), logger)
}

func subscribeAudit(bus *events.EventBus, logger *zerolog.Logger) {
	bus.OnError(func(ev *events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: handler failed")
	})
	bus.Subscribe(func(ev *events.Event) error {
		logger.Info().
			Str("event", ev.Type).
			RawJSON("payload", ev.Payload).
			Time("at", ev.CreatedAt).
			Msg("audit")
		return nil
	}, events.AllEvents...)
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	reservations *service.ReservationService,
	limiter *service.MessageLimiter,
	logger *zerolog.Logger,
) error {
	if cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Error().Msg("Задайте токен бота в config.yaml")
		return os.ErrInvalid
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	tgService := service.NewTelegramService(bot.NewBotWrapper(botAPI))

	telegramBot, err := bot.NewBot(tgService, reservations, limiter, cfg, bot.NewMetrics(nil), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return err
	}

	logger.Info().Msg("Бот запущен...")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}
