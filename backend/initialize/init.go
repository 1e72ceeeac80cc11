package initialize

import (
	"context"
	"fmt"
	"net/http"

	"patchpilot/backend/app/controllers"
	"patchpilot/backend/app/db"
	"patchpilot/backend/app/hub"
	jwtutil "patchpilot/backend/app/jwt"
	"patchpilot/backend/app/metrics"
	"patchpilot/backend/app/middleware"
	"patchpilot/backend/app/repo"
	"patchpilot/backend/app/services"
	"patchpilot/backend/config"
	"patchpilot/backend/global"
	"patchpilot/backend/router"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type App struct {
	Cfg      config.Config
	DB       *gorm.DB
	Router   http.Handler
	Hub      *hub.Hub
	Redis    *hub.RedisNotifier
	Settings *services.SettingsStore
	Actions  *services.ActionService
	Devices  *services.DeviceService
	Users    *services.UserService
	Sweeper  *services.Sweeper
	Metrics  *metrics.Metrics
}

func Build(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	app, err := BuildWith(*cfg)
	if err != nil {
		return nil, err
	}
	fileSettings := cfg.Settings
	config.Watch(configPath, func(s config.Settings) {
		applied, keys, err := app.Settings.Reload(fileSettings, s)
		if err != nil {
			global.Logger.Warn().Err(err).Msg("settings from config file rejected")
			return
		}
		fileSettings = s
		if len(keys) > 0 {
			global.Logger.Info().Strs("keys", keys).Interface("settings", applied).Msg("settings reloaded from config file")
		}
	}, func(err error) {
		global.Logger.Warn().Err(err).Msg("config watch disabled")
	})
	return app, nil
}

// BuildWith wires the server from an already loaded config.
func BuildWith(cfg config.Config) (*App, error) {
	global.Config = cfg

	gdb, err := db.Connect(db.Config{
		Driver: cfg.DB.Driver, Host: cfg.DB.Host, Port: cfg.DB.Port, User: cfg.DB.User,
		Password: cfg.DB.Pass, DBName: cfg.DB.Name, Path: cfg.DB.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	global.Mdb = gdb
	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// Repositories
	userRepo := repo.NewUserRepository(gdb)
	deviceRepo := repo.NewDeviceRepository(gdb)
	actionRepo := repo.NewActionRepository(gdb)
	logRepo := repo.NewLogRepository(gdb)
	settingsRepo := repo.NewSettingsRepository(gdb)

	// Services
	settings := services.NewSettingsStore(cfg.Settings, settingsRepo)
	if err := settings.Load(); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	m := metrics.New()
	h := hub.NewHub()
	var notifier hub.Notifier = h
	var rn *hub.RedisNotifier
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			global.Logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, long-poll wakeups stay local")
			_ = rdb.Close()
		} else {
			global.Rdb = rdb
			rn = hub.NewRedisNotifier(rdb, h)
			notifier = rn
		}
	}
	signer := &jwtutil.Signer{Secret: []byte(cfg.JWT.Secret), Issuer: cfg.JWT.Issuer, ExpMin: cfg.JWT.ExpMin}
	userSvc := services.NewUserService(userRepo)
	deviceSvc := services.NewDeviceService(deviceRepo, logRepo, settings, signer, h)
	actionSvc := services.NewActionService(actionRepo, deviceRepo, settings, h, notifier, m, cfg.CommandSecret)
	logSvc := services.NewLogService(logRepo)
	if err := userSvc.EnsureAdmin(cfg.Admin.Username, cfg.Admin.Password); err != nil {
		global.Logger.Warn().Err(err).Msg("ensure admin user")
	}

	// Controllers
	mw := &middleware.Auth{Signer: signer, RequireDeviceToken: func() bool { return settings.Snapshot().RequireDeviceToken }}
	ctrls := router.Controllers{
		HTTP:     controllers.NewHTTPController(gdb),
		Auth:     controllers.NewAuthController(userSvc, signer),
		Devices:  controllers.NewDeviceController(deviceSvc),
		Commands: controllers.NewCommandController(actionSvc),
		Actions:  controllers.NewActionController(actionSvc),
		Settings: controllers.NewSettingsController(settings),
		Logs:     controllers.NewLogController(logSvc),
	}

	// Router
	handler := router.NewRouter(ctrls, mw, m.Handler())
	// Wrap with logging middleware
	handler = middleware.Logging(handler)

	return &App{
		Cfg:      cfg,
		DB:       gdb,
		Router:   handler,
		Hub:      h,
		Redis:    rn,
		Settings: settings,
		Actions:  actionSvc,
		Devices:  deviceSvc,
		Users:    userSvc,
		Sweeper:  services.NewSweeper(actionSvc, settings),
		Metrics:  m,
	}, nil
}

// Start launches the background workers; they stop when ctx is done.
func (a *App) Start(ctx context.Context) {
	go a.Sweeper.Run(ctx)
	if a.Redis != nil {
		go a.Redis.Run(ctx)
	}
}

func (a *App) Close() error {
	if global.Rdb != nil {
		_ = global.Rdb.Close()
	}
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
