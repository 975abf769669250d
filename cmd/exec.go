package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"eventease/auth"
	"eventease/config"
	"eventease/data/redisstore"
	"eventease/handlers"
	"eventease/lifecycle"
	"eventease/logic"
	_ "eventease/migrations"
	"eventease/models"
	"eventease/monitoring"
	"eventease/security"
	"eventease/services"
	"eventease/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the registration stack
	store := redisstore.NewStore(redisClient, cfg.ListenPollInterval)
	machine := lifecycle.NewMachine(cfg.InvitationWindow)
	notifier := services.NewNotifier(pn)

	var monitor *monitoring.Monitor
	if cfg.EnableMetrics {
		monitor = monitoring.NewMonitor(redisClient)
		go startMetricsServer(cfg, redisClient)
	}

	registrationService := services.NewRegistrationService(store, machine, notifier, monitor)
	sweeper := services.NewExpirySweeper(store, machine, notifier, monitor, cfg.ExpirySweepEvery)
	defer sweeper.Shutdown()

	rateLimiter := security.NewRateLimiter(redisClient, cfg.JoinRateLimit, cfg.JoinRateWindow)
	prefs := auth.NewPrefsStore(cfg.PrefsPath)
	validator := logic.NewValidator()

	// Initialize handlers
	eventHandler := handlers.NewEventHandler(app, store, validator)
	registrationHandler := handlers.NewRegistrationHandler(app, registrationService, rateLimiter)
	adminHandler := handlers.NewAdminHandler(app, registrationService, store)
	profileHandler := handlers.NewProfileHandler(app, store, registrationService)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		go syncEventsToRedis(ctx, app, store)

		// Event endpoints
		e.Router.POST("/api/v1/events", eventHandler.CreateEvent)
		e.Router.GET("/api/v1/events", eventHandler.ListOpenEvents)
		e.Router.GET("/api/v1/events/{eventId}", eventHandler.GetEvent)
		e.Router.DELETE("/api/v1/events/{eventId}", eventHandler.DeleteEvent)
		e.Router.GET("/api/v1/events/{eventId}/waitlist/count", registrationHandler.WaitlistCount)

		// Registration endpoints
		e.Router.POST("/api/v1/waitlist/join", registrationHandler.Join)
		e.Router.POST("/api/v1/waitlist/leave", registrationHandler.Leave)
		e.Router.GET("/api/v1/registration/status", registrationHandler.Status)
		e.Router.GET("/api/v1/invitations", registrationHandler.Invitations)
		e.Router.POST("/api/v1/invitations/accept", registrationHandler.Accept)
		e.Router.POST("/api/v1/invitations/decline", registrationHandler.Decline)
		e.Router.GET("/api/v1/notifications", registrationHandler.Notifications)

		// Organizer endpoints
		e.Router.POST("/api/v1/admin/invite", adminHandler.Invite)
		e.Router.POST("/api/v1/admin/admit", adminHandler.Admit)
		e.Router.GET("/api/v1/admin/events/{eventId}/waitlist", adminHandler.Waitlist)

		// Profile endpoints
		e.Router.GET("/api/v1/profile", profileHandler.GetProfile)
		e.Router.POST("/api/v1/profile", profileHandler.UpsertProfile)
		e.Router.DELETE("/api/v1/profile", profileHandler.DeleteProfile)
		e.Router.GET("/api/v1/profile/events/upcoming", profileHandler.UpcomingEvents)
		e.Router.GET("/api/v1/profile/events/previous", profileHandler.PreviousEvents)

		// Session restore
		e.Router.POST("/api/v1/session/restore", func(e *core.RequestEvent) error {
			if e.Auth == nil {
				return e.JSON(http.StatusOK, map[string]any{"restored": false})
			}
			ok, err := prefs.RestoreSession(e.Auth.Id)
			if err != nil {
				slog.Warn("prefs.RestoreSession()", "error", err)
				ok = false
			}
			return e.JSON(http.StatusOK, map[string]any{"restored": ok})
		})

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupRecordHooks(app, store, prefs)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// syncEventsToRedis pushes the events collection into the registration
// store on startup so waitlist operations see every event after a restart.
func syncEventsToRedis(ctx context.Context, app *pocketbase.PocketBase, store *redisstore.Store) {
	records, err := app.FindAllRecords("events")
	if err != nil {
		log.Printf("Error fetching events for sync: %v", err)
		return
	}

	synced := 0
	for _, record := range records {
		if err := store.CreateEvent(ctx, recordToEvent(record)); err != nil {
			log.Printf("Error syncing event %s: %v", record.Id, err)
			continue
		}
		synced++
	}

	log.Printf("Synced %d events to Redis", synced)
}

func recordToEvent(record *core.Record) *models.Event {
	e := models.NewDraftEvent(record.Id, record.GetString("organizer"), record.GetDateTime("created").Time())
	e.Title = record.GetString("title")
	e.Notes = record.GetString("notes")
	e.Guidelines = record.GetString("guidelines")
	e.Location = record.GetString("location")
	e.Capacity = record.GetInt("capacity")
	e.PosterURL = record.GetString("poster_url")
	e.StartsAt = record.GetDateTime("starts_at").Time()
	e.RegistrationStart = record.GetDateTime("registration_start").Time()
	e.RegistrationEnd = record.GetDateTime("registration_end").Time()
	e.Deadline = record.GetDateTime("deadline").Time()
	if fee := record.GetString("fee"); fee != "" {
		if d, err := decimal.NewFromString(fee); err == nil {
			e.Fee = d
		}
	}
	return e
}

// setupRecordHooks keeps the registration store in step with the app's
// collections: event records mirror into Redis, and deleting a user
// cascades their registration records.
func setupRecordHooks(app *pocketbase.PocketBase, store *redisstore.Store, prefs *auth.PrefsStore) {
	app.OnRecordCreateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		if err := store.CreateEvent(e.Request.Context(), recordToEvent(e.Record)); err != nil {
			slog.Error("Failed to mirror new event to Redis", "eventID", e.Record.Id, "error", err)
		}
		return nil
	})

	app.OnRecordUpdateRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		if err := store.CreateEvent(e.Request.Context(), recordToEvent(e.Record)); err != nil {
			slog.Error("Failed to mirror updated event to Redis", "eventID", e.Record.Id, "error", err)
		}
		return nil
	})

	app.OnRecordDeleteRequest("events").BindFunc(func(e *core.RecordRequestEvent) error {
		if err := e.Next(); err != nil {
			return err
		}
		if err := store.DeleteEvent(e.Request.Context(), e.Record.Id); err != nil {
			slog.Error("Failed to cascade event delete to Redis", "eventID", e.Record.Id, "error", err)
		}
		return nil
	})

	app.OnRecordDeleteRequest("users").BindFunc(func(e *core.RecordRequestEvent) error {
		uid := e.Record.Id
		if err := e.Next(); err != nil {
			return err
		}
		if err := store.DeleteProfile(e.Request.Context(), uid); err != nil {
			slog.Error("Failed to cascade user delete to Redis", "uid", uid, "error", err)
		}
		if p, err := prefs.Load(); err == nil && p.SavedUID == uid {
			prefs.Forget()
		}
		return nil
	})
}

// startMetricsServer serves Prometheus metrics on a side port.
func startMetricsServer(cfg *config.Config, redisClient *redis.Client) {
	e := echo.New()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			return c.JSON(503, map[string]string{"status": "unhealthy"})
		}
		return c.JSON(200, map[string]string{"status": "healthy"})
	})

	if err := e.Start(":" + cfg.MetricsPort); err != nil && err != http.ErrServerClosed {
		log.Printf("Metrics server stopped: %v", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
	time.Sleep(time.Second)
}
