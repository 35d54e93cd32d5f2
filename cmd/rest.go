package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	agencyapp "github.com/tkamdem/livrazone/agency/application"
	agencyrepo "github.com/tkamdem/livrazone/agency/repository"
	authapp "github.com/tkamdem/livrazone/auth/application"
	"github.com/tkamdem/livrazone/auth/security"
	"github.com/tkamdem/livrazone/core/config"
	"github.com/tkamdem/livrazone/core/database"
	"github.com/tkamdem/livrazone/core/storage"
	"github.com/tkamdem/livrazone/core/valkey"
	deliverydomain "github.com/tkamdem/livrazone/delivery/domain"
	deliveryrepo "github.com/tkamdem/livrazone/delivery/repository"
	grouprepo "github.com/tkamdem/livrazone/group/repository"
	"github.com/tkamdem/livrazone/infrastructure/whatsapp"
	"github.com/tkamdem/livrazone/ingest"
	"github.com/tkamdem/livrazone/ingest/parser"
	"github.com/tkamdem/livrazone/pkg/groupqueue"
	"github.com/tkamdem/livrazone/reporting"
	tariffrepo "github.com/tkamdem/livrazone/tariff/repository"
	"github.com/tkamdem/livrazone/ui/rest"
	"github.com/tkamdem/livrazone/ui/rest/middleware"
	"github.com/tkamdem/livrazone/ui/websocket"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Run the gateway: WhatsApp ingestion, HTTP API and reports",
	Run:   restServer,
}

func init() {
	rootCmd.AddCommand(restCmd)
}

func restServer(_ *cobra.Command, _ []string) {
	cfg := config.Global
	if cfg.Auth.JWTSecret == "" {
		logrus.Fatalln("[APP] JWT_SECRET is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: the ORM handle serves the gorm repositories, the adapter
	// serves the delivery store. Both point at the same database.
	orm, err := database.New(cfg)
	if err != nil {
		logrus.Fatalf("[APP] Database connection failed: %v", err)
	}
	adapter, err := storage.Open(cfg)
	if err != nil {
		logrus.Fatalf("[APP] Storage adapter failed: %v", err)
	}
	defer adapter.Close()

	agencyRepo := agencyrepo.NewAgencyGormRepository(orm)
	groupRepo := grouprepo.NewGroupGormRepository(orm)
	tariffRepo := tariffrepo.NewTariffGormRepository(orm)
	deliveryStore := deliveryrepo.NewDeliveryStore(adapter, orm)

	for _, init := range []func(context.Context) error{
		agencyRepo.InitSchema, groupRepo.InitSchema, tariffRepo.InitSchema, deliveryStore.InitSchema,
	} {
		if err := init(ctx); err != nil {
			logrus.Fatalf("[APP] Schema initialization failed: %v", err)
		}
	}

	// Optional Valkey side stores: shared token revocation and the
	// cross-instance websocket fan-out.
	var vk *valkey.Client
	var revocations security.RevocationStore = security.NewMemoryRevocationStore()
	if cfg.Valkey.Enabled {
		vk, err = valkey.NewClient(valkey.Config{Address: cfg.Valkey.Address, KeyPrefix: "livrazone"})
		if err != nil {
			logrus.Fatalf("[APP] Valkey connection failed: %v", err)
		}
		defer vk.Close()
		revocations = security.NewValkeyRevocationStore(vk)
	}

	tokens := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpires)
	authService := authapp.NewAuthService(agencyRepo, tokens, revocations)
	agencyService := agencyapp.NewAgencyService(agencyRepo)

	// Ingestion pipeline.
	resolver := ingest.NewResolver(deliveryStore, tariffRepo, ingest.DefaultFees())
	router := ingest.NewRouter(agencyRepo, groupRepo, cfg.Whatsapp.DefaultAgencyID, cfg.Whatsapp.GroupID)

	pool := groupqueue.New(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	pool.Start(ctx)
	defer pool.Stop()

	waClient, err := whatsapp.NewClient(ctx, cfg.Whatsapp, cfg.App.Debug)
	if err != nil {
		logrus.Fatalf("[APP] WhatsApp session setup failed: %v", err)
	}
	defer waClient.Close()

	pipeline := ingest.NewPipeline(
		parser.New(),
		router,
		resolver,
		deliveryStore,
		pool,
		waClient,
		cfg.Whatsapp.SendConfirmations,
	)
	pipeline.OnChange = func(event string, d *deliverydomain.Delivery) {
		websocket.Publish("delivery_"+event, d)
	}
	waClient.OnEvent(pipeline.Handle)

	if err := waClient.Connect(ctx); err != nil {
		// The HTTP surface stays useful without the transport; ingestion
		// resumes on the next restart once the session is fixed.
		logrus.Errorf("[APP] WhatsApp connect failed, running without ingestion: %v", err)
	}

	// Daily summary broadcast.
	if cfg.Report.Enabled {
		scheduler := reporting.NewScheduler(agencyRepo, groupRepo, deliveryStore, waClient, cfg.Report.Time, cfg.Location())
		go scheduler.Run(ctx)
	}

	app := fiber.New(fiber.Config{
		AppName:      "Livrazone",
		ServerHeader: "Hidden",
	})
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.AllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	if cfg.App.Debug {
		app.Use(logger.New())
	}

	api := app.Group("/api/v1")
	rest.InitRestHealth(api, adapter)
	rest.InitRestAuth(api, authService, agencyService)
	rest.InitRestAgency(api, authService, agencyService)
	rest.InitRestGroup(api, authService, groupRepo)
	rest.InitRestTariff(api, authService, tariffRepo)
	rest.InitRestDelivery(api, authService, deliveryStore, resolver)

	if vk != nil {
		websocket.SetValkeyClient(vk, uuid.NewString())
	}
	websocket.RegisterRoutes(api, authService)
	go websocket.RunHub()

	api.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "NOT_FOUND",
			"message": "endpoint not found",
		})
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[APP] Termination signal received, shutting down")
		cancel()
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[APP] Fiber shutdown error: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("[APP] Failed to start: ", err.Error())
	}
}
