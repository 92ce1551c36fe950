package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kariqs/farmmarket-api/cache"
	"github.com/Kariqs/farmmarket-api/controllers"
	"github.com/Kariqs/farmmarket-api/initializers"
	"github.com/Kariqs/farmmarket-api/middlewares"
	"github.com/Kariqs/farmmarket-api/payments"
	"github.com/Kariqs/farmmarket-api/routes"
	"github.com/Kariqs/farmmarket-api/services"
	"github.com/Kariqs/farmmarket-api/storage"
	"github.com/Kariqs/farmmarket-api/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func init() {
	if err := initializers.LoadEnv(); err != nil {
		log.Fatal(err)
	}
	if _, err := initializers.InitLogger(initializers.AppConfig.LogLevel); err != nil {
		log.Fatal(err)
	}
	if err := initializers.ConnectToDB(); err != nil {
		initializers.Log.Fatal("database connection failed", zap.Error(err))
	}
	if err := initializers.SyncDatabase(initializers.DB); err != nil {
		initializers.Log.Fatal("database migration failed", zap.Error(err))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := initializers.AppConfig
	logger := initializers.Log
	defer logger.Sync()

	var viewCache cache.ViewCache = cache.Noop{}
	redisClient, err := initializers.ConnectToRedis(ctx)
	if err != nil {
		logger.Warn("redis unavailable, running without cache", zap.Error(err))
	} else if redisClient != nil {
		defer redisClient.Close()
		viewCache = cache.NewRedisCache(redisClient)
	}

	gateway, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("stripe setup failed", zap.Error(err))
	}

	var uploader storage.ImageUploader
	if cfg.Storage.Bucket != "" {
		s3Uploader, err := storage.NewS3Uploader(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix)
		if err != nil {
			logger.Fatal("s3 setup failed", zap.Error(err))
		}
		uploader = s3Uploader
	}

	var google controllers.OAuthProvider
	if cfg.Google.ClientID != "" {
		google = utils.NewGoogleOAuth(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	}

	notifier := utils.NewMailNotifier(utils.MailConfig{
		From:        cfg.Mail.From,
		Password:    cfg.Mail.Password,
		SMTPHost:    cfg.Mail.SMTPHost,
		SMTPAddress: cfg.Mail.SMTPAddress,
		PublicURL:   cfg.PublicURL,
		Currency:    cfg.Stripe.Currency,
	})

	db := initializers.DB
	tokens := services.NewTokens(cfg.JWTSecret, services.DefaultTokenTTL)
	webhooks := services.NewWebhookService(db, gateway, viewCache, notifier, logger)
	controllers.Setup(controllers.Dependencies{
		DB:       db,
		Users:    services.NewUserService(db, tokens, logger),
		Carts:    services.NewCartService(db, viewCache, logger),
		Products: services.NewProductService(db, viewCache, uploader, logger),
		Orders: services.NewOrderService(db, viewCache, gateway, services.CheckoutConfig{
			PublicURL:      cfg.PublicURL,
			Currency:       cfg.Stripe.Currency,
			ReservationTTL: cfg.Orders.ReservationTTL,
		}, logger),
		Webhooks:  webhooks,
		Google:    google,
		PublicURL: cfg.PublicURL,
		Log:       logger,
	})

	server := gin.New()
	server.Use(gin.Recovery(), middlewares.RequestLogger(logger))
	server.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authLimiter := middlewares.NewRateLimiter(rate.Every(6*time.Second), 5)
	routes.DefaultRoutes(server)
	routes.AuthRoutes(server, tokens, authLimiter)
	routes.ProductRoutes(server)
	routes.CartRoutes(server, tokens)
	routes.OrderRoutes(server, tokens)
	routes.FarmerRoutes(server, tokens)
	routes.WebhookRoutes(server)

	reaper := services.NewReaper(db, viewCache, cfg.Orders.ReservationTTL, logger)
	go reaper.Run(ctx, cfg.Orders.ReaperInterval)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	webhooks.Wait()
}
