// Package main runs the link platform HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/linkforge/backend/config"
	"github.com/linkforge/backend/internal/auth"
	"github.com/linkforge/backend/internal/cache"
	"github.com/linkforge/backend/internal/campaigns"
	"github.com/linkforge/backend/internal/gateway"
	"github.com/linkforge/backend/internal/invitations"
	"github.com/linkforge/backend/internal/links"
	"github.com/linkforge/backend/internal/middleware"
	"github.com/linkforge/backend/internal/organizations"
	"github.com/linkforge/backend/internal/rbac"
	"github.com/linkforge/backend/internal/tokens"
	"github.com/linkforge/backend/internal/users"
	"github.com/linkforge/backend/internal/worker"
	"github.com/linkforge/backend/pkg/database"
	"github.com/linkforge/backend/pkg/mailer"
	"github.com/linkforge/backend/pkg/queue"
	"github.com/linkforge/backend/pkg/redis"
	"github.com/linkforge/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	codec := auth.NewTokenCodec(
		cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret,
		time.Duration(cfg.JWT.AccessExpireMinutes)*time.Minute,
		time.Duration(cfg.JWT.RefreshExpireHours)*time.Hour,
	)
	refreshStore := auth.NewRefreshTokenStore(rdb.Client)
	tokenManager := tokens.NewManager(rdb.Client, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	cacheLayer := cache.New(rdb.Client, cache.Config{
		Prefix:          cfg.Cache.Prefix,
		DefaultTTL:      time.Duration(cfg.Cache.DefaultTTLSeconds) * time.Second,
		LocalTTL:        time.Duration(cfg.Cache.LocalTTLSeconds) * time.Second,
		LocalMaxEntries: cfg.Cache.LocalMaxEntries,
	}, logger)

	// Auth
	userRepo := users.NewRepository(pool)
	sessions := auth.NewSessionManager(userRepo, codec, refreshStore, logger)
	authHandler := auth.NewHandler(userRepo, sessions, tokenManager, jobQueue, auth.HandlerConfig{
		VerifyTTL:     time.Duration(cfg.Tokens.VerifyTTLSeconds) * time.Second,
		ResetTTL:      time.Duration(cfg.Tokens.ResetTTLSeconds) * time.Second,
		PublicBaseURL: cfg.Server.PublicBaseURL,
	}, logger)
	userHandler := users.NewHandler(userRepo, logger)

	// Organizations and RBAC
	orgRepo := organizations.NewRepository(pool)
	evaluator := rbac.NewEvaluator(orgRepo, logger)
	orgHandler := organizations.NewHandler(orgRepo, evaluator, cacheLayer, logger)

	// Invitations
	invRepo := invitations.NewRepository(pool)
	invHandler := invitations.NewHandler(invRepo, orgRepo, evaluator, tokenManager, jobQueue, invitations.HandlerConfig{
		InviteTTL:     time.Duration(cfg.Tokens.InviteTTLHours) * time.Hour,
		PublicBaseURL: cfg.Server.PublicBaseURL,
	}, logger)

	// Links and campaigns
	linkRepo := links.NewRepository(pool)
	linkHandler := links.NewHandler(linkRepo, evaluator, cacheLayer, logger)
	campaignRepo := campaigns.NewRepository(pool)
	campaignHandler := campaigns.NewHandler(campaignRepo, evaluator, cacheLayer, logger)

	gw := gateway.New(func(token string) (gateway.Principal, error) {
		claims, err := codec.VerifyAccess(token)
		if err != nil {
			return gateway.Principal{}, err
		}
		return gateway.Principal{ID: claims.UserID, Email: claims.Email}, nil
	})
	protected := gw.Middleware(gateway.Options{})
	public := gw.Middleware(gateway.Options{Public: true})
	member := rbac.RequireMember(evaluator)
	cached := func(ttl time.Duration) gin.HandlerFunc {
		return cache.Middleware(cacheLayer, cache.Options{TTL: ttl})
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public short-link redirect; the handler caches resolved targets itself.
	router.GET("/l/:slug", public, linkHandler.Redirect)

	api := router.Group("/api/v1")

	// Auth
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", public, authHandler.Register)
		authGroup.POST("/login", public, authHandler.Login)
		authGroup.POST("/refresh", public, authHandler.Refresh)
		authGroup.POST("/logout", protected, authHandler.Logout)
		authGroup.GET("/verify-email", public, authHandler.VerifyEmail)
		authGroup.POST("/forgot-password", public, authHandler.ForgotPassword)
		authGroup.POST("/reset-password", public, authHandler.ResetPassword)
		authGroup.POST("/resend-verification", protected, authHandler.ResendVerification)
	}

	// Users
	me := api.Group("/users/me", protected)
	{
		me.GET("", userHandler.Me)
		me.PATCH("", userHandler.Update)
		me.POST("/password", userHandler.ChangePassword)
		me.DELETE("", userHandler.Retire)
	}

	// Organizations, roles, members
	orgs := api.Group("/orgs", protected)
	{
		orgs.POST("", orgHandler.Create)
		orgs.GET("", orgHandler.List)
		// Cached reads sit behind the membership check so an entry primed
		// by one member is never served to a non-member.
		orgs.GET("/:orgID", member, cached(0), orgHandler.Get)
		orgs.PATCH("/:orgID", orgHandler.Update)
		orgs.DELETE("/:orgID", orgHandler.Retire)

		orgs.POST("/:orgID/roles", orgHandler.CreateRole)
		orgs.GET("/:orgID/roles", member, cached(0), orgHandler.ListRoles)

		orgs.POST("/:orgID/members", orgHandler.AddMember)
		orgs.GET("/:orgID/members", member, cached(0), orgHandler.ListMembers)
		orgs.PATCH("/:orgID/members/:userID", orgHandler.UpdateMemberRole)
		orgs.DELETE("/:orgID/members/:userID", orgHandler.RemoveMember)

		// Invitations
		orgs.POST("/:orgID/invitations", invHandler.Create)
		orgs.GET("/:orgID/invitations", invHandler.List)
		orgs.DELETE("/:orgID/invitations/:invitationID", invHandler.Revoke)

		// Links
		orgs.POST("/:orgID/links", linkHandler.Create)
		orgs.GET("/:orgID/links", member, cached(0), linkHandler.List)
		orgs.GET("/:orgID/links/:linkID", linkHandler.Get)
		orgs.PATCH("/:orgID/links/:linkID", linkHandler.Update)
		orgs.DELETE("/:orgID/links/:linkID", linkHandler.Delete)

		// Campaigns
		orgs.POST("/:orgID/campaigns", campaignHandler.Create)
		orgs.GET("/:orgID/campaigns", member, cached(0), campaignHandler.List)
		orgs.GET("/:orgID/campaigns/:campaignID", campaignHandler.Get)
		orgs.PATCH("/:orgID/campaigns/:campaignID", campaignHandler.Update)
		orgs.DELETE("/:orgID/campaigns/:campaignID", campaignHandler.Delete)
	}

	api.POST("/invitations/accept", protected, invHandler.Accept)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process email worker; the standalone cmd/worker binary covers
	// deployments that scale mail delivery separately.
	mail := mailer.New(cfg.Email.APIKey, cfg.Email.APISecret, cfg.Email.FromAddress, cfg.Email.FromName, logger)
	processor := worker.NewEmailProcessor(mail, jobQueue, logger)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go processor.Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
