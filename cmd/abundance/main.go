package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/abundance-ai/abundance/internal/ai"
	"github.com/abundance-ai/abundance/internal/config"
	"github.com/abundance-ai/abundance/internal/db"
	"github.com/abundance-ai/abundance/internal/filestore"
	"github.com/abundance-ai/abundance/internal/handler"
	"github.com/abundance-ai/abundance/internal/job"
	"github.com/abundance-ai/abundance/internal/middleware"
	"github.com/abundance-ai/abundance/internal/rag"
	"github.com/abundance-ai/abundance/internal/repo"
	"github.com/abundance-ai/abundance/internal/schedule"
	"github.com/abundance-ai/abundance/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "abundance",
		Short: "abundance chat platform server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run abundance server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			dbc, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(dbc); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, dbc)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, dbc *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	userRepo := repo.NewUserRepo(dbc)
	sessionRepo := repo.NewSessionRepo(dbc)
	messageRepo := repo.NewMessageRepo(dbc)
	documentRepo := repo.NewDocumentRepo(dbc)
	ledgerRepo := repo.NewLedgerRepo(dbc)
	cacheRepo := repo.NewEmbeddingCacheRepo(dbc)

	store, err := filestore.NewStore(cfg.FileStore.Type, cfg.FileStore.Data)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	aiProvider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	generator := ai.NewGenerator(aiProvider, cfg.AI.Model)
	embedder := ai.NewEmbedder(aiProvider, cfg.AI.EmbedModel)
	retriever := rag.NewRetriever(embedder, rag.DefaultPerDocMatches)

	tokenService := service.NewTokenService(ledgerRepo)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret,
		time.Hour*time.Duration(cfg.JWTTTLHours), cfg.Tokens.DefaultUserTokens)
	userService := service.NewUserService(userRepo, tokenService)
	documentService := service.NewDocumentService(documentRepo, cacheRepo, tokenService,
		store, embedder, cfg.Index.Dir, cfg.Tokens.MaxUploadBytes, cfg.Tokens.EmbeddingChargeCap)
	documentService.SetRetriever(retriever)
	chatService := service.NewChatService(sessionRepo, messageRepo, documentRepo,
		tokenService, retriever, generator, time.Duration(cfg.AI.TimeoutSeconds)*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := authService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	indexQueue := job.NewIndexQueue(cfg.Index.QueueSize, func(ctx context.Context, docID string) error {
		_, err := documentService.Process(ctx, docID)
		return err
	})
	documentService.SetIndexQueue(indexQueue)
	indexQueue.Start(ctx)

	scheduler := schedule.NewScheduler(ctx)
	if err := scheduler.Add(cfg.Index.RetrySpec, job.NewPendingSweepJob(documentService, indexQueue)); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	if err := scheduler.Add("0 3 * * *", job.NewCacheCleanupJob(cacheRepo)); err != nil {
		return fmt.Errorf("register cache cleanup job: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	deps := &handler.Deps{
		JWTSecret: []byte(cfg.JWTSecret),
		Users:     userRepo,
		Auth:      authService,
		UserSvc:   userService,
		Tokens:    tokenService,
		Chat:      chatService,
		Documents: documentService,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.Register(deps)(group)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
