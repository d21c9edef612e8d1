package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/edcollab/edcollab/internal/collab/attachment"
	"github.com/edcollab/edcollab/internal/collab/chatsync"
	"github.com/edcollab/edcollab/internal/collab/messagelog"
	"github.com/edcollab/edcollab/internal/collab/notify"
	"github.com/edcollab/edcollab/internal/collab/restclient"
	"github.com/edcollab/edcollab/internal/collab/surface"
	"github.com/edcollab/edcollab/internal/config"
	"github.com/edcollab/edcollab/internal/domain/chat"
	"github.com/edcollab/edcollab/internal/domain/notification"
	"github.com/edcollab/edcollab/internal/platform/blobstore"
	"github.com/edcollab/edcollab/internal/platform/csrf"
	"github.com/edcollab/edcollab/internal/platform/db"
	"github.com/edcollab/edcollab/internal/platform/middleware"
)

// userFlags identifies the acting user for the client subcommands. The
// external auth layer would normally supply this.
type userFlags struct {
	id   int64
	name string
	role string
}

func (u *userFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&u.id, "user-id", 0, "acting user id")
	cmd.Flags().StringVar(&u.name, "user-name", "", "acting user display name")
	cmd.Flags().StringVar(&u.role, "role", "physician", "acting user role")
	cmd.MarkFlagRequired("user-id")
	cmd.MarkFlagRequired("user-name")
}

func (u *userFlags) author() chat.Author {
	return chat.Author{ID: u.id, Name: u.name, Role: u.role}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "edcollab",
		Short: "Emergency case collaboration channel",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the collaboration backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	// Repositories: Postgres when configured, in-memory otherwise.
	var (
		chatRepo  chat.MessageRepository
		notifRepo notification.Repository
		pool      *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		chatRepo = chat.NewPGRepo(pool)
		notifRepo = notification.NewPGRepo(pool)
		logger.Info().Msg("connected to database")
	} else {
		chatRepo = chat.NewMemRepo()
		notifRepo = notification.NewMemRepo()
		logger.Warn().Msg("no DATABASE_URL set, using in-memory storage")
	}

	store := blobstore.NewInMemoryStoreWithLimit(cfg.MaxAttachmentBytes)
	notifSvc := notification.NewService(notifRepo)
	fanout := notification.NewChatFanout(notifSvc, notification.NewMemDirectory(), logger)
	chatSvc := chat.NewService(chatRepo, store, fanout)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	// The upload limit leaves headroom over the attachment ceiling for the
	// multipart framing and form fields.
	uploadLimit := fmt.Sprintf("%d", cfg.MaxAttachmentBytes+1<<20)
	e.Use(middleware.BodyLimit("1M", uploadLimit))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost},
		AllowHeaders:     []string{"Content-Type", "X-Request-ID", csrf.HeaderName},
		AllowCredentials: true,
	}))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	api := e.Group("/api")
	api.Use(middleware.RateLimit(rateLimitCfg))
	api.Use(csrf.Middleware())

	api.GET("/csrf", csrf.TokenHandler)
	chat.NewHandler(chatSvc).RegisterRoutes(api)
	notification.NewHandler(notifSvc).RegisterRoutes(api)
	blobstore.NewHandler(store).RegisterRoutes(api)

	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func watchCmd() *cobra.Command {
	var (
		user   userFlags
		caseID int64
		server string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a case's chat and notifications from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(server, caseID, user.author())
		},
	}
	user.register(cmd)
	cmd.Flags().Int64Var(&caseID, "case", 0, "case id to follow")
	cmd.Flags().StringVar(&server, "server", "", "backend base URL (defaults to SERVER_URL)")
	cmd.MarkFlagRequired("case")
	return cmd
}

func runWatch(server string, caseID int64, user chat.Author) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if server == "" {
		server = cfg.ServerURL
	}

	rc := restclient.New(server)
	agg := notify.NewAggregator(notify.NewClient(rc, user.ID), user.ID, logger)
	registry := chatsync.NewRegistry(messagelog.NewClient(rc), func(cid int64, batch []chat.Message) {
		agg.OnNewMessages(cid, batch)
		for _, m := range batch {
			fmt.Printf("[case %d] %s (%s): %s\n", cid, m.Author.Name, m.Author.Role, m.Body)
		}
	}, logger)

	deps := surface.Deps{
		Registry:             registry,
		Aggregator:           agg,
		User:                 user,
		MessageInterval:      cfg.MessagePollInterval,
		NotificationInterval: cfg.NotifyPollInterval,
		Log:                  logger,
	}

	ctx := context.Background()
	panel := surface.NewPanel(deps, caseID)
	if err := panel.Mount(ctx); err != nil {
		return err
	}
	defer panel.Unmount()
	panel.Open()

	bell := surface.NewBell(deps)
	if err := bell.Mount(ctx); err != nil {
		return err
	}
	defer bell.Unmount()

	for _, m := range panel.Messages() {
		fmt.Printf("[case %d] %s (%s): %s\n", caseID, m.Author.Name, m.Author.Role, m.Body)
	}
	count, urgent := bell.Badge()
	fmt.Printf("-- %d unread notifications (urgent: %v), following case %d --\n", count.Total, urgent, caseID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return nil
}

func sendCmd() *cobra.Command {
	var (
		user   userFlags
		caseID int64
		server string
		body   string
		attach string
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Post a message, optionally with an attachment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(server, caseID, user.author(), body, attach)
		},
	}
	user.register(cmd)
	cmd.Flags().Int64Var(&caseID, "case", 0, "case id to post into")
	cmd.Flags().StringVar(&body, "body", "", "message text")
	cmd.Flags().StringVar(&attach, "attach", "", "path of a file to attach")
	cmd.Flags().StringVar(&server, "server", "", "backend base URL (defaults to SERVER_URL)")
	cmd.MarkFlagRequired("case")
	return cmd
}

func runSend(server string, caseID int64, user chat.Author, body, attach string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if server == "" {
		server = cfg.ServerURL
	}

	ctx := context.Background()
	rc := restclient.New(server)

	attachmentID := ""
	if attach != "" {
		f, err := os.Open(attach)
		if err != nil {
			return fmt.Errorf("open attachment: %w", err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat attachment: %w", err)
		}

		att, err := attachment.NewClient(rc).Upload(ctx, caseID, user.ID, filepath.Base(attach), info.Size(), f)
		if err != nil {
			return fmt.Errorf("upload attachment: %w", err)
		}
		attachmentID = att.ID
		fmt.Printf("uploaded %s (%s, %d bytes) as %s\n", att.OriginalName, att.Kind, att.SizeBytes, att.ID)
	}

	m, err := messagelog.NewClient(rc).Send(ctx, caseID, user, body, attachmentID)
	if err != nil {
		return err
	}
	fmt.Printf("sent message %d to case %d\n", m.ID, m.CaseID)
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	var dir string
	cmd.PersistentFlags().StringVar(&dir, "dir", "migrations", "migrations directory")

	newMigrator := func(ctx context.Context) (*db.Migrator, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		return db.NewMigrator(pool, dir), pool.Close, nil
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			m, closePool, err := newMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()
			applied, err := m.Up(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migrations\n", applied)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			m, closePool, err := newMigrator(ctx)
			if err != nil {
				return err
			}
			defer closePool()
			statuses, err := m.Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Printf("%3d %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}

	cmd.AddCommand(upCmd, statusCmd)
	return cmd
}
