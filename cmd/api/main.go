package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"agora_go/internal/api/mgt"
	v1 "agora_go/internal/api/v1"
	"agora_go/internal/core/config"
	"agora_go/internal/core/database"
	"agora_go/internal/core/logger"
	"agora_go/internal/core/runtime"
	"agora_go/internal/core/snowflake"
	"agora_go/internal/middleware"
	"agora_go/internal/repository"
	"agora_go/internal/service"
)

func main() {
	// 1. Load configuration (Viper)
	if err := config.Init("."); err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 2. Init logger
	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting agora_go...")

	// 3. Init MySQL
	if err := database.Init(&cfg.Database); err != nil {
		logger.Error("Failed to init database", logger.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	// 4. Init Redis (L2 cache)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	// 5. Init Snowflake
	if err := snowflake.Init(&cfg.Snowflake); err != nil {
		logger.Error("Failed to init snowflake", logger.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Repositories and transaction boundary
	repos := repository.NewRepos(database.Get())
	atomic := repository.NewAtomic(database.Get())

	// 7. Engines
	slugs := service.NewSlugAllocator(cfg.Board.SlugMaxAttempts)
	counters := service.NewCounterEngine(atomic)
	tracker := service.NewReadTracker(atomic, repos, cfg.Board.MaxTopicTrackers)
	renderer := &service.EscapeRenderer{}
	lifecycle := service.NewLifecycle(atomic, repos, counters, renderer, slugs, cfg.Board.PreModeration)

	// 8. Services
	categorySvc := service.NewCategoryService(atomic, repos, slugs)
	forumSvc := service.NewForumService(atomic, repos, slugs, redisClient, &cfg.Cache)
	topicSvc, err := service.NewTopicService(repos, tracker, redisClient, &cfg.Cache)
	if err != nil {
		logger.Error("Failed to init topic service", logger.String("error", err.Error()))
		os.Exit(1)
	}
	defer topicSvc.Close()
	pollSvc := service.NewPollService(atomic, repos)
	notifySvc := service.NewNotifyService(repos)

	// 9. Wire the write engine to caches and subscription fan-out
	lifecycle.SetCacheInvalidator(&service.Caches{Forums: forumSvc, Topics: topicSvc})
	lifecycle.RegisterHooks(notifySvc)

	// 10. Runtime warmup
	rtConfig := &runtime.RuntimeConfig{
		CategorySvc: categorySvc,
		ForumSvc:    forumSvc,
	}
	if err := runtime.Init(rtConfig); err != nil {
		logger.Error("Failed to init runtime", logger.String("error", err.Error()))
	}
	logger.Info("Runtime warmup: " + runtime.WarmUpLog())

	// 11. Handlers
	categoryHandler := v1.NewCategoryHandler(categorySvc, forumSvc)
	forumHandler := v1.NewForumHandler(forumSvc, tracker)
	topicHandler := v1.NewTopicHandler(topicSvc, lifecycle, pollSvc, tracker)
	postHandler := v1.NewPostHandler(topicSvc, lifecycle)
	subHandler := v1.NewSubscriptionHandler(notifySvc)

	boardMgtHandler := mgt.NewBoardHandler(categorySvc, forumSvc, rtConfig)
	moderationHandler := mgt.NewModerationHandler(lifecycle)
	maintenanceHandler := mgt.NewMaintenanceHandler(counters, lifecycle, forumSvc, topicSvc)

	// 12. Router
	rateLimiter := middleware.NewIPLimiter(cfg.Security.RateLimit, 60)

	gin.SetMode(cfg.App.Mode)
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.RateLimitMW(rateLimiter))
	router.Use(middleware.CORSMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(middleware.IdentityMW(&cfg.JWT, repos.Forums))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		if err := database.Ping(); err != nil {
			c.JSON(503, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{
			"status":    "healthy",
			"runtime":   runtime.Get().Status(),
			"timestamp": time.Now().Unix(),
		})
	})

	// Dependency checks for load balancers
	router.GET("/healthz", func(c *gin.Context) {
		status := "ok"
		checks := make(map[string]string)

		if err := database.Ping(); err != nil {
			status = "error"
			checks["mysql"] = err.Error()
		} else {
			checks["mysql"] = "ok"
		}

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			status = "error"
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = "ok"
		}

		code := 200
		if status != "ok" {
			code = 503
		}
		c.JSON(code, gin.H{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now().Unix(),
		})
	})

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"name":    "agora_go",
			"status":  "running",
			"version": "1.0.0",
			"runtime": runtime.WarmUpLog(),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public API (v1)
	v1Group := router.Group("/api/v1")
	v1Group.Use(middleware.PublicWhitelistMW())
	{
		v1Group.GET("/categories", categoryHandler.List)
		v1Group.GET("/category/:cid", categoryHandler.Get)

		v1Group.GET("/forum/:fid", forumHandler.Get)
		v1Group.GET("/topics", topicHandler.List)
		v1Group.GET("/topic/:tid", topicHandler.Get)
		v1Group.GET("/post/:pid/raw", postHandler.Raw)
		v1Group.GET("/notifications", subHandler.Notifications)

		// writes require a resolved identity
		authed := v1Group.Group("")
		authed.Use(middleware.RequireUser())
		{
			authed.POST("/topics", topicHandler.Create)
			authed.POST("/topic/:tid/posts", topicHandler.Reply)
			authed.POST("/topic/:tid/read", topicHandler.MarkRead)
			authed.POST("/topic/:tid/vote", topicHandler.Vote)
			authed.POST("/forum/:fid/read", forumHandler.MarkRead)
			authed.PUT("/post/:pid", postHandler.Edit)
			authed.DELETE("/post/:pid", postHandler.Delete)
			authed.POST("/forum/:fid/subscribe", subHandler.Subscribe)
			authed.DELETE("/forum/:fid/subscribe", subHandler.Unsubscribe)
			authed.POST("/notifications/seen", subHandler.MarkSeen)
		}
	}

	// Management API (mgt), IP whitelist enforced
	mgtGroup := router.Group("/api/mgt")
	mgtGroup.Use(middleware.AdminWhitelistMW())
	{
		mgtGroup.POST("/token", func(c *gin.Context) {
			mgt.IssueToken(c, &cfg.JWT)
		})

		staff := mgtGroup.Group("")
		staff.Use(middleware.RequireUser(), middleware.RequireStaff())
		{
			staff.GET("/board", boardMgtHandler.Snapshot)
			staff.POST("/categories", boardMgtHandler.CreateCategory)
			staff.PUT("/category/:cid", boardMgtHandler.RenameCategory)
			staff.DELETE("/category/:cid", boardMgtHandler.DeleteCategory)
			staff.POST("/forums", boardMgtHandler.CreateForum)
			staff.PUT("/forum/:fid", boardMgtHandler.RenameForum)
			staff.PUT("/forum/:fid/move", boardMgtHandler.MoveForum)
			staff.DELETE("/forum/:fid", boardMgtHandler.DeleteForum)

			staff.POST("/moderators", moderationHandler.GrantModerator)

			staff.POST("/counters/forum/:fid", maintenanceHandler.RecomputeForum)
			staff.POST("/counters/topic/:tid", maintenanceHandler.RecomputeTopic)
			staff.POST("/counters/recompute", maintenanceHandler.RecomputeAll)
			staff.POST("/topics/purge-empty", maintenanceHandler.PurgeEmptyTopics)
			staff.POST("/cache/flush", maintenanceHandler.FlushCache)
		}

		// moderators reach the queue without staff standing
		mod := mgtGroup.Group("")
		mod.Use(middleware.RequireUser())
		{
			mod.GET("/moderation", moderationHandler.Queue)
			mod.POST("/topic/:tid/approve", moderationHandler.Approve)
			mod.POST("/topic/:tid/reject", moderationHandler.Reject)
			mod.POST("/topic/:tid/close", moderationHandler.Close)
			mod.POST("/topic/:tid/reopen", moderationHandler.Reopen)
			mod.POST("/topic/:tid/sticky", moderationHandler.Sticky)
			mod.POST("/post/:pid/approve", moderationHandler.ApprovePost)
		}
	}

	// 13. HTTP server
	srv := &http.Server{
		Addr:    cfg.App.GetServerAddr(),
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", logger.String("error", err.Error()))
		}
	}()

	// pprof server for profiling
	go func() {
		logger.Info("PProf server starting", logger.String("addr", "localhost:6060"))
		if err := http.ListenAndServe("localhost:6060", nil); err != nil && err != http.ErrServerClosed {
			logger.Error("PProf server error", logger.String("error", err.Error()))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logger.String("error", err.Error()))
	}

	database.Close()
	redisClient.Close()
	logger.Sync()

	logger.Info("Server exited gracefully")
}
