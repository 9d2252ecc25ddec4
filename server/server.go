package server

import (
	"context"

	"github.com/The-Morpho/drivingSchool-sub000/config"
	"github.com/The-Morpho/drivingSchool-sub000/handlers"
	"github.com/The-Morpho/drivingSchool-sub000/kafka"
	"github.com/The-Morpho/drivingSchool-sub000/limiter"
	custommiddleware "github.com/The-Morpho/drivingSchool-sub000/middleware"
	"github.com/The-Morpho/drivingSchool-sub000/models"
	appredis "github.com/The-Morpho/drivingSchool-sub000/redis"
	"github.com/The-Morpho/drivingSchool-sub000/services"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	redisv9 "github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Echo            *echo.Echo
	DB              *gorm.DB
	Config          *config.Config
	AuthHandler     *handlers.AuthHandler
	ChatRoomHandler *handlers.ChatRoomHandler
	ChatWSHandler   *handlers.ChatWebSocketHandler
	LessonHandler   *handlers.LessonHandler
	Limiter         *limiter.Manager

	cancel context.CancelFunc
}

func NewServer() *Server {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		// 建房的并发兜底依赖能识别唯一键冲突
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := models.AutoMigrateAll(db); err != nil {
		log.Fatal("Failed to auto-migrate database:", err)
	}

	// 初始化 Echo
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.PATCH},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength},
		MaxAge:           86400,
	}))

	// Redis 连不上不阻塞启动：广播降级为单进程，限流放行
	var rdb *redisv9.Client
	if redisClient, rerr := appredis.NewRedisClient(&cfg.Redis); rerr != nil {
		log.Warn("Redis unavailable, running degraded: ", rerr)
	} else {
		rdb = redisClient.Client
	}

	ctx, cancel := context.WithCancel(context.Background())

	accountService := services.NewAccountService(db)
	roomService := services.NewChatRoomService(db, accountService)
	messageService := services.NewChatMessageService(db)
	authService := services.NewAuthService(db, &cfg.Auth)

	hub := handlers.NewChatHub()
	broker := handlers.NewChatBroker(rdb, hub)
	go broker.Run(ctx)

	limiterManager := limiter.NewManager(rdb, &limiter.FixedWindowStrategy{})

	// 课程事件：配了 Kafka 走消费组，否则进程内分发
	lessonEventHandler := kafka.NewLessonEventHandler(roomService, accountService)
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		saramaCfg, kerr := kafka.NewSaramaConfig(&cfg.Kafka)
		if kerr != nil {
			log.Warn("Kafka config invalid, lesson events fall back to in-process: ", kerr)
		} else {
			producer, kerr = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, saramaCfg)
			if kerr != nil {
				log.Warn("Kafka unavailable, lesson events fall back to in-process: ", kerr)
				producer = nil
			} else {
				consumer, cerr := kafka.NewLessonConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID,
					cfg.Kafka.Topic, saramaCfg, lessonEventHandler)
				if cerr != nil {
					log.Warn("Kafka consumer init failed: ", cerr)
				} else {
					go consumer.Start(ctx)
				}
			}
		}
	}
	eventBus := kafka.NewLessonEventBus(producer, lessonEventHandler)

	s := &Server{
		Echo:            e,
		DB:              db,
		Config:          &cfg,
		AuthHandler:     handlers.NewAuthHandler(authService),
		ChatRoomHandler: handlers.NewChatRoomHandler(roomService, messageService),
		ChatWSHandler:   handlers.NewChatWebSocketHandler(roomService, messageService, hub, broker, limiterManager),
		LessonHandler:   handlers.NewLessonHandler(db, eventBus),
		Limiter:         limiterManager,
		cancel:          cancel,
	}

	// --- 设置路由 ---
	authMiddleware := custommiddleware.AuthMiddleware(authService)
	observerMiddleware := custommiddleware.ObserverMiddleware()
	s.SetupRoutes(authMiddleware, observerMiddleware)
	return s
}

func (s *Server) Start(addr string) {
	log.Fatal(s.Echo.Start(addr))
}

func (s *Server) Shutdown() {
	s.cancel()
}
