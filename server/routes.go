package server

import (
	"time"

	custommiddleware "github.com/The-Morpho/drivingSchool-sub000/middleware"
	"github.com/The-Morpho/drivingSchool-sub000/models"

	"github.com/labstack/echo/v4"
)

func (s *Server) SetupRoutes(authMiddleware echo.MiddlewareFunc, observerMiddleware echo.MiddlewareFunc) {
	e := s.Echo
	api := e.Group("/api/v1")

	// Auth routes (unprotected)
	auth := api.Group("/auth")
	{
		auth.POST("/login", s.AuthHandler.Login)
	}

	// 聊天连接：网关在 authenticate 事件里登记身份，外层不拦
	api.GET("/chat/ws", s.ChatWSHandler.HandleWebSocket)

	// 需要认证
	protected := api.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/user", s.AuthHandler.GetCurrentUser)

		// 建房接口限流，防止刷房
		createLimit := custommiddleware.NewRateLimitMiddleware(s.Limiter, custommiddleware.RateLimitConfig{
			Limit:  10,
			Window: time.Minute,
			KeyFunc: func(c echo.Context) string {
				if user, ok := c.Get("user").(*models.User); ok {
					return "room-create:" + user.Username
				}
				return ""
			},
		})

		chat := protected.Group("/chat")
		{
			chat.GET("/rooms", s.ChatRoomHandler.ListMyRooms)                   // 我的房间列表
			chat.POST("/rooms", s.ChatRoomHandler.CreateOrGetRoom, createLimit) // 幂等建房
			chat.GET("/rooms/:roomId/messages", s.ChatRoomHandler.GetMessages)  // 历史消息分页
		}

		// 管理端
		admin := protected.Group("/chat", observerMiddleware)
		{
			admin.GET("/rooms/all", s.ChatRoomHandler.ListAllRooms)      // 全量房间
			admin.POST("/rooms/sync", s.ChatRoomHandler.SyncRooms)       // 按课程关系补建
			admin.DELETE("/rooms/:roomId", s.ChatRoomHandler.DeleteRoom) // 删房及消息
		}

		lessons := protected.Group("/lessons")
		{
			lessons.POST("", s.LessonHandler.CreateLesson) // 创建课程并触发建房事件
			lessons.GET("", s.LessonHandler.ListLessons)   // 课程列表
		}
	}
}
