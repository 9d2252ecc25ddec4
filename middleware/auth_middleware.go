package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/The-Morpho/drivingSchool-sub000/limiter"
	"github.com/The-Morpho/drivingSchool-sub000/models"
	"github.com/The-Morpho/drivingSchool-sub000/services"

	"github.com/labstack/echo/v4"
)

func AuthMiddleware(authService *services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			var tokenString string
			if authHeader != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || parts[0] != "Bearer" {
					return c.JSON(http.StatusUnauthorized, map[string]string{
						"error": "invalid authorization header",
					})
				}
				tokenString = parts[1]
			} else {
				tokenString = c.QueryParam("token")
				if tokenString == "" {
					return c.JSON(http.StatusUnauthorized, map[string]string{
						"error": "missing authorization token",
					})
				}
				tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
			}

			claims, err := authService.ValidateToken(tokenString)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "invalid token",
				})
			}
			var user models.User
			if err := authService.Db.First(&user, claims.UserID).Error; err != nil {
				return c.JSON(http.StatusNotFound, map[string]string{
					"error": "user not found",
				})
			}

			c.Set("user", &user)
			return next(c)
		}
	}
}

// ObserverMiddleware 管理端路由：只放行 observer 角色（admin 等）
func ObserverMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := c.Get("user").(*models.User)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "unauthorized",
				})
			}
			if !models.NormalizeRole(user.Role).IsObserver() {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "access denied",
				})
			}
			return next(c)
		}
	}
}

type RateLimitConfig struct {
	Limit   int                         // 限制次数
	Window  time.Duration               // 时间窗口
	KeyFunc func(c echo.Context) string // 自定义 Key 生成器
}

func NewRateLimitMiddleware(manager *limiter.Manager, config RateLimitConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := config.KeyFunc(c)
			if key == "" {
				// 默认使用 IP
				key = c.RealIP()
			}
			// 加上前缀防止 Key 冲突
			redisKey := fmt.Sprintf("limiter:%s", key)
			allowed, err := manager.Allow(c.Request().Context(), redisKey, config.Limit, config.Window)

			if err != nil {
				// Redis 报错时 Fail Open，避免 Redis 故障拖垮业务
				c.Logger().Errorf("Rate limit redis error: %v", err)
				return next(c)
			}

			if !allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"code": "429",
					"msg":  "Too Many Requests",
				})
			}
			return next(c)
		}
	}
}
