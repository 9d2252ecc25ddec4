package handlers

import (
	"net/http"
	"time"

	"github.com/The-Morpho/drivingSchool-sub000/kafka"
	"github.com/The-Morpho/drivingSchool-sub000/models"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type LessonHandler struct {
	db     *gorm.DB
	events *kafka.LessonEventBus
}

func NewLessonHandler(db *gorm.DB, events *kafka.LessonEventBus) *LessonHandler {
	return &LessonHandler{db: db, events: events}
}

// CreateLesson 创建课程，并发出 lesson.created 事件给聊天侧建房
// 事件是尽力而为：建房失败不影响课程创建
func (h *LessonHandler) CreateLesson(c echo.Context) error {
	var req struct {
		StaffID    uint      `json:"staff_id"`
		CustomerID uint      `json:"customer_id"`
		ScheduleAt time.Time `json:"schedule_at"`
		Duration   int       `json:"duration"`
		Note       string    `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.StaffID == 0 || req.CustomerID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "staff_id and customer_id are required",
		})
	}

	lesson := models.Lesson{
		StaffID:    req.StaffID,
		CustomerID: req.CustomerID,
		ScheduleAt: req.ScheduleAt,
		Duration:   req.Duration,
		Status:     "scheduled",
		Note:       req.Note,
	}
	if err := h.db.Create(&lesson).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create lesson"})
	}

	h.events.PublishLessonCreated(lesson.ID, lesson.StaffID, lesson.CustomerID)

	return c.JSON(http.StatusCreated, lesson)
}

// ListLessons 课程列表，可按教练或学员过滤
func (h *LessonHandler) ListLessons(c echo.Context) error {
	query := h.db.Order("schedule_at DESC")
	if v := c.QueryParam("staff_id"); v != "" {
		query = query.Where("staff_id = ?", v)
	}
	if v := c.QueryParam("customer_id"); v != "" {
		query = query.Where("customer_id = ?", v)
	}

	var lessons []models.Lesson
	if err := query.Find(&lessons).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch lessons"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"lessons": lessons,
		"total":   len(lessons),
	})
}
