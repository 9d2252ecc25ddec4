package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/The-Morpho/drivingSchool-sub000/models"
	"github.com/The-Morpho/drivingSchool-sub000/services"

	"github.com/labstack/echo/v4"
)

type ChatRoomHandler struct {
	rooms    *services.ChatRoomService
	messages *services.ChatMessageService
}

func NewChatRoomHandler(rooms *services.ChatRoomService, messages *services.ChatMessageService) *ChatRoomHandler {
	return &ChatRoomHandler{rooms: rooms, messages: messages}
}

// ListMyRooms 当前用户参与的房间列表
// 管理员没有参与侧，走 /rooms/all，这里返回空列表
func (h *ChatRoomHandler) ListMyRooms(c echo.Context) error {
	user := c.Get("user").(*models.User)
	role := models.NormalizeRole(user.Role)

	var side models.Side
	switch {
	case role.IsStaff():
		side = models.SideStaff
	case role.IsCustomer():
		side = models.SideCustomer
	default:
		return c.JSON(http.StatusOK, map[string]interface{}{
			"rooms": []models.ChatRoom{},
			"total": 0,
		})
	}

	rooms, err := h.rooms.ListRoomsForParticipant(user.Username, side)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch rooms",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"total": len(rooms),
	})
}

// ListAllRooms 管理端全量房间（路由上已挂 Observer 中间件）
func (h *ChatRoomHandler) ListAllRooms(c echo.Context) error {
	rooms, err := h.rooms.ListAllRooms()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to fetch rooms",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"total": len(rooms),
	})
}

// GetMessages 分页取房间历史：两名成员和管理员可读，其他人一律拒绝
func (h *ChatRoomHandler) GetMessages(c echo.Context) error {
	user := c.Get("user").(*models.User)
	roomID := c.Param("roomId")

	room, err := h.rooms.GetRoom(roomID)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch messages"})
	}

	_, isParticipant := room.SideOf(user.Username)
	if !isParticipant && !models.NormalizeRole(user.Role).IsObserver() {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "access denied"})
	}

	limit := 50
	offset := 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	page, err := h.messages.Page(roomID, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch messages"})
	}
	return c.JSON(http.StatusOK, page)
}

// CreateOrGetRoom 按两个账号名幂等建房
func (h *ChatRoomHandler) CreateOrGetRoom(c echo.Context) error {
	var req struct {
		StaffUsername    string `json:"staff_username"`
		CustomerUsername string `json:"customer_username"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.StaffUsername == "" || req.CustomerUsername == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "staff_username and customer_username are required",
		})
	}

	room, err := h.rooms.CreateOrGetRoom(req.StaffUsername, req.CustomerUsername)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountNotFound), errors.Is(err, services.ErrProfileNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create room"})
		}
	}
	return c.JSON(http.StatusOK, room)
}

// SyncRooms 按既有课程关系批量补建房间（管理端）
func (h *ChatRoomHandler) SyncRooms(c echo.Context) error {
	synced, failed, err := h.rooms.SyncRoomsFromLessons()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to sync rooms"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"synced": synced,
		"failed": failed,
	})
}

// DeleteRoom 删房和全部消息（管理端）
func (h *ChatRoomHandler) DeleteRoom(c echo.Context) error {
	roomID := c.Param("roomId")
	if err := h.rooms.DeleteRoom(roomID); err != nil {
		switch {
		case errors.Is(err, services.ErrRoomNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "room not found"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete room"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "room deleted",
	})
}
