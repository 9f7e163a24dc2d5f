package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/store"
	"clinic-booking-server/internal/utils"
)

// NotificationHandler serves the caller's in-app notifications.
type NotificationHandler struct {
	Store store.Store
}

func NewNotificationHandler(st store.Store) *NotificationHandler {
	return &NotificationHandler{Store: st}
}

// GetNotifications lists the caller's notifications, newest first. With
// ?unread=true only unread ones are returned.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	unreadOnly := false
	if raw := c.Query("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			utils.BadRequest(c, "unread must be a boolean")
			return
		}
		unreadOnly = v
	}
	list, err := h.Store.Notifications().ListForUser(c.Request.Context(), actor.ID, unreadOnly)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Notifications fetched", list)
}

// MarkNotificationAsRead marks one of the caller's notifications read.
// Someone else's notification is reported as not found.
func (h *NotificationHandler) MarkNotificationAsRead(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	if err := h.Store.Notifications().MarkRead(c.Request.Context(), actor.ID, c.Param("id")); err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Notification marked as read", nil)
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	n, err := h.Store.Notifications().MarkAllRead(c.Request.Context(), actor.ID)
	if err != nil {
		utils.FromError(c, err)
		return
	}
	utils.Success(c, "Notifications marked as read", gin.H{"updated": n})
}
