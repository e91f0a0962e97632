package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/labtrack/labtrack_backend/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; rely on JWT auth.
		return true
	},
}

// SessionMonitorHandler upgrades a lab member's connection and subscribes
// it to the lab's live session feed.
func SessionMonitorHandler(db *gorm.DB, hub *SessionHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		uVal, ok := c.Get("user")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user := uVal.(models.User)
		labID := c.Param("lab_id")

		var lab models.Lab
		if err := db.Where("lab_id = ?", labID).First(&lab).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "lab not found"})
			return
		}

		var count int64
		if err := db.Table("user_lab_association").
			Where("lab_id = ? AND user_id = ?", labID, user.ID).
			Count(&count).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if count == 0 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newSessionClient(hub, conn, map[string]struct{}{labID: {}})
		hub.register <- client

		go client.writePump()
		client.readPump()
	}
}
