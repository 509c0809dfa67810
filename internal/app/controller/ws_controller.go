package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
	"github.com/ikkim/inspection-backend/internal/middleware"
	ws "github.com/ikkim/inspection-backend/internal/websocket"
)

// NotificationSocketController 실시간 알림 푸시 연결
type NotificationSocketController struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewNotificationSocketController allowedOrigins 에 없는 Origin 은 거부한다
func NewNotificationSocketController(hub *ws.Hub, allowedOrigins []string) *NotificationSocketController {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &NotificationSocketController{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// 브라우저 외 클라이언트는 Origin 이 없다
				return origin == "" || origins[origin]
			},
		},
	}
}

// Connect GET /ws?token=...
// 토큰은 로깅하지 않는다
func (ctrl *NotificationSocketController) Connect(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err)
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, userID)
	ctrl.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	log.Info("WebSocket connection established", map[string]interface{}{
		"user_id": userID,
	})
}
