package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yolan2/tandonia/services"
)

type RealtimeController struct {
	RT       *services.RealtimeHub
	upgrader websocket.Upgrader
}

func NewRealtimeController(rt *services.RealtimeHub, allowedOrigins []string) *RealtimeController {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	return &RealtimeController{
		RT: rt,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true // non-browser clients
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// SubmissionsWS streams accepted checklist submissions to the client until it
// disconnects.
func (rc *RealtimeController) SubmissionsWS(c *gin.Context) {
	conn, err := rc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := &services.WSClient{UserID: c.GetString("userID"), Conn: conn}
	rc.RT.Register(client)

	// Keep intermediaries from timing the connection out.
	go func() {
		t := time.NewTicker(25 * time.Second)
		defer t.Stop()
		for range t.C {
			if err := client.Write(websocket.PingMessage, nil); err != nil {
				rc.RT.Unregister(client)
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			rc.RT.Unregister(client)
			return
		}
	}
}
