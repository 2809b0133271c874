package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"lms-ranking-service/internal/app"
	"lms-ranking-service/internal/domain"
)

// WSHandler streams live leaderboard frames over a websocket. Clients pick a
// scope with the courseId query parameter; omitting it subscribes to the
// global ranking. The first frame is always a full snapshot.
type WSHandler struct {
	feed     *app.LeaderboardFeed
	upgrader websocket.Upgrader
}

func NewWSHandler(feed *app.LeaderboardFeed) *WSHandler {
	return &WSHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string             `json:"type"`
	Payload domain.Leaderboard `json:"payload"`
}

// ServeWS upgrades the request and pumps leaderboard updates until the
// client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	courseID := r.URL.Query().Get("courseId")

	updates, cancel, err := h.feed.Subscribe(r.Context(), courseID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		cancel()
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for update := range updates {
			if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: update}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Reader loop only detects disconnects; this stream has no inbound
	// protocol.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-writerDone
}
