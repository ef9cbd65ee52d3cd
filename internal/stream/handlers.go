package stream

import (
	"bufio"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp"
)

// RegisterEventStream exposes the SSE feed at GET <group>/:questId/events.
// Frames are `data: <json>\n\n`; the connection stays open until the client
// goes away, and a reconnecting client is expected to re-fetch state rather
// than rely on missed events.
func RegisterEventStream(r fiber.Router, hub *Hub) {
	r.Get("/:questId/events", func(c *fiber.Ctx) error {
		questID := c.Params("questId")

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")

		client := hub.Register(questID)
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer hub.Unregister(client)
			for msg := range client.Send {
				if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}))
		return nil
	})
}

// RegisterRoutes exposes the websocket feed at GET <group>/ws/:questId.
func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Get("/ws/:questId", websocket.New(func(c *websocket.Conn) {
		pumpEvents(hub, c.Params("questId"), c)
	}))
}

type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// pumpEvents forwards hub events to the socket until the peer goes away.
// Unregister runs before the wait on the writer: closing Send is what
// stops the writer, so waiting first would leave both goroutines and the
// hub registration parked until a later event's write failed.
func pumpEvents(hub *Hub, questID string, conn wsConn) {
	client := hub.Register(questID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	hub.Unregister(client)
	<-done
}
