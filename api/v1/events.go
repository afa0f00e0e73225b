package v1

import (
	"encoding/json"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/veikko/mapstore/internal/data"
	"github.com/veikko/mapstore/internal/downloader"
)

// streamEvent is one message on the event stream.
type streamEvent struct {
	Kind    string      `json:"kind"`
	Country string      `json:"country"`
	Status  data.Status `json:"status,omitempty"`
	Done    int64       `json:"done,omitempty"`
	Total   int64       `json:"total,omitempty"`
}

// StreamEvents upgrades the connection to a WebSocket and forwards engine
// notifications until the client disconnects. A slow client loses events
// rather than stalling the engine's subscriber fan-out.
func (c *Countries) StreamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		markErr(w, err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()

	ch := make(chan streamEvent, 64)
	slot := c.s.Subscribe(
		func(id data.CountryID) {
			e := streamEvent{Kind: "status", Country: string(id), Status: c.s.Status(id)}
			select {
			case ch <- e:
			default:
			}
		},
		func(id data.CountryID, p downloader.Progress) {
			e := streamEvent{Kind: "progress", Country: string(id), Done: p.Done, Total: p.Total}
			select {
			case ch <- e:
			default:
			}
		},
	)
	defer c.s.Unsubscribe(slot)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			b, err := json.Marshal(e)
			if err != nil {
				c.l.Error("marshal stream event", "err", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
				return
			}
		}
	}
}
