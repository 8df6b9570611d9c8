package simulation

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	golog "github.com/tochemey/goakt/v3/log"
)

// configMessage is the first message of every stream, telling the client
// how to decode the binary frames that follow.
type configMessage struct {
	Type      string  `json:"type"`
	Format    string  `json:"format"`
	WorldSize float64 `json:"worldSize"`
	Rate      float64 `json:"rate"`
}

// controlMessage is what clients may send back.
type controlMessage struct {
	Type       string `json:"type"` // "pause", "resume" or "reset"
	Population int    `json:"population"`
}

// StreamHandler streams encoded frames over a websocket at a fixed rate.
type StreamHandler struct {
	sim      *Simulation
	interval time.Duration
	timeout  time.Duration
	logger   golog.Logger
	upgrader websocket.Upgrader
}

func NewStreamHandler(sim *Simulation, interval time.Duration, logger golog.Logger) *StreamHandler {
	if logger == nil {
		logger = golog.DiscardLogger
	}
	if interval <= 0 {
		interval = time.Second / 30
	}
	return &StreamHandler{
		sim:      sim,
		interval: interval,
		timeout:  time.Second,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := h.sim.Params.Params()
	hello := configMessage{Type: "config", Format: h.sim.Codec.Name(), WorldSize: p.WorldSize, Rate: p.PhysicsRate}
	if err := conn.WriteJSON(hello); err != nil {
		h.logger.Warnf("failed to send stream config to %s: %v", r.RemoteAddr, err)
		return
	}
	h.logger.Infof("stream client %s connected", r.RemoteAddr)

	go h.readControl(ctx, cancel, conn)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.logger.Infof("stream client %s disconnected", r.RemoteAddr)
			return
		case <-ticker.C:
			b, err := h.sim.EncodedFrame(ctx, h.timeout)
			if err != nil {
				h.logger.Errorf("failed to get frame for %s: %v", r.RemoteAddr, err)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.timeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
				h.logger.Debugf("stream write to %s failed: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}

// readControl applies client messages until the connection fails, then
// cancels the stream.
func (h *StreamHandler) readControl(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		var err error
		switch msg.Type {
		case "pause":
			err = h.sim.Pause(ctx, true)
		case "resume":
			err = h.sim.Pause(ctx, false)
		case "reset":
			err = h.sim.Reset(ctx, msg.Population)
		default:
			h.logger.Warnf("unknown stream control %q", msg.Type)
		}
		if err != nil {
			h.logger.Errorf("failed to apply stream control %q: %v", msg.Type, err)
		}
	}
}
