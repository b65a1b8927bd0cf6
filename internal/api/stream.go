package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"ai-exchange/models"
	"ai-exchange/observability"
)

const (
	streamBuffer       = 64
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

// Stream message types
const (
	StreamSnapshot = "snapshot"
	StreamTick     = "tick"
)

// StreamMessage is one frame of the price stream
type StreamMessage struct {
	Type   string                       `json:"type"`
	Prices map[string]models.PricePoint `json:"prices,omitempty"`
	Price  *models.PricePoint           `json:"price,omitempty"`
}

// HandleStream streams price ticks over a websocket. The first frame is a
// snapshot of the latest prices; each feed tick follows as its own frame.
// The symbols query parameter is a comma separated filter. A client that
// falls behind loses ticks rather than stalling the feed.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.parseSymbols(r.URL.Query().Get("symbols"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	log := observability.WithComponent("stream")

	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		log.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	// Nothing is read from clients; CloseRead handles control frames and
	// cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	ticks := make(chan models.PricePoint, streamBuffer)
	unsubscribe := h.app.Subscribe(symbols, func(p models.PricePoint) {
		select {
		case ticks <- p:
		default:
		}
	})
	defer unsubscribe()

	log.Debug("Stream client connected", "symbols", symbols)

	if err := writeStream(ctx, conn, StreamMessage{
		Type:   StreamSnapshot,
		Prices: filterPrices(h.app.Prices(), symbols),
	}); err != nil {
		return
	}

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Stream client disconnected", "symbols", symbols)
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case p := <-ticks:
			if err := writeStream(ctx, conn, StreamMessage{Type: StreamTick, Price: &p}); err != nil {
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeStream(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// acceptOptions mirrors the CORS policy for websocket origins
func (h *Handler) acceptOptions() *websocket.AcceptOptions {
	origins := strings.TrimSpace(h.cfg.HTTP.CORSAllowedOrigins)
	if origins == "" || origins == "*" {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}

	var patterns []string
	for _, origin := range strings.Split(origins, ",") {
		origin = strings.TrimSpace(origin)
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		} else if origin != "" {
			patterns = append(patterns, origin)
		}
	}
	return &websocket.AcceptOptions{OriginPatterns: patterns}
}

func (h *Handler) parseSymbols(raw string) ([]string, error) {
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if err := h.ValidateSymbol(s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, nil
}

func filterPrices(prices map[string]models.PricePoint, symbols []string) map[string]models.PricePoint {
	if len(symbols) == 0 {
		return prices
	}
	filtered := make(map[string]models.PricePoint, len(symbols))
	for _, s := range symbols {
		if p, ok := prices[s]; ok {
			filtered[s] = p
		}
	}
	return filtered
}
