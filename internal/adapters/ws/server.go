// Package ws is the WebSocket transport: one connection per client, JSON
// command frames in and projected event frames out.
//
// Identity comes from the auth gateway in front of the server through the
// X-Auction-Role and X-Team-ID headers; this package does not authenticate.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/auctionroom/internal/adapters/broadcast"
	"github.com/alejandrodnm/auctionroom/internal/application/auction"
	"github.com/alejandrodnm/auctionroom/internal/domain"
)

const (
	HeaderRole   = "X-Auction-Role"
	HeaderTeamID = "X-Team-ID"
	HeaderName   = "X-Actor-Name"

	FrameCommandResult = "command_result"
	CodeRateLimited    = "rate_limited"
)

// Auctions resolves a running auction by ID.
type Auctions interface {
	Get(id string) (*auction.Controller, error)
}

// Config tunes connections.
type Config struct {
	BidInterval      time.Duration // minimum spacing between bids from one connection
	BidBurst         int
	SubscriberBuffer int
	WriteTimeout     time.Duration
	PongWait         time.Duration
	CommandTimeout   time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BidInterval:      250 * time.Millisecond,
		BidBurst:         1,
		SubscriberBuffer: broadcast.DefaultBuffer,
		WriteTimeout:     10 * time.Second,
		PongWait:         60 * time.Second,
		CommandTimeout:   5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BidInterval <= 0 {
		c.BidInterval = d.BidInterval
	}
	if c.BidBurst <= 0 {
		c.BidBurst = d.BidBurst
	}
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = d.SubscriberBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = d.CommandTimeout
	}
	return c
}

// Server serves the auction rooms over WebSocket.
type Server struct {
	auctions Auctions
	cfg      Config
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// NewServer builds the HTTP handler.
func NewServer(auctions Auctions, cfg Config) *Server {
	s := &Server{
		auctions: auctions,
		cfg:      cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /auctions/{id}/ws", s.handleWS)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// actorFromRequest reads the identity asserted by the gateway.
func actorFromRequest(r *http.Request) (domain.Actor, error) {
	a := domain.Actor{
		Role:   domain.Role(r.Header.Get(HeaderRole)),
		TeamID: r.Header.Get(HeaderTeamID),
		Name:   r.Header.Get(HeaderName),
	}
	switch a.Role {
	case "":
		a.Role = domain.RoleSpectator
		a.TeamID = ""
	case domain.RoleSpectator, domain.RoleAdmin:
		a.TeamID = ""
	case domain.RoleTeam:
		if a.TeamID == "" {
			return a, errors.New("team role requires " + HeaderTeamID)
		}
	default:
		return a, errors.New("unknown role " + string(a.Role))
	}
	return a, nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctl, err := s.auctions.Get(id)
	if err != nil {
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if actor.Role == domain.RoleTeam {
		snap, err := ctl.Snapshot(r.Context(), domain.Viewer{Role: domain.RoleSpectator})
		if err != nil || !hasTeam(snap, actor.TeamID) {
			http.Error(w, "unknown team", http.StatusForbidden)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws: upgrade failed", "auction_id", id, "err", err)
		return
	}

	c := &client{
		srv:     s,
		conn:    conn,
		ctl:     ctl,
		actor:   actor,
		queue:   broadcast.NewQueue(domain.Viewer{Role: actor.Role, TeamID: actor.TeamID}, s.cfg.SubscriberBuffer),
		results: make(chan domain.CommandResult, 16),
		bids:    rate.NewLimiter(rate.Every(s.cfg.BidInterval), s.cfg.BidBurst),
	}
	c.serve(r.Context())
}

func hasTeam(s domain.Snapshot, teamID string) bool {
	for _, t := range s.Teams {
		if t.ID == teamID {
			return true
		}
	}
	return false
}

type client struct {
	srv     *Server
	conn    *websocket.Conn
	ctl     *auction.Controller
	actor   domain.Actor
	queue   *broadcast.Queue
	results chan domain.CommandResult
	bids    *rate.Limiter
}

type resultFrame struct {
	Type   string               `json:"type"`
	Result domain.CommandResult `json:"result"`
}

func (c *client) serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	defer c.conn.Close()

	if err := c.ctl.Subscribe(ctx, c.queue); err != nil {
		slog.Warn("ws: subscribe failed", "auction_id", c.ctl.ID(), "err", err)
		return
	}
	defer c.ctl.Unsubscribe(c.queue)

	slog.Info("ws: client connected",
		"auction_id", c.ctl.ID(), "role", c.actor.Role, "team_id", c.actor.TeamID, "subscriber", c.queue.ID())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop(ctx)
		cancel()
		// unblocks the reader
		c.conn.Close()
	}()

	c.readLoop(ctx)
	cancel()
	<-writerDone
	slog.Info("ws: client disconnected", "auction_id", c.ctl.ID(), "subscriber", c.queue.ID())
}

func (c *client) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(64 << 10)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.srv.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.srv.cfg.PongWait))
	})

	for {
		var cmd domain.Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			var syntax *json.SyntaxError
			var typ *json.UnmarshalTypeError
			if errors.As(err, &syntax) || errors.As(err, &typ) {
				c.reply(ctx, domain.CommandResult{Code: "validation_error", Error: "malformed frame"})
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws: read failed", "subscriber", c.queue.ID(), "err", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.reply(ctx, c.handle(ctx, cmd))
	}
}

func (c *client) handle(ctx context.Context, cmd domain.Command) domain.CommandResult {
	if c.actor.Role == domain.RoleSpectator {
		return domain.CommandResult{Ref: cmd.Ref, Command: cmd.Type, Code: "forbidden", Error: "spectators cannot issue commands"}
	}
	if cmd.Type == domain.CmdSubmitBid && !c.bids.Allow() {
		return domain.CommandResult{Ref: cmd.Ref, Command: cmd.Type, Code: CodeRateLimited, Error: "bids are arriving too fast"}
	}
	cctx, cancel := context.WithTimeout(ctx, c.srv.cfg.CommandTimeout)
	defer cancel()
	return c.ctl.Dispatch(cctx, c.actor, cmd)
}

func (c *client) reply(ctx context.Context, res domain.CommandResult) {
	select {
	case c.results <- res:
	case <-ctx.Done():
	}
}

func (c *client) writeLoop(ctx context.Context) {
	ping := time.NewTicker(c.srv.cfg.PongWait * 9 / 10)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-c.queue.Done():
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"))
			return
		case ev := <-c.queue.Events():
			if err := c.writeJSON(ev); err != nil {
				return
			}
		case res := <-c.results:
			if err := c.writeJSON(resultFrame{Type: FrameCommandResult, Result: res}); err != nil {
				return
			}
		case <-ping.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) writeJSON(v any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		slog.Debug("ws: write failed", "subscriber", c.queue.ID(), "err", err)
		return err
	}
	return nil
}

func (c *client) write(kind int, data []byte) error {
	return c.conn.WriteControl(kind, data, time.Now().Add(c.srv.cfg.WriteTimeout))
}
