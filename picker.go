// Partybox Foosball Team Picker
//
// Everyone at a table shares one roster. Any player can add or remove names
// and draw teams; the draw is revealed to every connected browser at once:
// all slots spin, then the teams lock in one after another.
//
// Features:
// - WebSockets per table ID: /teams/:tableid and /teams/:tableid/ws
// - Roster names are trimmed and unique regardless of case
// - Teams of --team-size players; whoever does not fit waits for the next game
// - Drawing again mid-reveal cancels the running reveal cleanly
// - Spinning names are projected on the server, one frame every 80ms
// - Text export of the drawn teams at /teams/:tableid/export
// - Random 8-char table IDs via crypto/rand, with server-side collision check
// - Tables auto-reaped after configurable idle timeout
// - In-browser QR button to share the current table, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/foosball/internal/reveal"
	"github.com/Seednode/foosball/internal/teams"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const (
	playerCookieName = "foosball_id"
	tableIDLength    = 8
	maxMessageSize   = 1024
	writeTimeout     = 10 * time.Second
)

// Messages coming from clients
type ClientMessage struct {
	Type string `json:"type"`           // "add", "remove", "clear", "restore_defaults", "shuffle_names", "draw", "cancel", "self_test"
	Name string `json:"name,omitempty"` // add / remove
}

// SessionInfoMessage is sent immediately on connect.
type SessionInfoMessage struct {
	Type     string `json:"type"` // "session_info"
	TableID  string `json:"table_id"`
	TeamSize int    `json:"team_size"`
	PlayerID string `json:"player_id"`
}

// RosterMessage is broadcast whenever the roster changes.
type RosterMessage struct {
	Type    string   `json:"type"` // "roster"
	Players []string `json:"players"`
	CanDraw bool     `json:"can_draw"`
}

// AssignmentMessage carries the final teams once the reveal is done.
type AssignmentMessage struct {
	Type    string       `json:"type"` // "assignment"
	Draw    uint64       `json:"draw"`
	Teams   []teams.Team `json:"teams"`
	Waiting []string     `json:"waiting"`
	Summary string       `json:"summary"`
}

// RevealMessage mirrors every reveal transition.
type RevealMessage struct {
	Type    string       `json:"type"` // "reveal"
	State   reveal.State `json:"state"`
	Stopped bool         `json:"stopped,omitempty"` // cancelled before done
}

// BoardMessage is one frame of what every slot currently displays.
type BoardMessage struct {
	Type  string     `json:"type"` // "board"
	Draw  uint64     `json:"draw"`
	Slots [][]string `json:"slots"`
}

// NoticeMessage is sent to a single client whose request was rejected.
type NoticeMessage struct {
	Type    string `json:"type"` // "notice"
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type clientCommand struct {
	client *Client
	msg    ClientMessage
}

type exportRequest struct {
	reply chan string // "" until the first draw
}

type Hub struct {
	id       string
	teamSize int
	clock    clockwork.Clock
	rng      teams.RandomSource

	clients    map[*Client]bool
	roster     *teams.Roster
	assignment teams.Assignment
	drawn      bool
	announced  uint64 // last draw whose assignment was broadcast
	stopped    uint64 // last draw cancelled mid-reveal
	seed       uint64
	scheduler  *reveal.Scheduler
	frames     clockwork.Ticker

	register chan *Client
	unreg    chan *Client
	commands chan clientCommand
	exports  chan exportRequest

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time
}

func newHub(parent context.Context, tableID string, teamSize int, clock clockwork.Clock, rng teams.RandomSource, defaults []string) *Hub {
	ctx, cancel := context.WithCancel(parent)
	now := clock.Now()

	return &Hub{
		id:         tableID,
		teamSize:   teamSize,
		clock:      clock,
		rng:        rng,
		clients:    make(map[*Client]bool),
		roster:     teams.NewRoster(defaults),
		scheduler:  reveal.New(clock),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		commands:   make(chan clientCommand),
		exports:    make(chan exportRequest),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}
}

func (h *Hub) run() {
	defer h.teardown()

	for {
		var frames <-chan time.Time
		if h.frames != nil {
			frames = h.frames.Chan()
		}

		select {
		case <-h.ctx.Done():
			return

		case c := <-h.register:
			h.touch()
			h.clients[c] = true

			h.sendTo(c, SessionInfoMessage{
				Type:     "session_info",
				TableID:  h.id,
				TeamSize: h.teamSize,
				PlayerID: c.playerID,
			})
			h.sendTo(c, h.rosterMessage())

			if h.drawn {
				st := h.scheduler.Snapshot()
				h.sendTo(c, h.revealMessage(st))
				h.sendTo(c, h.boardMessage(st))
				if st.Phase == reveal.PhaseDone {
					h.sendTo(c, h.assignmentMessage(st.Draw))
				}
			}

		case c := <-h.unreg:
			h.touch()

			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case cmd := <-h.commands:
			h.touch()
			h.handleCommand(cmd)

		case req := <-h.exports:
			if h.drawn {
				req.reply <- teams.Summary(h.assignment)
			} else {
				req.reply <- ""
			}

		case <-h.scheduler.Changes():
			h.handleReveal()

		case <-frames:
			h.broadcast(h.boardMessage(h.scheduler.Snapshot()))
		}
	}
}

// join, leave, dispatch and export give up once the hub has stopped, so
// client goroutines never block on a reaped table.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unreg <- c:
	case <-h.ctx.Done():
	}
}

func (h *Hub) dispatch(cmd clientCommand) {
	select {
	case h.commands <- cmd:
	case <-h.ctx.Done():
	}
}

// export returns the text summary of the latest draw, or false before the
// first draw.
func (h *Hub) export() (string, bool) {
	req := exportRequest{reply: make(chan string, 1)}

	select {
	case h.exports <- req:
	case <-h.ctx.Done():
		return "", false
	}

	summary := <-req.reply
	return summary, summary != ""
}

func (h *Hub) stop() {
	h.cancel()
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = h.clock.Now()
	h.mu.Unlock()
}

func (h *Hub) lastActivity() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastActive
}

func (h *Hub) teardown() {
	h.scheduler.Close()
	h.stopFrames()

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}

	close(h.done)

	log.Debug().Str("table", h.id).Msg("GAMES: Table closed")
}

func (h *Hub) handleCommand(cmd clientCommand) {
	c := cmd.client
	msg := cmd.msg

	switch msg.Type {
	case "add":
		if err := h.roster.Add(msg.Name); err != nil {
			h.reject(c, err)
			return
		}
		log.Debug().Str("table", h.id).Str("name", strings.TrimSpace(msg.Name)).Msg("GAMES: Player added")
		h.broadcast(h.rosterMessage())

	case "remove":
		if err := h.roster.Remove(msg.Name); err != nil {
			h.reject(c, err)
			return
		}
		log.Debug().Str("table", h.id).Str("name", msg.Name).Msg("GAMES: Player removed")
		h.broadcast(h.rosterMessage())

	case "clear":
		h.roster.Clear()
		h.broadcast(h.rosterMessage())

	case "restore_defaults":
		h.roster.RestoreDefaults()
		h.broadcast(h.rosterMessage())

	case "shuffle_names":
		h.roster.Shuffle(h.rng)
		h.broadcast(h.rosterMessage())

	case "draw":
		h.draw(c)

	case "cancel":
		h.scheduler.Cancel()
		h.stopFrames()

		st := h.scheduler.Snapshot()
		if st.Phase == reveal.PhaseSpinning || st.Phase == reveal.PhaseRevealing {
			h.stopped = st.Draw
		}
		h.broadcast(h.revealMessage(st))

	case "self_test":
		h.roster.Replace([]string{"A", "B", "C", "D"})
		h.broadcast(h.rosterMessage())
		h.draw(c)

	default:
		// ignore unknown types
	}
}

func (h *Hub) draw(c *Client) {
	if h.roster.Len() < h.teamSize {
		h.sendTo(c, NoticeMessage{
			Type:    "notice",
			Code:    "not_enough_players",
			Message: "Add more players before drawing teams.",
		})
		return
	}

	a, err := teams.Draw(h.roster.Names(), h.teamSize, h.rng)
	if err != nil {
		log.Error().Err(err).Str("table", h.id).Msg("GAMES: Draw failed")
		return
	}

	h.assignment = a
	h.drawn = true
	h.seed = uint64(h.rng.Intn(math.MaxInt32))

	if err := h.scheduler.Start(a); err != nil {
		log.Error().Err(err).Str("table", h.id).Msg("GAMES: Reveal failed to start")
		return
	}

	log.Info().
		Str("table", h.id).
		Int("teams", len(a.Teams)).
		Int("waiting", len(a.Waiting)).
		Msg("GAMES: Teams drawn")
}

func (h *Hub) handleReveal() {
	st := h.scheduler.Snapshot()

	msg := h.revealMessage(st)

	h.broadcast(msg)
	h.broadcast(h.boardMessage(st))

	// A change signal can still be pending for a draw cancelled after it started.
	if st.Spinning && !msg.Stopped {
		h.startFrames()
	} else {
		h.stopFrames()
	}

	if st.Phase == reveal.PhaseDone && h.announced != st.Draw {
		h.announced = st.Draw
		h.broadcast(h.assignmentMessage(st.Draw))
	}
}

func (h *Hub) startFrames() {
	if h.frames == nil {
		h.frames = h.clock.NewTicker(reveal.SpinCadence)
	}
}

func (h *Hub) stopFrames() {
	if h.frames != nil {
		h.frames.Stop()
		h.frames = nil
	}
}

func (h *Hub) revealMessage(st reveal.State) RevealMessage {
	return RevealMessage{
		Type:    "reveal",
		State:   st,
		Stopped: h.stopped != 0 && st.Draw == h.stopped,
	}
}

func (h *Hub) rosterMessage() RosterMessage {
	return RosterMessage{
		Type:    "roster",
		Players: h.roster.Names(),
		CanDraw: h.roster.Len() >= h.teamSize,
	}
}

func (h *Hub) assignmentMessage(draw uint64) AssignmentMessage {
	return AssignmentMessage{
		Type:    "assignment",
		Draw:    draw,
		Teams:   h.assignment.Teams,
		Waiting: h.assignment.Waiting,
		Summary: teams.Summary(h.assignment),
	}
}

func (h *Hub) boardMessage(st reveal.State) BoardMessage {
	reel := reveal.Reel{
		Assignment: h.assignment,
		Pool:       h.roster.Names(),
		Seed:       h.seed,
	}

	return BoardMessage{
		Type:  "board",
		Draw:  st.Draw,
		Slots: reel.Board(st, h.clock.Now()),
	}
}

func (h *Hub) reject(c *Client, err error) {
	code := "invalid_name"
	switch {
	case errors.Is(err, teams.ErrEmptyName):
		code = "empty_name"
	case errors.Is(err, teams.ErrDuplicateName):
		code = "duplicate_name"
	case errors.Is(err, teams.ErrUnknownName):
		code = "unknown_name"
	}

	h.sendTo(c, NoticeMessage{
		Type:    "notice",
		Code:    code,
		Message: err.Error(),
	})
}

func (h *Hub) sendTo(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg any) {
	for client := range h.clients {
		h.sendTo(client, msg)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// TableManager holds a set of hubs keyed by table ID, so each
// /teams/$tableid is its own isolated session.
type TableManager struct {
	ctx         context.Context
	teamSize    int
	clock       clockwork.Clock
	rng         teams.RandomSource
	defaults    []string
	idleTimeout time.Duration

	mu   sync.Mutex
	hubs map[string]*Hub
}

func newTableManager(ctx context.Context, cfg *Config, clock clockwork.Clock, rng teams.RandomSource, defaults []string) *TableManager {
	tm := &TableManager{
		ctx:         ctx,
		teamSize:    cfg.teamSize,
		clock:       clock,
		rng:         rng,
		defaults:    defaults,
		idleTimeout: cfg.sessionTimeout,
		hubs:        make(map[string]*Hub),
	}
	if tm.idleTimeout > 0 {
		go tm.reaperLoop()
	}
	return tm
}

func (tm *TableManager) getHub(tableID string) *Hub {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if hub, ok := tm.hubs[tableID]; ok {
		return hub
	}

	hub := newHub(tm.ctx, tableID, tm.teamSize, tm.clock, tm.rng, tm.defaults)
	tm.hubs[tableID] = hub
	go hub.run()

	log.Debug().Str("table", tableID).Msg("GAMES: Table opened")

	return hub
}

func (tm *TableManager) lookup(tableID string) (*Hub, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	hub, ok := tm.hubs[tableID]
	return hub, ok
}

// newTableID generates a crypto-random table ID and ensures it doesn't
// collide with existing tables.
func (tm *TableManager) newTableID() string {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
	for {
		b := make([]byte, tableIDLength)
		if _, err := rand.Read(b); err != nil {
			log.Fatal().Err(err).Msg("GAMES: crypto/rand failed")
		}
		for i := range b {
			b[i] = letters[int(b[i])%len(letters)]
		}
		id := string(b)

		if _, exists := tm.lookup(id); !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (tm *TableManager) reaperLoop() {
	ticker := tm.clock.NewTicker(tm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-tm.ctx.Done():
			return
		case now := <-ticker.Chan():
			tm.reap(now)
		}
	}
}

func (tm *TableManager) reap(now time.Time) {
	cutoff := now.Add(-tm.idleTimeout)

	tm.mu.Lock()
	defer tm.mu.Unlock()

	for id, hub := range tm.hubs {
		if hub.lastActivity().Before(cutoff) {
			delete(tm.hubs, id)
			hub.stop()
			log.Info().Str("table", id).Msg("GAMES: Reaped idle table")
		}
	}
}

func (tm *TableManager) closeAll() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for id, hub := range tm.hubs {
		delete(tm.hubs, id)
		hub.stop()
	}
}

// WebSocket handler that picks the hub based on :tableid
func serveWSForManager(tm *TableManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		tableID := ps.ByName("tableid")
		if tableID == "" {
			http.Error(w, "missing table id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)
		hub := tm.getHub(tableID)

		conn, err := upgrader.Upgrade(w, r, w.Header())
		if err != nil {
			log.Warn().Err(err).Str("table", tableID).Msg("GAMES: WebSocket upgrade failed")
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 32),
			playerID: playerID,
		}

		if !hub.join(client) {
			_ = conn.Close()
			return
		}

		log.Debug().Str("table", tableID).Str("remote", realIP(r)).Msg("GAMES: Client connected")

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		h.dispatch(clientCommand{
			client: c,
			msg:    msg,
		})
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}

	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "table closed"))
}

// QR handler: generates a PNG QR code for the current table URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tableID := ps.ByName("tableid")
	if tableID == "" {
		http.Error(w, "missing table id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:tableid/qr; strip trailing "/qr" to get the table URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func exportHandler(cfg *Config, tm *TableManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		hub, ok := tm.lookup(ps.ByName("tableid"))
		if !ok {
			http.Error(w, "table not found", http.StatusNotFound)
			return
		}

		summary, ok := hub.export()
		if !ok {
			http.Error(w, "no teams drawn yet", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+teams.ExportFilename+`"`)
		securityHeaders(cfg, w)

		written, err := w.Write([]byte(summary + "\n"))
		if err != nil {
			errs <- err
			return
		}

		log.Debug().
			Str("table", hub.id).
			Str("size", humanReadableSize(written)).
			Str("remote", realIP(r)).
			Msg("SERVE: Exported teams")
	}
}

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/picker/index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		_, _ = w.Write(data)
	}
}

// redirectNewTable handles GET /path by generating a new random table ID
// (with server-side collision detection) and redirecting to /path/:tableid.
func redirectNewTable(cfg *Config, path string, tm *TableManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		tableID := tm.newTableID()
		log.Debug().Str("table", tableID).Msg("GAMES: Created table")
		http.Redirect(w, r, cfg.prefix+path+"/"+tableID, http.StatusTemporaryRedirect)
	}
}

// registerPicker sets up routes so that:
//   - $path                  → redirects to new random table (8-char ID)
//   - $path/:tableid         → HTML client
//   - $path/:tableid/ws      → WebSocket for that table
//   - $path/:tableid/qr      → PNG QR code for that table URL
//   - $path/:tableid/export  → plain-text summary of the latest draw
func registerPicker(cfg *Config, path string, mux *httprouter.Router, tm *TableManager, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewTable(cfg, path, tm))
	mux.GET(cfg.prefix+path+"/:tableid", getIndexHandler(cfg))
	mux.GET(cfg.prefix+path+"/:tableid/ws", serveWSForManager(tm))
	mux.GET(cfg.prefix+path+"/:tableid/qr", qrHandler)
	mux.GET(cfg.prefix+path+"/:tableid/export", exportHandler(cfg, tm, errs))
}
