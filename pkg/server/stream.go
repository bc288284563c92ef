package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
	"github.com/matzehuels/masonry/pkg/layout"
	"github.com/matzehuels/masonry/pkg/source"
	"github.com/matzehuels/masonry/pkg/viewport"
)

const (
	writeWait       = 10 * time.Second
	maxMessageBytes = 1 << 16
)

// Client message types.
const (
	msgResize   = "resize"
	msgScroll   = "scroll"
	msgViewport = "viewport"
	msgBoundary = "boundary"
	msgActivate = "activate"
)

// Server message types.
const (
	msgSession   = "session"
	msgSnapshot  = "snapshot"
	msgActivated = "activated"
	msgExhausted = "exhausted"
	msgError     = "error"
)

// clientMessage is a message received on /v1/stream.
//
//	{"type": "resize", "width": 1024}
//	{"type": "scroll", "offset": 1200, "viewport_height": 800}
//	{"type": "viewport", "height": 800}
//	{"type": "boundary"}
//	{"type": "activate", "id": "2014422"}
type clientMessage struct {
	Type           string  `json:"type"`
	Width          float64 `json:"width,omitempty"`
	Offset         float64 `json:"offset,omitempty"`
	ViewportHeight float64 `json:"viewport_height,omitempty"`
	Height         float64 `json:"height,omitempty"`
	ID             string  `json:"id,omitempty"`
}

// serverMessage is a message sent on /v1/stream.
type serverMessage struct {
	Type    string         `json:"type"`
	Session string         `json:"session,omitempty"`
	Total   int            `json:"total,omitempty"`
	Window  *layout.Window `json:"window,omitempty"`
	Photo   *masonry.Photo `json:"photo,omitempty"`
	Error   *apiError      `json:"error,omitempty"`
}

// streamSession binds one websocket connection to one coordinator. All
// coordinator calls and all writes happen on the read loop goroutine.
type streamSession struct {
	id      string
	conn    *websocket.Conn
	logger  *log.Logger
	ctx     context.Context
	pager   *source.Pager
	trigger *viewport.SignalTrigger
	coord   *viewport.Coordinator
	buffer  int

	exhaustedSent bool
	writeErr      error
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	src := s.Source()
	if src == nil {
		writeError(w, errors.New(errors.ErrCodeNotFound, "no photo source configured"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s.wg.Add(1)
	s.sessions.Add(1)
	defer func() {
		s.sessions.Add(-1)
		s.wg.Done()
	}()

	ctx, cancel := context.WithCancel(s.baseCtx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	id := uuid.NewString()
	sess := &streamSession{
		id:      id,
		conn:    conn,
		logger:  s.logger.With("session", id),
		ctx:     ctx,
		pager:   source.NewPagerFunc(s.runner.Fetcher(src, false), s.cfg.PageSize),
		trigger: viewport.NewSignalTrigger(),
		buffer:  s.cfg.Buffer,
	}
	sess.logger.Info("stream opened", "remote", r.RemoteAddr)
	defer func() { sess.logger.Info("stream closed") }()

	if err := sess.run(s.cfg); err != nil && !isCloseError(err) {
		sess.logger.Warn("stream ended", "error", err)
	}
}

func (ss *streamSession) run(cfg Config) error {
	if _, err := ss.pager.Next(ss.ctx); err != nil {
		ss.sendError(err)
		return err
	}

	coord, err := viewport.New(ss.pager.Photos(),
		viewport.WithConfig(cfg.Layout),
		viewport.WithBuffer(cfg.Buffer),
		viewport.WithThreshold(cfg.Threshold),
		viewport.WithLogger(ss.logger),
		viewport.WithContext(ss.ctx),
		viewport.WithBoundaryTrigger(ss.trigger),
		viewport.WithRenderer(ss.render),
		viewport.WithOnActivate(ss.activated),
		viewport.WithOnBoundary(ss.loadMore),
	)
	if err != nil {
		ss.sendError(err)
		return err
	}
	ss.coord = coord
	defer coord.Close()

	ss.send(serverMessage{Type: msgSession, Session: ss.id, Total: len(ss.pager.Photos())})
	ss.checkExhausted()

	ss.conn.SetReadLimit(maxMessageBytes)
	for ss.writeErr == nil {
		var msg clientMessage
		if err := ss.conn.ReadJSON(&msg); err != nil {
			if _, ok := err.(*websocket.CloseError); ok || ss.ctx.Err() != nil {
				return nil
			}
			return err
		}
		ss.handle(msg)
	}
	return ss.writeErr
}

func (ss *streamSession) handle(msg clientMessage) {
	switch msg.Type {
	case msgResize:
		ss.coord.OnContainerWidthChanged(msg.Width)
	case msgScroll:
		ss.coord.OnScroll(msg.Offset, msg.ViewportHeight)
	case msgViewport:
		ss.coord.OnViewportSizeChanged(msg.Height)
	case msgBoundary:
		ss.trigger.Signal()
	case msgActivate:
		if !ss.coord.Activate(msg.ID) {
			ss.sendError(errors.New(errors.ErrCodeNotFound, "photo %q is not rendered", msg.ID))
		}
	default:
		ss.sendError(errors.New(errors.ErrCodeInvalidInput, "unknown message type %q", msg.Type))
	}
}

func (ss *streamSession) render(snap viewport.Snapshot) {
	w := layout.FromSnapshot(snap, ss.buffer)
	ss.send(serverMessage{Type: msgSnapshot, Window: &w})
}

func (ss *streamSession) activated(p masonry.Photo) {
	ss.send(serverMessage{Type: msgActivated, Photo: &p})
}

// loadMore runs when the sentinel nears the viewport. It appends the next
// page and hands the grown collection back to the coordinator.
func (ss *streamSession) loadMore() {
	if ss.pager.Exhausted() {
		return
	}
	n, err := ss.pager.Next(ss.ctx)
	if err != nil {
		ss.sendError(err)
		return
	}
	ss.logger.Debug("loaded page", "added", n, "total", len(ss.pager.Photos()))
	if n > 0 {
		ss.coord.OnCollectionChanged(ss.pager.Photos())
	}
	ss.checkExhausted()
}

func (ss *streamSession) checkExhausted() {
	if ss.pager.Exhausted() && !ss.exhaustedSent {
		ss.exhaustedSent = true
		ss.send(serverMessage{Type: msgExhausted, Total: len(ss.pager.Photos())})
	}
}

func (ss *streamSession) sendError(err error) {
	e := toAPIError(err)
	ss.send(serverMessage{Type: msgError, Error: &e})
}

func (ss *streamSession) send(msg serverMessage) {
	if ss.writeErr != nil {
		return
	}
	_ = ss.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ss.conn.WriteJSON(msg); err != nil {
		ss.writeErr = err
	}
}

func isCloseError(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
