package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/evidence-board/internal/hub"
	"github.com/DoyleJ11/evidence-board/internal/room"
	"github.com/DoyleJ11/evidence-board/pkg/protocol"
)

type Options struct {
	OutboxSize   int
	WriteTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.OutboxSize <= 0 {
		o.OutboxSize = 16
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 3 * time.Second
	}
	return o
}

func Handler(h *hub.Hub, log *zap.Logger, opts Options) http.HandlerFunc {
	opts = opts.withDefaults()

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// Any origin may connect.
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		s := newSession(r.Context(), uuid.NewString(), conn, h, log, opts)
		log.Info("connection opened", zap.String("conn", s.id))
		defer log.Info("connection closed", zap.String("conn", s.id))

		go s.writeLoop()
		s.readLoop()
	}
}

// session is one socket. It implements room.Subscriber.
type session struct {
	id   string
	conn *websocket.Conn
	hub  *hub.Hub
	log  *zap.Logger
	opts Options

	out    chan protocol.Outbound
	ctx    context.Context
	cancel context.CancelFunc

	// Only touched by readLoop.
	rooms map[string]*room.Room
}

func newSession(parent context.Context, id string, conn *websocket.Conn, h *hub.Hub, log *zap.Logger, opts Options) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		id:     id,
		conn:   conn,
		hub:    h,
		log:    log.With(zap.String("conn", id)),
		opts:   opts,
		out:    make(chan protocol.Outbound, opts.OutboxSize),
		ctx:    ctx,
		cancel: cancel,
		rooms:  make(map[string]*room.Room),
	}
}

func (s *session) ID() string { return s.id }

func (s *session) Deliver(out protocol.Outbound) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}

	select {
	case s.out <- out:
		return true
	default:
		// Outbox full: the client cannot keep up, hang up on it.
		s.log.Warn("outbox full, closing connection")
		s.cancel()
		return false
	}
}

func (s *session) writeLoop() {
	defer s.cancel()
	for {
		select {
		case <-s.ctx.Done():
			return
		case out := <-s.out:
			payload, err := out.Encode()
			if err != nil {
				s.log.Error("encode frame", zap.String("event", out.Event), zap.Error(err))
				continue
			}
			ctx, cancel := context.WithTimeout(s.ctx, s.opts.WriteTimeout)
			err = s.conn.Write(ctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *session) readLoop() {
	defer s.cancel()
	defer s.leaveAll()

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if s.ctx.Err() == nil {
					s.log.Debug("read failed", zap.Error(err))
				}
			}
			return
		}

		in, err := protocol.Decode(data)
		if err != nil {
			s.Deliver(protocol.Error(err.Error()))
			continue
		}

		if err := s.handle(in); err != nil {
			if errors.Is(err, hub.ErrStopped) || errors.Is(err, context.Canceled) {
				return
			}
			s.log.Warn("handle message", zap.Error(err))
		}
	}
}

func (s *session) handle(in protocol.Inbound) error {
	switch msg := in.(type) {
	case protocol.JoinRoom:
		return s.join(msg)
	default:
		return s.forward(in)
	}
}

func (s *session) join(msg protocol.JoinRoom) error {
	// A room can retire between lookup and join; one retry lands on a fresh room.
	for attempt := 0; attempt < 2; attempt++ {
		rm, err := s.hub.Ensure(s.ctx, msg.RoomCode)
		if err != nil {
			return err
		}
		err = rm.Join(s.ctx, s, msg.PlayerName)
		if errors.Is(err, room.ErrClosed) {
			continue
		}
		if err != nil {
			return err
		}
		s.rooms[rm.Code()] = rm
		s.log.Debug("joined room", zap.String("room", rm.Code()), zap.String("player", msg.PlayerName))
		return nil
	}
	return room.ErrClosed
}

func (s *session) forward(in protocol.Inbound) error {
	rm, err := s.hub.Get(s.ctx, in.Room())
	if err != nil {
		return err
	}
	if rm == nil {
		// Unknown room: stale client state, ignore.
		s.log.Debug("event for unknown room dropped", zap.String("room", in.Room()))
		return nil
	}

	cmd, ok := protocol.ToCommand(in, s.id)
	if !ok {
		return nil
	}
	rm.Send(room.FromClient{Sub: s, Cmd: cmd})
	return nil
}

func (s *session) leaveAll() {
	for _, rm := range s.rooms {
		rm.Send(room.Leave{ConnID: s.id})
	}
	clear(s.rooms)
}
