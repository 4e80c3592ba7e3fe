package hub

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/evidence-board/internal/game"
	"github.com/DoyleJ11/evidence-board/internal/room"
)

var ErrStopped = errors.New("hub stopped")

type HubMsg interface{ isHubMsg() }

// EnsureRoom returns the room for Code, creating it on first use.
type EnsureRoom struct {
	Code  string
	Reply chan *room.Room
}

// GetRoom replies with nil when the room does not exist.
type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Code string
}

type ListRooms struct {
	Reply chan []string
}

// Sweep retires rooms idle for at least the configured TTL and replies with
// the codes it removed.
type Sweep struct {
	Now   time.Time
	Reply chan []string
}

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ListRooms) isHubMsg()   {}
func (Sweep) isHubMsg()       {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	// Room is applied to every room the hub creates.
	Room room.Options
	// IdleTTL of zero disables sweeping.
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Logger        *zap.Logger
}

type Hub struct {
	inbox chan HubMsg
	rooms map[string]*room.Room
	opts  Options
	log   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Room.Logger == nil {
		opts.Room.Logger = opts.Logger
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room.Room),
		opts:   opts,
		log:    opts.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub has stopped.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

func (h *Hub) loop() {
	var tick <-chan time.Time
	if h.opts.IdleTTL > 0 && h.opts.SweepInterval > 0 {
		t := time.NewTicker(h.opts.SweepInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case now := <-tick:
			h.sweep(now)

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				code := game.NormalizeCode(msg.Code)
				if rm := h.rooms[code]; rm != nil {
					msg.Reply <- rm
					break
				}
				rm := room.New(h.ctx, code, h.opts.Room)
				h.rooms[code] = rm
				h.log.Info("room created", zap.String("room", code))
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[game.NormalizeCode(msg.Code)] // May be nil

			case RemoveRoom:
				code := game.NormalizeCode(msg.Code)
				if rm := h.rooms[code]; rm != nil {
					rm.Stop()
					delete(h.rooms, code)
				}

			case ListRooms:
				codes := make([]string, 0, len(h.rooms))
				for code := range h.rooms {
					codes = append(codes, code)
				}
				slices.Sort(codes)
				msg.Reply <- codes

			case Sweep:
				msg.Reply <- h.sweep(msg.Now)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) sweep(now time.Time) []string {
	if h.opts.IdleTTL <= 0 {
		return nil
	}

	var removed []string
	for code, rm := range h.rooms {
		reply := make(chan bool, 1)
		if !rm.Send(room.Retire{IdleFor: h.opts.IdleTTL, Now: now, Reply: reply}) {
			// Already stopped.
			delete(h.rooms, code)
			removed = append(removed, code)
			continue
		}
		select {
		case idle := <-reply:
			if !idle {
				continue
			}
		case <-rm.Done():
		}
		delete(h.rooms, code)
		removed = append(removed, code)
	}

	if len(removed) > 0 {
		slices.Sort(removed)
		h.log.Info("idle rooms swept", zap.Strings("rooms", removed))
	}
	return removed
}

func (h *Hub) shutdown() {
	for _, rm := range h.rooms {
		rm.Stop()
	}
	clear(h.rooms)
	h.cancel()
}

func (h *Hub) Ensure(ctx context.Context, code string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	return h.ask(ctx, EnsureRoom{Code: code, Reply: reply}, reply)
}

func (h *Hub) Get(ctx context.Context, code string) (*room.Room, error) {
	reply := make(chan *room.Room, 1)
	return h.ask(ctx, GetRoom{Code: code, Reply: reply}, reply)
}

func (h *Hub) List(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.send(ctx, ListRooms{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case codes := <-reply:
		return codes, nil
	case <-h.ctx.Done():
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) ask(ctx context.Context, msg HubMsg, reply chan *room.Room) (*room.Room, error) {
	if err := h.send(ctx, msg); err != nil {
		return nil, err
	}
	select {
	case rm := <-reply:
		return rm, nil
	case <-h.ctx.Done():
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) send(ctx context.Context, msg HubMsg) error {
	select {
	case <-h.ctx.Done():
		return ErrStopped
	default:
	}

	select {
	case h.inbox <- msg:
		return nil
	case <-h.ctx.Done():
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
