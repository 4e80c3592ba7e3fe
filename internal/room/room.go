package room

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/evidence-board/internal/archive"
	"github.com/DoyleJ11/evidence-board/internal/game"
	"github.com/DoyleJ11/evidence-board/pkg/protocol"
)

var ErrClosed = errors.New("room closed")

// Subscriber is a connection joined to the room's broadcast channel.
type Subscriber interface {
	ID() string
	// Deliver must not block. Returning false drops the subscriber.
	Deliver(out protocol.Outbound) bool
}

type Msg interface{ isRoomMsg() }

// Join subscribes Sub once the player join succeeds. Ack receives the
// join result.
type Join struct {
	Sub  Subscriber
	Name string
	Ack  chan error
}

func (Join) isRoomMsg() {}

type Leave struct{ ConnID string }

func (Leave) isRoomMsg() {}

// FromClient carries a move or evidence command. Sub receives error replies
// and may be nil.
type FromClient struct {
	Sub Subscriber
	Cmd game.Command
}

func (FromClient) isRoomMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

// Retire stops the room if it has no subscribers and has seen no activity
// for at least IdleFor. Reply receives whether it stopped.
type Retire struct {
	IdleFor time.Duration
	Now     time.Time
	Reply   chan bool
}

func (Retire) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

type View struct {
	Code       string
	Version    int
	NumClients int
	LastActive time.Time
	State      game.State
}

type Options struct {
	Rules  game.Rules
	Sink   archive.Sink
	Logger *zap.Logger
	Now    func() time.Time
}

type Room struct {
	code       string
	inbox      chan Msg
	state      game.State
	version    int
	clients    map[string]Subscriber
	lastActive time.Time

	rules game.Rules
	sink  archive.Sink
	log   *zap.Logger
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, code string, opts Options) *Room {
	ctx, cancel := context.WithCancel(parent)

	if opts.Sink == nil {
		opts.Sink = archive.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Room{
		code:       code,
		inbox:      make(chan Msg, 64),
		state:      game.NewState(),
		clients:    make(map[string]Subscriber),
		lastActive: opts.Now(),
		rules:      opts.Rules,
		sink:       opts.Sink,
		log:        opts.Logger.With(zap.String("room", code)),
		now:        opts.Now,
		ctx:        ctx,
		cancel:     cancel,
	}

	go r.loop()
	return r
}

func (r *Room) Code() string { return r.code }

// Done is closed once the room stops processing messages.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

// Send enqueues m and reports false if the room has already stopped.
func (r *Room) Send(m Msg) bool {
	select {
	case <-r.ctx.Done():
		return false
	default:
	}

	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Join subscribes sub and waits until the player join has been applied.
func (r *Room) Join(ctx context.Context, sub Subscriber, name string) error {
	ack := make(chan error, 1)
	if !r.Send(Join{Sub: sub, Name: name, Ack: ack}) {
		return ErrClosed
	}
	select {
	case err := <-ack:
		return err
	case <-r.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if !r.Send(GetState{Reply: reply}) {
		return View{}, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.ctx.Done():
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (r *Room) Stop() { r.cancel() }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.lastActive = r.now()
				cmd := game.Command{Type: game.CmdJoin, ConnID: msg.Sub.ID(), PlayerName: msg.Name}
				events, err := r.apply(msg.Sub, cmd)
				if err == nil {
					r.clients[msg.Sub.ID()] = msg.Sub
					r.publish(cmd, events)
				}
				if msg.Ack != nil {
					msg.Ack <- err
				}

			case Leave:
				// The player entry stays; only the channel membership goes.
				delete(r.clients, msg.ConnID)
				r.lastActive = r.now()

			case FromClient:
				r.lastActive = r.now()
				if events, err := r.apply(msg.Sub, msg.Cmd); err == nil {
					r.publish(msg.Cmd, events)
				}

			case GetState:
				msg.Reply <- View{
					Code:       r.code,
					Version:    r.version,
					NumClients: len(r.clients),
					LastActive: r.lastActive,
					State:      r.state.Clone(),
				}

			case Retire:
				idle := len(r.clients) == 0 && msg.Now.Sub(r.lastActive) >= msg.IdleFor
				msg.Reply <- idle
				if idle {
					r.log.Info("room retired", zap.Duration("idle", msg.Now.Sub(r.lastActive)))
					r.shutdown()
					return
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) apply(from Subscriber, cmd game.Command) ([]game.Event, error) {
	events, err := game.Apply(&r.state, r.rules, cmd, r.now())
	if err != nil {
		r.reject(from, cmd, err)
		return nil, err
	}
	r.version++
	return events, nil
}

// publish logs and archives events, then broadcasts the new snapshot.
func (r *Room) publish(cmd game.Command, events []game.Event) {
	var moved *game.Event
	for i, ev := range events {
		switch ev.Type {
		case game.EvtPlayerJoined:
			r.log.Info("player created", zap.String("player", ev.PlayerName), zap.String("conn", cmd.ConnID))
		case game.EvtPlayerReconnected:
			r.log.Info("player reconnected", zap.String("player", ev.PlayerName), zap.String("conn", cmd.ConnID))
		case game.EvtPlayerMoved:
			moved = &events[i]
		case game.EvtEvidenceLogged:
			if !ev.Counted {
				r.log.Info("evidence type not tallied",
					zap.String("player", ev.PlayerName),
					zap.String("type", ev.Entry.Type))
			}
			r.sink.Record(archive.Record{RoomCode: r.code, Entry: ev.Entry})
		}
	}

	r.broadcast(protocol.UpdateState(r.state.Clone()))
	if moved != nil {
		r.broadcast(protocol.Moved(*moved))
	}
}

func (r *Room) reject(from Subscriber, cmd game.Command, err error) {
	if errors.Is(err, game.ErrNoPlayers) {
		// Stale client state; drop silently.
		r.log.Debug("command on empty room ignored", zap.String("cmd", string(cmd.Type)))
		return
	}

	r.log.Info("command rejected",
		zap.String("cmd", string(cmd.Type)),
		zap.String("conn", cmd.ConnID),
		zap.Error(err))
	if from != nil {
		from.Deliver(protocol.Error(err.Error()))
	}
}

func (r *Room) broadcast(out protocol.Outbound) {
	for id, sub := range r.clients {
		if !sub.Deliver(out) {
			// Subscriber is slow or gone - drop it.
			r.log.Warn("dropping subscriber", zap.String("conn", id))
			delete(r.clients, id)
		}
	}
}

func (r *Room) shutdown() {
	clear(r.clients)
	r.cancel()
}

// Expose the inbox so tests can send messages.
func (r *Room) Inbox() chan<- Msg { return r.inbox }
