package hub

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"creator_collab/internal/domain"
	"creator_collab/internal/metrics"
	"creator_collab/internal/service"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/keylock"
	"creator_collab/pkg/logger"
)

type RouterConfig struct {
	SendBuffer int
	OpTimeout  time.Duration
	SendRule   domain.RateLimitRule
}

// Router applies channel events and room mutations and fans the results out
// to watchers. One lock per room spans append and fan-out, so every watcher
// sees a room's messages in append order.
type Router struct {
	registry *Registry
	identity service.IdentityGate
	rooms    service.RoomService
	messages service.MessageService
	files    service.FileStore
	limiter  service.RateLimitService
	locks    *keylock.KeyedMutex
	cfg      RouterConfig
	log      logger.Logger
}

func NewRouter(registry *Registry, services *service.Services, cfg RouterConfig, log logger.Logger) *Router {
	return &Router{
		registry: registry,
		identity: services.Identity,
		rooms:    services.Rooms,
		messages: services.Messages,
		files:    services.Files,
		limiter:  services.RateLimit,
		locks:    keylock.New(),
		cfg:      cfg,
		log:      log.With("component", "router"),
	}
}

func (r *Router) Registry() *Registry {
	return r.registry
}

// Connect authenticates a new channel and registers it.
func (r *Router) Connect(ctx context.Context, credential string) (*Connection, error) {
	identity, err := r.identity.Authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}

	conn := NewConnection(*identity, r.cfg.SendBuffer)
	r.registry.Register(conn)

	r.log.Info("Connection opened", "connection_id", conn.ID(), "user_id", identity.UserID)
	return conn, nil
}

// Disconnect releases every watch of conn. Calling it twice is harmless.
func (r *Router) Disconnect(conn *Connection) {
	for _, roomID := range r.registry.Unregister(conn) {
		r.broadcast(roomID, domain.PresenceLeftEvent{RoomID: roomID, Identity: conn.Identity()}, nil)
	}
}

// Close disconnects every open channel. Used on shutdown.
func (r *Router) Close() {
	for _, conn := range r.registry.All() {
		r.Disconnect(conn)
	}
}

// Handle applies one inbound event. Failures go back to conn only.
func (r *Router) Handle(ctx context.Context, conn *Connection, ev domain.ClientEvent) {
	switch e := ev.(type) {
	case domain.WatchEvent:
		if err := r.Watch(ctx, conn, e.RoomID); err != nil {
			r.reject(conn, e.RoomID, "", err)
		}
	case domain.UnwatchEvent:
		r.Unwatch(conn, e.RoomID)
	case domain.SendEvent:
		if _, err := r.Send(ctx, conn, e); err != nil {
			r.reject(conn, e.RoomID, e.ClientRef, err)
		}
	default:
		r.reject(conn, "", "", apperrors.WithDetail(apperrors.ErrValidation, "unsupported event"))
	}
}

// Reject reports err to conn as an error event.
func (r *Router) Reject(conn *Connection, err error) {
	r.reject(conn, "", "", err)
}

func (r *Router) Watch(ctx context.Context, conn *Connection, roomID string) error {
	room, err := r.rooms.Get(ctx, conn.Identity(), roomID)
	if err != nil {
		return err
	}

	first := r.registry.Watch(conn, room.RoomID)
	r.deliver(conn, domain.WatchingEvent{RoomID: room.RoomID, Online: r.registry.Online(room.RoomID)})
	if first {
		r.broadcast(room.RoomID, domain.PresenceJoinedEvent{RoomID: room.RoomID, Identity: conn.Identity()}, conn)
	}
	return nil
}

// Unwatch is a no-op for rooms conn is not watching.
func (r *Router) Unwatch(conn *Connection, roomID string) {
	if r.registry.Unwatch(conn, roomID) {
		r.broadcast(roomID, domain.PresenceLeftEvent{RoomID: roomID, Identity: conn.Identity()}, nil)
	}
}

// Send posts a message from a channel. A sender that is not watching the
// room gets the persisted message back directly.
func (r *Router) Send(ctx context.Context, conn *Connection, ev domain.SendEvent) (*domain.Message, error) {
	who := conn.Identity()
	if err := r.checkSendRate(ctx, who.UserID); err != nil {
		return nil, err
	}

	msg, err := r.PostMessage(ctx, who, ev.RoomID, ev.Draft())
	if err != nil {
		return nil, err
	}

	if !slices.Contains(r.registry.Watching(conn), msg.RoomID) {
		r.deliver(conn, domain.MessageEvent{Message: *msg})
	}
	return msg, nil
}

func (r *Router) checkSendRate(ctx context.Context, userID string) error {
	if !r.cfg.SendRule.Enabled() {
		return nil
	}
	decision, err := r.limiter.Allow(ctx, r.cfg.SendRule, userID)
	if err != nil {
		// counter store down: let the message through
		return nil
	}
	if !decision.Allowed {
		return apperrors.WithDetail(apperrors.ErrRateLimited, "too many messages, retry in %s", decision.RetryAfter.Round(time.Second))
	}
	return nil
}

// PostMessage appends a member's message and fans it out. Nothing is
// broadcast when the append fails.
func (r *Router) PostMessage(ctx context.Context, who domain.Identity, roomID string, draft domain.MessageDraft) (*domain.Message, error) {
	room, err := r.rooms.Lookup(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := canPost(room, who.UserID); err != nil {
		return nil, err
	}

	return r.appendAndFanOut(ctx, room, func(ctx context.Context) (*domain.Message, error) {
		return r.messages.Append(ctx, room, who.UserID, draft)
	})
}

func canPost(room *domain.Room, userID string) error {
	if !room.IsActive {
		return apperrors.ErrRoomInactive
	}
	if !room.IsMember(userID) {
		return apperrors.WithDetail(apperrors.ErrNotMember, "join room %s before posting", room.RoomID)
	}
	return nil
}

func (r *Router) appendAndFanOut(ctx context.Context, room *domain.Room, appendFn func(ctx context.Context) (*domain.Message, error)) (*domain.Message, error) {
	unlock := r.locks.Lock(room.RoomID)
	defer unlock()

	ctx, cancel := r.detached(ctx)
	defer cancel()

	msg, err := appendFn(ctx)
	if err != nil {
		return nil, err
	}

	r.broadcast(room.RoomID, domain.MessageEvent{Message: *msg}, nil)
	return msg, nil
}

// detached keeps an accepted write running after the caller goes away.
func (r *Router) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.cfg.OpTimeout)
}

// announce appends and fans out the system messages a room mutation asked
// for. The mutation is already committed, so failures are only logged.
func (r *Router) announce(ctx context.Context, room *domain.Room, actor domain.Identity, effects domain.Effects) {
	for _, text := range effects.SystemMessages() {
		_, err := r.appendAndFanOut(ctx, room, func(ctx context.Context) (*domain.Message, error) {
			return r.messages.AppendSystem(ctx, room, actor.UserID, text)
		})
		if err != nil {
			r.log.Warn("Failed to append system message", "room_id", room.RoomID, "error", err)
		}
	}
}

func (r *Router) CreateRoom(ctx context.Context, who domain.Identity, spec domain.CreateRoomSpec) (*domain.Room, error) {
	room, effects, err := r.rooms.Create(ctx, who, spec)
	if err != nil {
		return nil, err
	}
	r.announce(ctx, room, who, effects)
	return room, nil
}

func (r *Router) JoinRoom(ctx context.Context, who domain.Identity, roomID string) (*domain.Room, error) {
	room, effects, err := r.rooms.Join(ctx, who, roomID)
	if err != nil {
		return nil, err
	}
	r.announce(ctx, room, who, effects)
	return room, nil
}

// LeaveRoom also drops the leaver's watches on a private room, which they
// can no longer read.
func (r *Router) LeaveRoom(ctx context.Context, who domain.Identity, roomID string) (*domain.Room, error) {
	room, effects, err := r.rooms.Leave(ctx, who, roomID)
	if err != nil {
		return nil, err
	}
	r.announce(ctx, room, who, effects)

	if room.Settings.IsPrivate {
		for _, conn := range r.registry.ConnectionsOf(who.UserID) {
			r.Unwatch(conn, room.RoomID)
		}
	}
	return room, nil
}

// messageRoom loads a message together with its room.
func (r *Router) messageRoom(ctx context.Context, id uuid.UUID) (*domain.Message, *domain.Room, error) {
	msg, err := r.messages.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	room, err := r.rooms.Lookup(ctx, msg.RoomID)
	if err != nil {
		return nil, nil, err
	}
	return msg, room, nil
}

// GetMessage returns a message the caller may read.
func (r *Router) GetMessage(ctx context.Context, who domain.Identity, id uuid.UUID) (*domain.Message, error) {
	msg, room, err := r.messageRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if !room.VisibleTo(who.UserID) {
		return nil, apperrors.WithDetail(apperrors.ErrForbidden, "room %s is private", room.RoomID)
	}
	return msg, nil
}

type messageUpdate func(ctx context.Context, room *domain.Room) (*domain.Message, domain.Effects, error)

// updateMessage runs a message mutation under the room lock and publishes
// the result when the mutation asks for a broadcast.
func (r *Router) updateMessage(ctx context.Context, id uuid.UUID, check func(room *domain.Room) error, apply messageUpdate) (*domain.Message, error) {
	_, room, err := r.messageRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := check(room); err != nil {
		return nil, err
	}

	unlock := r.locks.Lock(room.RoomID)
	defer unlock()

	ctx, cancel := r.detached(ctx)
	defer cancel()

	msg, effects, err := apply(ctx, room)
	if err != nil {
		return nil, err
	}
	if effects.Has(domain.EffectBroadcast) {
		r.broadcast(room.RoomID, domain.MessageUpdatedEvent{Message: *msg}, nil)
	}
	return msg, nil
}

func requireMember(who domain.Identity) func(room *domain.Room) error {
	return func(room *domain.Room) error {
		if !room.IsMember(who.UserID) {
			return apperrors.ErrNotMember
		}
		return nil
	}
}

func requireVisible(who domain.Identity) func(room *domain.Room) error {
	return func(room *domain.Room) error {
		if !room.VisibleTo(who.UserID) {
			return apperrors.WithDetail(apperrors.ErrForbidden, "room %s is private", room.RoomID)
		}
		return nil
	}
}

func (r *Router) EditMessage(ctx context.Context, who domain.Identity, id uuid.UUID, text string) (*domain.Message, error) {
	return r.updateMessage(ctx, id, requireVisible(who), func(ctx context.Context, _ *domain.Room) (*domain.Message, domain.Effects, error) {
		return r.messages.Edit(ctx, id, who.UserID, text)
	})
}

// DeleteMessage passes the caller's current room role so admins and
// moderators can remove other members' messages.
func (r *Router) DeleteMessage(ctx context.Context, who domain.Identity, id uuid.UUID) (*domain.Message, error) {
	return r.updateMessage(ctx, id, requireVisible(who), func(ctx context.Context, room *domain.Room) (*domain.Message, domain.Effects, error) {
		return r.messages.Delete(ctx, id, who.UserID, room.RoleOf(who.UserID))
	})
}

func (r *Router) React(ctx context.Context, who domain.Identity, id uuid.UUID, emoji string) (*domain.Message, error) {
	return r.updateMessage(ctx, id, requireMember(who), func(ctx context.Context, _ *domain.Room) (*domain.Message, domain.Effects, error) {
		return r.messages.AddReaction(ctx, id, who.UserID, emoji)
	})
}

func (r *Router) Unreact(ctx context.Context, who domain.Identity, id uuid.UUID, emoji string) (*domain.Message, error) {
	return r.updateMessage(ctx, id, requireVisible(who), func(ctx context.Context, _ *domain.Room) (*domain.Message, domain.Effects, error) {
		return r.messages.RemoveReaction(ctx, id, who.UserID, emoji)
	})
}

func (r *Router) MarkRead(ctx context.Context, who domain.Identity, id uuid.UUID) (*domain.Message, error) {
	return r.updateMessage(ctx, id, requireMember(who), func(ctx context.Context, _ *domain.Room) (*domain.Message, domain.Effects, error) {
		return r.messages.MarkRead(ctx, id, who.UserID)
	})
}

type UploadOptions struct {
	Caption  string
	IsPublic bool
}

// UploadFile stores the bytes, records the file on the room and announces it
// as a file message. Access is checked before anything is written.
func (r *Router) UploadFile(ctx context.Context, who domain.Identity, roomID string, upload service.FileUpload, opts UploadOptions) (*domain.RoomFile, *domain.Message, error) {
	room, err := r.rooms.Lookup(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if err := canPost(room, who.UserID); err != nil {
		return nil, nil, err
	}
	if !room.Settings.AllowFileSharing {
		return nil, nil, apperrors.ErrFileSharingDisabled
	}

	stored, err := r.files.Store(ctx, upload)
	if err != nil {
		return nil, nil, err
	}

	file := stored.RoomFile(upload.OriginalName, who.UserID, opts.IsPublic, time.Now().UTC())
	room, err = r.rooms.AttachFile(ctx, roomID, file)
	if err != nil {
		if rmErr := r.files.Remove(context.WithoutCancel(ctx), stored.Filename, stored.Category); rmErr != nil {
			r.log.Warn("Failed to remove orphaned upload", "filename", stored.Filename, "error", rmErr)
		}
		return nil, nil, err
	}

	draft := domain.MessageDraft{
		Text: opts.Caption,
		File: stored.Attachment(upload.OriginalName),
		Type: domain.MessageTypeForCategory(stored.Category),
	}
	msg, err := r.appendAndFanOut(ctx, room, func(ctx context.Context) (*domain.Message, error) {
		return r.messages.Append(ctx, room, who.UserID, draft)
	})
	if err != nil {
		return &file, nil, err
	}
	return &file, msg, nil
}

func (r *Router) DeleteFile(ctx context.Context, who domain.Identity, roomID, filename string) error {
	_, removed, err := r.rooms.DetachFile(ctx, who, roomID, filename)
	if err != nil {
		return err
	}
	if err := r.files.Remove(ctx, removed.Filename, removed.FileType); err != nil {
		r.log.Warn("File detached but not removed from storage", "room_id", roomID, "filename", filename, "error", err)
	}
	return nil
}

func (r *Router) ListFiles(ctx context.Context, who domain.Identity, roomID string) ([]domain.RoomFile, error) {
	room, err := r.rooms.Get(ctx, who, roomID)
	if err != nil {
		return nil, err
	}
	return room.FilesVisibleTo(who.UserID), nil
}

func (r *Router) broadcast(roomID string, ev domain.ServerEvent, skip *Connection) {
	frame, err := EncodeServerEvent(ev)
	if err != nil {
		r.log.Error("Failed to encode event", "type", ev.ServerEventType(), "error", err)
		return
	}

	delivered, slow := r.registry.Broadcast(roomID, frame, skip)
	metrics.EventsDelivered.WithLabelValues(string(ev.ServerEventType())).Add(float64(delivered))

	for _, conn := range slow {
		r.evict(conn)
	}
}

func (r *Router) deliver(conn *Connection, ev domain.ServerEvent) {
	frame, err := EncodeServerEvent(ev)
	if err != nil {
		r.log.Error("Failed to encode event", "type", ev.ServerEventType(), "error", err)
		return
	}

	if r.registry.Deliver(conn, frame) {
		metrics.EventsDelivered.WithLabelValues(string(ev.ServerEventType())).Inc()
		return
	}
	if !conn.Closed() {
		r.evict(conn)
	}
}

// evict drops a connection that cannot keep up. The client reconnects and
// resyncs through the message history.
func (r *Router) evict(conn *Connection) {
	metrics.EventsDropped.Inc()
	r.log.Warn("Evicting slow connection", "connection_id", conn.ID(), "user_id", conn.Identity().UserID)
	r.Disconnect(conn)
}

func (r *Router) reject(conn *Connection, roomID, clientRef string, err error) {
	kind := apperrors.KindOf(err)
	metrics.RejectedEvents.WithLabelValues(string(kind)).Inc()
	if kind == apperrors.KindInternal || kind == apperrors.KindTransient {
		r.log.Error("Channel event failed", "connection_id", conn.ID(), "room_id", roomID, "error", err)
	} else {
		r.log.Debug("Channel event rejected", "connection_id", conn.ID(), "room_id", roomID, "kind", kind)
	}

	r.deliver(conn, domain.ErrorEvent{
		Kind:      string(kind),
		Detail:    apperrors.Detail(err),
		RoomID:    roomID,
		ClientRef: clientRef,
	})
}
