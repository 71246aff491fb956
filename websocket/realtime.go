package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadrant/featureflag"
	"github.com/aukilabs/quadrant/models"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	// The header where clients pass their id.
	HeaderClientID = "X-Quadrant-Client-Id"

	// The maximum number of items returned by a query when no limit is
	// configured.
	DefaultMaxQueryResults = 1000
)

// RealtimeHandler represents a service that manages a client connection and
// applies its requests to the spaces hosted by the server.
type RealtimeHandler struct {
	// The interval between each heartbeat message sent to the connected
	// client.
	ClientHeartbeatInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains all the server spaces.
	Spaces *models.SpaceStore

	// The maximum number of items returned by a query.
	MaxQueryResults int

	FeatureFlags featureflag.FeatureFlag

	conn           *websocket.Conn
	currentSpace   *models.Space
	currentSpaceID string

	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(MsgTypePingResponse, msg.RequestID, nil)
	return nil
}

func (h *RealtimeHandler) HandleSpaceCreate(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req SpaceCreateRequest
	if err := msg.DataTo(&req); err != nil {
		return h.HandleBadMsg(ctx, respond, msg, err)
	}

	opts := models.SpaceOptions{
		Name:           req.Name,
		Backend:        req.Backend,
		Capacity:       req.Capacity,
		MinSize:        req.MinSize,
		StrictCapacity: req.StrictCapacity,
	}
	if req.Region != nil {
		region, err := req.Region.AABB()
		if err != nil {
			sendError(respond, msg.RequestID, err)
			return nil
		}
		opts.Region = region
	}

	space, err := h.Spaces.Create(ctx, opts)
	if err != nil {
		sendError(respond, msg.RequestID, err)
		return nil
	}

	spaceID := h.Spaces.GlobalSpaceID(space.ID)
	h.FeatureFlags.IfNotSet(featureflag.FlagDisableAutoJoin, func() {
		h.currentSpace = space
		h.currentSpaceID = spaceID
	})

	respond.Send(MsgTypeSpaceCreateResponse, msg.RequestID, SpaceCreateResponse{
		Space: models.SpaceToJSON(spaceID, space),
	})
	return nil
}

func (h *RealtimeHandler) HandleSpaceJoin(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req SpaceJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return h.HandleBadMsg(ctx, respond, msg, err)
	}

	space, err := h.Spaces.Get(req.SpaceID)
	if err != nil {
		sendError(respond, msg.RequestID, err)
		return nil
	}

	h.currentSpace = space
	h.currentSpaceID = req.SpaceID

	respond.Send(MsgTypeSpaceJoinResponse, msg.RequestID, SpaceJoinResponse{
		Space: models.SpaceToJSON(req.SpaceID, space),
	})
	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	h.currentSpace = nil
	h.currentSpaceID = ""
}

func (h *RealtimeHandler) HandleItemInsert(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req ItemInsertRequest
	if err := msg.DataTo(&req); err != nil {
		return h.HandleBadMsg(ctx, respond, msg, err)
	}

	space, ok := h.joinedSpace(respond, msg)
	if !ok {
		return nil
	}

	bounds, err := req.Bounds.AABB()
	if err != nil {
		sendError(respond, msg.RequestID, err)
		return nil
	}

	itemID := req.ItemID
	if req.Replace && itemID != "" {
		err = space.Set(itemID, bounds)
	} else {
		itemID, err = space.Insert(itemID, bounds)
	}
	if err != nil {
		sendError(respond, msg.RequestID, err)
		return nil
	}

	respond.Send(MsgTypeItemInsertResponse, msg.RequestID, ItemInsertResponse{
		ItemID: itemID,
	})
	return nil
}

func (h *RealtimeHandler) HandleItemRemove(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req ItemRemoveRequest
	if err := msg.DataTo(&req); err != nil {
		return h.HandleBadMsg(ctx, respond, msg, err)
	}

	space, ok := h.joinedSpace(respond, msg)
	if !ok {
		return nil
	}

	if err := space.Remove(req.ItemID); err != nil {
		sendError(respond, msg.RequestID, err)
		return nil
	}

	respond.Send(MsgTypeItemRemoveResponse, msg.RequestID, ItemRemoveResponse{
		ItemID: req.ItemID,
	})
	return nil
}

func (h *RealtimeHandler) HandleQuery(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req QueryRequest
	if err := msg.DataTo(&req); err != nil {
		return h.HandleBadMsg(ctx, respond, msg, err)
	}

	space, ok := h.joinedSpace(respond, msg)
	if !ok {
		return nil
	}

	if req.Range.Type == models.RangeTypeGeohash && h.FeatureFlags.IsSet(featureflag.FlagDisableGeohashQuery) {
		sendErrorCode(respond, msg.RequestID, ErrorCodeDisabled, "geohash queries are disabled")
		return nil
	}

	r, err := req.Range.Range(true)
	if err != nil {
		sendError(respond, msg.RequestID, err)
		return nil
	}

	items, truncated := space.Query(r, QueryLimit(req.Limit, h.MaxQueryResults))
	respond.Send(MsgTypeQueryResponse, msg.RequestID, QueryResponse{
		Items:     models.ItemsToJSON(items),
		Truncated: truncated,
	})
	return nil
}

func (h *RealtimeHandler) HandleClear(ctx context.Context, respond ResponseSender, msg Msg) error {
	if h.FeatureFlags.IsSet(featureflag.FlagDisableClear) {
		sendErrorCode(respond, msg.RequestID, ErrorCodeDisabled, "clearing spaces is disabled")
		return nil
	}

	space, ok := h.joinedSpace(respond, msg)
	if !ok {
		return nil
	}

	respond.Send(MsgTypeClearResponse, msg.RequestID, ClearResponse{
		RemovedCount: space.Clear(),
	})
	return nil
}

func (h *RealtimeHandler) HandleDebugInfo(ctx context.Context, respond ResponseSender, msg Msg) error {
	if h.FeatureFlags.IsSet(featureflag.FlagDisableDebugInfo) {
		sendErrorCode(respond, msg.RequestID, ErrorCodeDisabled, "debug info is disabled")
		return nil
	}

	space, ok := h.joinedSpace(respond, msg)
	if !ok {
		return nil
	}

	respond.Send(MsgTypeDebugInfoResponse, msg.RequestID, DebugInfoResponse{
		DebugInfo: models.DebugInfoToJSON(space.DebugInfo()),
	})
	return nil
}

func (h *RealtimeHandler) HandleBadMsg(ctx context.Context, respond ResponseSender, msg Msg, err error) error {
	sendErrorCode(respond, msg.RequestID, ErrorCodeBadRequest, err.Error())
	return nil
}

func (h *RealtimeHandler) SendHeartbeat(ctx context.Context, respond ResponseSender) error {
	respond.Send(MsgTypeHeartbeat, 0, nil)
	return nil
}

func (h *RealtimeHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) HeartbeatInterval() time.Duration {
	return h.ClientHeartbeatInterval
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetSpaces() *models.SpaceStore {
	return h.Spaces
}

// CurrentSpace returns the joined space. A space removed from the store since
// it was joined is no longer returned.
func (h *RealtimeHandler) CurrentSpace() *models.Space {
	if h.currentSpace == nil {
		return nil
	}

	if space, ok := h.Spaces.GetByGlobalID(h.currentSpaceID); !ok || space != h.currentSpace {
		h.currentSpace = nil
		h.currentSpaceID = ""
	}
	return h.currentSpace
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

func (h *RealtimeHandler) joinedSpace(respond ResponseSender, msg Msg) (*models.Space, bool) {
	space := h.CurrentSpace()
	if space == nil {
		sendErrorCode(respond, msg.RequestID, ErrorCodeSpaceNotJoined, "space not joined")
		return nil, false
	}
	return space, true
}

// QueryLimit returns the number of results a query may return. Requested
// limits are capped by maxResults.
func QueryLimit(requested, maxResults int) int {
	if maxResults <= 0 {
		maxResults = DefaultMaxQueryResults
	}
	if requested <= 0 || requested > maxResults {
		return maxResults
	}
	return requested
}

func sendError(respond ResponseSender, requestID uint32, err error) {
	sendErrorCode(respond, requestID, ErrorCodeFromError(err), err.Error())
}

func sendErrorCode(respond ResponseSender, requestID uint32, code ErrorCode, message string) {
	respond.Send(MsgTypeErrorResponse, requestID, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// ErrorCodeFromError returns the error code that matches the type of err.
func ErrorCodeFromError(err error) ErrorCode {
	switch errors.Type(err) {
	case models.ErrTypeItemExists:
		return ErrorCodeItemExists

	case models.ErrTypeOutOfBounds:
		return ErrorCodeOutOfBounds

	case models.ErrTypeCapacityExhausted:
		return ErrorCodeCapacity

	case models.ErrTypeItemNotFound, models.ErrTypeSpaceNotFound:
		return ErrorCodeNotFound

	case models.ErrTypeInvalidBounds,
		models.ErrTypeInvalidRange,
		models.ErrTypeInvalidSpace,
		ErrTypeMsgDecode:
		return ErrorCodeBadRequest

	default:
		return ErrorCodeInternal
	}
}
