package websocket

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadrant/models"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeMsgDecode = "msg_decode"
	ErrTypeMsgEncode = "msg_encode"
)

// MsgType identifies the payload carried by a message.
type MsgType string

const (
	MsgTypePingRequest         MsgType = "ping_request"
	MsgTypePingResponse        MsgType = "ping_response"
	MsgTypeHeartbeat           MsgType = "heartbeat"
	MsgTypeSpaceCreateRequest  MsgType = "space_create_request"
	MsgTypeSpaceCreateResponse MsgType = "space_create_response"
	MsgTypeSpaceJoinRequest    MsgType = "space_join_request"
	MsgTypeSpaceJoinResponse   MsgType = "space_join_response"
	MsgTypeItemInsertRequest   MsgType = "item_insert_request"
	MsgTypeItemInsertResponse  MsgType = "item_insert_response"
	MsgTypeItemRemoveRequest   MsgType = "item_remove_request"
	MsgTypeItemRemoveResponse  MsgType = "item_remove_response"
	MsgTypeQueryRequest        MsgType = "query_request"
	MsgTypeQueryResponse       MsgType = "query_response"
	MsgTypeClearRequest        MsgType = "clear_request"
	MsgTypeClearResponse       MsgType = "clear_response"
	MsgTypeDebugInfoRequest    MsgType = "debug_info_request"
	MsgTypeDebugInfoResponse   MsgType = "debug_info_response"
	MsgTypeErrorResponse       MsgType = "error_response"
)

// ErrorCode describes why a request failed.
type ErrorCode string

const (
	ErrorCodeBadRequest     ErrorCode = "bad_request"
	ErrorCodeNotFound       ErrorCode = "not_found"
	ErrorCodeSpaceNotJoined ErrorCode = "space_not_joined"
	ErrorCodeItemExists     ErrorCode = "item_exists"
	ErrorCodeOutOfBounds    ErrorCode = "out_of_bounds"
	ErrorCodeCapacity       ErrorCode = "capacity_exhausted"
	ErrorCodeDisabled       ErrorCode = "disabled"
	ErrorCodeInternal       ErrorCode = "internal_server_error"
)

// Msg is a message exchanged over a WebSocket connection.
type Msg struct {
	Type      MsgType         `json:"type"`
	RequestID uint32          `json:"request_id,omitempty"`
	Time      time.Time       `json:"time"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMsg creates a message with the given payload. A nil data creates a
// message without payload.
func NewMsg(msgType MsgType, requestID uint32, data any) (Msg, error) {
	msg := Msg{
		Type:      msgType,
		RequestID: requestID,
		Time:      time.Now(),
	}

	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Msg{}, errors.New("encoding message data failed").
				WithType(ErrTypeMsgEncode).
				WithTag("msg_type", msgType).
				Wrap(err)
		}
		msg.Data = b
	}
	return msg, nil
}

// DataTo decodes the message payload into v.
func (m Msg) DataTo(v any) error {
	if len(m.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message data failed").
			WithType(ErrTypeMsgDecode).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

type SpaceCreateRequest struct {
	Name           string             `json:"name,omitempty"`
	Region         *models.BoundsJSON `json:"region,omitempty"`
	Backend        models.Backend     `json:"backend,omitempty"`
	Capacity       int                `json:"capacity,omitempty"`
	MinSize        float64            `json:"min_size,omitempty"`
	StrictCapacity bool               `json:"strict_capacity,omitempty"`
}

type SpaceCreateResponse struct {
	Space models.SpaceJSON `json:"space"`
}

type SpaceJoinRequest struct {
	SpaceID string `json:"space_id"`
}

type SpaceJoinResponse struct {
	Space models.SpaceJSON `json:"space"`
}

type ItemInsertRequest struct {
	ItemID string            `json:"item_id,omitempty"`
	Bounds models.BoundsJSON `json:"bounds"`

	// Moves the item when it already exists.
	Replace bool `json:"replace,omitempty"`
}

type ItemInsertResponse struct {
	ItemID string `json:"item_id"`
}

type ItemRemoveRequest struct {
	ItemID string `json:"item_id"`
}

type ItemRemoveResponse struct {
	ItemID string `json:"item_id"`
}

type QueryRequest struct {
	Range models.RangeJSON `json:"range"`
	Limit int              `json:"limit,omitempty"`
}

type QueryResponse struct {
	Items     []models.ItemJSON `json:"items"`
	Truncated bool              `json:"truncated,omitempty"`
}

type ClearResponse struct {
	RemovedCount int `json:"removed_count"`
}

type DebugInfoResponse struct {
	DebugInfo models.DebugInfoJSON `json:"debug_info"`
}

type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}
