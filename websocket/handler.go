package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadrant/models"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// Sender sends a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

// Receiver receives a message and returns the number of bytes read.
type Receiver func() (Msg, int, error)

// ResponseSender is the interface to send messages to the connected client.
type ResponseSender interface {
	// Sends a message with the given type, request id and payload.
	Send(msgType MsgType, requestID uint32, data any)

	// Sends an already built message.
	SendMsg(msg Msg)
}

// Handler represents a quadrant connection handler.
type Handler interface {
	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a request to create a space.
	HandleSpaceCreate(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to join a space.
	HandleSpaceJoin(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to insert an item in the joined space.
	HandleItemInsert(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to remove an item from the joined space.
	HandleItemRemove(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a range query on the joined space.
	HandleQuery(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to remove all the items of the joined space.
	HandleClear(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to describe the joined space index.
	HandleDebugInfo(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a message that could not be decoded.
	HandleBadMsg(ctx context.Context, respond ResponseSender, msg Msg, err error) error

	// Sends a heartbeat message to the client.
	SendHeartbeat(ctx context.Context, respond ResponseSender) error

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The interval between each heartbeat message sent to the connected
	// client.
	HeartbeatInterval() time.Duration

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the space store.
	GetSpaces() *models.SpaceStore

	// The currently joined space.
	CurrentSpace() *models.Space

	// Get ClientID
	GetClientID() string
}

// Handle handles the given service.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The quadrant handler.
	Handler Handler

	sendChan       chan Msg
	sender         Sender
	receiveChan    chan received
	receiver       Receiver
	disconnectChan chan error
}

type received struct {
	msg Msg
	err error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan received, receiveChanSize)
	h.receiver = h.Handler.Receiver()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	heartbeatTicker := time.NewTicker(h.Handler.HeartbeatInterval())
	defer heartbeatTicker.Stop()

	var responder = responseSender{
		clientID: h.Handler.GetClientID(),
		sendMsg:  h.sendMsg,
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.disconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", h.Handler.IdleTimeout()))

		case <-heartbeatTicker.C:
			if err := h.Handler.SendHeartbeat(ctx, responder); err != nil {
				h.disconnect(errors.New("sending heartbeat failed").Wrap(err))
			}

		case r := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			var err error
			if r.err != nil {
				err = h.Handler.HandleBadMsg(ctx, responder, r.msg, r.err)
			} else {
				err = h.handleMessage(ctx, r.msg, responder)
			}
			if err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) sendMsg(msg Msg) {
	h.sendChan <- msg
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if err != nil && !errors.IsType(err, ErrTypeMsgDecode) {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case <-ctx.Done():
				return
			case h.receiveChan <- received{msg: msg, err: err}:
			}
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	switch msg.Type {
	case MsgTypePingRequest:
		return h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeSpaceCreateRequest:
		return h.Handler.HandleSpaceCreate(ctx, responder, msg)

	case MsgTypeSpaceJoinRequest:
		return h.Handler.HandleSpaceJoin(ctx, responder, msg)

	case MsgTypeItemInsertRequest:
		return h.Handler.HandleItemInsert(ctx, responder, msg)

	case MsgTypeItemRemoveRequest:
		return h.Handler.HandleItemRemove(ctx, responder, msg)

	case MsgTypeQueryRequest:
		return h.Handler.HandleQuery(ctx, responder, msg)

	case MsgTypeClearRequest:
		return h.Handler.HandleClear(ctx, responder, msg)

	case MsgTypeDebugInfoRequest:
		return h.Handler.HandleDebugInfo(ctx, responder, msg)

	case MsgTypePingResponse, MsgTypeHeartbeat:
		return nil

	default:
		return h.Handler.HandleBadMsg(ctx, responder, msg, errors.New("unknown message type").
			WithType(ErrTypeMsgDecode).
			WithTag("msg_type", msg.Type))
	}
}

func (h *handler) disconnect(err error) {
	h.disconnectChan <- err
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	clientID string
	sendMsg  func(Msg)
}

func (r responseSender) Send(msgType MsgType, requestID uint32, data any) {
	msg, err := NewMsg(msgType, requestID, data)
	if err != nil {
		logs.WithTag("msg_type", msgType).
			WithClientID(r.clientID).
			Debug(err)
		return
	}
	r.sendMsg(msg)
}

func (r responseSender) SendMsg(msg Msg) {
	r.sendMsg(msg)
}
