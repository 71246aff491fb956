package websocket

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	spaceIDTag   = "space_id"
	spaceUUIDTag = "space_uuid"
	msgTypeTag   = "msg_type"

	headerXForwardedFor = "X-Forwarded-For"
)

func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	spaceMutex sync.Mutex
	spaceID    string
	spaceUUID  string
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)

	h.originalRequest = conn.Request()

	logs.WithTag("http_headers", struct {
		UserAgent     string `json:"user_agent,omitempty"`
		XForwardedFor string `json:"x_forwarded_for,omitempty"`
	}{
		UserAgent:     h.originalRequest.UserAgent(),
		XForwardedFor: h.originalRequest.Header.Get(headerXForwardedFor),
	}).
		WithClientID(h.GetClientID()).
		Info("new client is connected")
}

func (h *handlerWithLogs) HandleSpaceCreate(ctx context.Context, respond ResponseSender, msg Msg) error {
	if err := h.Handler.HandleSpaceCreate(ctx, respond, msg); err != nil {
		return err
	}

	if h.updateSpace() {
		h.entry().Info("client created and joined a space")
	}
	return nil
}

func (h *handlerWithLogs) HandleSpaceJoin(ctx context.Context, respond ResponseSender, msg Msg) error {
	if err := h.Handler.HandleSpaceJoin(ctx, respond, msg); err != nil {
		return err
	}

	if !h.updateSpace() {
		var req SpaceJoinRequest
		// Check for error here is unnecessary since it would never go here
		// if the request parsing failed in h.Handler.HandleSpaceJoin.
		msg.DataTo(&req)

		logs.WithTag("requested_space_id", req.SpaceID).
			WithTag("request_id", msg.RequestID).
			WithClientID(h.GetClientID()).
			Info("client failed to join a space")
		return nil
	}

	h.entry().Info("client joined a space")
	return nil
}

func (h *handlerWithLogs) HandleClear(ctx context.Context, respond ResponseSender, msg Msg) error {
	if err := h.Handler.HandleClear(ctx, respond, msg); err != nil {
		return err
	}

	h.entry().
		WithTag("request_id", msg.RequestID).
		Info("clear requested")
	return nil
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	entry := h.entry()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		entry = entry.WithTag("reason", err.Error())
	}
	entry.Info("client disconnected")
}

func (h *handlerWithLogs) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Msg, int, error) {
		msg, n, err := receive()
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			h.entry().Error(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			h.entry().
				WithTag(msgTypeTag, msg.TypeString()).
				Debug("message received")
			h.incCounter(msg.TypeString())
		}
		return msg, n, err
	}
}

func (h *handlerWithLogs) Sender() Sender {
	sender := h.Handler.Sender()

	return func(msg Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := sender(msg)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			h.entry().
				WithTag(msgTypeTag, msgType).
				Error(errors.New("sending message failed").Wrap(err))
		} else if err == nil {
			h.entry().
				WithTag(msgTypeTag, msgType).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

// updateSpace records the joined space and reports whether one is joined.
func (h *handlerWithLogs) updateSpace() bool {
	space := h.CurrentSpace()

	h.spaceMutex.Lock()
	defer h.spaceMutex.Unlock()

	if space == nil {
		return false
	}

	h.spaceID = h.GetSpaces().GlobalSpaceID(space.ID)
	h.spaceUUID = space.SpaceUUID
	return true
}

func (h *handlerWithLogs) entry() logs.Entry {
	h.spaceMutex.Lock()
	defer h.spaceMutex.Unlock()

	return logs.WithTag(spaceIDTag, h.spaceID).
		WithTag(spaceUUIDTag, h.spaceUUID).
		WithClientID(h.GetClientID())
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := h.entry().
		WithTag("time_interval", h.summaryInterval)

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}
