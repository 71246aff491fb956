package websocket

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Send writes a message to a WebSocket connection as a JSON text frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithType(ErrTypeMsgEncode).
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Receive reads a message from a WebSocket connection. Frames that are not
// valid messages return an error typed ErrTypeMsgDecode and the connection
// can keep being read.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var b []byte
	if err := websocket.Message.Receive(conn, &b); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := json.Unmarshal(b, &msg); err != nil {
		return Msg{}, len(b), errors.New("decoding message failed").
			WithType(ErrTypeMsgDecode).
			Wrap(err)
	}
	return msg, len(b), nil
}

// Client is a WebSocket client that sends requests to a quadrant server and
// waits for their responses.
//
// A client is meant to be used by a single goroutine.
type Client struct {
	conn      *websocket.Conn
	requestID atomic.Uint32
}

// Dial connects to the quadrant server at the given WebSocket endpoint.
func Dial(ctx context.Context, endpoint, clientID string, header http.Header) (*Client, error) {
	config, err := websocket.NewConfig(endpoint, "http://localhost")
	if err != nil {
		return nil, errors.New("creating websocket config failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}

	for k, v := range header {
		config.Header[k] = v
	}
	if clientID != "" {
		config.Header.Set(HeaderClientID, clientID)
	}

	conn, err := config.DialContext(ctx)
	if err != nil {
		return nil, errors.New("dialing websocket failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	return &Client{conn: conn}, nil
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// Request sends a request and decodes the payload of its response in res.
// Error responses are returned as errors typed with their error code.
func (c *Client) Request(ctx context.Context, msgType MsgType, req any, res any) error {
	requestID := c.requestID.Add(1)

	msg, err := NewMsg(msgType, requestID, req)
	if err != nil {
		return err
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
		defer c.conn.SetDeadline(time.Time{})
	}

	if _, err := Send(c.conn, msg); err != nil {
		return errors.New("sending request failed").
			WithTag("msg_type", msgType).
			Wrap(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, _, err := Receive(c.conn)
		if errors.IsType(err, ErrTypeMsgDecode) {
			continue
		}
		if err != nil {
			return errors.New("receiving response failed").
				WithTag("msg_type", msgType).
				Wrap(err)
		}

		if msg.RequestID != requestID {
			continue
		}

		if msg.Type == MsgTypeErrorResponse {
			var errRes ErrorResponse
			msg.DataTo(&errRes)
			return errors.New(errRes.Message).
				WithType(string(errRes.Code)).
				WithTag("msg_type", msgType)
		}

		if res != nil {
			return msg.DataTo(res)
		}
		return nil
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
