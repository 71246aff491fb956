package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadrant/featureflag"
	"github.com/aukilabs/quadrant/geometry"
	"github.com/aukilabs/quadrant/models"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// Creates a testing environment to unit test handlers. The returned clients
// are connected to a server that serves the handlers created by newHandler.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*Client, *Client, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	clientA, clientB, close := newTestingEnv(t, newHandler)
	return clientA, clientB, func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
		close()
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (*Client, *Client, func()) {
	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	newClient := func() *Client {
		header := make(http.Header)
		header.Set("User-Agent", "ted")
		header.Set("X-Forwarded-For", "192.0.0.0")

		client, err := Dial(
			context.Background(),
			strings.ReplaceAll(server.URL, "http://", "ws://"),
			uuid.NewString(),
			header,
		)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}
		return client
	}

	clientA := newClient()
	clientB := newClient()

	return clientA, clientB, func() {
		clientA.Close()
		clientB.Close()
		server.Close()
	}
}

func newTestHandler(flags ...string) func() Handler {
	spaces := &models.SpaceStore{
		ServerID: "ted",
		Defaults: models.SpaceOptions{
			Region: geometry.NewAABB(
				geometry.NewVector2(0, 0),
				geometry.NewVector2(100, 100),
			),
			Capacity: 4,
		},
	}

	return func() Handler {
		var h Handler = &RealtimeHandler{
			ClientHeartbeatInterval: time.Millisecond * 250,
			ClientIdleTimeout:       time.Minute,
			Spaces:                  spaces,
			MaxQueryResults:         10,
			FeatureFlags:            featureflag.New(flags),
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://quadrant-test.com")
		return h
	}
}
