package smoketest

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	quadranthttp "github.com/aukilabs/quadrant/http"
	"github.com/aukilabs/quadrant/models"
	qwebsocket "github.com/aukilabs/quadrant/websocket"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func newQuadrantServer(t *testing.T) (*httptest.Server, *models.SpaceStore) {
	spaces := &models.SpaceStore{ServerID: "ted"}

	api := quadranthttp.API{Spaces: spaces}
	router := api.Router()
	router.Handle("/", websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			h := &qwebsocket.RealtimeHandler{
				ClientHeartbeatInterval: time.Second,
				ClientIdleTimeout:       time.Minute,
				Spaces:                  spaces,
			}
			defer h.Close()

			qwebsocket.Handle(context.Background(), conn, h)
		},
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, spaces
}

func TestSmokeTest(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		server, spaces := newQuadrantServer(t)

		ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
			Context: ctx,
			Cancel:  cancel,
		})

		var gotResult bool
		smokeTest := HandleSmokeTest(ctx, Options{
			Endpoint: "http://localquadrant",
			SendResult: func(_ context.Context, res Results) error {
				require.Equal(t, "http://localquadrant", res.FromEndpoint)
				require.Equal(t, server.URL, res.ToEndpoint)
				require.Equal(t, StatusSuccess, res.Status)
				require.Empty(t, res.Error)
				require.Greater(t, res.LatencyMilliSec, float64(0))
				gotResult = true
				return nil
			},
		})

		body, err := json.Marshal(Request{
			Endpoint: server.URL,
			Timeout:  time.Second,
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://localquadrant", bytes.NewBuffer(body))
		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		<-ctx.Done()

		require.True(t, gotResult)
		require.Empty(t, spaces.Spaces())
	})

	t.Run("smoke test failed - offline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		ctx = context.WithValue(ctx, testCtxKeyValue, testContext{
			Context: ctx,
			Cancel:  cancel,
		})

		var gotResult bool
		smokeTest := HandleSmokeTest(ctx, Options{
			Endpoint: "http://localquadrant",
			SendResult: func(_ context.Context, res Results) error {
				require.Equal(t, "http://localquadrant", res.FromEndpoint)
				require.Equal(t, "http://127.0.0.1:1", res.ToEndpoint)
				require.Equal(t, float64(0), res.LatencyMilliSec)
				require.Equal(t, StatusFailed, res.Status)
				require.NotEmpty(t, res.Error)
				gotResult = true
				return nil
			},
		})

		body, err := json.Marshal(Request{
			Endpoint: "http://127.0.0.1:1",
			Timeout:  time.Second,
		})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://localquadrant", bytes.NewBuffer(body))
		smokeTest.ServeHTTP(rec, req)

		<-ctx.Done()

		require.True(t, gotResult)
	})

	t.Run("bad request", func(t *testing.T) {
		smokeTest := HandleSmokeTest(context.Background(), Options{})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "http://localquadrant", bytes.NewBufferString("{"))
		smokeTest.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEndpoints(t *testing.T) {
	require.Equal(t, "ws://localhost:4000", websocketEndpoint("http://localhost:4000"))
	require.Equal(t, "wss://quadrant.com", websocketEndpoint("https://quadrant.com"))
	require.Equal(t, "ws://localhost", websocketEndpoint("ws://localhost"))

	require.Equal(t, "http://localhost:4000", httpEndpoint("ws://localhost:4000"))
	require.Equal(t, "https://quadrant.com", httpEndpoint("wss://quadrant.com"))
	require.Equal(t, "http://localhost", httpEndpoint("http://localhost"))
}
