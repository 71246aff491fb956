package smoketest

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadrant/models"
	"github.com/aukilabs/quadrant/websocket"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"

	DefaultTimeout = time.Second * 10
)

// Request describes the endpoint to smoke test. An empty endpoint targets the
// server that runs the smoke test.
type Request struct {
	Endpoint string        `json:"endpoint,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// Results is the outcome of a smoke test.
type Results struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Status          string  `json:"status"`
	Error           string  `json:"error,omitempty"`
}

type Options struct {
	Endpoint   string
	UserAgent  string
	Transport  http.RoundTripper
	SendResult func(context.Context, Results) error
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if len(b) != 0 {
			if err := json.Unmarshal(b, &req); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}
		if req.Endpoint == "" {
			req.Endpoint = opts.Endpoint
		}
		if req.Timeout <= 0 {
			req.Timeout = DefaultTimeout
		}

		go func() {
			defer func() {
				// Signals tests that the smoke test is over.
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := RunSmokeTest(ctx, opts, req)
			if err != nil {
				logs.Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

// RunSmokeTest creates a space on the requested endpoint and runs an insert,
// query and remove round trip in it.
func RunSmokeTest(ctx context.Context, opts Options, req Request) (Results, error) {
	res := Results{
		FromEndpoint: opts.Endpoint,
		ToEndpoint:   req.Endpoint,
		Status:       StatusFailed,
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	header := make(http.Header)
	if opts.UserAgent != "" {
		header.Set("User-Agent", opts.UserAgent)
	}

	client, err := websocket.Dial(ctx, websocketEndpoint(req.Endpoint), uuid.NewString(), header)
	if err != nil {
		res.Error = err.Error()
		return res, errors.New("smoke test failed").
			WithTag("to_endpoint", req.Endpoint).
			Wrap(err)
	}
	defer client.Close()

	start := time.Now()
	spaceID, err := roundTrip(ctx, client)
	if spaceID != "" {
		if err := deleteSpace(ctx, opts.Transport, req.Endpoint, spaceID); err != nil {
			logs.WithTag("to_endpoint", req.Endpoint).
				WithTag("space_id", spaceID).
				Warn(err)
		}
	}
	if err != nil {
		res.Error = err.Error()
		return res, errors.New("smoke test failed").
			WithTag("to_endpoint", req.Endpoint).
			Wrap(err)
	}

	res.LatencyMilliSec = float64(time.Since(start).Microseconds()) / 1000
	res.Status = StatusSuccess
	return res, nil
}

func roundTrip(ctx context.Context, client *websocket.Client) (string, error) {
	var space websocket.SpaceCreateResponse
	if err := client.Request(ctx, websocket.MsgTypeSpaceCreateRequest, websocket.SpaceCreateRequest{
		Name: "smoke-test",
		Region: &models.BoundsJSON{
			Center: models.Vector2JSON{},
			Half:   &models.Vector2JSON{X: 10, Y: 10},
		},
	}, &space); err != nil {
		return "", err
	}
	spaceID := space.Space.ID

	if err := client.Request(ctx, websocket.MsgTypeSpaceJoinRequest, websocket.SpaceJoinRequest{
		SpaceID: spaceID,
	}, nil); err != nil {
		return spaceID, err
	}

	var item websocket.ItemInsertResponse
	if err := client.Request(ctx, websocket.MsgTypeItemInsertRequest, websocket.ItemInsertRequest{
		Bounds: models.BoundsJSON{
			Center: models.Vector2JSON{X: 1, Y: 1},
		},
	}, &item); err != nil {
		return spaceID, err
	}

	var query websocket.QueryResponse
	if err := client.Request(ctx, websocket.MsgTypeQueryRequest, websocket.QueryRequest{
		Range: models.RangeJSON{
			Type:   models.RangeTypeCircle,
			Center: models.Vector2JSON{},
			Radius: 2,
		},
	}, &query); err != nil {
		return spaceID, err
	}
	if len(query.Items) != 1 || query.Items[0].ID != item.ItemID {
		return spaceID, errors.New("unexpected query result").
			WithTag("item_id", item.ItemID).
			WithTag("result_count", len(query.Items))
	}

	return spaceID, client.Request(ctx, websocket.MsgTypeItemRemoveRequest, websocket.ItemRemoveRequest{
		ItemID: item.ItemID,
	}, nil)
}

// deleteSpace removes the smoke test space through the REST API.
func deleteSpace(ctx context.Context, transport http.RoundTripper, endpoint, spaceID string) error {
	req, err := http.NewRequestWithContext(ctx,
		http.MethodDelete,
		strings.TrimSuffix(httpEndpoint(endpoint), "/")+"/spaces/"+spaceID,
		nil,
	)
	if err != nil {
		return errors.New("creating delete space request failed").Wrap(err)
	}

	if transport == nil {
		transport = http.DefaultTransport
	}
	client := http.Client{Transport: transport}

	res, err := client.Do(req)
	if err != nil {
		return errors.New("deleting smoke test space failed").Wrap(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusNoContent {
		return errors.New("deleting smoke test space failed").
			WithTag("status_code", res.StatusCode)
	}
	return nil
}

func websocketEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "http") {
		return "ws" + strings.TrimPrefix(endpoint, "http")
	}
	return endpoint
}

func httpEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "ws") {
		return "http" + strings.TrimPrefix(endpoint, "ws")
	}
	return endpoint
}
