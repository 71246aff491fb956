package http

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aukilabs/quadrant/featureflag"
	"github.com/aukilabs/quadrant/geometry"
	"github.com/aukilabs/quadrant/models"
	"github.com/aukilabs/quadrant/websocket"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func newTestAPI(flags ...string) *API {
	return &API{
		Spaces: &models.SpaceStore{
			ServerID: "ted",
			Defaults: models.SpaceOptions{
				Region: geometry.NewAABB(
					geometry.NewVector2(0, 0),
					geometry.NewVector2(100, 100),
				),
				Capacity: 4,
			},
		},
		MaxQueryResults: 10,
		FeatureFlags:    featureflag.New(flags),
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any, res any) int {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, r))

	if res != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), res))
	}
	return rec.Code
}

func point(x, y float64) models.BoundsJSON {
	return models.BoundsJSON{
		Center: models.Vector2JSON{X: x, Y: y},
	}
}

func createSpace(t *testing.T, h http.Handler, req websocket.SpaceCreateRequest) models.SpaceJSON {
	var space models.SpaceJSON
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/spaces", req, &space))
	return space
}

func TestAPISpaces(t *testing.T) {
	api := newTestAPI()
	router := api.Router()

	var spaces []models.SpaceJSON
	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/spaces", nil, &spaces))
	require.Empty(t, spaces)

	space := createSpace(t, router, websocket.SpaceCreateRequest{
		Name:    "hello",
		Backend: models.BackendRTree,
	})
	require.Equal(t, "tedx1", space.ID)
	require.Equal(t, "hello", space.Name)
	require.Equal(t, models.BackendRTree, space.Backend)
	require.NotEmpty(t, space.UUID)
	require.Equal(t, float64(100), space.Region.Half.X)

	var got models.SpaceJSON
	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/spaces/tedx1", nil, &got))
	require.Equal(t, space.UUID, got.UUID)

	require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/spaces", nil, &spaces))
	require.Len(t, spaces, 1)

	require.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/spaces/tedx1", nil, nil))

	var errRes websocket.ErrorResponse
	require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/spaces/tedx1", nil, &errRes))
	require.Equal(t, websocket.ErrorCodeNotFound, errRes.Code)
}

func TestAPICreateSpaceErrors(t *testing.T) {
	router := newTestAPI().Router()

	var errRes websocket.ErrorResponse
	require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/spaces", websocket.SpaceCreateRequest{
		Backend: "octree",
	}, &errRes))
	require.Equal(t, websocket.ErrorCodeBadRequest, errRes.Code)

	require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/spaces", websocket.SpaceCreateRequest{
		Region: &models.BoundsJSON{
			Center: models.Vector2JSON{},
			Half:   &models.Vector2JSON{X: -1, Y: 1},
		},
	}, &errRes))
	require.Equal(t, websocket.ErrorCodeBadRequest, errRes.Code)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/spaces", bytes.NewBufferString("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIItems(t *testing.T) {
	backends := []models.Backend{
		models.BackendQuadtree,
		models.BackendRTree,
	}

	for _, backend := range backends {
		t.Run(string(backend), func(t *testing.T) {
			router := newTestAPI().Router()
			space := createSpace(t, router, websocket.SpaceCreateRequest{Backend: backend})
			path := "/spaces/" + space.ID

			var item models.ItemJSON
			require.Equal(t, http.StatusOK, do(t, router, http.MethodPut, path+"/items/a", point(1, 1), &item))
			require.Equal(t, "a", item.ID)

			require.Equal(t, http.StatusOK, do(t, router, http.MethodPut, path+"/items/a", point(-50, -50), &item))
			require.Equal(t, float64(-50), item.Bounds.Center.X)

			require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, path+"/items", websocket.ItemInsertRequest{
				ItemID: "b",
				Bounds: point(2, 2),
			}, &item))
			require.Equal(t, "b", item.ID)

			require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, path+"/items", websocket.ItemInsertRequest{
				Bounds: point(3, 3),
			}, &item))
			require.NotEmpty(t, item.ID)

			var errRes websocket.ErrorResponse
			require.Equal(t, http.StatusConflict, do(t, router, http.MethodPost, path+"/items", websocket.ItemInsertRequest{
				ItemID: "b",
				Bounds: point(4, 4),
			}, &errRes))
			require.Equal(t, websocket.ErrorCodeItemExists, errRes.Code)

			require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, path+"/items", websocket.ItemInsertRequest{
				ItemID:  "b",
				Bounds:  point(4, 4),
				Replace: true,
			}, &item))

			require.Equal(t, http.StatusUnprocessableEntity, do(t, router, http.MethodPut, path+"/items/c", point(500, 0), &errRes))
			require.Equal(t, websocket.ErrorCodeOutOfBounds, errRes.Code)

			require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, path+"/items/b", nil, &item))
			require.Equal(t, float64(4), item.Bounds.Center.Y)

			var query websocket.QueryResponse
			require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, path+"/query", websocket.QueryRequest{
				Range: models.RangeJSON{
					Type:   models.RangeTypeRect,
					Center: models.Vector2JSON{X: 2, Y: 2},
					Half:   models.Vector2JSON{X: 3, Y: 3},
				},
			}, &query))
			require.Len(t, query.Items, 2)
			require.False(t, query.Truncated)

			require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, path+"/query", websocket.QueryRequest{
				Range: models.RangeJSON{
					Type:   models.RangeTypeCircle,
					Center: models.Vector2JSON{X: 2, Y: 2},
					Radius: 10,
				},
				Limit: 1,
			}, &query))
			require.Len(t, query.Items, 1)
			require.True(t, query.Truncated)

			require.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, path+"/items/a", nil, nil))
			require.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, path+"/items/a", nil, &errRes))
			require.Equal(t, websocket.ErrorCodeNotFound, errRes.Code)
			require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, path+"/items/a", nil, &errRes))

			var debug models.DebugInfoJSON
			require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, path+"/debug", nil, &debug))
			require.Equal(t, string(backend), debug.Backend)
			require.Equal(t, 2, debug.ItemCount)

			var cleared websocket.ClearResponse
			require.Equal(t, http.StatusOK, do(t, router, http.MethodDelete, path+"/items", nil, &cleared))
			require.Equal(t, 2, cleared.RemovedCount)

			require.Equal(t, http.StatusOK, do(t, router, http.MethodGet, path, nil, &space))
			require.Zero(t, space.ItemCount)
		})
	}
}

func TestAPIGeohashQuery(t *testing.T) {
	router := newTestAPI().Router()
	space := createSpace(t, router, websocket.SpaceCreateRequest{
		Region: &models.BoundsJSON{
			Center: models.Vector2JSON{},
			Half:   &models.Vector2JSON{X: 180, Y: 90},
		},
	})
	path := "/spaces/" + space.ID

	require.Equal(t, http.StatusOK, do(t, router, http.MethodPut, path+"/items/stockholm", point(18.07, 59.33), nil))
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPut, path+"/items/sydney", point(151.21, -33.87), nil))

	var query websocket.QueryResponse
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, path+"/query", websocket.QueryRequest{
		Range: models.RangeJSON{
			Type:    models.RangeTypeGeohash,
			Geohash: "u",
		},
	}, &query))
	require.Len(t, query.Items, 1)
	require.Equal(t, "stockholm", query.Items[0].ID)

	var errRes websocket.ErrorResponse
	require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, path+"/query", websocket.QueryRequest{
		Range: models.RangeJSON{
			Type:    models.RangeTypeGeohash,
			Geohash: "a",
		},
	}, &errRes))
	require.Equal(t, websocket.ErrorCodeBadRequest, errRes.Code)
}

func TestAPIDisabledFeatures(t *testing.T) {
	router := newTestAPI(
		string(featureflag.FlagDisableClear),
		string(featureflag.FlagDisableDebugInfo),
		string(featureflag.FlagDisableGeohashQuery),
	).Router()
	space := createSpace(t, router, websocket.SpaceCreateRequest{})
	path := "/spaces/" + space.ID

	var errRes websocket.ErrorResponse
	require.Equal(t, http.StatusForbidden, do(t, router, http.MethodDelete, path+"/items", nil, &errRes))
	require.Equal(t, websocket.ErrorCodeDisabled, errRes.Code)

	require.Equal(t, http.StatusForbidden, do(t, router, http.MethodGet, path+"/debug", nil, &errRes))
	require.Equal(t, websocket.ErrorCodeDisabled, errRes.Code)

	require.Equal(t, http.StatusForbidden, do(t, router, http.MethodPost, path+"/query", websocket.QueryRequest{
		Range: models.RangeJSON{
			Type:    models.RangeTypeGeohash,
			Geohash: "u",
		},
	}, &errRes))
	require.Equal(t, websocket.ErrorCodeDisabled, errRes.Code)
}

func TestAPIMethodNotAllowed(t *testing.T) {
	router := newTestAPI().Router()
	require.Equal(t, http.StatusMethodNotAllowed, do(t, router, http.MethodPatch, "/spaces", nil, nil))
}
