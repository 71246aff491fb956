package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadrant/featureflag"
	"github.com/aukilabs/quadrant/models"
	"github.com/aukilabs/quadrant/websocket"
	"github.com/gorilla/mux"
	"github.com/segmentio/encoding/json"
)

const (
	spaceIDVar = "space_id"
	itemIDVar  = "item_id"
)

// API serves the spaces of a space store over REST.
type API struct {
	Spaces *models.SpaceStore

	// The maximum number of items returned by a query.
	MaxQueryResults int

	FeatureFlags featureflag.FeatureFlag
}

// Router returns the API routes.
func (a *API) Router() *mux.Router {
	router := mux.NewRouter()
	a.Register(router)
	return router
}

// Register registers the API routes on the given router.
func (a *API) Register(router *mux.Router) {
	router.HandleFunc("/spaces", a.ListSpaces).Methods(http.MethodGet)
	router.HandleFunc("/spaces", a.CreateSpace).Methods(http.MethodPost)
	router.HandleFunc("/spaces/{space_id}", a.GetSpace).Methods(http.MethodGet)
	router.HandleFunc("/spaces/{space_id}", a.DeleteSpace).Methods(http.MethodDelete)
	router.HandleFunc("/spaces/{space_id}/debug", a.GetDebugInfo).Methods(http.MethodGet)
	router.HandleFunc("/spaces/{space_id}/query", a.Query).Methods(http.MethodPost)
	router.HandleFunc("/spaces/{space_id}/items", a.InsertItem).Methods(http.MethodPost)
	router.HandleFunc("/spaces/{space_id}/items", a.ClearItems).Methods(http.MethodDelete)
	router.HandleFunc("/spaces/{space_id}/items/{item_id}", a.GetItem).Methods(http.MethodGet)
	router.HandleFunc("/spaces/{space_id}/items/{item_id}", a.SetItem).Methods(http.MethodPut)
	router.HandleFunc("/spaces/{space_id}/items/{item_id}", a.RemoveItem).Methods(http.MethodDelete)
}

func (a *API) ListSpaces(w http.ResponseWriter, r *http.Request) {
	spaces := a.Spaces.Spaces()

	res := make([]models.SpaceJSON, len(spaces))
	for i, s := range spaces {
		res[i] = models.SpaceToJSON(a.Spaces.GlobalSpaceID(s.ID), s)
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) CreateSpace(w http.ResponseWriter, r *http.Request) {
	var req websocket.SpaceCreateRequest
	if !decodeJSON(w, r, &req) {
		return
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
			writeError(w, err)
			return
		}
		opts.Region = region
	}

	space, err := a.Spaces.Create(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}

	spaceID := a.Spaces.GlobalSpaceID(space.ID)
	logs.WithTag("space_id", spaceID).
		WithTag("backend", space.Backend).
		Info("space created")

	writeJSON(w, http.StatusCreated, models.SpaceToJSON(spaceID, space))
}

func (a *API) GetSpace(w http.ResponseWriter, r *http.Request) {
	spaceID, space, ok := a.space(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.SpaceToJSON(spaceID, space))
}

func (a *API) DeleteSpace(w http.ResponseWriter, r *http.Request) {
	spaceID, space, ok := a.space(w, r)
	if !ok {
		return
	}

	a.Spaces.Remove(r.Context(), space)
	logs.WithTag("space_id", spaceID).Info("space deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) GetDebugInfo(w http.ResponseWriter, r *http.Request) {
	if a.FeatureFlags.IsSet(featureflag.FlagDisableDebugInfo) {
		writeErrorCode(w, websocket.ErrorCodeDisabled, "debug info is disabled")
		return
	}

	_, space, ok := a.space(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.DebugInfoToJSON(space.DebugInfo()))
}

func (a *API) Query(w http.ResponseWriter, r *http.Request) {
	_, space, ok := a.space(w, r)
	if !ok {
		return
	}

	var req websocket.QueryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Range.Type == models.RangeTypeGeohash && a.FeatureFlags.IsSet(featureflag.FlagDisableGeohashQuery) {
		writeErrorCode(w, websocket.ErrorCodeDisabled, "geohash queries are disabled")
		return
	}

	rng, err := req.Range.Range(true)
	if err != nil {
		writeError(w, err)
		return
	}

	items, truncated := space.Query(rng, websocket.QueryLimit(req.Limit, a.MaxQueryResults))
	writeJSON(w, http.StatusOK, websocket.QueryResponse{
		Items:     models.ItemsToJSON(items),
		Truncated: truncated,
	})
}

func (a *API) InsertItem(w http.ResponseWriter, r *http.Request) {
	_, space, ok := a.space(w, r)
	if !ok {
		return
	}

	var req websocket.ItemInsertRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	bounds, err := req.Bounds.AABB()
	if err != nil {
		writeError(w, err)
		return
	}

	itemID := req.ItemID
	if req.Replace && itemID != "" {
		err = space.Set(itemID, bounds)
	} else {
		itemID, err = space.Insert(itemID, bounds)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, models.ItemJSON{
		ID:     itemID,
		Bounds: models.BoundsToJSON(bounds),
	})
}

func (a *API) ClearItems(w http.ResponseWriter, r *http.Request) {
	if a.FeatureFlags.IsSet(featureflag.FlagDisableClear) {
		writeErrorCode(w, websocket.ErrorCodeDisabled, "clearing spaces is disabled")
		return
	}

	spaceID, space, ok := a.space(w, r)
	if !ok {
		return
	}

	count := space.Clear()
	logs.WithTag("space_id", spaceID).
		WithTag("removed_count", count).
		Info("space cleared")

	writeJSON(w, http.StatusOK, websocket.ClearResponse{
		RemovedCount: count,
	})
}

func (a *API) GetItem(w http.ResponseWriter, r *http.Request) {
	_, space, ok := a.space(w, r)
	if !ok {
		return
	}

	itemID := mux.Vars(r)[itemIDVar]
	bounds, ok := space.Item(itemID)
	if !ok {
		writeErrorCode(w, websocket.ErrorCodeNotFound, "item not found")
		return
	}

	writeJSON(w, http.StatusOK, models.ItemJSON{
		ID:     itemID,
		Bounds: models.BoundsToJSON(bounds),
	})
}

func (a *API) SetItem(w http.ResponseWriter, r *http.Request) {
	_, space, ok := a.space(w, r)
	if !ok {
		return
	}

	var req models.BoundsJSON
	if !decodeJSON(w, r, &req) {
		return
	}

	bounds, err := req.AABB()
	if err != nil {
		writeError(w, err)
		return
	}

	itemID := mux.Vars(r)[itemIDVar]
	if err := space.Set(itemID, bounds); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ItemJSON{
		ID:     itemID,
		Bounds: models.BoundsToJSON(bounds),
	})
}

func (a *API) RemoveItem(w http.ResponseWriter, r *http.Request) {
	_, space, ok := a.space(w, r)
	if !ok {
		return
	}

	if err := space.Remove(mux.Vars(r)[itemIDVar]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) space(w http.ResponseWriter, r *http.Request) (string, *models.Space, bool) {
	spaceID := mux.Vars(r)[spaceIDVar]

	space, err := a.Spaces.Get(spaceID)
	if err != nil {
		writeError(w, err)
		return "", nil, false
	}
	return spaceID, space, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorCode(w, websocket.ErrorCodeBadRequest, errors.New("decoding request body failed").
			Wrap(err).
			Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Error(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorCode(w, websocket.ErrorCodeFromError(err), err.Error())
}

func writeErrorCode(w http.ResponseWriter, code websocket.ErrorCode, message string) {
	writeJSON(w, statusFromErrorCode(code), websocket.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func statusFromErrorCode(code websocket.ErrorCode) int {
	switch code {
	case websocket.ErrorCodeBadRequest:
		return http.StatusBadRequest

	case websocket.ErrorCodeNotFound:
		return http.StatusNotFound

	case websocket.ErrorCodeItemExists:
		return http.StatusConflict

	case websocket.ErrorCodeOutOfBounds, websocket.ErrorCodeCapacity:
		return http.StatusUnprocessableEntity

	case websocket.ErrorCodeDisabled:
		return http.StatusForbidden

	default:
		return http.StatusInternalServerError
	}
}
