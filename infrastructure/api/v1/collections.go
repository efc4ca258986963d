package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	shopvec "github.com/shopvec/shopvec"
	domainsync "github.com/shopvec/shopvec/domain/sync"
	"github.com/shopvec/shopvec/domain/task"
	"github.com/shopvec/shopvec/infrastructure/api/middleware"
	"github.com/shopvec/shopvec/infrastructure/api/v1/dto"
)

// CollectionsRouter reports vector collection state and enqueues
// recreation.
type CollectionsRouter struct {
	client *shopvec.Client
	logger *slog.Logger
}

// NewCollectionsRouter creates a new CollectionsRouter.
func NewCollectionsRouter(client *shopvec.Client) *CollectionsRouter {
	return &CollectionsRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for collection endpoints.
func (r *CollectionsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/{name}", r.Get)
	router.Post("/{name}/recreate", r.Recreate)
	router.Get("/{name}/status", r.Status)

	return router
}

// Get handles GET /api/v1/collections/{name}, combining vector store
// statistics with the sync checkpoint.
func (r *CollectionsRouter) Get(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	name := chi.URLParam(req, "name")

	info, err := r.client.Index.Info(ctx, name)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	var checkpoint int64
	if name == r.client.Index.Collection() {
		cp, err := r.client.Sync.Checkpoint(ctx)
		switch {
		case err == nil:
			checkpoint = cp.LastProcessedID()
		case errors.Is(err, domainsync.ErrCheckpointNotFound):
			// no checkpoint means the collection was never synced
		default:
			middleware.WriteError(w, req, err, r.logger)
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, dto.CollectionResponse{
		Data: dto.CollectionData{
			Type: "collection",
			ID:   info.Name(),
			Attributes: dto.CollectionAttributes{
				Points:     info.Points(),
				Status:     info.Status(),
				Checkpoint: checkpoint,
			},
		},
	})
}

// Recreate handles POST /api/v1/collections/{name}/recreate. The drop
// and rebuild runs in the background queue.
func (r *CollectionsRouter) Recreate(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	name := chi.URLParam(req, "name")

	if name != r.client.Index.Collection() {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusNotFound, "unknown collection", nil), r.logger)
		return
	}

	payload := map[string]any{"collection": name}
	if err := r.client.Tasks.EnqueueOperation(ctx, task.OperationRecreateCollection, task.PriorityUserInitiated, payload); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":     "queued",
		"collection": name,
	})
}

// Status handles GET /api/v1/collections/{name}/status.
func (r *CollectionsRouter) Status(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	name := chi.URLParam(req, "name")

	statuses, err := r.client.Statuses.FindByTrackable(ctx, task.TrackableTypeCollection, name)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, statusListResponse(statuses))
}
