package v1

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	shopvec "github.com/shopvec/shopvec"
	"github.com/shopvec/shopvec/domain/task"
	"github.com/shopvec/shopvec/infrastructure/api/middleware"
	"github.com/shopvec/shopvec/infrastructure/api/v1/dto"
)

// PlatformsRouter handles platform discovery, sync and deletion.
type PlatformsRouter struct {
	client *shopvec.Client
	logger *slog.Logger
}

// NewPlatformsRouter creates a new PlatformsRouter.
func NewPlatformsRouter(client *shopvec.Client) *PlatformsRouter {
	return &PlatformsRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for platform endpoints.
func (r *PlatformsRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)
	router.Post("/{platform}/sync", r.Sync)
	router.Delete("/{platform}", r.Delete)
	router.Get("/{platform}/status", r.Status)

	return router
}

// List handles GET /api/v1/platforms. It reports every platform the
// connector factory can build, with stored record counts.
func (r *PlatformsRouter) List(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	platforms := r.client.Connectors.Platforms()
	data := make([]dto.PlatformData, 0, len(platforms))
	for _, platform := range platforms {
		count, err := r.client.Records.Count(ctx, platform)
		if err != nil {
			middleware.WriteError(w, req, err, r.logger)
			return
		}
		categories, err := r.client.Records.Categories(ctx, platform)
		if err != nil {
			middleware.WriteError(w, req, err, r.logger)
			return
		}
		data = append(data, dto.PlatformData{
			Type: "platform",
			ID:   platform,
			Attributes: dto.PlatformAttributes{
				Records:    count,
				Categories: categories,
			},
		})
	}

	middleware.WriteJSON(w, http.StatusOK, dto.PlatformListResponse{Data: data})
}

// Sync handles POST /api/v1/platforms/{platform}/sync. The sync runs in
// the background queue; the response only acknowledges the enqueue.
func (r *PlatformsRouter) Sync(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	platform := chi.URLParam(req, "platform")

	// Reject unknown platforms before queueing so the caller gets an
	// immediate 404 instead of a silently failing background task.
	if _, err := r.client.Connectors.Connector(platform); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	var body dto.SyncRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, req, middleware.NewAPIError(http.StatusBadRequest, "invalid request body", err), r.logger)
		return
	}

	attrs := body.Data.Attributes
	payload := map[string]any{"platform": platform}
	if attrs.Category != "" {
		payload["category"] = attrs.Category
	}
	if attrs.BatchSize > 0 {
		payload["batch_size"] = attrs.BatchSize
	}
	if attrs.WithImages {
		payload["with_images"] = true
	}

	if err := r.client.Tasks.EnqueueOperation(ctx, task.OperationSyncPlatform, task.PriorityUserInitiated, payload); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":   "queued",
		"platform": platform,
	})
}

// Delete handles DELETE /api/v1/platforms/{platform}. Deletion runs in
// the background queue.
func (r *PlatformsRouter) Delete(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	platform := chi.URLParam(req, "platform")

	payload := map[string]any{"platform": platform}
	if err := r.client.Tasks.EnqueueOperation(ctx, task.OperationDeletePlatform, task.PriorityUserInitiated, payload); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":   "queued",
		"platform": platform,
	})
}

// Status handles GET /api/v1/platforms/{platform}/status, reporting the
// tracked progress of the platform's operations.
func (r *PlatformsRouter) Status(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	platform := chi.URLParam(req, "platform")

	statuses, err := r.client.Statuses.FindByTrackable(ctx, task.TrackableTypePlatform, platform)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, statusListResponse(statuses))
}

// statusListResponse maps tracked statuses to the response DTO.
func statusListResponse(statuses []task.Status) dto.StatusListResponse {
	data := make([]dto.StatusData, len(statuses))
	for i, s := range statuses {
		data[i] = dto.StatusData{
			Type: "status",
			ID:   s.ID(),
			Attributes: dto.StatusAttributes{
				Operation: s.Operation().String(),
				State:     string(s.State()),
				Message:   s.Message(),
				Current:   s.Current(),
				Total:     s.Total(),
				Percent:   s.CompletionPercent(),
				Error:     s.Error(),
				UpdatedAt: s.UpdatedAt(),
			},
		}
	}
	return dto.StatusListResponse{Data: data}
}
