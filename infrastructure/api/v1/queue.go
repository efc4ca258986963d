package v1

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	shopvec "github.com/shopvec/shopvec"
	"github.com/shopvec/shopvec/application/service"
	"github.com/shopvec/shopvec/domain/task"
	"github.com/shopvec/shopvec/infrastructure/api/middleware"
	"github.com/shopvec/shopvec/infrastructure/api/v1/dto"
)

// QueueRouter exposes the pending background task queue.
type QueueRouter struct {
	client *shopvec.Client
	logger *slog.Logger
}

// NewQueueRouter creates a new QueueRouter.
func NewQueueRouter(client *shopvec.Client) *QueueRouter {
	return &QueueRouter{
		client: client,
		logger: client.Logger(),
	}
}

// Routes returns the chi router for queue endpoints.
func (r *QueueRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", r.List)

	return router
}

// List handles GET /api/v1/queue, returning pending tasks in dequeue
// order with an optional operation filter.
func (r *QueueRouter) List(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	params := &service.TaskListParams{}
	if op := req.URL.Query().Get("operation"); op != "" {
		operation := task.Operation(op)
		params.Operation = &operation
	}
	pagination := ParsePagination(req)
	params.Limit = pagination.Limit()
	params.Offset = pagination.Offset()

	tasks, err := r.client.Tasks.List(ctx, params)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	data := make([]dto.TaskData, len(tasks))
	for i, t := range tasks {
		data[i] = dto.TaskData{
			Type: "task",
			ID:   t.DedupKey(),
			Attributes: dto.TaskAttributes{
				Operation: t.Operation().String(),
				Priority:  t.Priority(),
				Payload:   t.Payload(),
				CreatedAt: t.CreatedAt(),
			},
		}
	}

	middleware.WriteJSON(w, http.StatusOK, dto.TaskListResponse{Data: data})
}
