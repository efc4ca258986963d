package dto

import "time"

// PlatformAttributes describes one configured platform.
type PlatformAttributes struct {
	Records    int64    `json:"records"`
	Categories []string `json:"categories,omitempty"`
}

// PlatformData is one platform in JSON:API format.
type PlatformData struct {
	Type       string             `json:"type"`
	ID         string             `json:"id"`
	Attributes PlatformAttributes `json:"attributes"`
}

// PlatformListResponse is the GET /platforms response body.
type PlatformListResponse struct {
	Data []PlatformData `json:"data"`
}

// SyncAttributes holds the optional knobs of a sync request.
type SyncAttributes struct {
	Category   string `json:"category,omitempty"`
	BatchSize  int    `json:"batch_size,omitempty"`
	WithImages bool   `json:"with_images,omitempty"`
}

// SyncData wraps the sync attributes in a JSON:API resource.
type SyncData struct {
	Type       string         `json:"type"`
	Attributes SyncAttributes `json:"attributes"`
}

// SyncRequest is the POST /platforms/{platform}/sync request body. An
// empty body is valid; every attribute has a default.
type SyncRequest struct {
	Data SyncData `json:"data"`
}

// StatusAttributes reports the progress of one tracked operation.
type StatusAttributes struct {
	Operation string    `json:"operation"`
	State     string    `json:"state"`
	Message   string    `json:"message,omitempty"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Percent   float64   `json:"percent"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusData is one tracked operation status in JSON:API format.
type StatusData struct {
	Type       string           `json:"type"`
	ID         string           `json:"id"`
	Attributes StatusAttributes `json:"attributes"`
}

// StatusListResponse is the GET /platforms/{platform}/status response.
type StatusListResponse struct {
	Data []StatusData `json:"data"`
}

// CollectionAttributes reports vector collection statistics.
type CollectionAttributes struct {
	Points     int    `json:"points"`
	Status     string `json:"status"`
	Checkpoint int64  `json:"checkpoint"`
}

// CollectionData is one collection in JSON:API format.
type CollectionData struct {
	Type       string               `json:"type"`
	ID         string               `json:"id"`
	Attributes CollectionAttributes `json:"attributes"`
}

// CollectionResponse is the GET /collections/{name} response body.
type CollectionResponse struct {
	Data CollectionData `json:"data"`
}

// TaskAttributes describes one queued task.
type TaskAttributes struct {
	Operation string         `json:"operation"`
	Priority  int            `json:"priority"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// TaskData is one queued task in JSON:API format.
type TaskData struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes TaskAttributes `json:"attributes"`
}

// TaskListResponse is the GET /queue response body.
type TaskListResponse struct {
	Data []TaskData `json:"data"`
}
