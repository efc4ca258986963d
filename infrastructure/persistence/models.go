package persistence

import (
	"encoding/json"
	"time"
)

// CatalogRecordModel represents a normalized catalog item in the database.
type CatalogRecordModel struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Platform    string          `gorm:"column:platform;size:255;not null;index;uniqueIndex:idx_catalog_records_identity"`
	ExternalID  string          `gorm:"column:external_id;size:255;not null;uniqueIndex:idx_catalog_records_identity"`
	Title       string          `gorm:"column:title;size:1024;not null"`
	Description string          `gorm:"column:description;type:text"`
	Price       float64         `gorm:"column:price;default:0"`
	Category    string          `gorm:"column:category;size:255;index"`
	ImageURL    string          `gorm:"column:image_url;size:2048"`
	InStock     bool            `gorm:"column:in_stock;default:true"`
	SKU         string          `gorm:"column:sku;size:255"`
	Brand       string          `gorm:"column:brand;size:255"`
	Rating      float64         `gorm:"column:rating;default:0"`
	RatingCount int             `gorm:"column:rating_count;default:0"`
	Attributes  json.RawMessage `gorm:"column:attributes;type:jsonb"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name.
func (CatalogRecordModel) TableName() string {
	return "catalog_records"
}

// SyncCheckpointModel represents a per-collection sync cursor in the database.
type SyncCheckpointModel struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CollectionName  string    `gorm:"column:collection_name;size:255;not null;uniqueIndex"`
	LastProcessedID int64     `gorm:"column:last_processed_id;not null;default:0"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name.
func (SyncCheckpointModel) TableName() string {
	return "sync_checkpoints"
}

// TaskModel represents a task in the database.
type TaskModel struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement"`
	DedupKey  string          `gorm:"column:dedup_key;type:varchar(255);uniqueIndex;not null"`
	Type      string          `gorm:"column:type;type:varchar(255);index;not null"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb"`
	Priority  int             `gorm:"column:priority;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the table name.
func (TaskModel) TableName() string {
	return "tasks"
}

// TaskStatusModel represents task status in the database.
type TaskStatusModel struct {
	ID            string    `gorm:"column:id;type:varchar(255);primaryKey;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
	Operation     string    `gorm:"column:operation;type:varchar(255);index;not null"`
	TrackableKey  *string   `gorm:"column:trackable_key;type:varchar(255);index"`
	TrackableType *string   `gorm:"column:trackable_type;type:varchar(255);index"`
	ParentID      *string   `gorm:"column:parent;type:varchar(255);index"`
	Message       string    `gorm:"column:message;type:text;default:''"`
	State         string    `gorm:"column:state;type:varchar(255);default:''"`
	Error         string    `gorm:"column:error;type:text;default:''"`
	Total         int       `gorm:"column:total;default:0"`
	Current       int       `gorm:"column:current;default:0"`
}

// TableName returns the table name.
func (TaskStatusModel) TableName() string {
	return "task_statuses"
}
