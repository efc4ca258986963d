package dto

// RecordAttributes carries one stored catalog record.
type RecordAttributes struct {
	Platform    string            `json:"platform"`
	ExternalID  string            `json:"external_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Price       float64           `json:"price"`
	Category    string            `json:"category,omitempty"`
	ImageURL    string            `json:"image_url,omitempty"`
	InStock     bool              `json:"in_stock"`
	SKU         string            `json:"sku,omitempty"`
	Brand       string            `json:"brand,omitempty"`
	Rating      float64           `json:"rating,omitempty"`
	RatingCount int               `json:"rating_count,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}
