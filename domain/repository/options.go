package repository

// WithPlatform filters by the "platform" column.
func WithPlatform(platform string) Option {
	return WithCondition("platform", platform)
}

// WithExternalID filters by the "external_id" column.
func WithExternalID(id string) Option {
	return WithCondition("external_id", id)
}

// WithCategory filters by the "category" column.
func WithCategory(category string) Option {
	return WithCondition("category", category)
}

// WithOperation filters by the "operation" column.
func WithOperation(operation string) Option {
	return WithCondition("operation", operation)
}

// WithInStock filters for rows where in_stock = true.
func WithInStock() Option {
	return WithCondition("in_stock", true)
}

// WithIDAfter filters rows with an ID strictly greater than the given value.
func WithIDAfter(id int64) Option {
	return WithWhere("id > ?", id)
}
