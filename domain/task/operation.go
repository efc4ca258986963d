package task

import "strings"

// Operation represents the type of task operation.
type Operation string

// Operation values for the task queue system.
const (
	OperationSyncPlatform       Operation = "shopvec.platform.sync"
	OperationDeletePlatform     Operation = "shopvec.platform.delete"
	OperationRecreateCollection Operation = "shopvec.collection.recreate"
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	return string(o)
}

// IsPlatformOperation returns true if this is a platform-level operation.
func (o Operation) IsPlatformOperation() bool {
	return strings.HasPrefix(string(o), "shopvec.platform.")
}

// IsCollectionOperation returns true if this is a collection-level operation.
func (o Operation) IsCollectionOperation() bool {
	return strings.HasPrefix(string(o), "shopvec.collection.")
}

// AllOperations returns every queue operation. Used at startup to
// validate that all operations have registered handlers.
func AllOperations() []Operation {
	return []Operation{
		OperationSyncPlatform,
		OperationDeletePlatform,
		OperationRecreateCollection,
	}
}
