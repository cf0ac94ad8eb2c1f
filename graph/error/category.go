package grapherror

// Category represents the main error category for network requests
type Category string

const (
	// CategoryRequest indicates a malformed network or search request
	CategoryRequest Category = "request"

	// CategoryRepository indicates the entity/relation store failed
	CategoryRepository Category = "repository"

	// CategoryWebSocket indicates WebSocket connection/communication errors
	CategoryWebSocket Category = "websocket"

	// CategoryInternal indicates internal server errors
	CategoryInternal Category = "internal"

	// CategoryGraph indicates ego network building errors
	CategoryGraph Category = "graph"
)

// String returns the string representation of the category
func (c Category) String() string {
	return string(c)
}

// Request Subcategories
const (
	// SubcategoryRequestEntityType indicates an entity type other than artist or label
	SubcategoryRequestEntityType = "invalid_entity_type"

	// SubcategoryRequestRole indicates an unknown role filter
	SubcategoryRequestRole = "invalid_role"

	// SubcategoryRequestYear indicates a malformed year or year range
	SubcategoryRequestYear = "invalid_year"

	// SubcategoryRequestParameter indicates any other invalid parameter
	SubcategoryRequestParameter = "invalid_parameter"
)

// Repository Subcategories
const (
	// SubcategoryRepositoryUnavailable indicates the store could not be reached
	SubcategoryRepositoryUnavailable = "unavailable"

	// SubcategoryRepositoryNotFound indicates the requested entity does not exist
	SubcategoryRepositoryNotFound = "not_found"

	// SubcategoryRepositoryTimeout indicates a store call ran past its deadline
	SubcategoryRepositoryTimeout = "timeout"
)

// WebSocket Subcategories
const (
	// SubcategoryWSRead indicates error reading from WebSocket
	SubcategoryWSRead = "read"

	// SubcategoryWSWrite indicates error writing to WebSocket
	SubcategoryWSWrite = "write"

	// SubcategoryWSUpgrade indicates WebSocket upgrade failed
	SubcategoryWSUpgrade = "upgrade"

	// SubcategoryWSMessage indicates a client message could not be decoded
	SubcategoryWSMessage = "message"
)

// Graph Subcategories
const (
	// SubcategoryGraphBuild indicates the ego network build failed
	SubcategoryGraphBuild = "build"

	// SubcategoryGraphCancelled indicates the build was cancelled by its caller
	SubcategoryGraphCancelled = "cancelled"
)

// Internal Subcategories
const (
	// SubcategoryInternalPanic indicates a panic was recovered
	SubcategoryInternalPanic = "panic"

	// SubcategoryInternalConfig indicates configuration error
	SubcategoryInternalConfig = "config"
)
