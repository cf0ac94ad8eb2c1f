package grapherror

import (
	"fmt"

	"github.com/teranos/discograph/errors"
)

// defaultMessages provides user-friendly error messages for each category
var defaultMessages = map[Category]string{
	CategoryRequest:    "Invalid request - please check the entity and filters and try again",
	CategoryRepository: "The discography database is unavailable - please try again shortly",
	CategoryWebSocket:  "Connection error - attempting to reconnect...",
	CategoryGraph:      "Failed to build the network for this entity",
	CategoryInternal:   "An internal error occurred - please try again",
}

// subcategoryMessages override the category message where a sharper one exists
var subcategoryMessages = map[string]string{
	SubcategoryRepositoryNotFound: "No artist or label with that id",
	SubcategoryRequestRole:        "Unknown role filter",
	SubcategoryGraphCancelled:     "Request cancelled",
}

// ToUIMessage converts the error to a user-friendly message suitable for UI display
func (e *GraphError) ToUIMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	if msg, ok := subcategoryMessages[e.Subcategory]; ok {
		return msg
	}
	return e.defaultMessageForCategory()
}

func (e *GraphError) defaultMessageForCategory() string {
	if msg, ok := defaultMessages[e.Category]; ok {
		return msg
	}
	return "An error occurred"
}

// ToPayload formats the error as the JSON body of an HTTP or WebSocket error
// response. Hints attached to the underlying error are included.
func (e *GraphError) ToPayload() map[string]string {
	payload := map[string]string{
		"error":       e.Error(),
		"category":    string(e.Category),
		"description": e.ToUIMessage(),
		"timestamp":   e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}

	if e.Subcategory != "" {
		payload["subcategory"] = e.Subcategory
	}
	if e.Err != nil {
		if hints := errors.GetAllHints(e.Err); len(hints) > 0 {
			payload["hint"] = hints[0]
		}
	}
	if len(e.Context) > 0 {
		payload["context"] = fmt.Sprintf("%v", e.Context)
	}

	return payload
}

// ToLogFields converts error to structured log fields
// This is useful for passing to logger.Errorw()
func (e *GraphError) ToLogFields() []interface{} {
	fields := []interface{}{
		"error_category", e.Category,
		"error_message", e.Error(),
		"user_message", e.UserMessage,
	}

	if e.Subcategory != "" {
		fields = append(fields, "error_subcategory", e.Subcategory)
	}

	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

// HTTPStatus is the status code the API responds with for this error.
func (e *GraphError) HTTPStatus() int {
	return errors.HTTPStatus(e.Err)
}

// IsCategory checks if the error matches a specific category
func (e *GraphError) IsCategory(cat Category) bool {
	return e.Category == cat
}
