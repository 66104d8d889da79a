package dto

// CategoryRequest is the create/update payload for categories.
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}
