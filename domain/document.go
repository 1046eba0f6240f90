package domain

// Document holds the project's shared editor content. Notes and code
// are independent blobs but are always saved together.
type Document struct {
	ID        string `json:"id,omitempty"`
	Notes     string `json:"notes"`
	Code      string `json:"code"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}
