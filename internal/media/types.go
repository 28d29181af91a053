package media

// Stats summarizes a site's image library.
type Stats struct {
	Total   int `json:"total"`
	WebP    int `json:"webp"`
	NonWebP int `json:"nonWebp"`
}

// Item is one image as reported by the connector.
type Item struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	MimeType  string `json:"mimeType"`
}

// OptimizeOptions control the AI optimize action.
type OptimizeOptions struct {
	ApplyFilename bool   `json:"applyFilename"`
	ApplyAltText  bool   `json:"applyAltText"`
	PageContext   string `json:"pageContext"`
	Language      string `json:"language"`
}
