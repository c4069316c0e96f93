package domain

import "time"

// TemplateAsset represents metadata for an imported template image
type TemplateAsset struct {
	Filename     string    `json:"filename"`      // Catalog name (e.g. close_x2.png)
	OriginalName string    `json:"original_name"` // Name of the imported source file
	Hash         string    `json:"hash"`          // SHA-256 hash
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Size         int64     `json:"size"`
	ImportedAt   time.Time `json:"imported_at"`
}
