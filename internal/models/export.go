// internal/models/export.go
package models

import (
	"time"
)

// ExportResult 导出结果
type ExportResult struct {
	VideoID      string    `json:"video_id"`
	Title        string    `json:"title"`
	Format       string    `json:"format"`
	ContentType  string    `json:"content_type"`
	Content      []byte    `json:"-"`
	FileName     string    `json:"file_name"`
	FileSize     int64     `json:"file_size"`
	SectionCount int       `json:"section_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}
