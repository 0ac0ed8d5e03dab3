package models

import "time"

// FileInfo represents metadata about an uploaded shipment dataset.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	RowCount   int       `json:"rowCount,omitempty"` // set after format validation
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "validating", "ready", "error"
}
