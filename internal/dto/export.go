package dto

import "time"

// RosterExportResponse points at a generated class roster document.
type RosterExportResponse struct {
	ExportID    string    `json:"exportId"`
	Format      string    `json:"format"`
	Rows        int       `json:"rows"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
