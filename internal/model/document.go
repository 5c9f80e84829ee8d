package model

import "time"

// Document is the stored source file a DOCUMENT job translates.
type Document struct {
	ID          string              `json:"id"`
	UserID      string              `json:"userId,omitempty"`
	Filename    string              `json:"filename"`
	ContentType string              `json:"contentType"`
	Size        int64               `json:"size"`
	StorageKey  string              `json:"storageKey"`
	URL         string              `json:"url,omitempty"`
	Settings    TranslationSettings `json:"settings"`
	CreatedAt   time.Time           `json:"createdAt"`
}
