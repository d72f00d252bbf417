package models

import "time"

// APIClient represents a row of tbl_api_client: a reporter allowed to push entries.
type APIClient struct {
	ID         int64     `json:"id"`
	ClientID   string    `json:"client_id"`
	Name       string    `json:"name"`
	SecretHash string    `json:"-"` // Exclude secret hash from JSON responses
	CreatedAt  time.Time `json:"created_at"`
}

// ClientStats summarizes what a client has delivered to the collector.
type ClientStats struct {
	ClientID       string `json:"client_id"`
	Name           string `json:"name"`
	LogCount       int64  `json:"log_count"`
	ExceptionCount int64  `json:"exception_count"`
}
