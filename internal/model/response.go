package model

import "time"

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageResponse acknowledges an action. Token fields are only populated
// when development token echo is enabled.
type MessageResponse struct {
	Message           string `json:"message"`
	ResetToken        string `json:"reset_token,omitempty"`
	VerificationToken string `json:"verification_token,omitempty"`
}

// HealthResponse.Database is empty when the service runs without Postgres.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database,omitempty"`
}

type ServiceInfo struct {
	Message     string `json:"message"`
	Version     string `json:"version"`
	Description string `json:"description"`
	DocsURL     string `json:"docs_url"`
	APIVersion  string `json:"api_version"`
}
