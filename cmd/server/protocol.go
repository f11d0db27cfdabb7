// Package main provides a TCP SQL server over the strata engine.
package main

import (
	"encoding/json"
)

// Request represents a SQL query from the client.
type Request struct {
	Query string `json:"query"`
}

// Response represents the server's response to a query.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Type    string          `json:"type,omitempty"` // "query", "exec" or "auth"
	Result  json.RawMessage `json:"result,omitempty"`
}

// QueryResponse contains tabular query results.
type QueryResponse struct {
	Columns []string   `json:"columns"`
	Data    [][]string `json:"data"`
	Rows    int        `json:"rows"`
	TimeMs  float64    `json:"time_ms"`
}

// ExecResponse contains row-modifying statement results.
type ExecResponse struct {
	RowsAffected int64   `json:"rows_affected"`
	LastInsertID int64   `json:"last_insert_id,omitempty"`
	TimeMs       float64 `json:"time_ms"`
}

// AuthResponse reports the outcome of an AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity,omitempty"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a JSON request from a byte slice.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}
