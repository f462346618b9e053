package usecase

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// listCursor is the opaque keyset cursor shared by every paginated list
// usecase: base64url-encoded JSON of the last row's (created_at, id).
type listCursor struct {
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

func decodeCursor(s string) (*time.Time, string, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}
	var c listCursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, "", fmt.Errorf("decode cursor: %w", err)
	}
	return &c.CreatedAt, c.ID, nil
}

func encodeCursor(createdAt time.Time, id string) string {
	b, _ := json.Marshal(listCursor{CreatedAt: createdAt, ID: id})
	return base64.RawURLEncoding.EncodeToString(b)
}

const defaultListLimit = 20

func normalizeLimit(limit, max int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > max {
		return max
	}
	return limit
}
