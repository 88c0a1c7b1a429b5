package notesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Profile is the user's profile record. AvatarPath is the durable storage
// reference for the avatar object; signed URLs derived from it are never
// part of this record.
type Profile struct {
	Username   string `json:"username"`
	AvatarPath string `json:"avatarPath"`
}

// GetProfile fetches the profile record for the given user.
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("notesapi: decoding profile: %w", err)
	}

	return &p, nil
}

// UpsertProfile creates or replaces the profile record for the given user.
func (c *Client) UpsertProfile(ctx context.Context, userID string, p Profile) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("notesapi: encoding profile: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPut, "/profiles/"+url.PathEscape(userID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
		return fmt.Errorf("notesapi: draining profile response body: %w", copyErr)
	}

	return nil
}
