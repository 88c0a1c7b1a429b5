package notesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Note is the backend-owned note record. The client holds mirror copies;
// the server assigns identity and timestamps.
type Note struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"` // rich-text markup, carried verbatim
	Color     string    `json:"color"`   // presentation tag
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

type createNoteRequest struct {
	Content string `json:"content"`
	Color   string `json:"color"`
}

type updateNoteRequest struct {
	Content string `json:"content"`
}

// ListNotes fetches the full note list for the authenticated caller.
// The backend scopes the collection to the caller's identity.
func (c *Client) ListNotes(ctx context.Context) ([]Note, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/notes", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var notes []Note
	if err := json.NewDecoder(resp.Body).Decode(&notes); err != nil {
		return nil, fmt.Errorf("notesapi: decoding note list: %w", err)
	}

	c.logger.Debug("listed notes", slog.Int("count", len(notes)))

	return notes, nil
}

// CreateNote creates a note and returns the server-assigned record.
func (c *Client) CreateNote(ctx context.Context, content, color string) (*Note, error) {
	body, err := json.Marshal(createNoteRequest{Content: content, Color: color})
	if err != nil {
		return nil, fmt.Errorf("notesapi: encoding create request: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPost, "/notes", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var note Note
	if err := json.NewDecoder(resp.Body).Decode(&note); err != nil {
		return nil, fmt.Errorf("notesapi: decoding created note: %w", err)
	}

	return &note, nil
}

// UpdateNote replaces a note's content and returns the updated record.
func (c *Client) UpdateNote(ctx context.Context, id, content string) (*Note, error) {
	body, err := json.Marshal(updateNoteRequest{Content: content})
	if err != nil {
		return nil, fmt.Errorf("notesapi: encoding update request: %w", err)
	}

	resp, err := c.Do(ctx, http.MethodPut, "/notes/"+url.PathEscape(id), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var note Note
	if err := json.NewDecoder(resp.Body).Decode(&note); err != nil {
		return nil, fmt.Errorf("notesapi: decoding updated note: %w", err)
	}

	return &note, nil
}

// DeleteNote deletes a note by id. Returns nil on success.
func (c *Client) DeleteNote(ctx context.Context, id string) error {
	resp, err := c.Do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Empty/success body — drain to reuse the connection.
	if _, copyErr := io.Copy(io.Discard, resp.Body); copyErr != nil {
		return fmt.Errorf("notesapi: draining delete response body: %w", copyErr)
	}

	return nil
}
