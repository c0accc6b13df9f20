package apiclient

import (
	"bytes"
	"net/http"
	"net/url"
	"time"
)

// Share mirrors the daemon's publication metadata. Sealed material
// never crosses the API.
type Share struct {
	ShareID       string     `json:"share_id"`
	FolderID      string     `json:"folder_id"`
	FolderVersion uint32     `json:"folder_version"`
	AccessLevel   string     `json:"access_level"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type authorizeRequest struct {
	UserID string `json:"user_id"`
}

// ListShares returns the caller's shares for one folder.
func (c *Client) ListShares(folderID string) ([]Share, error) {
	var shares []Share
	path := "/api/v1/shares?folder_id=" + url.QueryEscape(folderID)
	if err := c.get(path, &shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// GetShare resolves a share ID to its metadata.
func (c *Client) GetShare(shareID string) (*Share, error) {
	var share Share
	if err := c.get("/api/v1/shares/"+url.PathEscape(shareID), &share); err != nil {
		return nil, err
	}
	return &share, nil
}

// RevokeShare deletes a share. Already-fetched copies are unaffected.
func (c *Client) RevokeShare(shareID string) error {
	return c.delete("/api/v1/shares/" + url.PathEscape(shareID))
}

// AuthorizeShare grants one more registered user access to a private share.
func (c *Client) AuthorizeShare(shareID, userID string) error {
	path := "/api/v1/shares/" + url.PathEscape(shareID) + "/authorize"
	return c.post(path, authorizeRequest{UserID: userID}, nil)
}

// ExportShare packs the publication record for out-of-band transport.
func (c *Client) ExportShare(shareID string) ([]byte, error) {
	path := "/api/v1/shares/" + url.PathEscape(shareID) + "/export"
	record, _, err := c.send(http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ImportShare installs a publication record exported by a peer.
func (c *Client) ImportShare(record []byte) (*Share, error) {
	body, _, err := c.send(http.MethodPost, "/api/v1/shares/import",
		"application/octet-stream", bytes.NewReader(record))
	if err != nil {
		return nil, err
	}
	share := &Share{}
	if err := decodeInto(body, share); err != nil {
		return nil, err
	}
	return share, nil
}
