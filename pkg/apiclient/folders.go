package apiclient

import (
	"net/url"
	"time"
)

// Folder mirrors the daemon's folder representation.
type Folder struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	Name             string     `json:"name"`
	RootPath         string     `json:"root_path"`
	Newsgroup        string     `json:"newsgroup"`
	CurrentVersion   uint32     `json:"current_version"`
	SigningPublicKey string     `json:"signing_public_key"`
	CreatedAt        time.Time  `json:"created_at"`
	IndexedAt        *time.Time `json:"indexed_at,omitempty"`
}

// CreateFolderRequest registers a local directory for archival.
type CreateFolderRequest struct {
	Name      string `json:"name"`
	RootPath  string `json:"root_path"`
	Newsgroup string `json:"newsgroup,omitempty"`
}

// OperationStarted acknowledges a launched background run.
type OperationStarted struct {
	OperationID string `json:"operation_id"`
}

// PublishRequest creates a share for a folder's current version.
type PublishRequest struct {
	AccessLevel       string     `json:"access_level"`
	Password          string     `json:"password,omitempty"`
	AuthorizedUserIDs []string   `json:"authorized_user_ids,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

// PublishResponse carries the minted share ID.
type PublishResponse struct {
	ShareID string `json:"share_id"`
}

type indexRequest struct {
	Redundancy uint8 `json:"redundancy,omitempty"`
}

// CreateFolder registers a folder with the daemon.
func (c *Client) CreateFolder(req CreateFolderRequest) (*Folder, error) {
	var folder Folder
	if err := c.post("/api/v1/folders", req, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// ListFolders returns the caller's folders.
func (c *Client) ListFolders() ([]Folder, error) {
	var folders []Folder
	if err := c.get("/api/v1/folders", &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// GetFolder returns one folder by ID.
func (c *Client) GetFolder(id string) (*Folder, error) {
	var folder Folder
	if err := c.get("/api/v1/folders/"+url.PathEscape(id), &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// DeleteFolder unregisters a folder. Posted articles stay where they are.
func (c *Client) DeleteFolder(id string) error {
	return c.delete("/api/v1/folders/" + url.PathEscape(id))
}

// IndexFolder launches an index run. redundancy 0 keeps the daemon default.
func (c *Client) IndexFolder(id string, redundancy uint8) (*OperationStarted, error) {
	var resp OperationStarted
	err := c.post("/api/v1/folders/"+url.PathEscape(id)+"/index", indexRequest{
		Redundancy: redundancy,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadFolder launches an upload run for the folder's current version.
func (c *Client) UploadFolder(id string) (*OperationStarted, error) {
	var resp OperationStarted
	if err := c.post("/api/v1/folders/"+url.PathEscape(id)+"/upload", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PublishFolder creates a share for the folder's current version.
func (c *Client) PublishFolder(id string, req PublishRequest) (*PublishResponse, error) {
	var resp PublishResponse
	if err := c.post("/api/v1/folders/"+url.PathEscape(id)+"/publish", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
