package apiclient

// DownloadRequest asks the daemon to reconstruct a share locally.
type DownloadRequest struct {
	ShareID    string `json:"share_id"`
	TargetRoot string `json:"target_root"`
	Password   string `json:"password,omitempty"`
}

// StartDownload launches a background download run.
func (c *Client) StartDownload(req DownloadRequest) (*OperationStarted, error) {
	var resp OperationStarted
	if err := c.post("/api/v1/downloads", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
