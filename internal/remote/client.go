package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/docuglot/chapter-translator/internal/controller"
	"github.com/docuglot/chapter-translator/internal/export"
	"github.com/docuglot/chapter-translator/internal/session"
	"github.com/docuglot/chapter-translator/internal/upload"
)

// Client talks to the docuglot HTTP API. It implements controller.Client
// for the job lifecycle and also carries the upload, export and snapshot
// calls the CLI needs.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) StartJob(ctx context.Context, req controller.StartRequest) (controller.StartResponse, error) {
	var resp controller.StartResponse
	if err := c.postJSON(ctx, "/api/translate", req, &resp); err != nil {
		return controller.StartResponse{}, err
	}
	if resp.JobID == "" {
		return controller.StartResponse{}, fmt.Errorf("server returned no job id")
	}
	return resp, nil
}

func (c *Client) PollJob(ctx context.Context, jobID string) (controller.PollResponse, error) {
	var resp controller.PollResponse
	if err := c.getJSON(ctx, "/api/status/"+jobID, &resp); err != nil {
		return controller.PollResponse{}, err
	}
	return resp, nil
}

// Upload sends the file as multipart form data and returns the seeded
// session.
func (c *Client) Upload(ctx context.Context, filename string, fileBytes []byte) (upload.Result, error) {
	format, err := upload.FormatForExtension(filepath.Ext(filename))
	if err != nil {
		return upload.Result{}, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return upload.Result{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(fileBytes); err != nil {
		return upload.Result{}, fmt.Errorf("write multipart body: %w", err)
	}
	if err := writer.WriteField("format", string(format)); err != nil {
		return upload.Result{}, fmt.Errorf("write format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return upload.Result{}, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return upload.Result{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result upload.Result
	if err := c.do(req, &result); err != nil {
		return upload.Result{}, err
	}
	return result, nil
}

// Export returns the merged markdown artifact for the chapters.
func (c *Client) Export(ctx context.Context, sessionID string, chapters []export.Chapter) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"session_id": sessionID,
		"chapters":   chapters,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/export", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, data)
	}
	return data, nil
}

func (c *Client) SaveSnapshot(ctx context.Context, snap session.Snapshot) error {
	return c.postJSON(ctx, "/api/session", snap, nil)
}

// LoadSnapshot returns the saved session, or nil when the server has none.
func (c *Client) LoadSnapshot(ctx context.Context) (*session.Snapshot, error) {
	var resp struct {
		Found    bool              `json:"found"`
		Snapshot *session.Snapshot `json:"snapshot"`
	}
	if err := c.getJSON(ctx, "/api/session", &resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, nil
	}
	return resp.Snapshot, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func apiError(status int, body []byte) error {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return fmt.Errorf("server returned status %d: %s", status, parsed.Error)
	}
	return fmt.Errorf("server returned status %d", status)
}
