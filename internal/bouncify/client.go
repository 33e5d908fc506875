// Package bouncify is a thin HTTP client for the Bouncify email
// verification API.
package bouncify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/ignite/verifyhub/internal/config"
	"github.com/ignite/verifyhub/internal/pkg/httpretry"
)

// Error is a failure reported by the provider API. StatusCode is zero
// for transport-level failures.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("bouncify: %s", e.Message)
	}
	return fmt.Sprintf("bouncify: API error (status %d): %s", e.StatusCode, e.Message)
}

// Client is a Bouncify API client. The API key is injected from config
// at construction; the provider authenticates via an apikey query
// parameter on every call.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a new Bouncify API client.
func NewClient(cfg config.BouncifyConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// doRequest issues a request and returns the raw body, mapping non-2xx
// responses to *Error with the provider's message when one is present.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	fullURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{StatusCode: resp.StatusCode, Message: extractMessage(data)}
	}
	return data, nil
}

// extractMessage pulls a human-readable message out of a provider error
// body, falling back to the raw body.
func extractMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return string(body)
}

// VerifyEmail checks a single address.
func (c *Client) VerifyEmail(ctx context.Context, email string) (*VerifyResult, error) {
	params := url.Values{}
	params.Set("email", email)

	body, err := c.doRequest(ctx, http.MethodGet, "/verify", params, nil, "")
	if err != nil {
		return nil, err
	}

	var result VerifyResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing verify response: %w", err)
	}
	return &result, nil
}

// SubmitBulk uploads a CSV of addresses as a new bulk job. The caller
// is responsible for making filename unique per upload.
func (c *Client) SubmitBulk(ctx context.Context, fileData []byte, filename string, autoVerify bool) (*BulkSubmitResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("local_file", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(fileData); err != nil {
		return nil, fmt.Errorf("writing form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	params := url.Values{}
	params.Set("auto_verify", fmt.Sprintf("%t", autoVerify))

	body, err := c.doRequest(ctx, http.MethodPost, "/bulk", params, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var result BulkSubmitResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing bulk submit response: %w", err)
	}
	if result.JobID == "" {
		return nil, &Error{Message: "provider returned no job_id"}
	}
	return &result, nil
}

// JobStatus fetches the current state of a bulk job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobStatusResult, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/bulk/"+url.PathEscape(jobID), nil, nil, "")
	if err != nil {
		return nil, err
	}

	var result JobStatusResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing job status: %w", err)
	}
	if result.JobID == "" {
		result.JobID = jobID
	}
	return &result, nil
}

// StartJob asks the provider to begin verifying an uploaded list.
func (c *Client) StartJob(ctx context.Context, jobID string) (string, error) {
	payload := bytes.NewBufferString(`{"action":"start"}`)

	body, err := c.doRequest(ctx, http.MethodPatch, "/bulk/"+url.PathEscape(jobID), nil, payload, "application/json")
	if err != nil {
		return "", err
	}

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parsing start response: %w", err)
	}
	return result.Message, nil
}

// DeleteJob removes a bulk job and its results from the provider.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/bulk/"+url.PathEscape(jobID), nil, nil, "")
	return err
}

// DownloadResults streams the result CSV filtered to the given
// categories. The caller must close the returned body. The filename
// comes from Content-Disposition, defaulting to results_<jobID>.csv.
func (c *Client) DownloadResults(ctx context.Context, jobID string, categories []string) (io.ReadCloser, string, error) {
	if len(categories) == 0 {
		categories = AllCategories
	}
	payload, err := json.Marshal(map[string][]string{"filterResult": categories})
	if err != nil {
		return nil, "", fmt.Errorf("marshaling filter: %w", err)
	}

	params := url.Values{}
	params.Set("jobId", jobID)
	params.Set("apikey", c.apiKey)
	fullURL := c.baseURL + "/download?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &Error{Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, "", &Error{StatusCode: resp.StatusCode, Message: extractMessage(data)}
	}

	filename := filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	if filename == "" {
		filename = fmt.Sprintf("results_%s.csv", jobID)
	}
	return resp.Body, filename, nil
}

// filenameFromDisposition extracts the filename from a
// Content-Disposition header, or returns "".
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// CreditsInfo fetches the remaining credit balance for the account.
func (c *Client) CreditsInfo(ctx context.Context) (*CreditsInfo, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/info", nil, nil, "")
	if err != nil {
		return nil, err
	}

	var envelope creditsInfoEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parsing credits info: %w", err)
	}
	return &envelope.CreditsInfo, nil
}
