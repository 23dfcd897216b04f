// Package client talks to the reconstruction server's HTTP API.
//
// Slices and volumes arrive as raw little-endian float32 bytes with the
// shape carried in response headers; everything else is JSON. All calls
// take a context and abort mid-transfer when it is cancelled.
package client

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fzimmermann89/mrui/slicecache"
	"github.com/fzimmermann89/mrui/volume"
)

// Sentinel errors mapped from well-known response codes.
var (
	// ErrJobNotFound is returned for HTTP 404 on a job resource.
	ErrJobNotFound = errors.New("client: job not found")

	// ErrJobNotFinished is returned for HTTP 409: the job exists but has no
	// result yet.
	ErrJobNotFinished = errors.New("client: job not finished")
)

// StatusError is returned for unexpected response codes.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("client: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("client: unexpected status %d: %s", e.Code, e.Detail)
}

// Job statuses reported by the server.
const (
	StatusQueued   = "queued"
	StatusStarted  = "started"
	StatusFinished = "finished"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
	StatusStopped  = "stopped"
)

// Job is the server-side job metadata.
type Job struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Status          string    `json:"status"`
	Algorithm       string    `json:"algorithm"`
	ResultShape     []int     `json:"result_shape"`
	CreatedAt       time.Time `json:"created_at"`
	InputFilename   string    `json:"input_filename"`
	InputAvailable  bool      `json:"input_available"`
	ResultAvailable bool      `json:"result_available"`
	LogMessages     []string  `json:"log_messages"`
	Error           string    `json:"error,omitempty"`
	CancelRequested bool      `json:"cancel_requested"`
}

// WindowStats are the server-computed display-window percentiles of one
// batch-selected volume.
type WindowStats struct {
	P01 float64 `json:"p01"`
	P99 float64 `json:"p99"`
}

// Volume is a raw float volume for one batch selection.
type Volume struct {
	Shape []int
	Data  []float32
}

// Client is an HTTP API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8000").
// httpClient may be nil to use http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Health reports whether the server answers its health endpoint with "ok".
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/api/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "ok" {
		return fmt.Errorf("client: unhealthy server status %q", out.Status)
	}
	return nil
}

// ListJobs returns all jobs known to the server.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var out struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.getJSON(ctx, "/api/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// GetJob returns one job's metadata.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	if err := c.getJSON(ctx, "/api/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// AbortJob asks the server to abort a queued or running job.
func (c *Client) AbortJob(ctx context.Context, jobID string) (*Job, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/jobs/"+url.PathEscape(jobID)+"/abort", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("client: decoding job: %w", err)
	}
	return &job, nil
}

// DeleteJob deletes a terminal-state job and its files.
func (c *Client) DeleteJob(ctx context.Context, jobID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// WindowStats fetches the p01/p99 window percentiles for one batch
// selection. batch may be nil for the first combination.
func (c *Client) WindowStats(ctx context.Context, jobID string, batch []int) (*WindowStats, error) {
	q := url.Values{}
	if len(batch) > 0 {
		q.Set("batch", volume.JoinIndices(batch))
	}
	var stats WindowStats
	if err := c.getJSON(ctx, "/api/jobs/"+url.PathEscape(jobID)+"/window-stats", q, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// FetchSlice fetches one 2-D cross-section as float32 data.
func (c *Client) FetchSlice(ctx context.Context, jobID string, o volume.Orientation, index int, batch []int) (*slicecache.Slice, error) {
	q := url.Values{}
	q.Set("orientation", o.String())
	q.Set("index", strconv.Itoa(index))
	if len(batch) > 0 {
		q.Set("batch", volume.JoinIndices(batch))
	}

	body, hdr, err := c.getRaw(ctx, "/api/jobs/"+url.PathEscape(jobID)+"/slice", q)
	if err != nil {
		return nil, err
	}
	shape, err := parseShape(hdr.Get("X-Slice-Shape"), 2)
	if err != nil {
		return nil, err
	}
	data, err := decodeFloats(body, shape[0]*shape[1])
	if err != nil {
		return nil, err
	}
	return &slicecache.Slice{
		Index: index,
		Rows:  shape[0],
		Cols:  shape[1],
		Data:  data,
	}, nil
}

// SliceFetcher binds FetchSlice to one viewing context so it satisfies
// slicecache.Fetcher.
func (c *Client) SliceFetcher(jobID string, o volume.Orientation, batch []int) slicecache.Fetcher {
	b := make([]int, len(batch))
	copy(b, batch)
	return slicecache.FetchFunc(func(ctx context.Context, index int) (*slicecache.Slice, error) {
		return c.FetchSlice(ctx, jobID, o, index, b)
	})
}

// FetchVolume fetches the full spatial volume for one batch selection.
func (c *Client) FetchVolume(ctx context.Context, jobID string, batch []int) (*Volume, error) {
	q := url.Values{}
	if len(batch) > 0 {
		q.Set("batch", volume.JoinIndices(batch))
	}
	body, hdr, err := c.getRaw(ctx, "/api/jobs/"+url.PathEscape(jobID)+"/volume", q)
	if err != nil {
		return nil, err
	}
	shape, err := parseShape(hdr.Get("X-Volume-Shape"), 3)
	if err != nil {
		return nil, err
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	data, err := decodeFloats(body, n)
	if err != nil {
		return nil, err
	}
	return &Volume{Shape: shape, Data: data}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return http.NewRequestWithContext(ctx, method, u, nil)
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, q)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, path string, q url.Values) ([]byte, http.Header, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, q)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, nil, err
	}
	if dt := resp.Header.Get("X-Dtype"); dt != "" && dt != "float32" {
		return nil, nil, fmt.Errorf("client: unsupported dtype %q", dt)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return body, resp.Header, nil
}

// checkStatus maps the response code to an error. The server reports
// problems as {"detail": "..."}.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail := readDetail(resp.Body)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrJobNotFound, detail)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrJobNotFinished, detail)
	}
	return &StatusError{Code: resp.StatusCode, Detail: detail}
}

func readDetail(r io.Reader) string {
	var out struct {
		Detail string `json:"detail"`
	}
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	if json.Unmarshal(body, &out) == nil && out.Detail != "" {
		return out.Detail
	}
	return strings.TrimSpace(string(body))
}

func parseShape(header string, dims int) ([]int, error) {
	shape, err := volume.ParseIndices(header)
	if err != nil || len(shape) != dims {
		return nil, fmt.Errorf("client: bad shape header %q", header)
	}
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("client: bad shape header %q", header)
		}
	}
	return shape, nil
}

// decodeFloats interprets raw little-endian float32 bytes, checking the
// length against the header-declared shape.
func decodeFloats(body []byte, count int) ([]float32, error) {
	if len(body) != count*4 {
		return nil, fmt.Errorf("client: body is %d bytes, want %d floats", len(body), count)
	}
	out := make([]float32, count)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	return out, nil
}
