package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/reelcraft/api/internal/config"
	"github.com/reelcraft/api/internal/model"
)

// AIWorker defines the media analysis operations the pipeline relies on
type AIWorker interface {
	AnalyzeBeats(ctx context.Context, file model.MediaFile) (*BeatsResponse, error)
	AnalyzeScenes(ctx context.Context, file model.MediaFile) (*ScenesResponse, error)
	GenerateCaptions(ctx context.Context, req *CaptionRequest) (*CaptionsResponse, error)
	CompileTimeline(ctx context.Context, req *TimelineRequest) (*TimelineResponse, error)
	HealthCheck(ctx context.Context) error
}

// AIWorkerClient implements AIWorker over the worker's HTTP API
type AIWorkerClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	mediaBases []string
	maxMedia   int64
}

// BeatsResponse is the beat analysis of an audio track
type BeatsResponse struct {
	BPM             float64   `json:"bpm"`
	Beats           []float64 `json:"beats"`
	TempoConfidence float64   `json:"tempo_confidence"`
}

// Scene is one detected shot boundary window
type Scene struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score"`
}

// ScenesResponse is the scene detection result of a video
type ScenesResponse struct {
	Scenes        []Scene `json:"scenes"`
	TotalDuration float64 `json:"total_duration"`
}

// CaptionRequest asks the worker for styled captions
type CaptionRequest struct {
	Style    string `json:"style"`
	Duration int    `json:"duration"`
	Context  string `json:"context"`
}

// CaptionsResponse carries generated caption lines
type CaptionsResponse struct {
	Captions []string `json:"captions"`
	Style    string   `json:"style"`
}

// TimelineItem is one clip placed on the edit timeline
type TimelineItem struct {
	ID        string                   `json:"id"`
	Type      string                   `json:"type"`
	StartTime float64                  `json:"start_time"`
	EndTime   float64                  `json:"end_time"`
	Track     int                      `json:"track"`
	Content   map[string]interface{}   `json:"content"`
	Effects   []map[string]interface{} `json:"effects"`
}

// Resolution is the output frame size
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TimelineRequest compiles a render timeline
type TimelineRequest struct {
	Items      []TimelineItem `json:"items"`
	Duration   float64        `json:"duration"`
	FPS        int            `json:"fps"`
	Resolution Resolution     `json:"resolution"`
}

// TimelineResponse is the compiled timeline and render settings
type TimelineResponse struct {
	Timeline            map[string]interface{} `json:"timeline"`
	RenderConfig        map[string]interface{} `json:"render_config"`
	EstimatedRenderTime float64                `json:"estimated_render_time"`
}

// StatusError is returned when the worker answers outside 2xx
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai worker %s failed (status %d): %s", e.Endpoint, e.StatusCode, e.Body)
}

// NewAIWorkerClient creates a new AI worker client. A zero requests-per-second
// setting disables outbound throttling.
func NewAIWorkerClient(cfg *config.AIWorkerConfig) *AIWorkerClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &AIWorkerClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.URL,
		limiter:    limiter,
		maxMedia:   model.MaxUploadSize,
	}
}

// AllowMedia sets the storage roots media may be downloaded from. Media
// outside them is never fetched.
func (c *AIWorkerClient) AllowMedia(bases ...string) *AIWorkerClient {
	c.mediaBases = bases
	return c
}

// AnalyzeBeats uploads an audio file to /analyze/beats
func (c *AIWorkerClient) AnalyzeBeats(ctx context.Context, file model.MediaFile) (*BeatsResponse, error) {
	var result BeatsResponse
	if err := c.postFile(ctx, "/analyze/beats", file, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeScenes uploads a video file to /analyze/scenes
func (c *AIWorkerClient) AnalyzeScenes(ctx context.Context, file model.MediaFile) (*ScenesResponse, error) {
	var result ScenesResponse
	if err := c.postFile(ctx, "/analyze/scenes", file, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateCaptions calls /generate/captions
func (c *AIWorkerClient) GenerateCaptions(ctx context.Context, req *CaptionRequest) (*CaptionsResponse, error) {
	var result CaptionsResponse
	if err := c.postJSON(ctx, "/generate/captions", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CompileTimeline calls /timeline/compile
func (c *AIWorkerClient) CompileTimeline(ctx context.Context, req *TimelineRequest) (*TimelineResponse, error) {
	if req.Items == nil {
		req.Items = []TimelineItem{}
	}
	var result TimelineResponse
	if err := c.postJSON(ctx, "/timeline/compile", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the AI worker is available
func (c *AIWorkerClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "create health request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "ai worker health check")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Endpoint: "/health", StatusCode: resp.StatusCode}
	}
	return nil
}

// IsConfigured returns true if the client has a worker URL
func (c *AIWorkerClient) IsConfigured() bool {
	return c != nil && c.baseURL != ""
}

func (c *AIWorkerClient) postJSON(ctx context.Context, endpoint string, body, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}
	return c.do(ctx, endpoint, "application/json", bytes.NewReader(bodyBytes), result)
}

// postFile downloads the media from its URL and streams it to the worker as
// the multipart "file" field.
func (c *AIWorkerClient) postFile(ctx context.Context, endpoint string, file model.MediaFile, result interface{}) error {
	if !c.IsConfigured() {
		return errors.New("ai worker url not configured")
	}
	src, err := c.fetch(ctx, file.URL)
	if err != nil {
		return err
	}
	defer src.Close()

	name := file.Name
	if name == "" {
		name = path.Base(file.URL)
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, src)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return c.do(ctx, endpoint, mw.FormDataContentType(), pr, result)
}

func (c *AIWorkerClient) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if !model.MediaURLUnder(url, c.mediaBases...) {
		return nil, errors.Newf("download media %s: outside storage", url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create media request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "download media %s", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, errors.Newf("download media %s: status %d", url, resp.StatusCode)
	}
	if resp.ContentLength > c.maxMedia {
		resp.Body.Close()
		return nil, errors.Newf("download media %s: %d bytes exceeds limit", url, resp.ContentLength)
	}
	return &limitedBody{ReadCloser: resp.Body, left: c.maxMedia}, nil
}

var errMediaTooLarge = errors.New("media exceeds upload size limit")

// limitedBody fails the read once more than left bytes arrive.
type limitedBody struct {
	io.ReadCloser
	left int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.left < 0 {
		return 0, errMediaTooLarge
	}
	if int64(len(p)) > b.left+1 {
		p = p[:b.left+1]
	}
	n, err := b.ReadCloser.Read(p)
	b.left -= int64(n)
	if b.left < 0 {
		return n, errMediaTooLarge
	}
	return n, err
}

func (c *AIWorkerClient) do(ctx context.Context, endpoint, contentType string, body io.Reader, result interface{}) error {
	if !c.IsConfigured() {
		return errors.New("ai worker url not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "ai worker rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, body)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "ai worker %s", endpoint)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return errors.Wrap(err, "unmarshal response")
	}
	return nil
}
