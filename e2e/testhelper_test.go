package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/reelcraft/api/internal/auth"
	"github.com/reelcraft/api/internal/client"
	"github.com/reelcraft/api/internal/config"
	"github.com/reelcraft/api/internal/handler"
	"github.com/reelcraft/api/internal/middleware"
	"github.com/reelcraft/api/internal/model"
	"github.com/reelcraft/api/internal/queue"
	"github.com/reelcraft/api/internal/repository"
	"github.com/reelcraft/api/internal/service"
	ws "github.com/reelcraft/api/internal/websocket"
)

const (
	testJWTSecret   = "test-secret-for-e2e"
	testServiceKey  = "service-role-key"
	testPublicBase  = "https://cdn.reelcraft.test"
	testUserID      = "11111111-1111-1111-1111-111111111111"
	otherUserID     = "22222222-2222-2222-2222-222222222222"
	unknownUserID   = "33333333-3333-3333-3333-333333333333"
	testFreeJobsDay = 5
)

// testApp holds all components needed for testing
type testApp struct {
	app       *fiber.App
	jobs      *repository.MemoryJobRepository
	profiles  *repository.MemoryProfileRepository
	uploads   *repository.MemoryUploadRepository
	scheduler *queue.RecordingScheduler
	verifier  *auth.SecretVerifier
	worker    *fakeWorker
}

type appOptions struct {
	policy  model.FailurePolicy
	storage bool
	checks  *handler.HealthChecks
}

type fakeWorker struct {
	srv   *httptest.Server
	fail  atomic.Bool
	calls atomic.Int32
}

// newFakeWorker serves the AI worker API. With fail set every analysis
// endpoint answers 500.
func newFakeWorker(t *testing.T) *fakeWorker {
	t.Helper()
	fw := &fakeWorker{}
	mux := http.NewServeMux()

	guard := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			fw.calls.Add(1)
			if fw.fail.Load() {
				http.Error(w, "worker exploded", http.StatusInternalServerError)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("media-bytes"))
	})
	mux.HandleFunc("/analyze/beats", guard(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(client.BeatsResponse{BPM: 120, Beats: []float64{0.5}})
	}))
	mux.HandleFunc("/analyze/scenes", guard(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(client.ScenesResponse{TotalDuration: 10})
	}))
	mux.HandleFunc("/generate/captions", guard(func(w http.ResponseWriter, r *http.Request) {
		var req client.CaptionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(client.CaptionsResponse{Captions: []string{"go " + req.Context}, Style: req.Style})
	}))
	mux.HandleFunc("/timeline/compile", guard(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(client.TimelineResponse{EstimatedRenderTime: 4})
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	fw.srv = httptest.NewServer(mux)
	t.Cleanup(fw.srv.Close)
	return fw
}

// setupApp wires the same routes as the serve command over in-memory
// repositories, a recording scheduler and a fake AI worker.
func setupApp(t *testing.T, opts ...func(*appOptions)) *testApp {
	t.Helper()
	o := appOptions{policy: model.FailurePolicyContinue, storage: true}
	for _, opt := range opts {
		opt(&o)
	}

	log := zerolog.Nop()
	ta := &testApp{
		jobs:      repository.NewMemoryJobRepository(),
		profiles:  repository.NewMemoryProfileRepository(),
		uploads:   repository.NewMemoryUploadRepository(),
		scheduler: &queue.RecordingScheduler{},
		verifier:  auth.NewSecretVerifier(testJWTSecret, ""),
		worker:    newFakeWorker(t),
	}
	ta.profiles.SetPlan(testUserID, "free")
	ta.profiles.SetPlan(otherUserID, "pro")

	ai := client.NewAIWorkerClient(&config.AIWorkerConfig{URL: ta.worker.srv.URL, Timeout: 5 * time.Second}).
		AllowMedia(ta.worker.srv.URL + "/media")

	var storage client.ObjectStorage
	if o.storage {
		s3, err := client.NewS3Storage(context.Background(), &config.StorageConfig{
			Endpoint:        "https://proj.supabase.co/storage/v1/s3",
			Region:          "us-east-1",
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
			Bucket:          "video-uploads",
		})
		if err != nil {
			t.Fatalf("storage client: %v", err)
		}
		storage = s3
	}

	hub := ws.NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	jobSvc := service.NewJobService(ta.jobs, ta.profiles, ta.scheduler, hub, service.JobServiceConfig{
		StartDelay:     time.Second,
		FreeJobsPerDay: testFreeJobsDay,
		MediaBaseURLs:  []string{testPublicBase},
	}, log)
	pipeline := service.NewPipeline(ta.jobs, ai, ta.scheduler, hub, service.PipelineConfig{
		StageDelay:    3 * time.Second,
		FailurePolicy: o.policy,
		PublicBaseURL: testPublicBase,
	}, log)
	uploadSvc := service.NewUploadService(storage, ta.uploads, service.UploadServiceConfig{}, log)

	checks := handler.HealthChecks{
		Database: ta.jobs.PingContext,
		AIWorker: ai.HealthCheck,
	}
	if o.checks != nil {
		checks = *o.checks
	}

	validate := validator.New()
	// nil Redis: the limiter lets everything through
	rateLimiter := middleware.NewRateLimiter(nil, log)

	ta.app = fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler})
	handler.Register(ta.app, handler.Routes{
		Jobs:         handler.NewJobHandler(jobSvc, validate),
		Stages:       handler.NewStageHandler(pipeline, validate, log),
		Uploads:      handler.NewUploadHandler(uploadSvc, validate),
		Health:       handler.NewHealthHandler(checks, "test", log),
		Hub:          hub,
		UserAuth:     middleware.NewAuthMiddleware(ta.verifier).Authenticate(),
		ServiceAuth:  middleware.ServiceRole(testServiceKey),
		JobsLimit:    rateLimiter.JobsLimit(1),
		UploadsLimit: rateLimiter.UploadsLimit(1),
	})
	return ta
}

func withPolicy(p model.FailurePolicy) func(*appOptions) {
	return func(o *appOptions) { o.policy = p }
}

func withoutStorage() func(*appOptions) {
	return func(o *appOptions) { o.storage = false }
}

func withChecks(c handler.HealthChecks) func(*appOptions) {
	return func(o *appOptions) { o.checks = &c }
}

// generateToken signs a Supabase style access token for userID.
func (ta *testApp) generateToken(t *testing.T, userID string) string {
	t.Helper()
	signed, err := ta.verifier.Sign(userID, "test@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs a request as userID.
func (ta *testApp) doAuthRequest(t *testing.T, userID, method, path, body string) *http.Response {
	t.Helper()
	resp, err := doRequest(ta.app, method, path, body, map[string]string{
		"Authorization": "Bearer " + ta.generateToken(t, userID),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// runStage calls the stage endpoint with the service role key.
func (ta *testApp) runStage(t *testing.T, jobID string, stage model.PipelineStage) *http.Response {
	t.Helper()
	body, _ := json.Marshal(model.StageRequest{JobID: jobID, Stage: stage})
	resp, err := doRequest(ta.app, http.MethodPost, "/functions/v1/job-processor", string(body), map[string]string{
		"Authorization": "Bearer " + testServiceKey,
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// drain runs queued stages until the scheduler is empty.
func (ta *testApp) drain(t *testing.T) []float64 {
	t.Helper()
	var progress []float64
	for {
		next, ok := ta.scheduler.Pop()
		if !ok {
			return progress
		}
		resp := ta.runStage(t, next.JobID, next.Stage)
		assertStatus(t, resp, http.StatusOK)
		progress = append(progress, parseJSON(t, resp)["progress"].(float64))
	}
}

func (ta *testApp) job(t *testing.T, id string) *model.Job {
	t.Helper()
	job, err := ta.jobs.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get job %s: %v", id, err)
	}
	return job
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	body := parseJSON(t, resp)
	e, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := e["code"].(string)
	return code
}
