package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/seekhub/translator/internal/auth"
	"github.com/seekhub/translator/internal/client"
	"github.com/seekhub/translator/internal/config"
	"github.com/seekhub/translator/internal/middleware"
	"github.com/seekhub/translator/internal/queue"
	"github.com/seekhub/translator/internal/router"
	"github.com/seekhub/translator/internal/service"
	"github.com/seekhub/translator/internal/store"
	"github.com/seekhub/translator/internal/tracker"
	ws "github.com/seekhub/translator/internal/websocket"
)

const (
	testJWTSecret     = "test-secret-for-e2e"
	testInternalToken = "internal-test-token"
	testUserID        = "test-user-123"
)

// stubPublisher accepts every task without running it, or fails every call
// when err is set.
type stubPublisher struct {
	mu    sync.Mutex
	err   error
	count int
}

func (p *stubPublisher) publish() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.count++
	return fmt.Sprintf("task-%d", p.count), nil
}

func (p *stubPublisher) PublishDocumentTranslation(context.Context, queue.DocumentTranslationPayload) (string, error) {
	return p.publish()
}

func (p *stubPublisher) PublishTextTranslation(context.Context, queue.TextTranslationPayload) (string, error) {
	return p.publish()
}

func (p *stubPublisher) PublishTranslationImprovement(context.Context, queue.ImprovementPayload) (string, error) {
	return p.publish()
}

// testApp holds all components needed for testing
type testApp struct {
	app       *fiber.App
	hub       *ws.Hub
	jobs      *store.MemoryStore
	tracker   *tracker.Tracker
	publisher *stubPublisher
}

// setupApp wires the same router as cmd/server with in-memory backends, a
// miniredis-backed rate limiter and the mock translator.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	cfg := &config.Config{
		Server:    config.ServerConfig{Env: "test", BodyLimitMB: 5},
		JWT:       config.JWTConfig{Secret: testJWTSecret},
		Internal:  config.InternalConfig{Token: testInternalToken},
		RateLimit: config.RateLimitConfig{TranslatePerMin: 10000, DocumentsPerHour: 10000},
	}

	log := zerolog.Nop()
	jobs := store.NewMemoryStore()
	storage, err := client.NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	hub := ws.NewHub(log)
	tr := tracker.New(jobs, hub, log)
	pub := &stubPublisher{}

	svc := service.NewTranslationService(service.Deps{
		Jobs:       jobs,
		Documents:  store.NewMemoryDocumentStore(),
		Storage:    storage,
		Translator: &client.MockTranslator{},
		Tracker:    tr,
		Dispatcher: service.NewDispatcher(pub, tr, log),
		Logger:     log,
	})

	app := router.New(router.Deps{
		Config:      cfg,
		Service:     svc,
		Hub:         hub,
		RateLimiter: middleware.NewRateLimiter(redisClient, log),
		Logger:      log,
	})

	return &testApp{app: app, hub: hub, jobs: jobs, tracker: tr, publisher: pub}
}

// generateToken creates an HMAC JWT for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(testUserID, "test@example.com", testJWTSecret, time.Hour)
	require.NoError(t, err)
	return token
}

// doJSON sends a JSON request and decodes the response body into out when non-nil.
func (ta *testApp) doJSON(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return ta.send(t, req, out)
}

func (ta *testApp) send(t *testing.T, req *http.Request, out any) int {
	t.Helper()

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, out), string(data))
	}
	return resp.StatusCode
}

// uploadRequest builds a multipart document upload.
func uploadRequest(t *testing.T, token, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}

	if content != nil {
		partHeader := make(textproto.MIMEHeader)
		partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		partHeader.Set("Content-Type", "application/octet-stream")
		part, err := writer.CreatePart(partHeader)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, "/api/documents", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

// doInternal posts a worker callback with the internal token.
func (ta *testApp) doInternal(t *testing.T, path string, body any) int {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Token", testInternalToken)

	return ta.send(t, req, nil)
}
