package http

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"crisislens_server/core/domain"
	"crisislens_server/core/pipeline"
	"crisislens_server/core/port/out"
)

// =============================================================================
// Fakes
// =============================================================================

type stubModel struct{}

func (stubModel) Classify(_ context.Context, _ string, labels []string, _ bool) ([]out.LabelScore, error) {
	scores := make([]out.LabelScore, len(labels))
	for i, l := range labels {
		score := 0.1
		if i == 0 {
			score = 0.9
		}
		scores[i] = out.LabelScore{Label: l, Score: score}
	}
	return scores, nil
}

type stubEmbedder struct {
	mu sync.Mutex
	n  int
}

func (e *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.n++
	vec := make([]float32, 64)
	vec[e.n%64] = 1
	return vec, nil
}

type stubExtractor struct{}

func (stubExtractor) ExtractPlaces(context.Context, string) ([]out.PlaceMention, error) {
	return nil, nil
}

type stubGeo struct{}

func (stubGeo) Resolve(context.Context, string) (*domain.Coordinate, error) {
	return nil, nil
}

func newTestApp(t *testing.T, adminSecret string) *fiber.App {
	t.Helper()

	taxonomy := domain.DefaultTaxonomy()
	geocache, err := pipeline.NewGeocodeCache(stubGeo{}, pipeline.GeocodeCacheConfig{Capacity: 10})
	if err != nil {
		t.Fatalf("NewGeocodeCache: %v", err)
	}

	orch := pipeline.NewOrchestrator(
		pipeline.Config{MaxBatchSize: 100, BatchWorkers: 2, StageTimeout: time.Second},
		pipeline.Deps{
			Relevance: pipeline.NewRelevanceStage(stubModel{}, taxonomy, 0.65),
			EventType: pipeline.NewEventTypeStage(stubModel{}, taxonomy, 0.40),
			Urgency:   pipeline.NewUrgencyStage(stubModel{}, taxonomy),
			Location:  pipeline.NewLocationStage(stubExtractor{}, geocache, taxonomy),
			Dedup:     pipeline.NewDeduplicationIndex(&stubEmbedder{}, 0.85),
			Geocache:  geocache,
			Logger:    zerolog.Nop(),
		},
	)

	app := fiber.New(fiber.Config{
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	NewAnalyzeHandler(orch, nil, zerolog.Nop()).Register(app, RequireAdmin(adminSecret))
	return app
}

func decodeBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("parse body %q: %v", raw, err)
	}
	return parsed
}

// =============================================================================
// Tests
// =============================================================================

func TestAnalyzeEndpoint(t *testing.T) {
	app := newTestApp(t, "")

	req := httptest.NewRequest("POST", "/api/analyze",
		strings.NewReader(`{"id": "m1", "text": "building collapsed, people trapped"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp.Body)
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	data, _ := body["data"].(map[string]interface{})
	if data == nil || data["message_id"] != "m1" {
		t.Errorf("data = %v, want record for m1", body["data"])
	}
}

func TestAnalyzeEndpointRejectsMissingText(t *testing.T) {
	app := newTestApp(t, "")

	req := httptest.NewRequest("POST", "/api/analyze", strings.NewReader(`{"id": "m1"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestBatchEndpointRejectsOversizedBatch(t *testing.T) {
	app := newTestApp(t, "")

	var sb strings.Builder
	sb.WriteString(`{"messages": [`)
	for i := 0; i < 101; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"text": "hello"}`)
	}
	sb.WriteString(`]}`)

	req := httptest.NewRequest("POST", "/api/analyze/batch", strings.NewReader(sb.String()))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	body := decodeBody(t, resp.Body)
	errInfo, _ := body["error"].(map[string]interface{})
	if errInfo == nil || errInfo["code"] != "VALIDATION_FAILED" {
		t.Errorf("error = %v, want VALIDATION_FAILED", body["error"])
	}
}

func TestBatchEndpointReturnsMeta(t *testing.T) {
	app := newTestApp(t, "")

	payload := `{"messages": [{"text": "flood waters rising"}, {"text": "earthquake damage"}]}`
	req := httptest.NewRequest("POST", "/api/analyze/batch", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp.Body)
	meta, _ := body["meta"].(map[string]interface{})
	if meta == nil || meta["total"] != float64(2) {
		t.Errorf("meta = %v, want total=2", body["meta"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	app := newTestApp(t, "")

	resp, err := app.Test(httptest.NewRequest("GET", "/api/stats", nil), 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body := decodeBody(t, resp.Body)
	data, _ := body["data"].(map[string]interface{})
	if data == nil {
		t.Fatalf("data = %v, want stats object", body["data"])
	}
	for _, key := range []string{"total", "relevant", "critical", "duplicates"} {
		if _, ok := data[key]; !ok {
			t.Errorf("stats missing %q", key)
		}
	}
}

func TestResetEndpointAuth(t *testing.T) {
	const secret = "test-secret"
	app := newTestApp(t, secret)

	// No token
	resp, err := app.Test(httptest.NewRequest("POST", "/api/reset", nil), 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", resp.StatusCode)
	}

	// Bad token
	req := httptest.NewRequest("POST", "/api/reset", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status with bad token = %d, want 401", resp.StatusCode)
	}

	// Valid token
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req = httptest.NewRequest("POST", "/api/reset", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status with valid token = %d, want 200", resp.StatusCode)
	}
}
