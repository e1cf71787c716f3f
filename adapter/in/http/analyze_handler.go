// Package http implements the inbound HTTP adapter.
package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"crisislens_server/adapter/out/persistence"
	"crisislens_server/core/domain"
	"crisislens_server/core/pipeline"
	"crisislens_server/pkg/apperr"
	"crisislens_server/pkg/response"
)

// =============================================================================
// Analyze Handler
// =============================================================================

// AnalyzeHandler exposes the analysis pipeline over HTTP.
type AnalyzeHandler struct {
	orch    *pipeline.Orchestrator
	records *persistence.RecordAdapter // optional
	log     zerolog.Logger
}

// NewAnalyzeHandler creates an analyze handler. records may be nil when no
// database is configured.
func NewAnalyzeHandler(orch *pipeline.Orchestrator, records *persistence.RecordAdapter, log zerolog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		orch:    orch,
		records: records,
		log:     log.With().Str("component", "analyze_handler").Logger(),
	}
}

// Register mounts the handler's routes. adminGuard protects the
// state-clearing endpoint.
func (h *AnalyzeHandler) Register(app *fiber.App, adminGuard fiber.Handler) {
	api := app.Group("/api")
	api.Post("/analyze", h.Analyze)
	api.Post("/analyze/batch", h.AnalyzeBatch)
	api.Get("/stats", h.Stats)
	api.Get("/records", h.Records)
	api.Post("/reset", adminGuard, h.Reset)
}

type analyzeRequest struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (r analyzeRequest) toMessage() domain.Message {
	return domain.Message{ID: r.ID, Text: r.Text, Language: r.Language}
}

// Analyze handles POST /api/analyze.
func (h *AnalyzeHandler) Analyze(c *fiber.Ctx) error {
	var req analyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	rec, err := h.orch.Analyze(c.Context(), req.toMessage())
	if err != nil {
		return response.AppError(c, err)
	}
	return response.OK(c, rec)
}

type batchRequest struct {
	Messages []analyzeRequest `json:"messages"`
}

// AnalyzeBatch handles POST /api/analyze/batch.
func (h *AnalyzeHandler) AnalyzeBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return response.AppError(c, apperr.MissingField("messages"))
	}

	msgs := make([]domain.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = m.toMessage()
	}

	records, err := h.orch.AnalyzeBatch(c.Context(), msgs)
	if err != nil {
		return response.AppError(c, err)
	}

	meta := &response.Meta{Total: len(records)}
	for _, rec := range records {
		if rec.Relevance != nil && rec.Relevance.Relevant {
			meta.Relevant++
		}
		if rec.IsCritical() {
			meta.Critical++
		}
		if rec.Dedup != nil && rec.Dedup.Duplicate {
			meta.Duplicate++
		}
	}
	return response.OKWithMeta(c, records, meta)
}

// Stats handles GET /api/stats.
func (h *AnalyzeHandler) Stats(c *fiber.Ctx) error {
	return response.OK(c, h.orch.Stats())
}

// Records handles GET /api/records.
func (h *AnalyzeHandler) Records(c *fiber.Ctx) error {
	if h.records == nil {
		return response.Error(c, fiber.StatusNotImplemented, apperr.CodeConfigError, "record archive not configured")
	}
	summaries, err := h.records.ListRecent(c.Context(), c.QueryInt("limit", 50))
	if err != nil {
		h.log.Error().Err(err).Msg("list records failed")
		return response.InternalError(c, "failed to list records")
	}
	return response.OK(c, summaries)
}

// Reset handles POST /api/reset. Caller responsibility: drain in-flight
// work first.
func (h *AnalyzeHandler) Reset(c *fiber.Ctx) error {
	h.orch.Reset()
	return response.OK(c, fiber.Map{"reset": true})
}
