package http

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/cwaweather/backend/internal/domain"
	"github.com/cwaweather/backend/internal/service"
)

// utf8BOM lets spreadsheet programs detect the encoding of the export
const utf8BOM = "\ufeff"

// Handler contains all HTTP handlers
type Handler struct {
	dashboardSvc *service.DashboardService
	pipeline     *service.Pipeline
	validate     *validator.Validate
}

// NewHandler creates a new handler. pipeline is nil when fetching is not
// configured; the fetch endpoint then answers 503.
func NewHandler(dashboardSvc *service.DashboardService, pipeline *service.Pipeline) *Handler {
	return &Handler{
		dashboardSvc: dashboardSvc,
		pipeline:     pipeline,
		validate:     newValidator(),
	}
}

type batchParams struct {
	BatchID string `validate:"required,batchid"`
}

type trendQuery struct {
	Field string `query:"field" validate:"oneof=min max"`
	Limit int    `query:"limit" validate:"gte=0,lte=100"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("batchid", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseBatchID(fl.Field().String())
		return err == nil
	})
	return v
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	database := "ok"
	if err := h.dashboardSvc.Health(c.Context()); err != nil {
		log.Printf("Health check failed: %v", err)
		database = "unavailable"
	}

	return c.JSON(fiber.Map{
		"status":   "ok",
		"service":  "cwa-weather-backend",
		"version":  "1.0.0",
		"database": database,
		"fetch":    h.pipeline != nil,
	})
}

// GetStats returns table-wide aggregates
func (h *Handler) GetStats(c *fiber.Ctx) error {
	stats, err := h.dashboardSvc.Stats(c.Context())
	if err != nil {
		log.Printf("Failed to load stats: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch statistics")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}

// ListBatches returns one summary per batch, newest first
func (h *Handler) ListBatches(c *fiber.Ctx) error {
	batches, err := h.dashboardSvc.Batches(c.Context())
	if err != nil {
		log.Printf("Failed to list batches: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch batch list")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    batches,
		"count":   len(batches),
	})
}

// GetLatestBatch returns the view of the most recent batch
func (h *Handler) GetLatestBatch(c *fiber.Ctx) error {
	return h.renderView(c, domain.LatestBatch)
}

// GetBatch returns the view of one batch
func (h *Handler) GetBatch(c *fiber.Ctx) error {
	batchID, err := h.batchIDParam(c)
	if err != nil {
		return err
	}
	return h.renderView(c, batchID)
}

func (h *Handler) renderView(c *fiber.Ctx, batchID string) error {
	view, err := h.dashboardSvc.View(c.Context(), batchID)
	if err != nil {
		return batchError(err, batchID)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    view,
	})
}

// ExportBatch streams a batch as CSV
func (h *Handler) ExportBatch(c *fiber.Ctx) error {
	batchID, err := h.batchIDParam(c)
	if err != nil {
		return err
	}

	resolved, rows, err := h.dashboardSvc.ExportRows(c.Context(), batchID)
	if err != nil {
		return batchError(err, batchID)
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		log.Printf("Failed to write CSV for batch %s: %v", resolved, err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to export batch")
	}

	c.Attachment(fmt.Sprintf("weather_%s.csv", resolved))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}

// GetTrend returns per-location temperature history across recent batches
func (h *Handler) GetTrend(c *fiber.Ctx) error {
	query := trendQuery{Field: "min"}
	if err := c.QueryParser(&query); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}
	if err := h.validate.Struct(query); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "field must be min or max and limit between 0 and 100")
	}

	series, err := h.dashboardSvc.Trend(c.Context(), query.Field, query.Limit)
	if err != nil {
		log.Printf("Failed to build trend: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch trend data")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    series,
	})
}

// TriggerFetch runs the pipeline once and returns its summary
func (h *Handler) TriggerFetch(c *fiber.Ctx) error {
	if h.pipeline == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Fetching is disabled: CWA_API_KEY is not configured")
	}

	result, err := h.pipeline.Run(c.Context(), nil)
	if err != nil {
		log.Printf("Manual fetch failed: %v", err)
		return fetchError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

func (h *Handler) batchIDParam(c *fiber.Ctx) (string, error) {
	batchID := c.Params("batchID")
	if batchID == domain.LatestBatch {
		return batchID, nil
	}
	if err := h.validate.Struct(batchParams{BatchID: batchID}); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Invalid batch id %q, expected YYYYMMDD_HHMMSS", batchID))
	}
	return batchID, nil
}

func batchError(err error, batchID string) error {
	if errors.Is(err, service.ErrBatchNotFound) {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Batch %s not found", batchID))
	}
	log.Printf("Failed to load batch %s: %v", batchID, err)
	return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch batch data")
}

func fetchError(err error) error {
	var statusErr *service.StatusError
	switch {
	case errors.Is(err, service.ErrRateLimited):
		return fiber.NewError(fiber.StatusTooManyRequests, "A fetch ran recently, try again later")
	case errors.Is(err, service.ErrMissingAPIKey):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrTimeout):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	case errors.Is(err, service.ErrConnection),
		errors.Is(err, service.ErrCircuitOpen),
		errors.Is(err, service.ErrMalformedBody),
		errors.Is(err, service.ErrRegionsNotFound),
		errors.Is(err, service.ErrNoRegions),
		errors.As(err, &statusErr):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to run fetch")
	}
}

// ErrorHandler renders every error as the JSON error envelope
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
