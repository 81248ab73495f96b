package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-center-api/internal/service"
	appErrors "github.com/noah-isme/tutor-center-api/pkg/errors"
	"github.com/noah-isme/tutor-center-api/pkg/response"
)

// GeneratePaymentsRequest selects the billing period to generate.
type GeneratePaymentsRequest struct {
	Year  int `json:"year" validate:"required"`
	Month int `json:"month" validate:"required"`
}

// RecoveryRequest re-runs generation for one period.
type RecoveryRequest struct {
	Year  int  `json:"year" validate:"required"`
	Month int  `json:"month" validate:"required"`
	Force bool `json:"force"`
}

// BillingHandler exposes the payment generation surface.
type BillingHandler struct {
	generator *service.PaymentGenerationService
	recovery  *service.RecoveryService
}

// NewBillingHandler constructs BillingHandler.
func NewBillingHandler(generator *service.PaymentGenerationService, recovery *service.RecoveryService) *BillingHandler {
	return &BillingHandler{generator: generator, recovery: recovery}
}

// Generate godoc
// @Summary Generate payment records for a billing period
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body GeneratePaymentsRequest true "Billing period"
// @Success 200 {object} response.Envelope
// @Router /billing/generate [post]
func (h *BillingHandler) Generate(c *gin.Context) {
	var req GeneratePaymentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), req.Month, req.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Status godoc
// @Summary Get generation status for a billing period
// @Tags Billing
// @Produce json
// @Param year query int true "Year"
// @Param month query int true "Month"
// @Success 200 {object} response.Envelope
// @Router /billing/status [get]
func (h *BillingHandler) Status(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year is required"))
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month is required"))
		return
	}
	status, err := h.generator.Status(c.Request.Context(), month, year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Periods godoc
// @Summary Report generation state of recent billing periods
// @Tags Billing
// @Produce json
// @Param window query int false "Number of periods to scan, newest first"
// @Success 200 {object} response.Envelope
// @Router /billing/periods [get]
func (h *BillingHandler) Periods(c *gin.Context) {
	window := 0
	if raw := c.Query("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "window must be an integer"))
			return
		}
		window = parsed
	}
	reports, err := h.recovery.ScanRecentPeriods(c.Request.Context(), window)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, nil)
}

// Recover godoc
// @Summary Re-run generation for one billing period
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body RecoveryRequest true "Recovery payload"
// @Success 200 {object} response.Envelope
// @Router /billing/recovery [post]
func (h *BillingHandler) Recover(c *gin.Context) {
	var req RecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.recovery.TriggerRecovery(c.Request.Context(), req.Month, req.Year, req.Force)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Backfill godoc
// @Summary Queue generation jobs for incomplete recent periods
// @Tags Billing
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /billing/backfill [post]
func (h *BillingHandler) Backfill(c *gin.Context) {
	queued, err := h.recovery.BackfillIncomplete(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"queued": queued}, nil)
}
