package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pg-recon-backend/internal/models"
	service "pg-recon-backend/internal/services/reconciliation"
	"pg-recon-backend/internal/services/settlement"
)

type SettlementHandler struct {
	service *service.Service
}

func NewSettlementHandler(s *service.Service) *SettlementHandler {
	return &SettlementHandler{service: s}
}

// Run settles one merchant for one cycle. Safe to repeat: an existing
// batch for the pair is returned instead of double-booking.
func (h *SettlementHandler) Run(c *gin.Context) {
	var payload struct {
		MerchantID string `json:"merchant_id"`
		CycleDate  string `json:"cycle_date"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.MerchantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "merchant_id required"})
		return
	}
	if _, err := time.Parse("2006-01-02", payload.CycleDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cycle_date must be yyyy-mm-dd"})
		return
	}

	batch, err := h.service.RunSettlement(payload.MerchantID, payload.CycleDate)
	if err != nil {
		if errors.Is(err, settlement.ErrConfigNotFound) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "settlement batch ready", "batch": batch})
}

func (h *SettlementHandler) GetBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}
	batch, err := h.service.GetBatch(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "batch not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batch})
}

func (h *SettlementHandler) ListItems(c *gin.Context) {
	id, err := uuid.Parse(c.Param("batchId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}
	items, err := h.service.ListBatchItems(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// UpsertConfig creates or updates a merchant's settlement rates. GST
// defaults to the platform-wide statutory rate when omitted.
func (h *SettlementHandler) UpsertConfig(c *gin.Context) {
	var payload struct {
		MerchantID        string `json:"merchant_id"`
		MdrRateBps        int64  `json:"mdr_rate_bps"`
		GstRateBps        int64  `json:"gst_rate_bps"`
		TdsRateBps        int64  `json:"tds_rate_bps"`
		RollingReservePct int64  `json:"rolling_reserve_pct"`
		Active            *bool  `json:"active"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.MerchantID == "" || payload.MdrRateBps < 0 || payload.RollingReservePct < 0 || payload.RollingReservePct > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid merchant config"})
		return
	}

	if payload.GstRateBps == 0 {
		payload.GstRateBps = settlement.DefaultGstRateBps
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}

	cfg := &models.MerchantConfig{
		ID:                uuid.New(),
		MerchantID:        payload.MerchantID,
		MdrRateBps:        payload.MdrRateBps,
		GstRateBps:        payload.GstRateBps,
		TdsRateBps:        payload.TdsRateBps,
		RollingReservePct: payload.RollingReservePct,
		Active:            active,
		CreatedAt:         time.Now(),
	}
	if err := h.service.UpsertMerchantConfig(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "merchant config saved", "config": cfg})
}
