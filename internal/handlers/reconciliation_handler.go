package handler

import (
	"encoding/csv"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"pg-recon-backend/internal/models"
	"pg-recon-backend/internal/money"
	service "pg-recon-backend/internal/services/reconciliation"
)

type ReconciliationHandler struct {
	service *service.Service
}

func NewReconciliationHandler(s *service.Service) *ReconciliationHandler {
	return &ReconciliationHandler{service: s}
}

// Run triggers one reconciliation run for a cycle.
func (h *ReconciliationHandler) Run(c *gin.Context) {
	var payload struct {
		CycleDate  string `json:"cycle_date"`
		AutoSettle bool   `json:"auto_settle"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if _, err := time.Parse("2006-01-02", payload.CycleDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cycle_date must be yyyy-mm-dd"})
		return
	}

	run, err := h.service.RunReconciliation(payload.CycleDate, payload.AutoSettle)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reconciliation completed", "run": run})
}

func (h *ReconciliationHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}
	run, err := h.service.GetRun(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (h *ReconciliationHandler) ListRunResults(c *gin.Context) {
	id, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}
	records, err := h.service.ListMatchRecords(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": records})
}

func (h *ReconciliationHandler) ListRunExceptions(c *gin.Context) {
	id, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return
	}
	recs, err := h.service.ListRunExceptions(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exceptions": recs})
}

// UploadTransactions ingests a PG transaction CSV:
// merchant_id,amount,captured_at,payment_method,utr,rrn,acquirer
// Amounts are rupee strings parsed exactly into paise; rows that fail to
// parse are skipped and counted, never aborting the upload.
func (h *ReconciliationHandler) UploadTransactions(c *gin.Context) {
	cycleDate := c.PostForm("cycle_date")
	if _, err := time.Parse("2006-01-02", cycleDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cycle_date must be yyyy-mm-dd"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	_, _ = reader.Read() // header

	var txns []models.PgTransaction
	skipped := 0
	rowNum := 0
	for {
		record, err := reader.Read()
		rowNum++
		if err == io.EOF {
			break
		}
		if err != nil || len(record) < 7 {
			skipped++
			continue
		}

		amount, err := money.FromRupees(strings.TrimSpace(record[1]))
		if err != nil {
			log.Warnf("[Upload] Row %d: bad amount %q", rowNum, record[1])
			skipped++
			continue
		}
		capturedAt, err := parseTimestamp(strings.TrimSpace(record[2]))
		if err != nil {
			log.Warnf("[Upload] Row %d: bad captured_at %q", rowNum, record[2])
			skipped++
			continue
		}

		txns = append(txns, models.PgTransaction{
			ID:            uuid.New(),
			MerchantID:    strings.TrimSpace(record[0]),
			AmountPaise:   amount,
			CapturedAt:    capturedAt,
			PaymentMethod: strings.TrimSpace(record[3]),
			UTR:           strings.TrimSpace(record[4]),
			RRN:           strings.TrimSpace(record[5]),
			Acquirer:      strings.TrimSpace(record[6]),
			CycleDate:     cycleDate,
			Status:        models.TxStatusPending,
			CreatedAt:     time.Now(),
		})
	}

	if err := h.service.IngestTransactions(txns); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Infof("[Upload] %s: %d transactions ingested, %d rows skipped", header.Filename, len(txns), skipped)
	c.JSON(http.StatusOK, gin.H{
		"file":     header.Filename,
		"ingested": len(txns),
		"skipped":  skipped,
	})
}

// UploadBankRecords ingests a bank settlement CSV:
// bank_ref,utr,amount,value_date,bank_name
func (h *ReconciliationHandler) UploadBankRecords(c *gin.Context) {
	cycleDate := c.PostForm("cycle_date")
	if _, err := time.Parse("2006-01-02", cycleDate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cycle_date must be yyyy-mm-dd"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	_, _ = reader.Read() // header

	var recs []models.BankRecord
	skipped := 0
	rowNum := 0
	for {
		record, err := reader.Read()
		rowNum++
		if err == io.EOF {
			break
		}
		if err != nil || len(record) < 5 {
			skipped++
			continue
		}

		amount, err := money.FromRupees(strings.TrimSpace(record[2]))
		if err != nil {
			log.Warnf("[Upload] Row %d: bad amount %q", rowNum, record[2])
			skipped++
			continue
		}
		valueDate, err := time.Parse("2006-01-02", strings.TrimSpace(record[3]))
		if err != nil {
			log.Warnf("[Upload] Row %d: bad value_date %q", rowNum, record[3])
			skipped++
			continue
		}

		recs = append(recs, models.BankRecord{
			ID:          uuid.New(),
			BankRef:     strings.TrimSpace(record[0]),
			UTR:         strings.TrimSpace(record[1]),
			AmountPaise: amount,
			ValueDate:   valueDate,
			BankName:    strings.TrimSpace(record[4]),
			CycleDate:   cycleDate,
			CreatedAt:   time.Now(),
		})
	}

	if err := h.service.IngestBankRecords(recs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Infof("[Upload] %s: %d bank records ingested, %d rows skipped", header.Filename, len(recs), skipped)
	c.JSON(http.StatusOK, gin.H{
		"file":     header.Filename,
		"ingested": len(recs),
		"skipped":  skipped,
	})
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}
