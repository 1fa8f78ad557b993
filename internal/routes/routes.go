package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	handler "pg-recon-backend/internal/handlers"
	"pg-recon-backend/internal/repository"
	service "pg-recon-backend/internal/services/reconciliation"
)

// RegisterRoutes wires repositories, the orchestrator and the API surface.
// Returns the service so main can hand it to the SLA sweeper.
func RegisterRoutes(r *gin.Engine, db *gorm.DB) *service.Service {
	txRepo := repository.NewTransactionRepository(db)
	bankRepo := repository.NewBankRecordRepository(db)
	runRepo := repository.NewRunRepository(db)
	excRepo := repository.NewExceptionRepository(db)
	setRepo := repository.NewSettlementRepository(db)

	svc := service.NewService(txRepo, bankRepo, runRepo, excRepo, setRepo)

	reconHandler := handler.NewReconciliationHandler(svc)
	excHandler := handler.NewExceptionHandler(svc)
	setHandler := handler.NewSettlementHandler(svc)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	recon := api.Group("/reconciliation")
	recon.POST("/run", reconHandler.Run)
	recon.GET("/:runId", reconHandler.GetRun)
	recon.GET("/:runId/results", reconHandler.ListRunResults)
	recon.GET("/:runId/exceptions", reconHandler.ListRunExceptions)

	api.POST("/transactions/upload", reconHandler.UploadTransactions)
	api.POST("/bank-records/upload", reconHandler.UploadBankRecords)

	exc := api.Group("/exceptions")
	exc.GET("", excHandler.List)
	exc.POST("/:id/assign", excHandler.Assign)
	exc.POST("/:id/snooze", excHandler.Snooze)
	exc.POST("/:id/resolve", excHandler.Resolve)
	exc.POST("/:id/escalate", excHandler.Escalate)
	exc.POST("/:id/wont-fix", excHandler.WontFix)

	settle := api.Group("/settlement")
	settle.POST("/run", setHandler.Run)
	settle.GET("/:batchId", setHandler.GetBatch)
	settle.GET("/:batchId/items", setHandler.ListItems)

	api.POST("/merchants/config", setHandler.UpsertConfig)

	return svc
}
