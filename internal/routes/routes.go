package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"statement-reconciliation-backend/internal/config"
	handler "statement-reconciliation-backend/internal/handlers"
	"statement-reconciliation-backend/internal/repository"
	"statement-reconciliation-backend/internal/services/importer"
	"statement-reconciliation-backend/internal/services/learning"
	"statement-reconciliation-backend/internal/services/matching"
	service "statement-reconciliation-backend/internal/services/reconciliation"
)

// Services holds the wired application services shared by routes and jobs.
type Services struct {
	Plans          *repository.PlanRepository
	Importer       *importer.Service
	Reconciliation *service.ReconciliationService
	Auto           *matching.AutoReconciler
	MaxUploadMB    int64
}

func NewServices(db *gorm.DB, cfg config.Config) *Services {
	importRepo := repository.NewImportRepository(db)
	planRepo := repository.NewPlanRepository(db)
	reconRepo := repository.NewReconciliationRepository(db)
	ruleRepo := repository.NewMatchRuleRepository(db)
	txManager := repository.NewTxManager(db)

	learner := learning.NewLearner(reconRepo, planRepo, ruleRepo)
	reconService := service.NewReconciliationService(
		planRepo,
		reconRepo,
		txManager,
		service.NewGuard(reconRepo),
		learner,
	)

	matchCfg := matching.DefaultConfig().WithThresholds(
		cfg.Matching.AutoThreshold,
		cfg.Matching.SuggestThreshold,
		cfg.Matching.AmbiguityDelta,
	)

	return &Services{
		Plans:          planRepo,
		Importer:       importer.NewService(importRepo, txManager, planRepo),
		Reconciliation: reconService,
		Auto:           matching.NewAutoReconciler(matchCfg, reconService, reconService.Guard(), ruleRepo),
		MaxUploadMB:    cfg.Import.MaxUploadMB,
	}
}

func RegisterRoutes(r *gin.Engine, s *Services) {
	importHandler := handler.NewImportHandler(s.Importer, s.MaxUploadMB)
	reconHandler := handler.NewReconciliationHandler(s.Reconciliation, s.Auto)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.GET("/import-types", importHandler.ImportTypes)

	imports := api.Group("/bank-imports")
	imports.POST("/preview", importHandler.Preview)
	imports.POST("/commit", importHandler.Commit)

	bankTx := api.Group("/bank-transactions")
	bankTx.PATCH("/:id", reconHandler.AssignPlan)
	bankTx.POST("/:id/reconcile", reconHandler.Reconcile)

	// Plan workspace ("Kassensturz")
	ks := api.Group("/plans/:id/kassensturz")
	{
		ks.GET("", reconHandler.Overview)
		ks.POST("/reconcile", reconHandler.ManualMatch)
		ks.DELETE("/reconcile", reconHandler.Unmatch)
		ks.POST("/auto-reconcile", reconHandler.AutoReconcile)
		ks.POST("/dismiss", reconHandler.Dismiss)
		ks.DELETE("/dismiss", reconHandler.Undismiss)
	}
}
