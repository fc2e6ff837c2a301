package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/services/matching"
	service "statement-reconciliation-backend/internal/services/reconciliation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReconciliationService interface {
	Overview(ctx context.Context, planID uuid.UUID) (*service.Overview, error)
	ManualMatch(ctx context.Context, planID, bankTxID, plannedTxID uuid.UUID, userID *string) (service.Result, error)
	Reconcile(ctx context.Context, bankTxID, plannedTxID uuid.UUID, userID *string) (service.Result, error)
	AssignPlan(ctx context.Context, bankTxID uuid.UUID, planID *uuid.UUID, userID *string) (*models.BankTransaction, error)
	Unmatch(ctx context.Context, planID, reconciliationID uuid.UUID, userID *string) error
	Dismiss(ctx context.Context, planID, bankTxID uuid.UUID, reason, userID *string) (*models.Dismissal, error)
	Undismiss(ctx context.Context, planID, dismissalID uuid.UUID, userID *string) error
}

type AutoReconciler interface {
	Run(ctx context.Context, planID uuid.UUID, dryRun bool, userID *string) (*matching.RunResult, error)
}

type ReconciliationHandler struct {
	service ReconciliationService
	auto    AutoReconciler
}

func NewReconciliationHandler(s ReconciliationService, auto AutoReconciler) *ReconciliationHandler {
	return &ReconciliationHandler{service: s, auto: auto}
}

var conflictMessages = map[string]string{
	service.StatusBankConflict:    "Diese Banktransaktion wurde bereits abgeglichen.",
	service.StatusPlannedConflict: "Diese geplante Transaktion wurde bereits abgeglichen.",
}

// writeLink answers a Guard result: 201 with the new row or 409 with the
// row that already holds one of the two sides.
func writeLink(c *gin.Context, res service.Result) {
	if res.Status == service.StatusCreated {
		c.JSON(http.StatusCreated, res)
		return
	}
	c.JSON(http.StatusConflict, gin.H{
		"error":          conflictMessages[res.Status],
		"status":         res.Status,
		"reconciliation": res.Reconciliation,
	})
}

func (h *ReconciliationHandler) Overview(c *gin.Context) {
	planID, ok := planParam(c)
	if !ok {
		return
	}
	ov, err := h.service.Overview(c.Request.Context(), planID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

// Reconcile links the bank transaction in the path to any planned transaction.
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	bankTxID, ok := parseID(c, c.Param("id"), "Ungültige Banktransaktions-ID")
	if !ok {
		return
	}
	var payload struct {
		PlannedTransactionID string `json:"plannedTransactionId" binding:"required"`
	}
	if !bindBody(c, &payload) {
		return
	}
	plannedTxID, ok := parseID(c, payload.PlannedTransactionID, "Ungültige ID der geplanten Transaktion")
	if !ok {
		return
	}

	res, err := h.service.Reconcile(c.Request.Context(), bankTxID, plannedTxID, actingUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	writeLink(c, res)
}

// AssignPlan moves the bank transaction in the path to another plan.
// The body must carry planId; null removes the assignment.
func (h *ReconciliationHandler) AssignPlan(c *gin.Context) {
	bankTxID, ok := parseID(c, c.Param("id"), "Ungültige Banktransaktions-ID")
	if !ok {
		return
	}
	var payload struct {
		PlanID json.RawMessage `json:"planId"`
	}
	if !bindBody(c, &payload) {
		return
	}
	if len(payload.PlanID) == 0 {
		badRequest(c, "planId ist erforderlich")
		return
	}
	var raw *string
	if err := json.Unmarshal(payload.PlanID, &raw); err != nil {
		badRequest(c, "Ungültige Plan-ID")
		return
	}

	var planID *uuid.UUID
	if raw != nil {
		id, ok := parseID(c, *raw, "Ungültige Plan-ID")
		if !ok {
			return
		}
		planID = &id
	}

	tx, err := h.service.AssignPlan(c.Request.Context(), bankTxID, planID, actingUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *ReconciliationHandler) ManualMatch(c *gin.Context) {
	planID, ok := planParam(c)
	if !ok {
		return
	}
	var payload struct {
		BankTransactionID    string `json:"bankTransactionId" binding:"required"`
		PlannedTransactionID string `json:"plannedTransactionId" binding:"required"`
	}
	if !bindBody(c, &payload) {
		return
	}
	bankTxID, ok := parseID(c, payload.BankTransactionID, "Ungültige Banktransaktions-ID")
	if !ok {
		return
	}
	plannedTxID, ok := parseID(c, payload.PlannedTransactionID, "Ungültige ID der geplanten Transaktion")
	if !ok {
		return
	}

	res, err := h.service.ManualMatch(c.Request.Context(), planID, bankTxID, plannedTxID, actingUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	writeLink(c, res)
}

func (h *ReconciliationHandler) Unmatch(c *gin.Context) {
	planID, ok := planParam(c)
	if !ok {
		return
	}
	var payload struct {
		ReconciliationID string `json:"reconciliationId" binding:"required"`
	}
	if !bindBody(c, &payload) {
		return
	}
	recID, ok := parseID(c, payload.ReconciliationID, "Ungültige Zuordnungs-ID")
	if !ok {
		return
	}

	if err := h.service.Unmatch(c.Request.Context(), planID, recID, actingUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AutoReconcile runs the matcher for the plan. An empty body is a live run.
func (h *ReconciliationHandler) AutoReconcile(c *gin.Context) {
	planID, ok := planParam(c)
	if !ok {
		return
	}
	var payload struct {
		DryRun bool `json:"dryRun"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Ungültige Eingabe")
		return
	}

	res, err := h.auto.Run(c.Request.Context(), planID, payload.DryRun, actingUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ReconciliationHandler) Dismiss(c *gin.Context) {
	planID, ok := planParam(c)
	if !ok {
		return
	}
	var payload struct {
		BankTransactionID string  `json:"bankTransactionId" binding:"required"`
		Reason            *string `json:"reason"`
	}
	if !bindBody(c, &payload) {
		return
	}
	bankTxID, ok := parseID(c, payload.BankTransactionID, "Ungültige Banktransaktions-ID")
	if !ok {
		return
	}

	d, err := h.service.Dismiss(c.Request.Context(), planID, bankTxID, payload.Reason, actingUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *ReconciliationHandler) Undismiss(c *gin.Context) {
	planID, ok := planParam(c)
	if !ok {
		return
	}
	var payload struct {
		DismissalID string `json:"dismissalId" binding:"required"`
	}
	if !bindBody(c, &payload) {
		return
	}
	dismissalID, ok := parseID(c, payload.DismissalID, "Ungültige Verwerfungs-ID")
	if !ok {
		return
	}

	if err := h.service.Undismiss(c.Request.Context(), planID, dismissalID, actingUser(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
