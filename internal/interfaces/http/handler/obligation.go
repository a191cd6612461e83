package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/agency/backend/internal/application/obligation"
	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/domain/trade"
	"github.com/agency/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ObligationEngine is the engine surface served over HTTP
type ObligationEngine interface {
	MaterializeRange(ctx context.Context, contractID uuid.UUID, fromMonth, toMonth time.Time) (*obligation.BatchResult, error)
	MaterializeMonth(ctx context.Context, contractID uuid.UUID, month time.Time) (*obligation.MonthOutcome, error)
	MaterializeDueMonths(ctx context.Context, asOf time.Time) (*obligation.BatchResult, error)
	MaterializeSingleContract(ctx context.Context, contractID uuid.UUID) (*obligation.BatchResult, error)
	MaterializeSale(ctx context.Context, saleID uuid.UUID) (*obligation.BatchResult, error)
	CancelPendingMonths(ctx context.Context, contractID uuid.UUID) (*obligation.BatchResult, error)
	ReleasePendingMonths(ctx context.Context, contractID uuid.UUID) (*obligation.BatchResult, error)
	AttributeForSale(ctx context.Context, saleID uuid.UUID) (*finance.Commission, error)
	GenerateFutureContractCommissions(ctx context.Context, contractID *uuid.UUID) (*obligation.BatchResult, error)
	SyncAllCommissionsToFinancial(ctx context.Context) (*obligation.BatchResult, error)
	SyncCommissionsToFinancial(ctx context.Context, userID uuid.UUID) (*obligation.BatchResult, error)
	CleanupOrphanCommissionPayables(ctx context.Context, force bool) (*obligation.CleanupResult, error)
	CleanupOrphanReceivables(ctx context.Context) (*obligation.CleanupResult, error)
	FixContractTypesAndGenerateMissingInstallments(ctx context.Context) (*obligation.FixResult, error)
	ToggleTransactionStatus(ctx context.Context, id uuid.UUID, newStatus finance.TransactionStatus) (*finance.FinancialTransaction, error)
	MarkCommissionPaid(ctx context.Context, commissionID uuid.UUID) (*finance.Commission, error)
	MarkCommissionPending(ctx context.Context, commissionID uuid.UUID) (*finance.Commission, error)
	ValidateDeleteReceivable(ctx context.Context, id uuid.UUID) error
	DeleteReceivable(ctx context.Context, id uuid.UUID) error
	ChangeContractStatus(ctx context.Context, contractID uuid.UUID, status trade.ContractStatus) (*trade.Contract, error)
	DeleteContract(ctx context.Context, contractID uuid.UUID) error
}

// ObligationHandler serves the engine commands
type ObligationHandler struct {
	BaseHandler
	engine ObligationEngine
	now    func() time.Time
}

// NewObligationHandler creates an ObligationHandler
func NewObligationHandler(engine ObligationEngine) *ObligationHandler {
	return &ObligationHandler{engine: engine, now: time.Now}
}

// MaterializeRange handles POST /obligations/contracts/:id/materialize
func (h *ObligationHandler) MaterializeRange(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.MaterializeRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	from, _ := dto.ParseMonth(req.FromMonth)
	to, _ := dto.ParseMonth(req.ToMonth)
	if to.Before(from) {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "to_month must not be before from_month")
		return
	}

	result, err := h.engine.MaterializeRange(c.Request.Context(), contractID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Batch(c, dto.ToBatchResponse(result), result.Err())
}

// MaterializeMonth handles POST /obligations/contracts/:id/months
func (h *ObligationHandler) MaterializeMonth(c *gin.Context) {
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.MaterializeMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}
	month, _ := dto.ParseMonth(req.Month)

	outcome, err := h.engine.MaterializeMonth(c.Request.Context(), contractID, month)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if outcome.Status == obligation.ItemCreated {
		h.Created(c, dto.ToMonthOutcomeResponse(outcome))
		return
	}
	h.Success(c, dto.ToMonthOutcomeResponse(outcome))
}

// MaterializeDue handles POST /obligations/materialize/due
func (h *ObligationHandler) MaterializeDue(c *gin.Context) {
	var req dto.MaterializeDueRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.ValidationError(c, err)
		return
	}
	asOf := h.now()
	if req.AsOf != "" {
		asOf, _ = time.Parse(time.DateOnly, req.AsOf)
	}

	result, err := h.engine.MaterializeDueMonths(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Batch(c, dto.ToBatchResponse(result), result.Err())
}

// MaterializeSingleContract handles POST /obligations/contracts/:id/installments
func (h *ObligationHandler) MaterializeSingleContract(c *gin.Context) {
	h.runBatch(c, h.engine.MaterializeSingleContract)
}

// MaterializeSale handles POST /obligations/sales/:id/materialize
func (h *ObligationHandler) MaterializeSale(c *gin.Context) {
	h.runBatch(c, h.engine.MaterializeSale)
}

// CancelPendingMonths handles POST /obligations/contracts/:id/cancel-pending
func (h *ObligationHandler) CancelPendingMonths(c *gin.Context) {
	h.runBatch(c, h.engine.CancelPendingMonths)
}

// ReleasePendingMonths handles POST /obligations/contracts/:id/release-pending
func (h *ObligationHandler) ReleasePendingMonths(c *gin.Context) {
	h.runBatch(c, h.engine.ReleasePendingMonths)
}

// AttributeSale handles POST /obligations/sales/:id/commission
func (h *ObligationHandler) AttributeSale(c *gin.Context) {
	saleID, ok := h.pathID(c)
	if !ok {
		return
	}
	commission, err := h.engine.AttributeForSale(c.Request.Context(), saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if commission == nil {
		h.NoContent(c)
		return
	}
	h.Success(c, dto.ToCommissionResponse(commission))
}

// GenerateCommissions handles POST /obligations/commissions/generate
func (h *ObligationHandler) GenerateCommissions(c *gin.Context) {
	var req dto.GenerateCommissionsRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.ValidationError(c, err)
		return
	}
	contractID, err := dto.ParseOptionalUUID(req.ContractID)
	if err != nil {
		h.BadRequest(c, "contract_id is not a valid UUID")
		return
	}

	result, err := h.engine.GenerateFutureContractCommissions(c.Request.Context(), contractID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Batch(c, dto.ToBatchResponse(result), result.Err())
}

// SyncCommissions handles POST /obligations/commissions/sync. Without a
// user_id every seller is synced.
func (h *ObligationHandler) SyncCommissions(c *gin.Context) {
	var req dto.SyncCommissionsRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.ValidationError(c, err)
		return
	}
	userID, err := dto.ParseOptionalUUID(req.UserID)
	if err != nil {
		h.BadRequest(c, "user_id is not a valid UUID")
		return
	}

	var result *obligation.BatchResult
	if userID != nil {
		result, err = h.engine.SyncCommissionsToFinancial(c.Request.Context(), *userID)
	} else {
		result, err = h.engine.SyncAllCommissionsToFinancial(c.Request.Context())
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Batch(c, dto.ToBatchResponse(result), result.Err())
}

// MarkCommissionPaid handles POST /obligations/commissions/:id/pay
func (h *ObligationHandler) MarkCommissionPaid(c *gin.Context) {
	h.runCommission(c, h.engine.MarkCommissionPaid)
}

// MarkCommissionPending handles POST /obligations/commissions/:id/unpay
func (h *ObligationHandler) MarkCommissionPending(c *gin.Context) {
	h.runCommission(c, h.engine.MarkCommissionPending)
}

// CleanupCommissionPayables handles POST /obligations/cleanup/commission-payables
func (h *ObligationHandler) CleanupCommissionPayables(c *gin.Context) {
	var query dto.CleanupPayablesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.ValidationError(c, err)
		return
	}
	result, err := h.engine.CleanupOrphanCommissionPayables(c.Request.Context(), query.Force)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Batch(c, dto.ToCleanupResponse(result), result.Err())
}

// CleanupReceivables handles POST /obligations/cleanup/receivables
func (h *ObligationHandler) CleanupReceivables(c *gin.Context) {
	result, err := h.engine.CleanupOrphanReceivables(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Batch(c, dto.ToCleanupResponse(result), result.Err())
}

// FixContractTypes handles POST /obligations/repair/contract-types
func (h *ObligationHandler) FixContractTypes(c *gin.Context) {
	result, err := h.engine.FixContractTypesAndGenerateMissingInstallments(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Batch(c, dto.ToFixResponse(result), result.Err())
}

// ToggleTransactionStatus handles PATCH /obligations/transactions/:id/status
func (h *ObligationHandler) ToggleTransactionStatus(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.TransactionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	tx, err := h.engine.ToggleTransactionStatus(c.Request.Context(), id, finance.TransactionStatus(req.Status))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToTransactionResponse(tx))
}

// CheckDeleteReceivable handles GET /obligations/transactions/:id/delete-check.
// A blocked deletion is answered 409 naming the blocking record.
func (h *ObligationHandler) CheckDeleteReceivable(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.engine.ValidateDeleteReceivable(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.DeleteCheckResponse{ID: id, Deletable: true})
}

// DeleteReceivable handles DELETE /obligations/transactions/:id
func (h *ObligationHandler) DeleteReceivable(c *gin.Context) {
	h.runDelete(c, h.engine.DeleteReceivable)
}

// ChangeContractStatus handles PATCH /obligations/contracts/:id/status
func (h *ObligationHandler) ChangeContractStatus(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.ContractStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	contract, err := h.engine.ChangeContractStatus(c.Request.Context(), id, trade.ContractStatus(req.Status))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToContractResponse(contract))
}

// DeleteContract handles DELETE /obligations/contracts/:id
func (h *ObligationHandler) DeleteContract(c *gin.Context) {
	h.runDelete(c, h.engine.DeleteContract)
}

// bindOptionalJSON binds a body whose fields are all optional; an empty body is valid
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *ObligationHandler) runBatch(c *gin.Context, fn func(context.Context, uuid.UUID) (*obligation.BatchResult, error)) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	result, err := fn(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Batch(c, dto.ToBatchResponse(result), result.Err())
}

func (h *ObligationHandler) runCommission(c *gin.Context, fn func(context.Context, uuid.UUID) (*finance.Commission, error)) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	commission, err := fn(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToCommissionResponse(commission))
}

func (h *ObligationHandler) runDelete(c *gin.Context, fn func(context.Context, uuid.UUID) error) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := fn(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RegisterRoutes mounts the obligation routes on rg
func (h *ObligationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/obligations")

	contracts := g.Group("/contracts/:id")
	contracts.POST("/materialize", h.MaterializeRange)
	contracts.POST("/months", h.MaterializeMonth)
	contracts.POST("/installments", h.MaterializeSingleContract)
	contracts.POST("/cancel-pending", h.CancelPendingMonths)
	contracts.POST("/release-pending", h.ReleasePendingMonths)
	contracts.PATCH("/status", h.ChangeContractStatus)
	contracts.DELETE("", h.DeleteContract)

	g.POST("/materialize/due", h.MaterializeDue)

	sales := g.Group("/sales/:id")
	sales.POST("/materialize", h.MaterializeSale)
	sales.POST("/commission", h.AttributeSale)

	commissions := g.Group("/commissions")
	commissions.POST("/generate", h.GenerateCommissions)
	commissions.POST("/sync", h.SyncCommissions)
	commissions.POST("/:id/pay", h.MarkCommissionPaid)
	commissions.POST("/:id/unpay", h.MarkCommissionPending)

	g.POST("/cleanup/commission-payables", h.CleanupCommissionPayables)
	g.POST("/cleanup/receivables", h.CleanupReceivables)
	g.POST("/repair/contract-types", h.FixContractTypes)

	transactions := g.Group("/transactions/:id")
	transactions.PATCH("/status", h.ToggleTransactionStatus)
	transactions.GET("/delete-check", h.CheckDeleteReceivable)
	transactions.DELETE("", h.DeleteReceivable)
}

var _ ObligationEngine = (*obligation.Engine)(nil)
