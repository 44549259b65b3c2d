package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/logic"
)

// WebhookHandler 支付服务回调
type WebhookHandler struct {
	investments *logic.InvestmentLogic
	refunds     *logic.RefundLogic
}

func NewWebhookHandler(investments *logic.InvestmentLogic, refunds *logic.RefundLogic) *WebhookHandler {
	return &WebhookHandler{investments: investments, refunds: refunds}
}

// PaymentConfirmed 支付成功，重复回调返回同一结果
func (h *WebhookHandler) PaymentConfirmed(c *gin.Context) {
	var req PaymentWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.InvestmentID == uuid.Nil {
		respondError(c, apperr.Validation(apperr.CodeInvalidArgument, "investment_id is required"))
		return
	}
	inv, err := h.investments.MarkPaid(c.Request.Context(), req.InvestmentID, req.PaymentReference)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "payment recorded", newInvestmentResponse(inv))
}

// RefundSettled 退款到账
func (h *WebhookHandler) RefundSettled(c *gin.Context) {
	var req RefundWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.InvestmentID == uuid.Nil {
		respondError(c, apperr.Validation(apperr.CodeInvalidArgument, "investment_id is required"))
		return
	}
	r, err := h.refunds.ConfirmRefund(c.Request.Context(), req.InvestmentID, req.ProviderRef)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "refund settled", newRefundResponse(r))
}

// OpsHandler 运维接口
type OpsHandler struct {
	refunds     *logic.RefundLogic
	coordinator *logic.SettlementCoordinator
}

func NewOpsHandler(refunds *logic.RefundLogic, coordinator *logic.SettlementCoordinator) *OpsHandler {
	return &OpsHandler{refunds: refunds, coordinator: coordinator}
}

// StuckRefunds 长时间未到账的退款
func (h *OpsHandler) StuckRefunds(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := h.refunds.StuckRefunds(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]RefundResponse, 0, len(list))
	for _, r := range list {
		out = append(out, newRefundResponse(r))
	}
	SuccessResponse(c, http.StatusOK, "ok", out)
}

// ReconcileCampaign 立即对账
func (h *OpsHandler) ReconcileCampaign(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	audit, err := h.coordinator.Reconcile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	message := "no drift"
	if audit != nil {
		message = "drift detected"
	}
	SuccessResponse(c, http.StatusOK, message, newReconciliationResponse(id, audit))
}
