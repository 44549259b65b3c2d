package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leopark123/ideahub/internal/logic"
)

type InvestmentHandler struct {
	investments *logic.InvestmentLogic
}

func NewInvestmentHandler(investments *logic.InvestmentLogic) *InvestmentHandler {
	return &InvestmentHandler{investments: investments}
}

// CreateInvestment 创建待支付投资
func (h *InvestmentHandler) CreateInvestment(c *gin.Context) {
	var req CreateInvestmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	inv, err := h.investments.Create(c.Request.Context(), logic.CreateInvestmentInput{
		CampaignID:    req.CampaignID,
		InvestorID:    currentUser(c).ID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		RewardTierID:  req.RewardTierID,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "investment created", newInvestmentResponse(inv))
}

// ListMyInvestments 当前用户的投资
func (h *InvestmentHandler) ListMyInvestments(c *gin.Context) {
	page := pageQuery(c)
	list, total, err := h.investments.ByInvestor(c.Request.Context(), currentUser(c).ID, page)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", gin.H{
		"investments": newInvestmentResponses(list),
		"pagination":  newPagination(page.Number, page.Size, total),
	})
}

// GetInvestment 投资详情，仅投资人可见
func (h *InvestmentHandler) GetInvestment(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	inv, err := h.investments.Get(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", newInvestmentResponse(inv))
}

// CancelInvestment 投资人撤销待支付投资
func (h *InvestmentHandler) CancelInvestment(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	inv, err := h.investments.CancelPending(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "investment cancelled", newInvestmentResponse(inv))
}
