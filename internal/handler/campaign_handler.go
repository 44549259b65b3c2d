package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logic"
)

type CampaignHandler struct {
	campaigns   *logic.CampaignLogic
	investments *logic.InvestmentLogic
}

func NewCampaignHandler(campaigns *logic.CampaignLogic, investments *logic.InvestmentLogic) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns, investments: investments}
}

// CreateCampaign 创建众筹
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	campaign, err := h.campaigns.Create(c.Request.Context(), currentUser(c).ID, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "campaign created", newCampaignResponse(campaign))
}

// ListCampaigns 分页查询众筹
func (h *CampaignHandler) ListCampaigns(c *gin.Context) {
	page := pageQuery(c)
	list, total, err := h.campaigns.List(c.Request.Context(), domain.CampaignStatus(c.Query("status")), page)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", gin.H{
		"campaigns":  newCampaignResponses(list),
		"pagination": newPagination(page.Number, page.Size, total),
	})
}

// ListActiveCampaigns 即将结束的进行中众筹
func (h *CampaignHandler) ListActiveCampaigns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	list, err := h.campaigns.ListActive(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", newCampaignResponses(list))
}

// GetCampaign 众筹详情
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	campaign, err := h.campaigns.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", newCampaignResponse(campaign))
}

// GetProjectCampaign 项目当前的众筹
func (h *CampaignHandler) GetProjectCampaign(c *gin.Context) {
	projectID, err := uuidParam(c, "project_id")
	if err != nil {
		respondError(c, err)
		return
	}
	campaign, err := h.campaigns.GetByProject(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", newCampaignResponse(campaign))
}

// GetCampaignStats 众筹统计
func (h *CampaignHandler) GetCampaignStats(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	stats, err := h.campaigns.Stats(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", stats)
}

// GetCampaignSettlement 结算记录
func (h *CampaignHandler) GetCampaignSettlement(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	s, err := h.campaigns.Settlement(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", newSettlementResponse(s))
}

// UpdateCampaign 修改待开始的众筹
func (h *CampaignHandler) UpdateCampaign(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	campaign, err := h.campaigns.Update(c.Request.Context(), id, currentUser(c).ID, req.toPatch())
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "campaign updated", newCampaignResponse(campaign))
}

// StartCampaign 发起人手动启动
func (h *CampaignHandler) StartCampaign(c *gin.Context) {
	h.ownerAction(c, "campaign started", h.campaigns.Start)
}

// CloseCampaign 发起人提前结束，立即结算
func (h *CampaignHandler) CloseCampaign(c *gin.Context) {
	h.ownerAction(c, "campaign closed", h.campaigns.CloseEarly)
}

// CancelCampaign 发起人取消
func (h *CampaignHandler) CancelCampaign(c *gin.Context) {
	h.ownerAction(c, "campaign cancelled", h.campaigns.Cancel)
}

func (h *CampaignHandler) ownerAction(c *gin.Context, message string, action func(context.Context, uuid.UUID, uuid.UUID) (domain.Campaign, error)) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	campaign, err := action(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, message, newCampaignResponse(campaign))
}

// GetCampaignInvestments 众筹的投资记录，仅发起人可见
func (h *CampaignHandler) GetCampaignInvestments(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	statuses, err := statusesQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	list, err := h.investments.ByCampaign(c.Request.Context(), id, currentUser(c).ID, statuses...)
	if err != nil {
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "ok", newInvestmentResponses(list))
}
