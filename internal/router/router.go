package router

import (
	"github.com/gin-gonic/gin"
	"github.com/leopark123/ideahub/internal/config"
	"github.com/leopark123/ideahub/internal/handler"
	"github.com/leopark123/ideahub/internal/logic"
)

// Services 路由依赖的业务逻辑
type Services struct {
	Campaigns   *logic.CampaignLogic
	Investments *logic.InvestmentLogic
	Refunds     *logic.RefundLogic
	Coordinator *logic.SettlementCoordinator
	Limiter     *handler.RateLimiter // 为空时不限流
}

func Setup(cfg config.AuthConfig, svc Services) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(handler.RequestLogger())
	r.Use(gin.Recovery())
	r.Use(handler.CORS())
	if svc.Limiter != nil {
		r.Use(svc.Limiter.Middleware())
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "ideahub-crowdfunding",
		})
	})

	auth := handler.NewAuthenticator(cfg.JWTSecret, cfg.Issuer).Middleware()
	webhook := handler.WebhookGuard(cfg.WebhookSecret)

	campaignHandler := handler.NewCampaignHandler(svc.Campaigns, svc.Investments)
	investmentHandler := handler.NewInvestmentHandler(svc.Investments)
	webhookHandler := handler.NewWebhookHandler(svc.Investments, svc.Refunds)
	opsHandler := handler.NewOpsHandler(svc.Refunds, svc.Coordinator)

	// API版本组
	v1 := r.Group("/api/v1")
	{
		// 公开查询
		v1.GET("/campaigns", campaignHandler.ListCampaigns)
		v1.GET("/campaigns/active", campaignHandler.ListActiveCampaigns)
		v1.GET("/campaigns/:id", campaignHandler.GetCampaign)
		v1.GET("/campaigns/:id/stats", campaignHandler.GetCampaignStats)
		v1.GET("/campaigns/:id/settlement", campaignHandler.GetCampaignSettlement)
		v1.GET("/projects/:project_id/campaign", campaignHandler.GetProjectCampaign)

		campaigns := v1.Group("/campaigns", auth)
		{
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.PUT("/:id", campaignHandler.UpdateCampaign)
			campaigns.POST("/:id/start", campaignHandler.StartCampaign)
			campaigns.POST("/:id/close", campaignHandler.CloseCampaign)
			campaigns.POST("/:id/cancel", campaignHandler.CancelCampaign)
			campaigns.GET("/:id/investments", campaignHandler.GetCampaignInvestments)
		}

		investments := v1.Group("/investments", auth)
		{
			investments.POST("", investmentHandler.CreateInvestment)
			investments.GET("/mine", investmentHandler.ListMyInvestments)
			investments.GET("/:id", investmentHandler.GetInvestment)
			investments.POST("/:id/cancel", investmentHandler.CancelInvestment)
		}

		webhooks := v1.Group("/webhooks", webhook)
		{
			webhooks.POST("/payments", webhookHandler.PaymentConfirmed)
			webhooks.POST("/refunds", webhookHandler.RefundSettled)
		}

		ops := v1.Group("/ops", webhook)
		{
			ops.GET("/refunds/stuck", opsHandler.StuckRefunds)
			ops.POST("/campaigns/:id/reconcile", opsHandler.ReconcileCampaign)
		}
	}

	return r
}
