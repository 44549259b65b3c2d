package event

import (
	"context"

	"github.com/leopark123/ideahub/internal/domain"
	"github.com/leopark123/ideahub/internal/logger"
)

// LogProcessor 记录所有账本事件
type LogProcessor struct{}

func (LogProcessor) Name() string { return "log" }

// Process 处理事件
func (LogProcessor) Process(_ context.Context, e domain.Event) error {
	if e.InvestmentID != nil {
		logger.Info("Ledger event %s: campaign %s investment %s amount %s, raised %s/%s (v%d)",
			e.Type, e.CampaignID, *e.InvestmentID, e.Amount, e.RaisedAmount, e.TargetAmount, e.CampaignVersion)
		return nil
	}
	logger.Info("Ledger event %s: campaign %s is %s, raised %s/%s (v%d)",
		e.Type, e.CampaignID, e.CampaignStatus, e.RaisedAmount, e.TargetAmount, e.CampaignVersion)
	return nil
}
