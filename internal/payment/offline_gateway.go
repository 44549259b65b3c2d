// Package payment 未接入 Kafka 时使用的退款通道
package payment

import (
	"context"

	"github.com/leopark123/ideahub/internal/logger"
	"github.com/leopark123/ideahub/internal/logic"
)

// OfflineGateway 只记录退款指令并视为立即到账，由财务线下打款
type OfflineGateway struct{}

var _ logic.PaymentGateway = OfflineGateway{}

// InitiateRefund 记录退款
func (OfflineGateway) InitiateRefund(_ context.Context, req logic.RefundRequest) (logic.RefundHandle, error) {
	logger.Warn("Offline refund of %s for investment %s (payment %s, reason %s) must be paid out manually",
		req.Amount, req.InvestmentID, req.PaymentReference, req.Reason)
	return logic.RefundHandle{ProviderRef: "offline-" + req.InvestmentID.String(), Settled: true}, nil
}
