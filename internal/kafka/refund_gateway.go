package kafka

import (
	"context"
	"fmt"

	"github.com/leopark123/ideahub/internal/logic"
)

// refundCommand 退款指令，支付服务以 idempotency_key 去重
type refundCommand struct {
	IdempotencyKey   string `json:"idempotency_key"`
	InvestmentID     string `json:"investment_id"`
	CampaignID       string `json:"campaign_id"`
	InvestorID       string `json:"investor_id"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	PaymentReference string `json:"payment_reference"`
	Reason           string `json:"reason"`
}

// RefundGateway 通过 Kafka 向支付服务发起退款，到账结果经 refund-settled 主题回传
type RefundGateway struct {
	producer *Producer
	topic    string
}

// NewRefundGateway 创建退款通道
func NewRefundGateway(producer *Producer, topic string) *RefundGateway {
	return &RefundGateway{producer: producer, topic: topic}
}

var _ logic.PaymentGateway = (*RefundGateway)(nil)

// InitiateRefund 发送退款指令，成功写入即视为已受理
func (g *RefundGateway) InitiateRefund(_ context.Context, req logic.RefundRequest) (logic.RefundHandle, error) {
	key := req.InvestmentID.String()
	partition, offset, err := g.producer.SendJSON(g.topic, key, refundCommand{
		IdempotencyKey:   key,
		InvestmentID:     key,
		CampaignID:       req.CampaignID.String(),
		InvestorID:       req.InvestorID.String(),
		Amount:           req.Amount.String(),
		Currency:         req.Amount.Currency().Code(),
		PaymentReference: req.PaymentReference,
		Reason:           string(req.Reason),
	})
	if err != nil {
		return logic.RefundHandle{}, err
	}
	return logic.RefundHandle{ProviderRef: fmt.Sprintf("%s/%d/%d", g.topic, partition, offset)}, nil
}
