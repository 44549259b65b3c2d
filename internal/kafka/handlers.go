package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/apperr"
	"github.com/leopark123/ideahub/internal/domain"
)

// PaymentRecorder 支付结果写入方
type PaymentRecorder interface {
	MarkPaid(ctx context.Context, investmentID uuid.UUID, paymentReference string) (domain.Investment, error)
}

// RefundConfirmer 退款到账写入方
type RefundConfirmer interface {
	ConfirmRefund(ctx context.Context, investmentID uuid.UUID, providerRef string) (domain.Refund, error)
}

// PaymentConfirmed 支付成功消息
type PaymentConfirmed struct {
	InvestmentID     uuid.UUID `json:"investment_id"`
	PaymentReference string    `json:"payment_reference"`
}

// RefundSettled 退款到账消息
type RefundSettled struct {
	InvestmentID uuid.UUID `json:"investment_id"`
	ProviderRef  string    `json:"provider_ref"`
}

// PaymentHandler 消费 payments.paid
func PaymentHandler(r PaymentRecorder) MessageHandler {
	return func(ctx context.Context, value []byte) error {
		var msg PaymentConfirmed
		if err := json.Unmarshal(value, &msg); err != nil {
			return apperr.Validation(apperr.CodeInvalidArgument, "malformed payment message: %v", err)
		}
		if msg.InvestmentID == uuid.Nil || strings.TrimSpace(msg.PaymentReference) == "" {
			return apperr.Validation(apperr.CodeInvalidArgument, "payment message requires investment_id and payment_reference")
		}
		_, err := r.MarkPaid(ctx, msg.InvestmentID, msg.PaymentReference)
		return err
	}
}

// RefundSettledHandler 消费 payments.refund-settled
func RefundSettledHandler(r RefundConfirmer) MessageHandler {
	return func(ctx context.Context, value []byte) error {
		var msg RefundSettled
		if err := json.Unmarshal(value, &msg); err != nil {
			return apperr.Validation(apperr.CodeInvalidArgument, "malformed refund message: %v", err)
		}
		if msg.InvestmentID == uuid.Nil {
			return apperr.Validation(apperr.CodeInvalidArgument, "refund message requires investment_id")
		}
		_, err := r.ConfirmRefund(ctx, msg.InvestmentID, msg.ProviderRef)
		return err
	}
}
