package payment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/leopark123/ideahub/internal/logic"
)

func TestOfflineGatewaySettlesImmediately(t *testing.T) {
	id := uuid.New()
	handle, err := OfflineGateway{}.InitiateRefund(context.Background(), logic.RefundRequest{InvestmentID: id})
	if err != nil {
		t.Fatalf("initiate refund: %v", err)
	}
	if !handle.Settled || handle.ProviderRef != "offline-"+id.String() {
		t.Fatalf("handle = %+v", handle)
	}
}
