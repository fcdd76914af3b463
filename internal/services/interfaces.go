package services

import (
	"context"
	"time"

	"freight-backend/internal/events"
	"freight-backend/internal/paystack"
	"freight-backend/internal/utils"
)

// Gateway is the payment processor as seen by the services.
// *paystack.Client satisfies it.
type Gateway interface {
	Configured() bool
	Initialize(ctx context.Context, req paystack.InitializeRequest) (paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (paystack.VerifyResult, error)
	Refund(ctx context.Context, reference string, amountMinor int64) (paystack.RefundResult, error)
	Transfer(ctx context.Context, req paystack.TransferRequest) (paystack.TransferResult, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (paystack.AccountResolution, error)
	CreateRecipient(ctx context.Context, req paystack.RecipientRequest) (paystack.Recipient, error)
}

// Deduper suppresses repeated webhook deliveries. *cache.Deduper satisfies it.
type Deduper interface {
	Claim(ctx context.Context, event, reference string) (bool, error)
	Release(ctx context.Context, event, reference string) error
}

const msgGatewayUnconfigured = "PAYSTACK_SECRET_KEY belum dikonfigurasi"

func nowFn(f func() time.Time) time.Time {
	if f != nil {
		return f().UTC()
	}
	return time.Now().UTC()
}

// publish never fails the caller: the ledger transition already happened.
func publish(ctx context.Context, pub events.Publisher, typ, key string, data map[string]any) {
	if pub == nil {
		return
	}
	reqID := utils.RequestIDFrom(ctx)
	ev := events.Event{Type: typ, Key: key, RequestID: reqID, OccurredAt: time.Now().UTC(), Data: data}
	if err := pub.Publish(ctx, ev); err != nil {
		utils.LogError(reqID, "events", "publish", "publish "+typ+" failed", err)
	}
}
