package service

import (
	"context"
	"fmt"
	"math"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/noah-isme/train4best-api/internal/dto"
)

// CheckoutRequest describes the registration fee sent to the payment gateway.
type CheckoutRequest struct {
	OrderID       string
	Amount        float64
	ItemID        string
	ItemName      string
	CustomerName  string
	CustomerEmail string
}

// PaymentGateway creates hosted checkout sessions.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*dto.Checkout, error)
}

type snapTransactionCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// MidtransGateway creates Snap checkout tokens.
type MidtransGateway struct {
	client snapTransactionCreator
}

// NewMidtransGateway returns nil when no server key is configured.
func NewMidtransGateway(serverKey string, production bool) *MidtransGateway {
	if serverKey == "" {
		return nil
	}
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	var client snap.Client
	client.New(serverKey, env)
	return &MidtransGateway{client: &client}
}

// CreateCheckout requests a Snap token keyed by the payment reference number.
func (g *MidtransGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (*dto.Checkout, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("payment gateway not configured")
	}
	amount := int64(math.Round(req.Amount))
	if amount <= 0 {
		return nil, fmt.Errorf("invalid checkout amount %v", req.Amount)
	}

	resp, mErr := g.client.CreateTransaction(&snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.ItemID,
				Name:  truncateString(req.ItemName, 50),
				Price: amount,
				Qty:   1,
			},
		},
	})
	if mErr != nil {
		return nil, fmt.Errorf("create snap transaction: %w", mErr)
	}
	return &dto.Checkout{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func truncateString(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
