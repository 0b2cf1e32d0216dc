package adapters

import (
	"context"
	"fmt"
)

type (
	chargeRequest struct {
		OrderID string  `json:"orderId"`
		Amount  float64 `json:"amount"`
	}

	chargeResponse struct {
		PaymentID string `json:"paymentId"`
	}
)

// PaymentGateway charges orders against the payment provider over HTTP.
// The underlying client fails fast with domain.ErrCircuitOpen while the
// provider is misbehaving.
type PaymentGateway struct {
	client *ServiceClient
}

func NewPaymentGateway(client *ServiceClient) *PaymentGateway {
	return &PaymentGateway{
		client: client,
	}
}

func (g *PaymentGateway) Charge(ctx context.Context, orderID string, amount float64) (string, error) {
	var resp chargeResponse

	err := g.client.PostJSON(ctx, "/v1/charges", chargeRequest{OrderID: orderID, Amount: amount}, &resp)
	if err != nil {
		return "", err
	}

	return resp.PaymentID, nil
}

func (g *PaymentGateway) Cancel(ctx context.Context, orderID string) error {
	return g.client.PostJSON(ctx, fmt.Sprintf("/v1/charges/%s/cancel", orderID), nil, nil)
}
