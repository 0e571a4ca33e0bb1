// internal/provider/provider.go
package provider

import (
	"context"

	"scan2pay-service/internal/domain"
)

// Gateway is the payment gateway that prompts the customer's phone and later
// reports the outcome asynchronously through a callback.
type Gateway interface {
	// Name returns the gateway name used in logs and metrics.
	Name() string

	// Push sends the payment prompt. A response whose code is not "0" means
	// the gateway refused the request and no callback will follow.
	Push(ctx context.Context, req *PushRequest) (*PushResponse, error)

	// Query asks the gateway for the outcome of an earlier push.
	Query(ctx context.Context, correlationID string) (*QueryResult, error)
}

type PushRequest struct {
	Amount      domain.Money
	PhoneNumber string
	CallbackURL string
	Reference   string
	Description string
}

type PushResponse struct {
	CorrelationID       string
	MerchantRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
}

// Accepted reports whether the gateway took the request.
func (r *PushResponse) Accepted() bool {
	return r != nil && r.ResponseCode == "0" && r.CorrelationID != ""
}

// QueryResult is the gateway's view of a pushed request. ResultCode is nil
// while the customer has not yet completed or cancelled the prompt.
type QueryResult struct {
	CorrelationID string
	ResultCode    *int
	ResultDesc    string
}

func (q *QueryResult) Final() bool { return q != nil && q.ResultCode != nil }

func (q *QueryResult) Outcome() domain.Outcome {
	o := domain.Outcome{ResultDesc: q.ResultDesc}
	if q.ResultCode != nil {
		o.ResultCode = *q.ResultCode
	}
	return o
}
