package mpesa

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"scan2pay-service/internal/domain"
)

// ErrUndecodable marks a callback body that is not JSON at all, as opposed to
// JSON with missing or mistyped fields.
var ErrUndecodable = errors.New("callback body is not valid JSON")

// STKCallback is the decoded result of an STK push.
type STKCallback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Receipt           string
	Amount            string
	PhoneNumber       string
}

func (c *STKCallback) Outcome() domain.Outcome {
	return domain.Outcome{
		ResultCode: c.ResultCode,
		ResultDesc: c.ResultDesc,
		Receipt:    c.Receipt,
	}
}

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        *int   `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// DecodeSTKCallback parses the gateway's callback payload once into a typed
// value. Every failure is domain.ErrInvalidCallback; a body that is not JSON
// additionally wraps ErrUndecodable.
func DecodeSTKCallback(payload []byte) (*STKCallback, error) {
	if !json.Valid(payload) {
		return nil, domain.Wrap(domain.ErrInvalidCallback, ErrUndecodable)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var env stkCallbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, domain.Wrap(domain.ErrInvalidCallback, fmt.Errorf("decode stk callback: %w", err))
	}

	raw := env.Body.StkCallback
	correlationID := strings.TrimSpace(raw.CheckoutRequestID)
	if correlationID == "" {
		return nil, domain.WithMessage(domain.ErrInvalidCallback, "callback is missing CheckoutRequestID")
	}
	if raw.ResultCode == nil {
		return nil, domain.WithMessage(domain.ErrInvalidCallback, "callback is missing ResultCode")
	}

	cb := &STKCallback{
		MerchantRequestID: raw.MerchantRequestID,
		CheckoutRequestID: correlationID,
		ResultCode:        *raw.ResultCode,
		ResultDesc:        raw.ResultDesc,
	}

	for _, item := range raw.CallbackMetadata.Item {
		value := metadataString(item.Value)
		switch item.Name {
		case "MpesaReceiptNumber":
			cb.Receipt = value
		case "Amount":
			cb.Amount = value
		case "PhoneNumber":
			cb.PhoneNumber = value
		}
	}

	return cb, nil
}

// CorrelationIDOf extracts the CheckoutRequestID from a payload that failed
// full decoding, so the rejection can still be logged against it.
func CorrelationIDOf(payload []byte) string {
	var env stkCallbackEnvelope
	// Type errors on other fields still leave CheckoutRequestID populated.
	_ = json.Unmarshal(payload, &env)
	return strings.TrimSpace(env.Body.StkCallback.CheckoutRequestID)
}

func metadataString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
