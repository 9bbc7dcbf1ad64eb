package transactions

import (
	"fmt"
	"strconv"
	"time"
)

// Inbound callback shapes, as the gateway posts them. Field names mirror the
// wire format; the metadata list is deliberately loosely typed because the
// gateway mixes numbers and strings between sandbox and production.

// C2BCallback is shared by the validation and confirmation endpoints.
type C2BCallback struct {
	TransactionType   string `json:"TransactionType"`
	TransID           string `json:"TransID"`
	TransTime         string `json:"TransTime"`
	TransAmount       string `json:"TransAmount"`
	BusinessShortCode string `json:"BusinessShortCode"`
	BillRefNumber     string `json:"BillRefNumber"`
	MSISDN            string `json:"MSISDN"`
	FirstName         string `json:"FirstName"`
	MiddleName        string `json:"MiddleName"`
	LastName          string `json:"LastName"`
}

// TransactionTime parses the gateway-side settlement timestamp (yyyymmddhhmmss).
func (c C2BCallback) TransactionTime() *time.Time {
	if c.TransTime == "" {
		return nil
	}
	parsed, err := time.Parse("20060102150405", c.TransTime)
	if err != nil {
		return nil
	}
	return &parsed
}

// StkCallbackEnvelope wraps the push-payment result callback.
type StkCallbackEnvelope struct {
	Body struct {
		StkCallback StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// ReceiptNumber pulls the gateway receipt out of the metadata list, if present.
func (m CallbackMetadata) ReceiptNumber() *string {
	for _, item := range m.Item {
		if item.Name != "MpesaReceiptNumber" {
			continue
		}
		if value, ok := item.Value.(string); ok && value != "" {
			return &value
		}
	}
	return nil
}

// TransactionTime pulls the gateway-side completion timestamp (yyyymmddhhmmss).
func (m CallbackMetadata) TransactionTime() *time.Time {
	for _, item := range m.Item {
		if item.Name != "TransactionDate" {
			continue
		}
		raw := ""
		switch value := item.Value.(type) {
		case string:
			raw = value
		case float64:
			raw = strconv.FormatFloat(value, 'f', 0, 64)
		}
		if raw == "" {
			continue
		}
		if parsed, err := time.Parse("20060102150405", raw); err == nil {
			return &parsed
		}
	}
	return nil
}

// B2CResultEnvelope wraps the disbursement result and timeout callbacks.
type B2CResultEnvelope struct {
	Result B2CResult `json:"Result"`
}

type B2CResult struct {
	ResultType               int    `json:"ResultType"`
	ResultCode               int    `json:"ResultCode"`
	ResultDesc               string `json:"ResultDesc"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ConversationID           string `json:"ConversationID"`
	TransactionID            string `json:"TransactionID"`
}

func (r B2CResult) conversationKey() (string, error) {
	if r.ConversationID != "" {
		return r.ConversationID, nil
	}
	if r.OriginatorConversationID != "" {
		return r.OriginatorConversationID, nil
	}
	return "", fmt.Errorf("disbursement callback carries no conversation id")
}
