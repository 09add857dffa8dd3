package mpesa

import (
	"encoding/json"
	"strings"
	"time"
)

// CallbackEnvelope is the body Daraja posts to the callback URL.
type CallbackEnvelope struct {
	Body CallbackBody `json:"Body"`
}

type CallbackBody struct {
	STKCallback STKCallback `json:"stkCallback"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

func (cb STKCallback) Succeeded() bool {
	return cb.ResultCode == 0
}

// Metadata returns the named item as text. Numbers come back in their JSON
// form, strings unquoted.
func (cb STKCallback) Metadata(name string) (string, bool) {
	if cb.CallbackMetadata == nil {
		return "", false
	}
	for _, item := range cb.CallbackMetadata.Item {
		if item.Name != name || len(item.Value) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(item.Value, &s); err == nil {
			return s, true
		}
		return strings.TrimSpace(string(item.Value)), true
	}
	return "", false
}

func (cb STKCallback) ReceiptNumber() string {
	v, _ := cb.Metadata("MpesaReceiptNumber")
	return v
}

// TransactionDate parses the YYYYMMDDHHmmss metadata value as EAT.
func (cb STKCallback) TransactionDate() (time.Time, bool) {
	v, ok := cb.Metadata("TransactionDate")
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(timestampLayout, v, eat)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Ack is the acknowledgement Daraja expects from the callback receiver.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var Accepted = Ack{ResultCode: 0, ResultDesc: "Success"}
