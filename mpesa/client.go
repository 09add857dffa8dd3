package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	maxBody = 1 << 20
)

type Config struct {
	BaseURL          string
	ConsumerKey      string
	ConsumerSecret   string
	ShortCode        string
	Passkey          string
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
}

// Client talks to the Daraja STK Push APIs.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens *TokenCache
	now    func() time.Time
}

func NewClient(cfg Config, opts ...Option) *Client {
	o := newOptions(opts)
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		http:   o.httpClient,
		tokens: NewTokenCache(cfg.BaseURL, cfg.ConsumerKey, cfg.ConsumerSecret, opts...),
		now:    o.now,
	}
}

func (c *Client) Tokens() *TokenCache {
	return c.tokens
}

type PushRequest struct {
	Phone  string
	Amount int64
}

type PushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPush asks Daraja to prompt the payer's phone. It succeeds only when the
// gateway accepted the request and issued a checkout id.
func (c *Client) STKPush(ctx context.Context, req PushRequest) (*PushResponse, error) {
	ts := Timestamp(c.now())
	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            req.Phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  c.cfg.AccountReference,
		TransactionDesc:   c.cfg.TransactionDesc,
	}

	var resp PushResponse
	status, err := c.post(ctx, stkPushPath, payload, &resp)
	if err != nil {
		return nil, err
	}
	if resp.ResponseCode != "0" || resp.CheckoutRequestID == "" {
		return nil, &GatewayError{StatusCode: status, Code: resp.ResponseCode, Description: resp.ResponseDescription}
	}
	return &resp, nil
}

type QueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          Code   `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// Result codes a query returns while the payer has not finished.
var inProgressCodes = map[Code]bool{
	"4999":         true, // still under processing
	"500.001.1001": true, // transaction is being processed
}

// Final reports whether the query carries a terminal result.
func (q *QueryResponse) Final() bool {
	return q.ResponseCode == "0" && q.ResultCode != "" && !inProgressCodes[q.ResultCode]
}

func (q *QueryResponse) Succeeded() bool {
	return q.ResultCode == "0"
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// QuerySTK asks Daraja for the result of an earlier push. While the payer has
// not answered the gateway reports an error, surfaced as *GatewayError.
func (c *Client) QuerySTK(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	ts := Timestamp(c.now())
	payload := stkQueryPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	var resp QueryResponse
	if _, err := c.post(ctx, stkQueryPath, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type errorBody struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *Client) post(ctx context.Context, path string, payload, out any) (int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGatewaySubmission, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGatewaySubmission, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, transportError(ErrGatewaySubmission, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, transportError(ErrGatewaySubmission, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return resp.StatusCode, &GatewayError{StatusCode: resp.StatusCode, Code: eb.ErrorCode, Description: eb.ErrorMessage}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("%w: malformed response: %v", ErrGatewaySubmission, err)
	}
	return resp.StatusCode, nil
}

// Code holds a result code Daraja sends either as a string or a number.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid result code %s", b)
	}
	*c = Code(strconv.FormatInt(n, 10))
	return nil
}
