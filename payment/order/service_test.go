package order

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go-mpesa/mpesa"
	"go-mpesa/notify"
	"go-mpesa/payment/db"
	"go-mpesa/payment/db/dbtest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockGateway struct {
	pushes  int32
	queries int32

	PushFunc  func(ctx context.Context, req mpesa.PushRequest) (*mpesa.PushResponse, error)
	QueryFunc func(ctx context.Context, checkoutID string) (*mpesa.QueryResponse, error)
}

func (m *mockGateway) STKPush(ctx context.Context, req mpesa.PushRequest) (*mpesa.PushResponse, error) {
	n := atomic.AddInt32(&m.pushes, 1)
	if m.PushFunc != nil {
		return m.PushFunc(ctx, req)
	}
	return &mpesa.PushResponse{
		MerchantRequestID:   fmt.Sprintf("m-%d", n),
		CheckoutRequestID:   fmt.Sprintf("ws_CO_%d", n),
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}, nil
}

func (m *mockGateway) QuerySTK(ctx context.Context, checkoutID string) (*mpesa.QueryResponse, error) {
	atomic.AddInt32(&m.queries, 1)
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, checkoutID)
	}
	return nil, &mpesa.GatewayError{StatusCode: 500, Code: "500.001.1001", Description: "The transaction is being processed"}
}

type recordingNotifier struct {
	events chan notify.Event
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(chan notify.Event, 16)}
}

func (r *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	r.events <- ev
	return nil
}

func (r *recordingNotifier) next(t *testing.T) notify.Event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification")
		return notify.Event{}
	}
}

func (r *recordingNotifier) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r.events:
		t.Fatalf("unexpected notification %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

// failingInsert breaks InsertPending and delegates everything else.
type failingInsert struct {
	Store
	err error
}

func (f failingInsert) InsertPending(context.Context, *db.PaymentRecord) error { return f.err }

type fixture struct {
	svc      *Service
	gateway  *mockGateway
	store    *db.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gateway:  &mockGateway{},
		store:    dbtest.NewStore(t),
		notifier: newRecordingNotifier(),
	}
	f.svc = NewService(Config{Gateway: f.gateway, Store: f.store, Notifier: f.notifier, MaxAmount: 150000})
	return f
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	n, err := f.store.Count(context.Background(), "")
	require.NoError(t, err)
	return n
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestInitiate_CreatesOnePendingRecord(t *testing.T) {
	f := newFixture(t)
	payer := uint(7)

	res, err := f.svc.Initiate(context.Background(), InitiateRequest{Phone: "0712345678", Amount: amount("500"), PayerID: &payer})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)
	assert.Equal(t, "0", res.ResponseCode)
	assert.NotEmpty(t, res.Message)

	rec, err := f.store.FindByCheckoutID(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, db.StatusPending, rec.Status)
	assert.Equal(t, "254712345678", rec.Phone)
	assert.Equal(t, int64(500), rec.Amount)
	require.NotNil(t, rec.PayerID)
	assert.Equal(t, uint(7), *rec.PayerID)
	assert.Equal(t, int64(1), f.count(t))
}

func TestInitiate_ValidationHasNoSideEffects(t *testing.T) {
	tests := []struct {
		name   string
		phone  string
		amount string
	}{
		{"short phone", "12345", "500"},
		{"landline", "254201234567", "500"},
		{"empty phone", "", "500"},
		{"zero amount", "254712345678", "0"},
		{"negative amount", "254712345678", "-10"},
		{"fractional amount", "254712345678", "10.5"},
		{"above maximum", "254712345678", "150001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Initiate(context.Background(), InitiateRequest{Phone: tt.phone, Amount: amount(tt.amount)})
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, int32(0), atomic.LoadInt32(&f.gateway.pushes))
			assert.Equal(t, int64(0), f.count(t))
		})
	}
}

func TestInitiate_GatewayFailureStoresNothing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rejected", &mpesa.GatewayError{StatusCode: 200, Code: "1", Description: "Rejected"}, ErrGatewaySubmission},
		{"token", fmt.Errorf("%w: http 401", mpesa.ErrUpstreamAuth), ErrUpstreamAuth},
		{"timeout", fmt.Errorf("%w: deadline", mpesa.ErrUpstreamTimeout), ErrUpstreamTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.gateway.PushFunc = func(context.Context, mpesa.PushRequest) (*mpesa.PushResponse, error) {
				return nil, tt.err
			}

			_, err := f.svc.Initiate(context.Background(), InitiateRequest{Phone: "254712345678", Amount: amount("500")})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, int64(0), f.count(t))
		})
	}
}

func TestInitiate_StorageFailureIsLoudlyLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	f := newFixture(t)
	f.svc = NewService(Config{
		Gateway: f.gateway,
		Store:   failingInsert{Store: f.store, err: fmt.Errorf("insert payment: %w", db.ErrStorageTimeout)},
		Logger:  zap.New(core),
	})

	_, err := f.svc.Initiate(context.Background(), InitiateRequest{Phone: "254712345678", Amount: amount("500")})
	assert.ErrorIs(t, err, ErrStorageTimeout)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "manual reconciliation")
	assert.Equal(t, "ws_CO_1", entries[0].ContextMap()["checkoutRequestId"])
}

func TestInitiate_ClientGoneAfterGatewayAcceptStillRecords(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.gateway.PushFunc = func(context.Context, mpesa.PushRequest) (*mpesa.PushResponse, error) {
		cancel()
		return &mpesa.PushResponse{CheckoutRequestID: "ws_CO_gone", ResponseCode: "0"}, nil
	}

	_, err := f.svc.Initiate(ctx, InitiateRequest{Phone: "254712345678", Amount: amount("1")})
	require.NoError(t, err)

	rec, err := f.store.FindByCheckoutID(context.Background(), "ws_CO_gone")
	require.NoError(t, err)
	assert.Equal(t, db.StatusPending, rec.Status)
}

func TestInitiate_DuplicateCheckoutID(t *testing.T) {
	f := newFixture(t)
	f.gateway.PushFunc = func(context.Context, mpesa.PushRequest) (*mpesa.PushResponse, error) {
		return &mpesa.PushResponse{CheckoutRequestID: "ws_CO_same", ResponseCode: "0"}, nil
	}

	_, err := f.svc.Initiate(context.Background(), InitiateRequest{Phone: "254712345678", Amount: amount("1")})
	require.NoError(t, err)
	_, err = f.svc.Initiate(context.Background(), InitiateRequest{Phone: "254712345678", Amount: amount("1")})
	assert.ErrorIs(t, err, ErrDuplicateCheckoutID)
	assert.Equal(t, int64(1), f.count(t))
}

func successCallback(checkoutID, receipt string) mpesa.STKCallback {
	return mpesa.STKCallback{
		MerchantRequestID: "m-1",
		CheckoutRequestID: checkoutID,
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		CallbackMetadata: &mpesa.CallbackMetadata{Item: []mpesa.MetadataItem{
			{Name: "Amount", Value: []byte(`500`)},
			{Name: "MpesaReceiptNumber", Value: []byte(`"` + receipt + `"`)},
			{Name: "TransactionDate", Value: []byte(`20240301123015`)},
			{Name: "PhoneNumber", Value: []byte(`254712345678`)},
		}},
	}
}

func TestReconcile_EndToEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Initiate(ctx, InitiateRequest{Phone: "254712345678", Amount: amount("500")})
	require.NoError(t, err)
	require.Equal(t, "ws_CO_1", res.CheckoutRequestID)

	outcome, err := f.svc.Reconcile(ctx, successCallback("ws_CO_1", "ABC123"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	rec, err := f.store.FindByCheckoutID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, db.StatusCompleted, rec.Status)
	require.NotNil(t, rec.MpesaReceiptNumber)
	assert.Equal(t, "ABC123", *rec.MpesaReceiptNumber)
	require.NotNil(t, rec.TransactionDate)
	firstUpdate := rec.UpdatedAt

	ev := f.notifier.next(t)
	assert.Equal(t, notify.EventCompleted, ev.Type)
	assert.Equal(t, int64(500), ev.Amount)
	assert.Equal(t, "ABC123", ev.ReceiptNumber)

	outcome, err = f.svc.Reconcile(ctx, successCallback("ws_CO_1", "ABC123"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyFinal, outcome)
	f.notifier.none(t)

	rec, err = f.store.FindByCheckoutID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, db.StatusCompleted, rec.Status)
	assert.True(t, firstUpdate.Equal(rec.UpdatedAt))
}

func TestReconcile_FailureThenLateSuccessIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Initiate(ctx, InitiateRequest{Phone: "254712345678", Amount: amount("20")})
	require.NoError(t, err)

	outcome, err := f.svc.Reconcile(ctx, mpesa.STKCallback{CheckoutRequestID: "ws_CO_1", ResultCode: 1032, ResultDesc: "Request cancelled by user"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, notify.EventFailed, f.notifier.next(t).Type)

	outcome, err = f.svc.Reconcile(ctx, successCallback("ws_CO_1", "LATE1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyFinal, outcome)

	rec, err := f.store.FindByCheckoutID(ctx, "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, db.StatusFailed, rec.Status)
	assert.Equal(t, "Request cancelled by user", rec.ResultDesc)
	assert.Nil(t, rec.MpesaReceiptNumber)
}

func TestReconcile_UnknownCheckoutID(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.svc.Reconcile(context.Background(), successCallback("ws_CO_missing", "X"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, outcome)
	assert.Equal(t, int64(0), f.count(t))
	f.notifier.none(t)
}

func TestReconcile_MissingCheckoutID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reconcile(context.Background(), mpesa.STKCallback{ResultCode: 0})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Initiate(context.Background(), InitiateRequest{Phone: "254712345678", Amount: amount("5")})
	require.NoError(t, err)

	rec, err := f.svc.Status(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.Amount)

	_, err = f.svc.Status(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}
