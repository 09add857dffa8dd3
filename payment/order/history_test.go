package order

import (
	"context"
	"fmt"
	"testing"

	"go-mpesa/mpesa"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, f *fixture, phone string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.svc.Initiate(context.Background(), InitiateRequest{Phone: phone, Amount: amount(fmt.Sprint(i + 1))})
		require.NoError(t, err)
	}
}

func TestHistory_Pagination(t *testing.T) {
	f := newFixture(t)
	seed(t, f, "254712345678", 25)
	seed(t, f, "254798765432", 3)

	tests := []struct {
		page    int
		wantLen int
	}{
		{1, 10},
		{2, 10},
		{3, 5},
		{4, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d", tt.page), func(t *testing.T) {
			p, err := f.svc.History(context.Background(), HistoryQuery{Phone: "0712345678", Page: tt.page, Limit: 10})
			require.NoError(t, err)
			assert.Len(t, p.Data, tt.wantLen)
			assert.Equal(t, int64(25), p.Total)
			assert.Equal(t, 3, p.TotalPages)
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, 10, p.Limit)
			for _, rec := range p.Data {
				assert.Equal(t, "254712345678", rec.Phone)
			}
		})
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	f := newFixture(t)
	seed(t, f, "254712345678", 3)

	p, err := f.svc.History(context.Background(), HistoryQuery{Phone: "254712345678"})
	require.NoError(t, err)
	require.Len(t, p.Data, 3)
	assert.Equal(t, DefaultPage, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
	for i := 1; i < len(p.Data); i++ {
		assert.False(t, p.Data[i].CreatedAt.After(p.Data[i-1].CreatedAt))
	}
}

func TestHistory_EmptyPhoneHistory(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.History(context.Background(), HistoryQuery{Phone: "254700000000"})
	require.NoError(t, err)
	assert.Empty(t, p.Data)
	assert.Equal(t, int64(0), p.Total)
	assert.Equal(t, 0, p.TotalPages)
}

func TestHistory_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		q    HistoryQuery
	}{
		{"bad phone", HistoryQuery{Phone: "12345"}},
		{"negative page", HistoryQuery{Phone: "254712345678", Page: -1}},
		{"limit too large", HistoryQuery{Phone: "254712345678", Limit: 500}},
		{"negative limit", HistoryQuery{Phone: "254712345678", Limit: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.History(context.Background(), tt.q)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestList_FiltersByStatus(t *testing.T) {
	f := newFixture(t)
	seed(t, f, "254712345678", 4)
	_, err := f.svc.Reconcile(context.Background(), mpesa.STKCallback{CheckoutRequestID: "ws_CO_2", ResultCode: 1, ResultDesc: "Insufficient funds"})
	require.NoError(t, err)

	all, err := f.svc.List(context.Background(), "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)

	failed, err := f.svc.List(context.Background(), "Failed", 1, 10)
	require.NoError(t, err)
	require.Len(t, failed.Data, 1)
	assert.Equal(t, "ws_CO_2", failed.Data[0].CheckoutRequestID)

	_, err = f.svc.List(context.Background(), "bogus", 1, 10)
	assert.ErrorIs(t, err, ErrValidation)
}
