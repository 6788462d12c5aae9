package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"remediation-engine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testCreds = domain.AccountingCredentials{AccessToken: "token-1", RealmID: "realm-9"}

func newTestAccountingServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testPayload() InvoicePayload {
	return ComposeInvoicePayload(
		domain.Customer{Name: "Dana Flores", Ref: "58"},
		time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		[]domain.InvoiceLineItem{{ItemID: "wtr-ext", Name: "Water Extraction", Quantity: 20, UnitPrice: 5, Amount: 100}},
	)
}

func TestComposeInvoicePayload(t *testing.T) {
	p := ComposeInvoicePayload(
		domain.Customer{Name: "Dana Flores", Ref: "58", Email: "dana@example.com"},
		time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC),
		[]domain.InvoiceLineItem{
			{ItemID: "a", Amount: 0.1, Quantity: 1, UnitPrice: 0.1, Description: "Kitchen - A"},
			{ItemID: "b", Amount: 0.2, Quantity: 1, UnitPrice: 0.2},
		},
	)
	assert.True(t, p.AutoDocNumber)
	assert.Equal(t, "58", p.CustomerRef.Value)
	assert.Equal(t, "USD", p.CurrencyRef.Value)
	assert.Equal(t, "2026-03-14", p.TxnDate)
	require.NotNil(t, p.BillEmail)
	assert.Equal(t, "dana@example.com", p.BillEmail.Address)
	assert.Equal(t, 0.3, p.TotalAmt)
	require.Len(t, p.Line, 2)
	assert.Equal(t, "SalesItemLineDetail", p.Line[0].DetailType)
	assert.Equal(t, "a", p.Line[0].SalesItemLineDetail.ItemRef.Value)

	noEmail := ComposeInvoicePayload(domain.Customer{Ref: "58"}, time.Now(), nil)
	assert.Nil(t, noEmail.BillEmail)
	assert.Empty(t, noEmail.Line)
}

func TestAccountingClient_SubmitSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/company/realm-9/invoice", r.URL.Path)
		assert.Equal(t, "75", r.URL.Query().Get("minorversion"))
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Invoice":{"Id":"145","DocNumber":"1037","SyncToken":"0","TotalAmt":100,"EmailStatus":"NotSet"}}`))
	}))
	defer srv.Close()

	client := NewAccountingClient(srv.URL, "75", 5*time.Second, zap.NewNop())
	inv, err := client.Submit(context.Background(), testPayload(), testCreds)
	require.NoError(t, err)
	assert.Equal(t, "145", inv.ID)
	assert.Equal(t, "1037", inv.DocNumber)
	assert.Equal(t, 100.0, inv.TotalAmt)
	assert.Equal(t, "NotSet", inv.EmailStatus)
}

// 400 + Fault: 返回第一条错误信息
func TestAccountingClient_SubmitRejected(t *testing.T) {
	srv := newTestAccountingServer(t, http.StatusBadRequest,
		`{"Fault":{"Error":[{"Message":"Duplicate Name Exists","Detail":"The name supplied already exists.","code":"6240"},{"Message":"second"}],"type":"ValidationFault"}}`)

	client := NewAccountingClient(srv.URL, "", 0, zap.NewNop())
	_, err := client.Submit(context.Background(), testPayload(), testCreds)
	require.ErrorIs(t, err, domain.ErrAPIRejection)

	var aerr *domain.AccountingError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "Duplicate Name Exists", aerr.Message)
	assert.Equal(t, http.StatusBadRequest, aerr.StatusCode)
}

func TestAccountingClient_FaultWithSuccessStatus(t *testing.T) {
	srv := newTestAccountingServer(t, http.StatusOK, `{"fault":{"error":[{"message":"Token expired"}]}}`)

	client := NewAccountingClient(srv.URL, "", 0, zap.NewNop())
	_, err := client.Submit(context.Background(), testPayload(), testCreds)
	var aerr *domain.AccountingError
	require.ErrorAs(t, err, &aerr)
	assert.ErrorIs(t, err, domain.ErrAPIRejection)
	assert.Equal(t, "Token expired", aerr.Message)
}

func TestAccountingClient_RejectedWithoutFaultBody(t *testing.T) {
	srv := newTestAccountingServer(t, http.StatusUnauthorized, `{}`)

	client := NewAccountingClient(srv.URL, "", 0, zap.NewNop())
	_, err := client.Submit(context.Background(), testPayload(), testCreds)
	var aerr *domain.AccountingError
	require.ErrorAs(t, err, &aerr)
	assert.ErrorIs(t, err, domain.ErrAPIRejection)
	assert.Equal(t, "HTTP 401 Unauthorized", aerr.Message)
}

func TestAccountingClient_MalformedResponses(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"not json":        {http.StatusOK, `<html>gateway</html>`},
		"empty body":      {http.StatusOK, ``},
		"no invoice":      {http.StatusOK, `{"time":"2026-03-14T09:30:00Z"}`},
		"invoice no id":   {http.StatusOK, `{"Invoice":{"DocNumber":"1037"}}`},
		"invoice not obj": {http.StatusOK, `{"Invoice":"145"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newTestAccountingServer(t, tc.status, tc.body)
			client := NewAccountingClient(srv.URL, "", 0, zap.NewNop())
			_, err := client.Submit(context.Background(), testPayload(), testCreds)
			assert.ErrorIs(t, err, domain.ErrMalformedResponse)
		})
	}
}

func TestAccountingClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewAccountingClient(url, "", time.Second, zap.NewNop())
	_, err := client.Submit(context.Background(), testPayload(), testCreds)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestAccountingClient_SendEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/realm-9/invoice/145/send", r.URL.Path)
		assert.Equal(t, "dana@example.com", r.URL.Query().Get("sendTo"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Invoice":{"Id":"145","EmailStatus":"EmailSent"}}`))
	}))
	defer srv.Close()

	client := NewAccountingClient(srv.URL, "", 0, zap.NewNop())
	inv, err := client.SendEmail(context.Background(), "145", "dana@example.com", testCreds)
	require.NoError(t, err)
	assert.Equal(t, "EmailSent", inv.EmailStatus)

	_, err = client.SendEmail(context.Background(), "145", "", domain.AccountingCredentials{})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)

	_, err = client.SendEmail(context.Background(), "", "", testCreds)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}
