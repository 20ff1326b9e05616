package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPesepayClientInitiateAndCheck(t *testing.T) {
	var got pesepayPayment
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key-123", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/payments/make-payment":
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(map[string]string{
				"referenceNumber":   "PSP-1",
				"pollUrl":           "http://" + r.Host + "/poll/PSP-1",
				"transactionStatus": "PENDING",
			})
		case "/poll/PSP-1":
			_ = json.NewEncoder(w).Encode(map[string]string{"transactionStatus": "SUCCESS"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewPesepayClient(srv.URL+"/", "key-123", "http://api/payments/webhook", "http://app/wallet", time.Second)
	res, err := c.Initiate(context.Background(), InitiateRequest{
		Reference: "intent-1",
		Amount:    decimal.RequireFromString("5.00"),
		Currency:  "USD",
		Method:    "ecocash",
		Phone:     "0771234567",
		Reason:    "tokens",
	})
	require.NoError(t, err)
	require.Equal(t, "PSP-1", res.Reference)
	require.Equal(t, "PENDING", res.Status)

	require.Equal(t, "ECOCASH", got.PaymentMethodCode)
	require.Equal(t, "intent-1", got.MerchantReference)
	require.Equal(t, "0771234567", got.Customer.PhoneNumber)
	require.True(t, decimal.RequireFromString("5").Equal(got.AmountDetails.Amount))

	status, err := c.Check(context.Background(), res.PollURL)
	require.NoError(t, err)
	require.Equal(t, "SUCCESS", status)
}

func TestPesepayClientSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewPesepayClient(srv.URL, "bad", "", "", time.Second)
	_, err := c.Check(context.Background(), srv.URL+"/poll/x")
	require.ErrorContains(t, err, "401")
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"referenceNumber":"PSP-1","transactionStatus":"SUCCESS"}`)
	sig := Sign("secret", body)

	require.True(t, VerifySignature("secret", body, sig))
	require.True(t, VerifySignature("secret", body, " "+sig+" "))
	require.False(t, VerifySignature("secret", body, "deadbeef"))
	require.False(t, VerifySignature("other", body, sig))
	require.False(t, VerifySignature("", body, ""), "empty key verifies nothing")
	require.False(t, VerifySignature("", body, Sign("", body)))
}
