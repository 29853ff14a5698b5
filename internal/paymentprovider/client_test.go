package paymentprovider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateCustomer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/customers", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body CreateCustomerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@example.com", body.Email)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"cus_1","email":"ana@example.com"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test")
	got, err := c.CreateCustomer(context.Background(), CreateCustomerRequest{Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "cus_1", got.ID)
}

func TestClient_CreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/sessions", r.URL.Path)
		var body CheckoutSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "price_1", body.PriceID)
		assert.Equal(t, "uid-1", body.ClientReferenceID)
		_, _ = w.Write([]byte(`{"id":"cs_1","url":"https://pay.example.com/cs_1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test")
	got, err := c.CreateCheckoutSession(context.Background(), CheckoutSessionRequest{
		CustomerID: "cus_1", PriceID: "price_1", ClientReferenceID: "uid-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/cs_1", got.URL)
}

func TestClient_CancelSubscription(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantStatus string
	}{
		{
			name:       "canceled at period end",
			status:     http.StatusOK,
			body:       `{"id":"sub_1","status":"active","cancel_at_period_end":true}`,
			wantStatus: "active",
		},
		{
			name:    "provider error",
			status:  http.StatusNotFound,
			body:    `{"code":"resource_missing","message":"no such subscription"}`,
			wantErr: true,
		},
		{
			name:    "non json error",
			status:  http.StatusBadGateway,
			body:    `upstream down`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/subscriptions/sub_1/cancel", r.URL.Path)
				var body CancelSubscriptionRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.True(t, body.AtPeriodEnd)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "sk_test")
			got, err := c.CancelSubscription(context.Background(), "sub_1", true)
			if tt.wantErr {
				var apiErr *APIError
				require.True(t, errors.As(err, &apiErr))
				assert.Equal(t, tt.status, apiErr.StatusCode)
				assert.NotEmpty(t, apiErr.Message)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.True(t, got.CancelAtPeriodEnd)
		})
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL, "k").CreateCustomer(ctx, CreateCustomerRequest{Email: "a@b.c"})
	assert.ErrorIs(t, err, context.Canceled)
}
