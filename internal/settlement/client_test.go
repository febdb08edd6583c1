package settlement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transfers/tx-abc/status" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"executed": true,
			"fulfilled": true,
			"recipient": "0x1111111111111111111111111111111111111111",
			"amount_in": "5000000",
			"amount_out": "4900000",
			"requested_at": "2026-08-01T12:00:00Z"
		}`)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	status, err := client.Status(context.Background(), "tx-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !status.Executed || !status.Fulfilled {
		t.Errorf("expected executed and fulfilled, got %+v", status)
	}
	if status.Recipient != "0x1111111111111111111111111111111111111111" {
		t.Errorf("unexpected recipient: %s", status.Recipient)
	}
	if status.AmountIn.String() != "5000000" {
		t.Errorf("unexpected amount_in: %s", status.AmountIn)
	}
	if status.AmountOut.String() != "4900000" {
		t.Errorf("unexpected amount_out: %s", status.AmountOut)
	}
	if status.RequestedAt.IsZero() {
		t.Error("requested_at should be parsed")
	}
}

func TestClientStatusTransientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "transfer not indexed yet",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "not json")
			},
		},
		{
			name: "invalid amount",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"executed": true, "amount_in": "not-a-number"}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client, err := NewClient(server.URL)
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			_, err = client.Status(context.Background(), "tx-1")
			var qErr *QueryError
			if !errors.As(err, &qErr) {
				t.Fatalf("expected *QueryError, got %v", err)
			}
		})
	}
}

func TestClientStatusUnreachableEndpoint(t *testing.T) {
	client, err := NewClient("http://127.0.0.1:1")
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = client.Status(context.Background(), "tx-1")
	var qErr *QueryError
	if !errors.As(err, &qErr) {
		t.Fatalf("expected *QueryError for network failure, got %v", err)
	}
}

func TestClientStatusEmptyRef(t *testing.T) {
	client, err := NewClient("http://localhost:9999")
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = client.Status(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for empty transfer ref")
	}
	var qErr *QueryError
	if errors.As(err, &qErr) {
		t.Error("empty ref is a caller bug, not a transient query failure")
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(""); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
