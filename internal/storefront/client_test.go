package storefront_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonesrussell/dealwatch/internal/storefront"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *storefront.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return storefront.NewClient(server.URL, "US", 5*time.Second)
}

func TestClient_AppDetails_PricedEntry(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("appids"); got != "440" {
			t.Errorf("appids query = %q, want %q", got, "440")
		}
		if got := r.URL.Query().Get("cc"); got != "US" {
			t.Errorf("cc query = %q, want %q", got, "US")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"440": {"success": true, "data": {
			"name": "Team Fortress 2",
			"price_overview": {"initial": 16994, "discount_percent": 30},
			"developers": ["Valve"],
			"screenshots": [{"path": "https://cdn.example/s1.jpg"}]
		}}}`))
	})

	details, err := client.AppDetails(context.Background(), 440, storefront.FiltersPricing)
	if err != nil {
		t.Fatalf("AppDetails() error = %v", err)
	}

	if !details.Available {
		t.Error("Available = false, want true")
	}
	if details.Price == nil {
		t.Fatal("Price is nil, want populated")
	}
	if details.Price.Initial != 16994 {
		t.Errorf("Price.Initial = %d, want 16994", details.Price.Initial)
	}
	if details.Price.DiscountPercent != 30 {
		t.Errorf("Price.DiscountPercent = %d, want 30", details.Price.DiscountPercent)
	}
	if details.Name != "Team Fortress 2" {
		t.Errorf("Name = %q, want %q", details.Name, "Team Fortress 2")
	}
	if len(details.Screenshots) != 1 || details.Screenshots[0] != "https://cdn.example/s1.jpg" {
		t.Errorf("Screenshots = %v, want one cdn path", details.Screenshots)
	}
}

func TestClient_AppDetails_UnavailableEntry(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"99": {"success": false}}`))
	})

	details, err := client.AppDetails(context.Background(), 99, storefront.FiltersPricing)
	if err != nil {
		t.Fatalf("AppDetails() error = %v", err)
	}
	if details.Available {
		t.Error("Available = true for a failed lookup, want false")
	}
}

func TestClient_AppDetails_RateExhaustion(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "null body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`null`))
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(``))
			},
		},
		{
			name: "http 429",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.handler)

			_, err := client.AppDetails(context.Background(), 10, storefront.FiltersPricing)
			if !errors.Is(err, storefront.ErrRateLimited) {
				t.Errorf("AppDetails() error = %v, want ErrRateLimited", err)
			}
		})
	}
}

func TestClient_AppDetails_MalformedBody(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>maintenance</html>`},
		{name: "missing identifier key", body: `{"999": {"success": true, "data": {}}}`},
		{name: "success without data", body: `{"10": {"success": true}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tc.body))
			})

			_, err := client.AppDetails(context.Background(), 10, storefront.FiltersPricing)
			if !errors.Is(err, storefront.ErrMalformed) {
				t.Errorf("AppDetails() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestClient_AppDetails_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.AppDetails(context.Background(), 10, storefront.FiltersPricing)
	if err == nil {
		t.Fatal("AppDetails() error = nil, want HTTP error")
	}
	if errors.Is(err, storefront.ErrRateLimited) || errors.Is(err, storefront.ErrMalformed) {
		t.Errorf("AppDetails() error = %v, want plain transport error", err)
	}
}
