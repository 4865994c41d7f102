package arcgis

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(slog.New(slog.DiscardHandler), srv.Client(), ClientConfig{
		BaseURL:   srv.URL,
		Referer:   "https://catastro.crimpr.net/cdprpc/",
		UserAgent: "test-agent",
		Cookie:    "session=abc",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFetchPage_DecodesAttributes(t *testing.T) {
	var gotReq *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(r.Context())
		_, _ = w.Write([]byte(`{"features":[
			{"attributes":{"OBJECTID":1,"MUNICIPIO":"SAN JUAN"}},
			{"attributes":{"OBJECTID":2,"MUNICIPIO":"SAN JUAN"}}
		]}`))
	})

	desc := BuildParcelQuery("042-000-001-01")
	page, err := c.FetchPage(context.Background(), desc, 0, 100)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(page.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(page.Features))
	}
	if id, _ := page.Features[0].ObjectID(); id != 1 {
		t.Fatalf("first OBJECTID = %d", id)
	}

	if gotReq.URL.Path != "/proxy/proxy.ashx" {
		t.Fatalf("request path = %q, want proxy endpoint", gotReq.URL.Path)
	}
	if !strings.Contains(gotReq.URL.RawQuery, "resultOffset=0") {
		t.Fatalf("pagination missing from query: %q", gotReq.URL.RawQuery)
	}
	if gotReq.Header.Get("Referer") == "" || gotReq.Header.Get("Cookie") != "session=abc" {
		t.Fatalf("session headers not forwarded: %v", gotReq.Header)
	}
}

func TestFetchPage_SurfacesBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid geometry"}}`))
	})

	_, err := c.FetchPage(context.Background(), Descriptor{SpatialRel: spatialRelIntersect, OutSR: outSRWebMercator}, 0, 100)
	if err == nil || !strings.Contains(err.Error(), "Invalid geometry") {
		t.Fatalf("want backend error message surfaced, got %v", err)
	}
}

func TestFetchPage_NonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	_, err := c.FetchPage(context.Background(), Descriptor{}, 0, 100)
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("want status error, got %v", err)
	}
}

func TestFetchPage_MissingFeatureList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"something":"else"}`))
	})

	_, err := c.FetchPage(context.Background(), Descriptor{}, 0, 100)
	if err == nil || !strings.Contains(err.Error(), "missing feature list") {
		t.Fatalf("want missing-feature error, got %v", err)
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(slog.New(slog.DiscardHandler), http.DefaultClient, ClientConfig{})
	if err == nil {
		t.Fatalf("want error for empty base URL")
	}
}
