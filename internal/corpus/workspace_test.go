package corpus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWorkspaceClient_ListAll(t *testing.T) {
	var requests []listRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pages/list" {
			t.Errorf("path = %s, want /pages/list", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret-token" {
			t.Errorf("Authorization = %q", got)
		}

		var req listRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		requests = append(requests, req)

		// First page points at a cursor, second is the last.
		resp := listResponse{
			Results:    []pageResult{{ID: "page-1", Title: "First", Text: "alpha"}},
			HasMore:    true,
			NextCursor: "cursor-2",
		}
		if req.StartCursor == "cursor-2" {
			resp = listResponse{
				Results: []pageResult{{ID: "page-2", Title: "Second", Text: "beta"}},
				HasMore: false,
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewWorkspaceClient(server.URL, "secret-token")
	docs, err := client.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].ID != "page-1" || docs[0].Title != "First" || docs[0].Text != "alpha" {
		t.Errorf("first doc = %+v", docs[0])
	}
	if docs[1].ID != "page-2" {
		t.Errorf("second doc = %+v", docs[1])
	}

	if len(requests) != 2 {
		t.Fatalf("server saw %d requests, want 2", len(requests))
	}
	if requests[0].StartCursor != "" {
		t.Errorf("first request cursor = %q, want empty", requests[0].StartCursor)
	}
	if requests[1].StartCursor != "cursor-2" {
		t.Errorf("second request cursor = %q, want cursor-2", requests[1].StartCursor)
	}
	if requests[0].PageSize != pageSize {
		t.Errorf("page size = %d, want %d", requests[0].PageSize, pageSize)
	}
}

func TestWorkspaceClient_ListAll_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(listResponse{})
	}))
	defer server.Close()

	docs, err := NewWorkspaceClient(server.URL, "t").ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("got %d documents, want 0", len(docs))
	}
}

func TestWorkspaceClient_ListAll_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	if _, err := NewWorkspaceClient(server.URL, "t").ListAll(context.Background()); err == nil {
		t.Fatal("ListAll() error = nil, want status error")
	}
}

func TestWorkspaceClient_ListAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewWorkspaceClient("http://127.0.0.1:0", "t").ListAll(ctx); err == nil {
		t.Fatal("ListAll() error = nil, want cancellation")
	}
}
