package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rzpsarthak13/smartsync/pkg/smartsync"
)

func newTestClient(t *testing.T) smartsync.Client {
	t.Helper()
	ctx := context.Background()

	config := smartsync.DefaultConfig()
	config.Database.Path = ":memory:"
	config.Remote.RequestsPerSecond = 0
	config.Events.Type = "memory"

	rem := smartsync.NewMemoryRemote()
	if err := seedContacts(ctx, rem); err != nil {
		t.Fatalf("seedContacts() failed: %v", err)
	}
	client, err := smartsync.NewClient(ctx, config, smartsync.WithRemoteService(rem))
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer((&server{client: newTestClient(t)}).routes())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestServerSyncFlow(t *testing.T) {
	ts := newTestServer(t)

	if code := call(t, ts, http.MethodGet, "/health", nil, nil); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}

	soup := registerSoupRequest{Name: "Contacts", Indexes: []smartsync.IndexSpec{
		smartsync.NewIndexSpec("Id", smartsync.IndexString),
		smartsync.NewIndexSpec("LastName", smartsync.IndexString),
		smartsync.NewIndexSpec("__local__", smartsync.IndexString),
	}}
	if code := call(t, ts, http.MethodPost, "/soups", soup, nil); code != http.StatusCreated {
		t.Fatalf("register soup = %d", code)
	}

	var down smartsync.SyncState
	code := call(t, ts, http.MethodPost, "/syncs/down", syncRequest{
		Target:   smartsync.NewSOQLTarget("SELECT Id, FirstName, LastName, SystemModstamp FROM Contact"),
		SoupName: "Contacts",
	}, &down)
	if code != http.StatusOK || down.Status != "DONE" || down.TotalSize != 3 {
		t.Fatalf("sync down = %d, %+v", code, down)
	}

	var page struct {
		TotalSize int64                    `json:"totalSize"`
		Entries   []map[string]interface{} `json:"entries"`
	}
	if code := call(t, ts, http.MethodGet, "/soups/Contacts/entries?pageSize=2", nil, &page); code != http.StatusOK {
		t.Fatalf("list entries = %d", code)
	}
	if page.TotalSize != 3 || len(page.Entries) != 2 {
		t.Errorf("page = %d total, %d entries", page.TotalSize, len(page.Entries))
	}

	record := map[string]interface{}{"FirstName": "Katherine", "LastName": "Johnson"}
	if code := call(t, ts, http.MethodPost, "/soups/Contacts/entries?mark=created&type=Contact", record, nil); code != http.StatusOK {
		t.Fatalf("upsert = %d", code)
	}

	var up smartsync.SyncState
	code = call(t, ts, http.MethodPost, "/syncs/up", syncRequest{
		Options:  smartsync.NewOptions([]string{"FirstName", "LastName"}, ""),
		SoupName: "Contacts",
	}, &up)
	if code != http.StatusOK || up.Status != "DONE" || up.TotalSize != 1 {
		t.Fatalf("sync up = %d, %+v", code, up)
	}

	var resynced smartsync.SyncState
	if code := call(t, ts, http.MethodPost, fmt.Sprintf("/syncs/%d/resync", down.ID), nil, &resynced); code != http.StatusOK {
		t.Fatalf("resync = %d", code)
	}
	if resynced.TotalSize != 1 {
		t.Errorf("resync fetched %d records, want the one created by sync up", resynced.TotalSize)
	}

	if code := call(t, ts, http.MethodPost, fmt.Sprintf("/syncs/%d/resync", up.ID), nil, nil); code != http.StatusBadRequest {
		t.Errorf("resync of a sync up = %d, want 400", code)
	}

	var status smartsync.SyncState
	if code := call(t, ts, http.MethodGet, fmt.Sprintf("/syncs/%d", down.ID), nil, &status); code != http.StatusOK || status.Status != "DONE" {
		t.Errorf("status = %d, %+v", code, status)
	}

	var events []smartsync.SyncEvent
	if code := call(t, ts, http.MethodGet, "/events", nil, &events); code != http.StatusOK || len(events) == 0 {
		t.Errorf("events = %d, %d events", code, len(events))
	}
}

func TestServerErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		method string
		path   string
		body   interface{}
		want   int
	}{
		{http.MethodGet, "/soups/missing/entries", nil, http.StatusNotFound},
		{http.MethodGet, "/syncs/abc", nil, http.StatusBadRequest},
		{http.MethodGet, "/syncs/404", nil, http.StatusNotFound},
		{http.MethodPost, "/soups/missing/entries?mark=sideways", map[string]interface{}{}, http.StatusBadRequest},
		{http.MethodPost, "/syncs/up", syncRequest{SoupName: "x"}, http.StatusBadRequest},
		{http.MethodPost, "/syncs/down", syncRequest{SoupName: "x"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if got := call(t, ts, tt.method, tt.path, tt.body, nil); got != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestSyncDownOutlivesCancelledRequest(t *testing.T) {
	client := newTestClient(t)
	if err := client.Store().RegisterSoup(context.Background(), "Contacts", []smartsync.IndexSpec{
		smartsync.NewIndexSpec("Id", smartsync.IndexString),
	}); err != nil {
		t.Fatalf("RegisterSoup() failed: %v", err)
	}
	handler := (&server{client: client}).routes()

	var body bytes.Buffer
	json.NewEncoder(&body).Encode(syncRequest{
		Target:   smartsync.NewSOQLTarget("SELECT Id, LastName FROM Contact"),
		SoupName: "Contacts",
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/syncs/down", &body).WithContext(ctx)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("sync down = %d: %s", rec.Code, rec.Body.String())
	}
	var state smartsync.SyncState
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Status != "DONE" || state.TotalSize != 3 {
		t.Errorf("state = %+v, want DONE with 3 records", state)
	}
}
