package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rzpsarthak13/smartsync/internal/core"
	"github.com/rzpsarthak13/smartsync/internal/registry"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, pageSize int) *Service {
	t.Helper()
	return NewMemory(WithPageSize(pageSize), WithClock(func() time.Time { return baseTime }))
}

func seed(t *testing.T, s *Service, objectType string, records ...map[string]interface{}) []string {
	t.Helper()
	ids := make([]string, 0, len(records))
	for _, r := range records {
		id, err := s.Put(context.Background(), objectType, r)
		if err != nil {
			t.Fatalf("Put() failed: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestTimestampRoundTrip(t *testing.T) {
	ms := baseTime.UnixMilli() + 123
	s := FormatTimestamp(ms)
	if s != "2024-03-01T12:00:00.123Z" {
		t.Fatalf("FormatTimestamp() = %q", s)
	}
	got, err := ParseTimestamp(s)
	if err != nil || got != ms {
		t.Fatalf("ParseTimestamp(%q) = %d, %v; want %d", s, got, err, ms)
	}
	if got, err := ParseTimestamp("2024-03-01T12:00:00.123+0000"); err != nil || got != ms {
		t.Errorf("ParseTimestamp(+0000) = %d, %v", got, err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("ParseTimestamp(yesterday) should fail")
	}
}

func TestParseSelect(t *testing.T) {
	tests := []struct {
		query      string
		objectType string
		fields     int
		conditions int
		limit      int
		wantErr    bool
	}{
		{"SELECT Id, Name FROM Contact", "Contact", 2, 0, 0, false},
		{"select Id from Account where Name = 'Acme' limit 5", "Account", 1, 1, 5, false},
		{"SELECT Id FROM Contact WHERE SystemModstamp > 2024-03-01T12:00:00.000Z and Name != null", "Contact", 1, 2, 0, false},
		{"SELECT Id FROM Contact WHERE Id IN ('a', 'b') ORDER BY Name", "Contact", 1, 1, 0, false},
		{"DELETE FROM Contact", "", 0, 0, 0, true},
		{"SELECT Id FROM Contact WHERE Name LIKE 'x'", "", 0, 0, 0, true},
	}
	for _, tt := range tests {
		q, err := parseSelect(tt.query)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSelect(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if q.objectType != tt.objectType || len(q.fields) != tt.fields || len(q.conditions) != tt.conditions || q.limit != tt.limit {
			t.Errorf("parseSelect(%q) = %+v", tt.query, q)
		}
	}
}

func TestQueryPagesThroughCursor(t *testing.T) {
	s := newTestService(t, 2)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		seed(t, s, "Contact", map[string]interface{}{"Name": fmt.Sprintf("c%d", i)})
	}

	resp, err := s.Send(ctx, &core.RemoteRequest{Kind: core.RequestQuery, Query: "SELECT Id, Name FROM Contact"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if resp.TotalSize != 5 || len(resp.Records) != 2 || resp.NextRecordsURL == "" {
		t.Fatalf("first page = %d records, total %d, next %q", len(resp.Records), resp.TotalSize, resp.NextRecordsURL)
	}

	seen := len(resp.Records)
	for resp.NextRecordsURL != "" {
		resp, err = s.Send(ctx, &core.RemoteRequest{Kind: core.RequestQueryMore, NextRecordsURL: resp.NextRecordsURL})
		if err != nil {
			t.Fatalf("queryMore failed: %v", err)
		}
		seen += len(resp.Records)
	}
	if seen != 5 {
		t.Errorf("records across pages = %d, want 5", seen)
	}
	if got := s.RequestCount(core.RequestQueryMore); got != 2 {
		t.Errorf("queryMore calls = %d, want 2", got)
	}

	first := resp.Records[0]
	if _, ok := first[FieldID]; !ok {
		t.Error("records should carry Id")
	}
	if attrs, ok := first[FieldAttributes].(map[string]interface{}); !ok || attrs[FieldType] != "Contact" {
		t.Errorf("attributes = %v", first[FieldAttributes])
	}
}

func TestQueryFilters(t *testing.T) {
	s := newTestService(t, 100)
	ctx := context.Background()
	ids := seed(t, s, "Contact",
		map[string]interface{}{"Name": "Ann", "Age": 30.0},
		map[string]interface{}{"Name": "Bob", "Age": 40.0},
		map[string]interface{}{"Name": "Cid", "Age": 50.0},
	)
	seed(t, s, "Account", map[string]interface{}{"Name": "Ann"})

	first, _ := s.Object(ctx, "Contact", ids[0])
	tests := []struct {
		query string
		want  int
	}{
		{"SELECT Id FROM Contact", 3},
		{"SELECT Id FROM Contact WHERE Name = 'Ann'", 1},
		{"SELECT Id FROM Contact WHERE Age >= 40", 2},
		{"SELECT Id FROM Contact WHERE Age > 30 AND Name != 'Cid'", 1},
		{fmt.Sprintf("SELECT Id FROM Contact WHERE Id IN ('%s', '%s')", ids[0], ids[2]), 2},
		{fmt.Sprintf("SELECT Id FROM Contact WHERE SystemModstamp > %s", FormatTimestamp(first.Modstamp)), 2},
		{"SELECT Id FROM Contact WHERE Missing = null", 3},
		{"SELECT Id FROM Contact LIMIT 1", 1},
	}
	for _, tt := range tests {
		resp, err := s.Send(ctx, &core.RemoteRequest{Kind: core.RequestQuery, Query: tt.query})
		if err != nil {
			t.Errorf("%s: %v", tt.query, err)
			continue
		}
		if len(resp.Records) != tt.want || resp.TotalSize != tt.want {
			t.Errorf("%s: got %d records (total %d), want %d", tt.query, len(resp.Records), resp.TotalSize, tt.want)
		}
	}
}

func TestMalformedQueryIsBadRequest(t *testing.T) {
	s := newTestService(t, 10)
	_, err := s.Send(context.Background(), &core.RemoteRequest{Kind: core.RequestQuery, Query: "nonsense"})
	var remoteErr *core.RemoteError
	if !errors.As(err, &remoteErr) || remoteErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("Send() error = %v, want 400", err)
	}
}

func TestCreateRetrieveUpdateDelete(t *testing.T) {
	s := newTestService(t, 10)
	ctx := context.Background()

	created, err := s.Send(ctx, &core.RemoteRequest{
		Kind:       core.RequestCreate,
		ObjectType: "Contact",
		Fields:     map[string]interface{}{"Name": "Ann", "Id": "ignored"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == "" || created.ID == "ignored" {
		t.Fatalf("create returned id %q", created.ID)
	}
	before, _ := s.Object(ctx, "Contact", created.ID)

	if _, err := s.Send(ctx, &core.RemoteRequest{
		Kind: core.RequestUpdate, ObjectType: "Contact", ObjectID: created.ID,
		Fields: map[string]interface{}{"Name": "Anne"},
	}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := s.Send(ctx, &core.RemoteRequest{
		Kind: core.RequestRetrieve, ObjectType: "Contact", ObjectID: created.ID,
		FieldList: []string{FieldLastModifiedDate, "Name"},
	})
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if got.Record["Name"] != "Anne" {
		t.Errorf("Name = %v, want Anne", got.Record["Name"])
	}
	lastMod, err := ParseTimestamp(got.Record[FieldLastModifiedDate].(string))
	if err != nil || lastMod <= before.LastModified {
		t.Errorf("LastModifiedDate = %d, want > %d", lastMod, before.LastModified)
	}

	if _, err := s.Send(ctx, &core.RemoteRequest{Kind: core.RequestDelete, ObjectType: "Contact", ObjectID: created.ID}); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, err = s.Send(ctx, &core.RemoteRequest{Kind: core.RequestDelete, ObjectType: "Contact", ObjectID: created.ID})
	var remoteErr *core.RemoteError
	if !errors.As(err, &remoteErr) || remoteErr.StatusCode != http.StatusNotFound {
		t.Errorf("second delete error = %v, want 404", err)
	}
	_, err = s.Send(ctx, &core.RemoteRequest{Kind: core.RequestUpdate, ObjectType: "Contact", ObjectID: created.ID})
	if !errors.As(err, &remoteErr) || remoteErr.StatusCode != http.StatusNotFound {
		t.Errorf("update of deleted error = %v, want 404", err)
	}
}

func TestSearchAndRecentItems(t *testing.T) {
	s := newTestService(t, 10)
	ctx := context.Background()
	contacts := seed(t, s, "Contact",
		map[string]interface{}{"Name": "Alice Smith"},
		map[string]interface{}{"Name": "Bob Jones"},
	)
	seed(t, s, "Account", map[string]interface{}{"Name": "Smithson Ltd"})

	resp, err := s.Send(ctx, &core.RemoteRequest{Kind: core.RequestSearch, Query: "FIND {smith} IN ALL FIELDS"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Errorf("search all types = %d records, want 2", len(resp.Records))
	}

	resp, err = s.Send(ctx, &core.RemoteRequest{Kind: core.RequestSearch, Query: "FIND {smith} RETURNING Contact(Id, Name)"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(resp.Records) != 1 || resp.Records[0]["Name"] != "Alice Smith" {
		t.Errorf("search Contact = %v", resp.Records)
	}

	resp, err = s.Send(ctx, &core.RemoteRequest{Kind: core.RequestRecentItems, ObjectType: "Contact"})
	if err != nil {
		t.Fatalf("recentItems failed: %v", err)
	}
	if len(resp.RecentIDs) != 2 || resp.RecentIDs[0] != contacts[1] {
		t.Errorf("RecentIDs = %v, want most recent %s first", resp.RecentIDs, contacts[1])
	}
}

func TestFailNextAndClose(t *testing.T) {
	s := newTestService(t, 10)
	ctx := context.Background()
	s.FailNext(core.RequestQuery, http.StatusServiceUnavailable, "maintenance")

	req := &core.RemoteRequest{Kind: core.RequestQuery, Query: "SELECT Id FROM Contact"}
	var remoteErr *core.RemoteError
	if _, err := s.Send(ctx, req); !errors.As(err, &remoteErr) || remoteErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("first Send() error = %v, want 503", err)
	}
	if _, err := s.Send(ctx, req); err != nil {
		t.Fatalf("second Send() should succeed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if _, err := s.Send(ctx, req); err == nil {
		t.Error("Send() after Close should fail")
	}
}

func TestRateLimitedClient(t *testing.T) {
	s := newTestService(t, 10)
	c := NewRateLimitedClient(s, 0.001, 1, time.Second)
	req := &core.RemoteRequest{Kind: core.RequestQuery, Query: "SELECT Id FROM Contact"}

	if _, err := c.Send(context.Background(), req); err != nil {
		t.Fatalf("first Send() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Send(ctx, req); err == nil {
		t.Fatal("second Send() should fail waiting for a token")
	}
	if got := s.RequestCount(core.RequestQuery); got != 1 {
		t.Errorf("forwarded requests = %d, want 1", got)
	}
	if c.Unwrap() != core.RemoteClient(s) {
		t.Error("Unwrap() should return the wrapped client")
	}

	unlimited := NewRateLimitedClient(s, 0, 0, 0)
	for i := 0; i < 5; i++ {
		if _, err := unlimited.Send(context.Background(), req); err != nil {
			t.Fatalf("unlimited Send() failed: %v", err)
		}
	}
}

func TestFactoryCreatesMemoryRemote(t *testing.T) {
	config := registry.DefaultInternalConfig()
	client, err := Create(config)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	defer client.Close()

	limited, ok := client.(*RateLimitedClient)
	if !ok {
		t.Fatalf("Create() returned %T, want *RateLimitedClient", client)
	}
	if _, ok := limited.Unwrap().(*Service); !ok {
		t.Errorf("wrapped client is %T, want *Service", limited.Unwrap())
	}

	config.Remote.Type = "carrier-pigeon"
	if _, err := Create(config); err == nil {
		t.Error("Create() with unknown type should fail")
	}

	types := GetRegisteredTypes()
	if len(types) != 2 || types[0] != "dynamodb" || types[1] != "memory" {
		t.Errorf("GetRegisteredTypes() = %v", types)
	}
}

func TestDynamoDBConfigValidator(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*registry.InternalDynamoDBConfig)
		wantErr bool
	}{
		{"valid", func(c *registry.InternalDynamoDBConfig) {}, false},
		{"missing region", func(c *registry.InternalDynamoDBConfig) { c.Region = "" }, true},
		{"missing table", func(c *registry.InternalDynamoDBConfig) { c.TableName = "" }, true},
		{"half credentials", func(c *registry.InternalDynamoDBConfig) { c.AccessKeyID = "AKIA" }, true},
		{"full credentials", func(c *registry.InternalDynamoDBConfig) { c.AccessKeyID = "AKIA"; c.SecretAccessKey = "s" }, false},
	}
	for _, tt := range tests {
		config := registry.DefaultInternalConfig()
		config.Remote.Type = "dynamodb"
		config.Remote.DynamoDBConfig = registry.InternalDynamoDBConfig{Region: "us-east-1", TableName: "remote"}
		tt.mutate(&config.Remote.DynamoDBConfig)

		err := (&DynamoDBConfigValidator{}).Validate(config)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestDynamoItemConversion(t *testing.T) {
	obj := &Object{Type: "Contact", ID: "003A", Fields: map[string]interface{}{"Name": "Ann"}, Modstamp: 5, LastModified: 4}
	item := toItem(obj)
	if item.PK != "Contact#003A" {
		t.Errorf("PK = %q", item.PK)
	}
	back := item.object()
	if back.Type != obj.Type || back.ID != obj.ID || back.Modstamp != 5 || back.LastModified != 4 || back.Fields["Name"] != "Ann" {
		t.Errorf("object() = %+v", back)
	}
	if (&dynamoItem{ObjectType: "X", ID: "1"}).object().Fields == nil {
		t.Error("object() should never return nil fields")
	}
}
