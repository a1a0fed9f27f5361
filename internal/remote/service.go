package remote

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rzpsarthak13/smartsync/internal/core"
)

// DefaultPageSize is the number of records returned per query page.
const DefaultPageSize = 2000

// MaxRecentItems caps a recentItems response.
const MaxRecentItems = 200

const queryMorePrefix = "/services/data/query/"

// Service answers remote requests from a Backend. It implements core.RemoteClient.
type Service struct {
	tag      string
	backend  Backend
	now      func() time.Time
	pageSize int

	mu         sync.Mutex
	cursors    map[string][]map[string]interface{}
	lastStamp  int64
	counts     map[core.RequestKind]int
	failures   map[core.RequestKind]*core.RemoteError
	nextCursor int64
	closed     bool
}

// Option configures a Service.
type Option func(*Service)

// WithPageSize sets the number of records per query page.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithClock replaces the clock used to stamp writes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func newService(tag string, backend Backend, opts ...Option) *Service {
	s := &Service{
		tag:      tag,
		backend:  backend,
		now:      time.Now,
		pageSize: DefaultPageSize,
		cursors:  make(map[string][]map[string]interface{}),
		counts:   make(map[core.RequestKind]int),
		failures: make(map[core.RequestKind]*core.RemoteError),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ core.RemoteClient = (*Service)(nil)

// Send executes one request against the backend.
func (s *Service) Send(ctx context.Context, request *core.RemoteRequest) (*core.RemoteResponse, error) {
	if request == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("remote client is closed")
	}
	s.counts[request.Kind]++
	if failure, ok := s.failures[request.Kind]; ok {
		delete(s.failures, request.Kind)
		s.mu.Unlock()
		log.Printf("[%s] Injected failure for %s: %d", s.tag, request.Kind, failure.StatusCode)
		return nil, failure
	}
	s.mu.Unlock()

	switch request.Kind {
	case core.RequestQuery:
		return s.query(ctx, request.Query)
	case core.RequestQueryMore:
		return s.queryMore(request.NextRecordsURL)
	case core.RequestSearch:
		return s.search(ctx, request.Query)
	case core.RequestRecentItems:
		return s.recentItems(ctx, request.ObjectType)
	case core.RequestRetrieve:
		return s.retrieve(ctx, request.ObjectType, request.ObjectID, request.FieldList)
	case core.RequestCreate:
		return s.create(ctx, request.ObjectType, request.Fields)
	case core.RequestUpdate:
		return s.update(ctx, request.ObjectType, request.ObjectID, request.Fields)
	case core.RequestDelete:
		return s.delete(ctx, request.ObjectType, request.ObjectID)
	default:
		return nil, &core.RemoteError{StatusCode: http.StatusBadRequest, Message: fmt.Sprintf("unknown request kind %q", request.Kind)}
	}
}

// Close closes the backend. Further requests fail.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cursors = make(map[string][]map[string]interface{})
	s.mu.Unlock()
	return s.backend.Close()
}

// Put writes an object directly, bypassing request accounting. A missing
// Id is generated. The object is stamped with the current time and its id returned.
func (s *Service) Put(ctx context.Context, objectType string, fields map[string]interface{}) (string, error) {
	id, _ := fields[FieldID].(string)
	if id == "" {
		id = newObjectID()
	}
	stamp := s.stamp()
	obj := &Object{
		Type:         objectType,
		ID:           id,
		Fields:       cleanFields(fields),
		Modstamp:     stamp,
		LastModified: stamp,
	}
	if err := s.backend.Put(ctx, obj, false); err != nil {
		return "", err
	}
	return id, nil
}

// Object returns a stored object, or nil.
func (s *Service) Object(ctx context.Context, objectType, id string) (*Object, error) {
	return s.backend.Get(ctx, objectType, id)
}

// RequestCount returns how many requests of a kind have been sent.
func (s *Service) RequestCount(kind core.RequestKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[kind]
}

// FailNext makes the next request of a kind fail with the given status.
func (s *Service) FailNext(kind core.RequestKind, statusCode int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[kind] = &core.RemoteError{StatusCode: statusCode, Message: message}
}

// stamp returns a strictly increasing modification time in milliseconds.
func (s *Service) stamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.now().UnixMilli()
	if ms <= s.lastStamp {
		ms = s.lastStamp + 1
	}
	s.lastStamp = ms
	return ms
}

func (s *Service) query(ctx context.Context, query string) (*core.RemoteResponse, error) {
	q, err := parseSelect(query)
	if err != nil {
		return nil, &core.RemoteError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}

	objects, err := s.backend.Scan(ctx, q.objectType)
	if err != nil {
		return nil, backendError(err)
	}

	var matched []*Object
	for _, o := range objects {
		ok := true
		for _, c := range q.conditions {
			if !c.matches(o) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, o)
		}
	}
	sortObjects(matched)
	if q.limit > 0 && len(matched) > q.limit {
		matched = matched[:q.limit]
	}

	records := make([]map[string]interface{}, len(matched))
	for i, o := range matched {
		records[i] = o.Record(q.fields)
	}

	log.Printf("[%s] Query on %s matched %d records", s.tag, q.objectType, len(records))
	return s.page(records, 0, ""), nil
}

// page returns the records starting at offset and registers a cursor for the rest.
func (s *Service) page(records []map[string]interface{}, offset int, cursorID string) *core.RemoteResponse {
	end := offset + s.pageSize
	resp := &core.RemoteResponse{StatusCode: http.StatusOK, TotalSize: len(records)}
	if end >= len(records) {
		resp.Records = records[offset:]
		if cursorID != "" {
			s.mu.Lock()
			delete(s.cursors, cursorID)
			s.mu.Unlock()
		}
		return resp
	}

	resp.Records = records[offset:end]
	s.mu.Lock()
	if cursorID == "" {
		s.nextCursor++
		cursorID = strconv.FormatInt(s.nextCursor, 10)
		s.cursors[cursorID] = records
	}
	s.mu.Unlock()
	resp.NextRecordsURL = fmt.Sprintf("%s%s-%d", queryMorePrefix, cursorID, end)
	return resp
}

func (s *Service) queryMore(url string) (*core.RemoteResponse, error) {
	rest := strings.TrimPrefix(url, queryMorePrefix)
	sep := strings.LastIndex(rest, "-")
	if rest == url || sep < 0 {
		return nil, &core.RemoteError{StatusCode: http.StatusBadRequest, Message: fmt.Sprintf("malformed cursor %q", url)}
	}
	cursorID := rest[:sep]
	offset, err := strconv.Atoi(rest[sep+1:])
	if err != nil {
		return nil, &core.RemoteError{StatusCode: http.StatusBadRequest, Message: fmt.Sprintf("malformed cursor %q", url)}
	}

	s.mu.Lock()
	records, ok := s.cursors[cursorID]
	s.mu.Unlock()
	if !ok || offset > len(records) {
		return nil, &core.RemoteError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("cursor %q expired", url)}
	}
	return s.page(records, offset, cursorID), nil
}

func (s *Service) search(ctx context.Context, query string) (*core.RemoteResponse, error) {
	q, err := parseSearch(query)
	if err != nil {
		return nil, &core.RemoteError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}

	objects, err := s.backend.Scan(ctx, "")
	if err != nil {
		return nil, backendError(err)
	}

	var matched []*Object
	for _, o := range objects {
		if q.matches(o) {
			matched = append(matched, o)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Type != matched[j].Type {
			return matched[i].Type < matched[j].Type
		}
		return matched[i].ID < matched[j].ID
	})

	records := make([]map[string]interface{}, len(matched))
	for i, o := range matched {
		records[i] = o.Record(q.fieldsFor(o.Type))
	}
	return &core.RemoteResponse{StatusCode: http.StatusOK, Records: records, TotalSize: len(records)}, nil
}

func (s *Service) recentItems(ctx context.Context, objectType string) (*core.RemoteResponse, error) {
	if objectType == "" {
		return nil, &core.RemoteError{StatusCode: http.StatusBadRequest, Message: "object type is required"}
	}
	objects, err := s.backend.Scan(ctx, objectType)
	if err != nil {
		return nil, backendError(err)
	}
	sort.SliceStable(objects, func(i, j int) bool {
		if objects[i].Modstamp != objects[j].Modstamp {
			return objects[i].Modstamp > objects[j].Modstamp
		}
		return objects[i].ID < objects[j].ID
	})
	if len(objects) > MaxRecentItems {
		objects = objects[:MaxRecentItems]
	}

	ids := make([]string, len(objects))
	for i, o := range objects {
		ids[i] = o.ID
	}
	return &core.RemoteResponse{StatusCode: http.StatusOK, RecentIDs: ids}, nil
}

func (s *Service) retrieve(ctx context.Context, objectType, id string, fields []string) (*core.RemoteResponse, error) {
	obj, err := s.backend.Get(ctx, objectType, id)
	if err != nil {
		return nil, backendError(err)
	}
	if obj == nil {
		return nil, notFound(objectType, id)
	}
	return &core.RemoteResponse{StatusCode: http.StatusOK, Record: obj.Record(fields)}, nil
}

func (s *Service) create(ctx context.Context, objectType string, fields map[string]interface{}) (*core.RemoteResponse, error) {
	if objectType == "" {
		return nil, &core.RemoteError{StatusCode: http.StatusBadRequest, Message: "object type is required"}
	}
	stamp := s.stamp()
	obj := &Object{
		Type:         objectType,
		ID:           newObjectID(),
		Fields:       cleanFields(fields),
		Modstamp:     stamp,
		LastModified: stamp,
	}
	if err := s.backend.Put(ctx, obj, true); err != nil {
		return nil, backendError(err)
	}
	log.Printf("[%s] Created %s %s", s.tag, objectType, obj.ID)
	return &core.RemoteResponse{StatusCode: http.StatusCreated, ID: obj.ID}, nil
}

func (s *Service) update(ctx context.Context, objectType, id string, fields map[string]interface{}) (*core.RemoteResponse, error) {
	obj, err := s.backend.Get(ctx, objectType, id)
	if err != nil {
		return nil, backendError(err)
	}
	if obj == nil {
		return nil, notFound(objectType, id)
	}

	obj = obj.clone()
	for k, v := range cleanFields(fields) {
		obj.Fields[k] = v
	}
	stamp := s.stamp()
	obj.Modstamp = stamp
	obj.LastModified = stamp
	if err := s.backend.Put(ctx, obj, false); err != nil {
		return nil, backendError(err)
	}
	log.Printf("[%s] Updated %s %s", s.tag, objectType, id)
	return &core.RemoteResponse{StatusCode: http.StatusNoContent}, nil
}

func (s *Service) delete(ctx context.Context, objectType, id string) (*core.RemoteResponse, error) {
	existed, err := s.backend.Remove(ctx, objectType, id)
	if err != nil {
		return nil, backendError(err)
	}
	if !existed {
		return nil, notFound(objectType, id)
	}
	log.Printf("[%s] Deleted %s %s", s.tag, objectType, id)
	return &core.RemoteResponse{StatusCode: http.StatusNoContent}, nil
}

// cleanFields drops the fields the service owns.
func cleanFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch k {
		case FieldID, FieldAttributes, FieldLastModifiedDate, FieldSystemModstamp:
			continue
		}
		out[k] = v
	}
	return out
}

func newObjectID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:18]
}

func notFound(objectType, id string) *core.RemoteError {
	return &core.RemoteError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("%s %s not found", objectType, id)}
}

func backendError(err error) *core.RemoteError {
	return &core.RemoteError{StatusCode: http.StatusInternalServerError, Message: err.Error()}
}
