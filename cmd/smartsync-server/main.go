package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	apperrors "github.com/rzpsarthak13/smartsync/internal/errors"
	"github.com/rzpsarthak13/smartsync/pkg/smartsync"
)

func main() {
	configPath := flag.String("config", "", "YAML or JSON config file")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	// 1. Configure smartsync
	config := smartsync.DefaultConfig()
	if *configPath != "" {
		loaded, err := smartsync.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		config = loaded
	}

	// 2. Create the client. The memory remote is seeded with sample contacts.
	ctx := context.Background()
	var opts []smartsync.ClientOption
	if config.Remote.Type == "memory" {
		rem := smartsync.NewMemoryRemote()
		if err := seedContacts(ctx, rem); err != nil {
			log.Fatalf("Failed to seed remote: %v", err)
		}
		opts = append(opts, smartsync.WithRemoteService(rem))
	}

	client, err := smartsync.NewClient(ctx, config, opts...)
	if err != nil {
		log.Fatalf("Failed to create smartsync client: %v", err)
	}
	defer client.Close()

	// 3. Start the background dispatcher
	if err := client.Start(ctx); err != nil {
		log.Fatalf("Failed to start dispatcher: %v", err)
	}
	defer client.Stop()

	srv := &server{client: client}
	httpServer := &http.Server{Addr: *addr, Handler: srv.routes()}

	log.Println("")
	log.Println("SMARTSYNC DEMO SERVER")
	log.Println("  POST   /soups                   - Register a soup")
	log.Println("  POST   /soups/{name}/entries    - Upsert an entry (?mark=created|updated|deleted&type=)")
	log.Println("  GET    /soups/{name}/entries    - Page through a soup (?page=&pageSize=)")
	log.Println("  POST   /syncs/down              - Sync a soup down (?async=true)")
	log.Println("  POST   /syncs/up                - Sync a soup up (?async=true)")
	log.Println("  POST   /syncs/{id}/resync       - Rerun a sync down")
	log.Println("  GET    /syncs/{id}              - Sync status")
	log.Println("  GET    /events                  - Poll sync events")
	log.Println("  GET    /health                  - Health check")
	log.Printf("  Database: %s (%s), remote: %s, events: %s", config.Database.Type, config.Database.Path, config.Remote.Type, config.Events.Type)
	log.Println("")

	// 4. Start HTTP server with graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting HTTP server on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-sigChan
	log.Println("Received shutdown signal...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}

func seedContacts(ctx context.Context, rem *smartsync.RemoteService) error {
	contacts := []map[string]interface{}{
		{"FirstName": "Ada", "LastName": "Lovelace", "Email": "ada@example.com"},
		{"FirstName": "Grace", "LastName": "Hopper", "Email": "grace@example.com"},
		{"FirstName": "Alan", "LastName": "Turing", "Email": "alan@example.com"},
	}
	for _, c := range contacts {
		if _, err := rem.Put(ctx, "Contact", c); err != nil {
			return err
		}
	}
	return nil
}

type server struct {
	client smartsync.Client
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST /soups", s.registerSoup)
	mux.HandleFunc("POST /soups/{name}/entries", s.upsertEntry)
	mux.HandleFunc("GET /soups/{name}/entries", s.listEntries)
	mux.HandleFunc("POST /syncs/down", s.syncDown)
	mux.HandleFunc("POST /syncs/up", s.syncUp)
	mux.HandleFunc("POST /syncs/{id}/resync", s.reSync)
	mux.HandleFunc("GET /syncs/{id}", s.syncStatus)
	mux.HandleFunc("GET /events", s.pollEvents)
	return mux
}

// account reads the caller from headers, defaulting to a demo user.
func account(r *http.Request) (smartsync.Account, string) {
	acc := smartsync.Account{
		UserID: r.Header.Get("X-User-Id"),
		OrgID:  r.Header.Get("X-Org-Id"),
	}
	if acc.UserID == "" {
		acc.UserID = "demo-user"
	}
	if acc.OrgID == "" {
		acc.OrgID = "demo-org"
	}
	return acc, r.Header.Get("X-Community-Id")
}

func (s *server) manager(r *http.Request) (*smartsync.SyncManager, error) {
	acc, community := account(r)
	return s.client.SyncManager(acc, community)
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"dispatcher": map[string]interface{}{
			"running": s.client.IsRunning(),
		},
	}
	if d, ok := smartsync.DispatcherOf(s.client); ok {
		processed, failed := d.Stats()
		status["dispatcher"] = map[string]interface{}{
			"running":   s.client.IsRunning(),
			"pending":   d.Pending(),
			"processed": processed,
			"failed":    failed,
		}
	}
	writeJSON(w, http.StatusOK, status)
}

type registerSoupRequest struct {
	Name    string                `json:"name"`
	Indexes []smartsync.IndexSpec `json:"indexes"`
}

func (s *server) registerSoup(w http.ResponseWriter, r *http.Request) {
	var req registerSoupRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.client.Store().RegisterSoup(r.Context(), req.Name, req.Indexes); err != nil {
		writeError(w, err)
		return
	}
	specs, err := s.client.Store().GetSoupIndexSpecs(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"name": req.Name, "indexes": specs})
}

func (s *server) upsertEntry(w http.ResponseWriter, r *http.Request) {
	var record map[string]interface{}
	if !decode(w, r, &record) {
		return
	}

	q := r.URL.Query()
	switch q.Get("mark") {
	case "":
	case "created":
		smartsync.MarkCreated(record, q.Get("type"))
	case "updated":
		smartsync.MarkUpdated(record)
	case "deleted":
		smartsync.MarkDeleted(record)
	default:
		http.Error(w, "mark must be created, updated or deleted", http.StatusBadRequest)
		return
	}

	stored, err := s.client.Store().Upsert(r.Context(), r.PathValue("name"), record, q.Get("externalIdPath"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *server) listEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	if pageSize <= 0 {
		pageSize = 25
	}

	spec := smartsync.BuildAllQuerySpec(r.PathValue("name"), q.Get("orderPath"), smartsync.Ascending, pageSize)
	entries, err := s.client.Store().Query(r.Context(), spec, page)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := s.client.Store().CountQuery(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"page":      page,
		"pageSize":  pageSize,
		"totalSize": total,
		"entries":   entries,
	})
}

type syncRequest struct {
	Target   *smartsync.Target  `json:"target"`
	Options  *smartsync.Options `json:"options"`
	SoupName string             `json:"soupName"`
}

// syncContext detaches a synchronous sync from its request, so a client that
// disconnects mid-sync does not leave the sync half run.
func syncContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *server) syncDown(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decode(w, r, &req) {
		return
	}
	mgr, err := s.manager(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("async") == "true" {
		s.submit(w, &smartsync.Job{Kind: smartsync.JobSyncDown, Manager: mgr, Target: req.Target, Options: req.Options, SoupName: req.SoupName})
		return
	}
	state, err := mgr.SyncDown(syncContext(r), req.Target, req.Options, req.SoupName, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) syncUp(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decode(w, r, &req) {
		return
	}
	mgr, err := s.manager(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("async") == "true" {
		s.submit(w, &smartsync.Job{Kind: smartsync.JobSyncUp, Manager: mgr, Options: req.Options, SoupName: req.SoupName})
		return
	}
	state, err := mgr.SyncUp(syncContext(r), req.Options, req.SoupName, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) reSync(w http.ResponseWriter, r *http.Request) {
	id, ok := syncID(w, r)
	if !ok {
		return
	}
	mgr, err := s.manager(r)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := mgr.ReSync(syncContext(r), id, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) syncStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := syncID(w, r)
	if !ok {
		return
	}
	mgr, err := s.manager(r)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := mgr.GetSyncStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) pollEvents(w http.ResponseWriter, r *http.Request) {
	max, _ := strconv.Atoi(r.URL.Query().Get("max"))
	if max <= 0 {
		max = 100
	}
	events, err := s.client.PollEvents(r.Context(), max)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []*smartsync.SyncEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *server) submit(w http.ResponseWriter, job *smartsync.Job) {
	if err := s.client.Submit(job); err != nil {
		http.Error(w, fmt.Sprintf("Failed to queue sync: %v", err), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"message": "sync queued", "kind": job.Kind})
}

func syncID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "sync id must be an integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.ErrNotRegistered, apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrMalformedQuery, apperrors.ErrNotIndexed, apperrors.ErrInvalid, apperrors.ErrInvalidRerun:
		status = http.StatusBadRequest
	case apperrors.ErrSchemaConflict, apperrors.ErrDuplicate, apperrors.ErrTransaction:
		status = http.StatusConflict
	case apperrors.ErrNetworkFailure:
		status = http.StatusBadGateway
	}
	log.Printf("[HTTP] %d: %v", status, err)
	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"code":  apperrors.CodeOf(err),
	})
}
