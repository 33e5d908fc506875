// Stub verification provider for local development. Speaks the same
// wire protocol as the real provider: jobs advance from ready through
// verifying to completed a few seconds after being started.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

type job struct {
	ID        string
	Status    string // ready, verifying, completed
	Total     int
	Verified  int
	StartedAt time.Time
}

type stub struct {
	mu      sync.Mutex
	jobs    map[string]*job
	credits int
	used    int
}

// verifyDuration is how long a started job stays in "verifying".
const verifyDuration = 9 * time.Second

func main() {
	log.Println("STUB verification provider: all results are fabricated")

	addr := os.Getenv("STUB_ADDR")
	if addr == "" {
		addr = ":4545"
	}

	s := &stub{jobs: make(map[string]*job), credits: 100000}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /verify", s.handleVerify)
	mux.HandleFunc("POST /bulk", s.handleSubmit)
	mux.HandleFunc("GET /bulk/{jobId}", s.handleStatus)
	mux.HandleFunc("PATCH /bulk/{jobId}", s.handleStart)
	mux.HandleFunc("DELETE /bulk/{jobId}", s.handleDelete)
	mux.HandleFunc("POST /download", s.handleDownload)
	mux.HandleFunc("GET /info", s.handleInfo)

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("Stub provider listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("stub server error: %v", err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done
	server.Close()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *stub) handleVerify(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "email is required"})
		return
	}

	result := "deliverable"
	switch {
	case strings.HasPrefix(email, "bounce"):
		result = "undeliverable"
	case strings.HasPrefix(email, "maybe"):
		result = "unknown"
	}

	s.mu.Lock()
	s.used++
	s.credits--
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"email":   email,
		"result":  result,
		"success": true,
		"message": "Email verification successful",
	})
}

func (s *stub) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid multipart body"})
		return
	}
	file, _, err := r.FormFile("local_file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "local_file is required"})
		return
	}
	file.Close()

	j := &job{ID: uuid.New().String(), Status: "ready", Total: 50 + rand.Intn(200)}
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()

	if r.URL.Query().Get("auto_verify") == "true" {
		s.startJob(j.ID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "File uploaded successfully",
		"job_id":  j.ID,
	})
}

func (s *stub) startJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != "ready" {
		return ok
	}
	j.Status = "verifying"
	j.StartedAt = time.Now()
	return true
}

// advance moves a verifying job forward based on elapsed time.
func (j *job) advance() {
	if j.Status != "verifying" {
		return
	}
	elapsed := time.Since(j.StartedAt)
	if elapsed >= verifyDuration {
		j.Status = "completed"
		j.Verified = j.Total
		return
	}
	j.Verified = int(float64(j.Total) * elapsed.Seconds() / verifyDuration.Seconds())
}

func (s *stub) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[r.PathValue("jobId")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "job not found"})
		return
	}
	j.advance()

	body := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"total":    j.Total,
		"verified": j.Verified,
		"pending":  j.Total - j.Verified,
	}
	if j.Status == "completed" {
		deliverable := j.Total * 7 / 10
		undeliverable := j.Total / 5
		acceptAll := j.Total / 20
		body["results"] = map[string]int{
			"deliverable":   deliverable,
			"undeliverable": undeliverable,
			"accept_all":    acceptAll,
			"unknown":       j.Total - deliverable - undeliverable - acceptAll,
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *stub) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Action != "start" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": `body must be {"action":"start"}`})
		return
	}
	if !s.startJob(r.PathValue("jobId")) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Email verification started"})
}

func (s *stub) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("jobId")
	s.mu.Lock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Job deleted"})
}

func (s *stub) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "job not found"})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="results_%s.csv"`, j.ID))
	fmt.Fprintln(w, "email,result")
	for i := 0; i < j.Total; i++ {
		result := "deliverable"
		if i%5 == 0 {
			result = "undeliverable"
		}
		fmt.Fprintf(w, "user%d@example.com,%s\n", i, result)
	}
}

func (s *stub) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"credits_info": map[string]int{
			"credits_remaining": s.credits,
			"credits_used":      s.used,
		},
	})
}
