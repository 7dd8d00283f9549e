// Package upstreamsim simulates the recognition and attendance log service
// the live pipeline talks to. It is used for local runs and end-to-end tests.
package upstreamsim

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg" // frame decoder
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/okian/rollcall/pkg/logger"
)

// naiveLayout matches the zone-less ISO timestamps the upstream stores.
const naiveLayout = "2006-01-02T15:04:05.000000"

// Record is one attendance log entry as the upstream serves it.
type Record struct {
	StudentID       string  `json:"student_id"`
	Timestamp       string  `json:"timestamp"`
	EngagementScore float64 `json:"engagement_score"`
	Status          string  `json:"status"`
}

type recognizeResponse struct {
	RecognizedStudents []string `json:"recognized_students"`
	Count              int      `json:"count"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// Server is the simulated upstream.
type Server struct {
	cfg    Config
	roster []string
	log    logger.Logger
	now    func() time.Time

	mu          sync.Mutex
	records     []Record // newest first
	subscribers map[chan Record]struct{}
}

// NewServer creates a simulated upstream with a generated roster.
func NewServer(cfg Config) *Server {
	if cfg.LogWindow <= 0 {
		cfg.LogWindow = DefaultConfig().LogWindow
	}
	return &Server{
		cfg:         cfg,
		roster:      newRoster(cfg.RosterSize),
		log:         logger.Get().Named("upstreamsim"),
		now:         time.Now,
		subscribers: make(map[chan Record]struct{}),
	}
}

// Roster returns the registered identities.
func (s *Server) Roster() []string {
	out := make([]string, len(s.roster))
	copy(out, s.roster)
	return out
}

// Handler returns the upstream's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	})
	mux.HandleFunc(RecognizePath, s.handleRecognize)
	mux.HandleFunc(LogsPath, s.handleLogs)
	mux.Handle(PushPath, websocket.Handler(s.handlePush))
	return mux
}

// Record appends an attendance event and pushes it to every subscriber.
func (s *Server) Record(id string, score float64) Record {
	rec := Record{
		StudentID:       id,
		Timestamp:       s.now().UTC().Format(naiveLayout),
		EngagementScore: score,
		Status:          "present",
	}

	s.mu.Lock()
	s.records = append([]Record{rec}, s.records...)
	if len(s.records) > maxStoredRecords {
		s.records = s.records[:maxStoredRecords]
	}
	for ch := range s.subscribers {
		select {
		case ch <- rec:
		default:
			// slow subscriber; it will catch up on the next poll
		}
	}
	s.mu.Unlock()
	return rec
}

// RecordRandom records an event for a random roster member.
func (s *Server) RecordRandom() (Record, bool) {
	if len(s.roster) == 0 {
		return Record{}, false
	}
	return s.Record(s.roster[randIntn(len(s.roster))], engagementScore()), true
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxFrameBytes); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "missing image", http.StatusBadRequest)
		return
	}
	defer file.Close()
	if _, _, err := image.DecodeConfig(file); err != nil {
		http.Error(w, "invalid image", http.StatusBadRequest)
		return
	}

	if !s.sleep(r.Context()) {
		return
	}
	if s.cfg.FailRate > 0 && getRandomFloat() < s.cfg.FailRate {
		http.Error(w, "recognition model unavailable", http.StatusInternalServerError)
		return
	}
	if len(s.roster) == 0 {
		writeJSON(w, http.StatusOK, statusResponse{Status: "no_students_registered"})
		return
	}

	matched := pickMatches(s.roster, s.cfg.MatchRate)
	for _, id := range matched {
		s.Record(id, engagementScore())
	}
	s.log.Debug(r.Context(), "frame recognized",
		logger.String("trace_id", r.Header.Get("X-Trace-Id")),
		logger.Int("matched", len(matched)),
	)
	writeJSON(w, http.StatusOK, recognizeResponse{RecognizedStudents: matched, Count: len(matched)})
}

// sleep simulates recognition latency. It reports false if the client left.
func (s *Server) sleep(ctx context.Context) bool {
	if s.cfg.MaxLatency <= 0 {
		return true
	}
	d := s.cfg.MinLatency
	if spread := s.cfg.MaxLatency - s.cfg.MinLatency; spread > 0 {
		d += time.Duration(getRandomFloat() * float64(spread))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	n := minInt(s.cfg.LogWindow, len(s.records))
	out := make([]Record, n)
	copy(out, s.records[:n])
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePush(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ch := make(chan Record, pushBuffer)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subscribers, ch)
		s.mu.Unlock()
	}()

	// The client never sends; a read returning means it went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		_, _ = io.Copy(io.Discard, conn)
	}()

	ctx := conn.Request().Context()
	s.log.Debug(ctx, "push subscriber connected")
	for {
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case rec := <-ch:
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			if err := websocket.Message.Send(conn, string(data)); err != nil {
				s.log.Debug(ctx, "push subscriber dropped", logger.Error(err))
				return
			}
		}
	}
}

// Subscribers returns the number of open push connections.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_, _ = fmt.Fprintln(w)
	}
}
