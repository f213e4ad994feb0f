package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/audio"
	"github.com/lexiqai/lecture-notes/internal/events"
	"github.com/lexiqai/lecture-notes/internal/factcheck"
	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/llm"
	"github.com/lexiqai/lecture-notes/internal/llm/llmtest"
	"github.com/lexiqai/lecture-notes/internal/notes"
	"github.com/lexiqai/lecture-notes/internal/pipeline"
	"github.com/lexiqai/lecture-notes/internal/transcription"
)

const testOwner = "user-1"

var generatedNotes = "## Linear Algebra Basics\n\n" +
	strings.Repeat("- A matrix maps vectors to vectors.\n", 8)

// storedNotes is the model reply as the chain returns it, surrounding whitespace trimmed
var storedNotes = strings.TrimSpace(generatedNotes)

// fakeTranscriptionAPI is an in-process transcription provider
type fakeTranscriptionAPI struct {
	mu       sync.Mutex
	polls    int
	failJob  bool
	uploaded int
}

func (f *fakeTranscriptionAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/files":
		f.uploaded++
		w.Write([]byte(`{"id":"file-1"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/jobs":
		w.Write([]byte(`{"id":"job-1"}`))
	case r.Method == http.MethodGet && r.URL.Path == "/jobs/job-1":
		f.polls++
		switch {
		case f.polls < 2:
			w.Write([]byte(`{"id":"job-1","status":"running"}`))
		case f.failJob:
			w.Write([]byte(`{"id":"job-1","status":"error","error":{"type":"audio_decode","message":"unsupported codec"}}`))
		default:
			w.Write([]byte(`{"id":"job-1","status":"completed","text":"Today we cover matrices."}`))
		}
	case r.Method == http.MethodGet && r.URL.Path == "/jobs/job-1/transcript":
		w.Write([]byte(`{"id":"job-1","text":"Today we cover matrices.","duration_seconds":42}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"job not found"}}`))
	}
}

func (f *fakeTranscriptionAPI) uploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploaded
}

type testEnv struct {
	server *httptest.Server
	store  *lecture.MemoryStore
	api    *fakeTranscriptionAPI
	audio  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	audioServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".html") {
			w.Header().Set("Content-Type", "text/html")
			return
		}
		w.Header().Set("Content-Type", "audio/webm")
		w.Write([]byte("webm-bytes"))
	}))
	t.Cleanup(audioServer.Close)

	fake := &fakeTranscriptionAPI{}
	providerServer := httptest.NewServer(fake)
	t.Cleanup(providerServer.Close)

	chain := func(name, reply string) *llm.Chain {
		p := llmtest.NewProvider("primary").Default(llmtest.Reply{Content: reply})
		c, err := llm.NewChain(name, []llm.Tier{{Provider: p, Models: []string{"m1"}}}, llm.ChainOptions{Logger: logger})
		if err != nil {
			t.Fatalf("NewChain(%s) failed: %v", name, err)
		}
		return c
	}

	store := lecture.NewMemoryStore()
	svc := pipeline.NewService(pipeline.Config{
		TargetLanguage: "en",
		LanguageHints:  []string{"en", "es"},
		PollInterval:   5 * time.Millisecond,
	}, pipeline.Deps{
		Store:     store,
		Preflight: audio.NewPreflight(audioServer.Client(), time.Second, logger),
		Provider: transcription.NewClient(transcription.ClientConfig{
			APIKey:     "test-key",
			BaseURL:    providerServer.URL,
			HTTPClient: providerServer.Client(),
			Logger:     logger,
		}),
		AudioClient: audioServer.Client(),
		Synthesizer: notes.NewSynthesizer(chain("notes", generatedNotes), logger),
		Checker:     factcheck.NewChecker(chain("fact_check", "[]"), logger),
		Events:      events.Noop{},
		Logger:      logger,
	})

	mux := http.NewServeMux()
	NewHandler(svc, logger).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: store, api: fake, audio: audioServer.URL + "/lecture.webm"}
}

func (e *testEnv) createLecture(t *testing.T, l lecture.Lecture) lecture.Lecture {
	t.Helper()
	l.OwnerID = testOwner
	created, err := e.store.Create(context.Background(), l)
	if err != nil {
		t.Fatalf("create lecture: %v", err)
	}
	return created
}

func (e *testEnv) do(t *testing.T, method, path, owner string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if owner != "" {
		req.Header.Set(headerUserID, owner)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestStartTranscription(t *testing.T) {
	env := newTestEnv(t)
	l := env.createLecture(t, lecture.Lecture{Status: lecture.StatusRecording})

	resp := env.do(t, http.MethodPost, "/api/transcriptions", testOwner, startRequest{AudioURL: env.audio, LectureID: l.ID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(headerCorrelationID) == "" {
		t.Error("Expected correlation id header")
	}
	out := decode[startResponse](t, resp)
	if out.JobID != "job-1" {
		t.Errorf("Expected job id 'job-1', got '%s'", out.JobID)
	}
	if n := env.api.uploads(); n != 1 {
		t.Errorf("Expected audio uploaded once, got %d", n)
	}

	stored, _ := env.store.Get(context.Background(), testOwner, l.ID)
	if stored.Status != lecture.StatusProcessing || stored.JobID != "job-1" {
		t.Errorf("Expected lecture processing with job-1, got %s/%s", stored.Status, stored.JobID)
	}
}

func TestStartTranscription_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		owner string
		body  any
		want  int
	}{
		{"missing audio url", testOwner, startRequest{}, http.StatusBadRequest},
		{"html resource", testOwner, startRequest{AudioURL: strings.Replace(env.audio, "lecture.webm", "page.html", 1)}, http.StatusBadRequest},
		{"lecture without user", "", startRequest{AudioURL: env.audio, LectureID: "abc"}, http.StatusUnauthorized},
		{"unknown lecture", testOwner, startRequest{AudioURL: env.audio, LectureID: "missing"}, http.StatusNotFound},
		{"malformed body", testOwner, "not-an-object", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/transcriptions", tt.owner, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
			body := decode[errorResponse](t, resp)
			if body.Error == "" {
				t.Error("Expected error message in body")
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t)

	first := decode[pipeline.Status](t, env.do(t, http.MethodGet, "/api/transcriptions/job-1", "", nil))
	if first.State != pipeline.StateProcessing {
		t.Errorf("Expected processing, got %s", first.State)
	}

	second := decode[pipeline.Status](t, env.do(t, http.MethodGet, "/api/transcriptions/job-1", "", nil))
	if second.State != pipeline.StateCompleted {
		t.Fatalf("Expected completed, got %s", second.State)
	}
	if second.Transcript != "Today we cover matrices." {
		t.Errorf("Expected transcript text, got '%s'", second.Transcript)
	}

	resp := env.do(t, http.MethodGet, "/api/transcriptions/unknown", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown job, got %d", resp.StatusCode)
	}
}

func TestCompleteAndGetLecture(t *testing.T) {
	env := newTestEnv(t)
	l := env.createLecture(t, lecture.Lecture{Status: lecture.StatusProcessing})

	resp := env.do(t, http.MethodPost, "/api/lectures/"+l.ID+"/complete", testOwner, completeRequest{Transcript: "Today we cover matrices."})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	res := decode[pipeline.CompleteResult](t, resp)
	if res.Title != "Linear Algebra Basics" {
		t.Errorf("Expected extracted title, got '%s'", res.Title)
	}

	again := decode[pipeline.CompleteResult](t, env.do(t, http.MethodPost, "/api/lectures/"+l.ID+"/complete", testOwner, completeRequest{Transcript: "Other text"}))
	if !again.Skipped {
		t.Error("Expected second completion to be skipped")
	}

	got := decode[lecture.Lecture](t, env.do(t, http.MethodGet, "/api/lectures/"+l.ID, testOwner, nil))
	if got.Status != lecture.StatusCompleted {
		t.Errorf("Expected completed lecture, got %s", got.Status)
	}
	if got.FinalNotes != storedNotes {
		t.Error("Expected final notes to hold generated notes")
	}

	if resp := env.do(t, http.MethodGet, "/api/lectures/"+l.ID, "someone-else", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for another user, got %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/lectures/"+l.ID, "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without user, got %d", resp.StatusCode)
	}
}

func TestRegenerateAndEditNotes(t *testing.T) {
	env := newTestEnv(t)
	transcript := "Today we cover matrices."
	l := env.createLecture(t, lecture.Lecture{
		Status:     lecture.StatusCompleted,
		Title:      "My Lecture",
		Transcript: &transcript,
		AINotes:    "old notes",
		FinalNotes: "old notes",
	})

	edited := "my own notes"
	resp := env.do(t, http.MethodPut, "/api/lectures/"+l.ID+"/notes", testOwner, editNotesRequest{Notes: &edited})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 from edit, got %d", resp.StatusCode)
	}
	if got := decode[lecture.Lecture](t, resp); !got.NotesEdited || got.FinalNotes != edited {
		t.Errorf("Expected edited notes stored, got %+v", got)
	}

	if resp := env.do(t, http.MethodPost, "/api/lectures/"+l.ID+"/regenerate", testOwner, regenerateRequest{Mode: "rewrite"}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid mode, got %d", resp.StatusCode)
	}

	res := decode[pipeline.RegenerateResult](t, env.do(t, http.MethodPost, "/api/lectures/"+l.ID+"/regenerate", testOwner, nil))
	if res.Mode != pipeline.ModeDraft {
		t.Errorf("Expected draft mode inferred for edited notes, got %s", res.Mode)
	}

	stored, _ := env.store.Get(context.Background(), testOwner, l.ID)
	if stored.FinalNotes != edited {
		t.Errorf("Expected final notes preserved, got '%s'", stored.FinalNotes)
	}
	if stored.AINotes != storedNotes {
		t.Error("Expected ai notes refreshed")
	}
}

func TestEditNotes_MissingBody(t *testing.T) {
	env := newTestEnv(t)
	l := env.createLecture(t, lecture.Lecture{Status: lecture.StatusCompleted})

	resp := env.do(t, http.MethodPut, "/api/lectures/"+l.ID+"/notes", testOwner, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func dialStream(t *testing.T, env *testEnv, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + path
	header := http.Header{}
	header.Set(headerUserID, testOwner)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntilFinal(t *testing.T, conn *websocket.Conn) (statuses int, final StreamMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if msg.Type != "status" {
			return statuses, msg
		}
		statuses++
	}
}

func TestStreamStatus_CompletesLecture(t *testing.T) {
	env := newTestEnv(t)
	l := env.createLecture(t, lecture.Lecture{Status: lecture.StatusProcessing, JobID: "job-1"})

	conn := dialStream(t, env, "/ws/transcriptions/job-1?lectureId="+l.ID)
	statuses, final := readUntilFinal(t, conn)

	if statuses < 2 {
		t.Errorf("Expected at least 2 status frames, got %d", statuses)
	}
	if final.Type != "completed" {
		t.Fatalf("Expected completed frame, got %s (%s)", final.Type, final.Error)
	}
	if final.Result == nil || final.Result.Title != "Linear Algebra Basics" {
		t.Errorf("Expected completion result with title, got %+v", final.Result)
	}

	stored, _ := env.store.Get(context.Background(), testOwner, l.ID)
	if stored.Status != lecture.StatusCompleted {
		t.Errorf("Expected lecture completed, got %s", stored.Status)
	}
}

func TestStreamStatus_JobFailure(t *testing.T) {
	env := newTestEnv(t)
	env.api.failJob = true
	l := env.createLecture(t, lecture.Lecture{Status: lecture.StatusProcessing, JobID: "job-1"})

	conn := dialStream(t, env, "/ws/transcriptions/job-1?lectureId="+l.ID)
	_, final := readUntilFinal(t, conn)

	if final.Type != "error" {
		t.Fatalf("Expected error frame, got %s", final.Type)
	}
	if final.Error != "unsupported codec" {
		t.Errorf("Expected provider message, got '%s'", final.Error)
	}

	stored, _ := env.store.Get(context.Background(), testOwner, l.ID)
	if stored.Status != lecture.StatusError {
		t.Errorf("Expected lecture marked error, got %s", stored.Status)
	}
}

func TestStreamStatus_WithoutLecture(t *testing.T) {
	env := newTestEnv(t)

	conn := dialStream(t, env, "/ws/transcriptions/job-1")
	_, final := readUntilFinal(t, conn)

	if final.Type != "completed" {
		t.Fatalf("Expected completed frame, got %s", final.Type)
	}
	if final.Result != nil {
		t.Error("Expected no completion result without a lecture")
	}
	if final.Status == nil || final.Status.Transcript != "Today we cover matrices." {
		t.Errorf("Expected final status with transcript, got %+v", final.Status)
	}
}
