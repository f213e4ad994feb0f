package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/audio"
	"github.com/lexiqai/lecture-notes/internal/events"
	"github.com/lexiqai/lecture-notes/internal/factcheck"
	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/llm"
	"github.com/lexiqai/lecture-notes/internal/llm/llmtest"
	"github.com/lexiqai/lecture-notes/internal/notes"
	"github.com/lexiqai/lecture-notes/internal/transcription"
)

const owner = "user-1"

var generatedNotes = "## Intro to Graphs\n\n### Definitions\n" +
	strings.Repeat("- A graph is a set of vertices joined by edges.\n", 6) +
	"\n## Formulas & Equations\n- $|E| \\le \\binom{|V|}{2}$\n"

// storedNotes is the model reply as the chain returns it, surrounding whitespace trimmed
var storedNotes = strings.TrimSpace(generatedNotes)

const factCheckReply = `[{"claim":"Edges join three vertices","correction":"Edges join two vertices","rationale":"Definition of an edge","confidence":0.9,"severity":"high"}]`

// fakeProvider is a scripted transcription.Provider
type fakeProvider struct {
	mu              sync.Mutex
	configured      bool
	uploadErr       error
	uploads         int
	submitErr       error
	submitted       []transcription.JobRequest
	jobs            map[string][]*transcription.Job
	transcripts     map[string]*transcription.Transcript
	transcriptErr   error
	getJobCalls     int
	transcriptCalls int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		configured:  true,
		jobs:        make(map[string][]*transcription.Job),
		transcripts: make(map[string]*transcription.Transcript),
	}
}

// script queues statuses for a job; the last one repeats
func (p *fakeProvider) script(jobID string, jobs ...*transcription.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, j := range jobs {
		j.ID = jobID
	}
	p.jobs[jobID] = append(p.jobs[jobID], jobs...)
}

func (p *fakeProvider) Configured() bool { return p.configured }

func (p *fakeProvider) UploadFile(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads++
	if p.uploadErr != nil {
		return "", p.uploadErr
	}
	return "file-1", nil
}

func (p *fakeProvider) SubmitJob(ctx context.Context, req transcription.JobRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.submitErr != nil {
		return "", p.submitErr
	}
	p.submitted = append(p.submitted, req)
	return "job-1", nil
}

func (p *fakeProvider) GetJob(ctx context.Context, jobID string) (*transcription.Job, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getJobCalls++
	queue, ok := p.jobs[jobID]
	if !ok || len(queue) == 0 {
		return nil, transcription.ErrJobNotFound
	}
	job := queue[0]
	if len(queue) > 1 {
		p.jobs[jobID] = queue[1:]
	}
	copied := *job
	return &copied, nil
}

func (p *fakeProvider) GetTranscript(ctx context.Context, jobID string) (*transcription.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcriptCalls++
	if p.transcriptErr != nil {
		return nil, p.transcriptErr
	}
	tr, ok := p.transcripts[jobID]
	if !ok {
		return &transcription.Transcript{ID: jobID}, nil
	}
	return tr, nil
}

// recorder is an in-memory events.Publisher
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ctx context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Healthy() bool { return true }
func (r *recorder) Close()        {}

func (r *recorder) subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		out = append(out, ev.Subject)
	}
	return out
}

type fixture struct {
	svc        *Service
	store      *lecture.MemoryStore
	provider   *fakeProvider
	notesLLM   *llmtest.Provider
	checkLLM   *llmtest.Provider
	translator *llmtest.Provider
	events     *recorder
	audioURL   string
	htmlURL    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	audioServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".html") {
			w.Header().Set("Content-Type", "text/html")
			w.Header().Set("Content-Length", "512")
			return
		}
		w.Header().Set("Content-Type", "audio/webm")
		w.Write([]byte("webm-bytes"))
	}))
	t.Cleanup(audioServer.Close)

	logger := zerolog.Nop()
	f := &fixture{
		store:      lecture.NewMemoryStore(),
		provider:   newFakeProvider(),
		notesLLM:   llmtest.NewProvider("primary").Default(llmtest.Reply{Content: generatedNotes}),
		checkLLM:   llmtest.NewProvider("primary").Default(llmtest.Reply{Content: factCheckReply}),
		translator: llmtest.NewProvider("secondary").Default(llmtest.Reply{Content: "Hello class"}),
		events:     &recorder{},
		audioURL:   audioServer.URL + "/lecture.webm",
		htmlURL:    audioServer.URL + "/error.html",
	}

	notesChain := mustChain(t, "notes", f.notesLLM, []string{"m1", "m2", "m3"}, 0.3)
	checkChain := mustChain(t, "fact_check", f.checkLLM, []string{"m1"}, 0.1)
	translateChain := mustChain(t, "translation", f.translator, []string{"t1"}, 0.1)

	f.svc = NewService(Config{
		TargetLanguage: "en",
		LanguageHints:  []string{"en", "es"},
		PollInterval:   5 * time.Millisecond,
	}, Deps{
		Store:       f.store,
		Preflight:   audio.NewPreflight(audioServer.Client(), time.Second, logger),
		Provider:    f.provider,
		AudioClient: audioServer.Client(),
		Synthesizer: notes.NewSynthesizer(notesChain, logger),
		Checker:     factcheck.NewChecker(checkChain, logger),
		Translator:  translateChain,
		Events:      f.events,
		Logger:      logger,
	})
	return f
}

func mustChain(t *testing.T, name string, p llm.Provider, models []string, temp float64) *llm.Chain {
	t.Helper()
	chain, err := llm.NewChain(name, []llm.Tier{{Provider: p, Models: models}}, llm.ChainOptions{Temperature: temp, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewChain(%s) failed: %v", name, err)
	}
	return chain
}

func (f *fixture) createLecture(t *testing.T, l lecture.Lecture) lecture.Lecture {
	t.Helper()
	l.OwnerID = owner
	created, err := f.store.Create(context.Background(), l)
	if err != nil {
		t.Fatalf("create lecture: %v", err)
	}
	return created
}

func (f *fixture) get(t *testing.T, id string) lecture.Lecture {
	t.Helper()
	l, err := f.store.Get(context.Background(), owner, id)
	if err != nil {
		t.Fatalf("get lecture: %v", err)
	}
	return l
}

var errBoom = errors.New("boom")
