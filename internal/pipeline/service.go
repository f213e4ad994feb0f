// Package pipeline runs the lecture transcription-to-notes pipeline: job
// launch, status polling, note synthesis, fact-checking and regeneration.
package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/audio"
	"github.com/lexiqai/lecture-notes/internal/events"
	"github.com/lexiqai/lecture-notes/internal/factcheck"
	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/llm"
	"github.com/lexiqai/lecture-notes/internal/notes"
	"github.com/lexiqai/lecture-notes/internal/transcription"
)

// Validator checks that a URL references fetchable audio
type Validator interface {
	Check(ctx context.Context, rawURL string) (*audio.ResourceInfo, error)
}

// Config holds the fixed pipeline settings
type Config struct {
	TargetLanguage  string
	LanguageHints   []string
	PollInterval    time.Duration
	PollMaxDuration time.Duration
}

// Deps are the collaborators a Service drives
type Deps struct {
	Store       lecture.Store
	Preflight   Validator
	Provider    transcription.Provider
	AudioClient *http.Client
	Synthesizer *notes.Synthesizer
	Checker     *factcheck.Checker
	Translator  *llm.Chain // nil disables secondary translation
	Events      events.Publisher
	Logger      zerolog.Logger
}

// Service implements the pipeline operations. It holds no per-lecture state;
// the lecture store is the only shared mutable resource.
type Service struct {
	cfg         Config
	store       lecture.Store
	preflight   Validator
	provider    transcription.Provider
	audioClient *http.Client
	synthesizer *notes.Synthesizer
	checker     *factcheck.Checker
	translator  *llm.Chain
	events      events.Publisher
	logger      zerolog.Logger
}

// NewService creates a pipeline service
func NewService(cfg Config, deps Deps) *Service {
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = "en"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	if deps.AudioClient == nil {
		deps.AudioClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if deps.Synthesizer == nil {
		deps.Synthesizer = notes.NewSynthesizer(nil, deps.Logger)
	}
	if deps.Checker == nil {
		deps.Checker = factcheck.NewChecker(nil, deps.Logger)
	}
	return &Service{
		cfg:         cfg,
		store:       deps.Store,
		preflight:   deps.Preflight,
		provider:    deps.Provider,
		audioClient: deps.AudioClient,
		synthesizer: deps.Synthesizer,
		checker:     deps.Checker,
		translator:  deps.Translator,
		events:      deps.Events,
		logger:      deps.Logger.With().Str("component", "pipeline").Logger(),
	}
}

// Store exposes the lecture store for callers that need reads
func (s *Service) Store() lecture.Store {
	return s.store
}

// PollInterval is the interval WatchJob polls at
func (s *Service) PollInterval() time.Duration {
	return s.cfg.PollInterval
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("subject", ev.Subject).Str("lecture_id", ev.LectureID).Msg("Failed to publish lifecycle event")
	}
}
