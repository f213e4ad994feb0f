package notes

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lexiqai/lecture-notes/internal/lecture"
	"github.com/lexiqai/lecture-notes/internal/llm"
	"github.com/lexiqai/lecture-notes/internal/observability"
)

// Synthesizer generates notes through an ordered model chain
type Synthesizer struct {
	chain  *llm.Chain
	logger zerolog.Logger
}

// NewSynthesizer creates a synthesizer; a nil chain means no provider is configured
func NewSynthesizer(chain *llm.Chain, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		chain:  chain,
		logger: logger.With().Str("component", "synthesizer").Logger(),
	}
}

// Synthesize returns markdown notes. It fails with llm.ErrNoProviderConfigured
// or *llm.AllModelsFailedError.
func (s *Synthesizer) Synthesize(ctx context.Context, transcript lecture.TranscriptResult, keypoints []lecture.Keypoint) (string, error) {
	timer := observability.StartStage("synthesize")
	ctx, span := observability.StartSpan(ctx, "notes.synthesize")

	result, err := s.chain.Complete(ctx, SystemInstruction, BuildPrompt(transcript, keypoints))
	observability.EndSpan(span, err)
	timer.End(err)
	if err != nil {
		return "", fmt.Errorf("note synthesis: %w", err)
	}

	s.logger.Info().
		Str("model", result.Model).
		Int("keypoints", len(keypoints)).
		Int("notes_chars", len(result.Text)).
		Msg("Notes synthesized")
	return result.Text, nil
}
