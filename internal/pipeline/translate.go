package pipeline

import (
	"context"
	"fmt"
)

const translationInstruction = `You translate lecture transcripts. Translate the user's text into the language with code %q.
Keep technical terms, numbers and formulas exact. Output only the translation, with no commentary.`

// translate runs the secondary model translation. ok is false when no
// translator is configured or every model failed.
func (s *Service) translate(ctx context.Context, text string) (string, bool) {
	if s.translator == nil {
		return "", false
	}
	result, err := s.translator.Complete(ctx, fmt.Sprintf(translationInstruction, s.cfg.TargetLanguage), text)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Secondary translation failed, keeping untranslated text")
		return "", false
	}
	return result.Text, true
}
