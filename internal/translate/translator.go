package translate

import (
	"context"
)

// Translator converts text between languages. Implementations are shared
// across sessions and must be safe for concurrent use.
type Translator interface {
	// Translate converts text from the source to the target language.
	// Returns an error for unsupported pairs or backend failures.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
