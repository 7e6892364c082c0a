package translate

import (
	"context"
	"fmt"
)

// Mock tags text with the target language instead of translating it.
type Mock struct{}

// Translate returns the input prefixed with the target language.
func (Mock) Translate(_ context.Context, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == targetLang {
		return text, nil
	}
	return fmt.Sprintf("[%s] %s", targetLang, text), nil
}
