package translation

import "context"

// ContextMessage is one preceding channel message supplied as conversational
// context to the primary translator.
type ContextMessage struct {
	AuthorName string
	Content    string
}

// ContextTranslator is the primary, context-aware translation path.
type ContextTranslator interface {
	// TranslateWithContext translates text using preceding channel messages
	// as conversational context. It returns the exact prompt sent alongside
	// the translation so callers can audit-log the attempt.
	TranslateWithContext(ctx context.Context, text, sourceLang, targetLang string, contextMsgs []ContextMessage) (translated, prompt string, err error)
}

// PlainTranslator is the secondary machine-translation fallback.
type PlainTranslator interface {
	TranslatePlain(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
