package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/naijavoice/tts-api/internal/text"
)

// Static errors.
var (
	// ErrUnknownVoice indicates a voice outside the configured set.
	ErrUnknownVoice = errors.New("unsupported voice")
	// ErrUnknownLanguage indicates a language outside the configured set.
	ErrUnknownLanguage = errors.New("unsupported language")
)

// Rules validates synthesis requests against the configured voice and
// language sets and the text constraints. Both the HTTP handlers and the
// NATS worker apply the same rules, so a job is rejected identically
// regardless of transport.
type Rules struct {
	validator       *text.Validator
	voices          map[string]struct{}
	languages       map[string]struct{}
	voiceNames      []string
	languageNames   []string
	defaultLanguage string
}

// NewRules builds a rule set from the configured limits. The first language
// in the list is the default applied when a request leaves language unset.
func NewRules(maxTextLength int, voices, languages []string) *Rules {
	voiceSet := make(map[string]struct{}, len(voices))
	for _, voice := range voices {
		voiceSet[voice] = struct{}{}
	}

	languageSet := make(map[string]struct{}, len(languages))
	for _, language := range languages {
		languageSet[language] = struct{}{}
	}

	defaultLanguage := ""
	if len(languages) > 0 {
		defaultLanguage = languages[0]
	}

	return &Rules{
		validator:       text.NewValidator(maxTextLength),
		voices:          voiceSet,
		languages:       languageSet,
		voiceNames:      voices,
		languageNames:   languages,
		defaultLanguage: defaultLanguage,
	}
}

// ValidateRequest checks req in place, applying the default language and
// normalizing the text. The returned error is suitable for direct exposure
// to the caller.
func (r *Rules) ValidateRequest(req *Request) error {
	textErr := r.validator.Validate(req.Text)
	if textErr != nil {
		return textErr
	}

	req.Text = r.validator.Normalize(req.Text)

	if req.Language == "" {
		req.Language = r.defaultLanguage
	}

	if _, ok := r.languages[req.Language]; !ok {
		return fmt.Errorf(
			"%w: %q, must be one of [%s]",
			ErrUnknownLanguage,
			req.Language,
			strings.Join(r.languageNames, ", "),
		)
	}

	if _, ok := r.voices[req.Voice]; !ok {
		return fmt.Errorf(
			"%w: %q, must be one of [%s]",
			ErrUnknownVoice,
			req.Voice,
			strings.Join(r.voiceNames, ", "),
		)
	}

	return nil
}
