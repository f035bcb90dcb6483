package services

import (
	"strings"
	"unicode/utf8"
)

type ValidatorConfig struct {
	MinLength    int
	MaxLength    int
	BlockedWords []string
}

// MessageValidator applies length and blocked-word checks to visitor messages.
type MessageValidator struct {
	minLength    int
	maxLength    int
	blockedWords []string
}

func NewMessageValidator(cfg ValidatorConfig) *MessageValidator {
	words := make([]string, 0, len(cfg.BlockedWords))
	for _, w := range cfg.BlockedWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			words = append(words, w)
		}
	}
	return &MessageValidator{
		minLength:    cfg.MinLength,
		maxLength:    cfg.MaxLength,
		blockedWords: words,
	}
}

// Validate checks text in order and reports the first failing rule.
// Lengths are counted in characters, not bytes.
func (v *MessageValidator) Validate(text string) (bool, Reason) {
	if strings.TrimSpace(text) == "" {
		return false, ReasonEmpty
	}

	length := utf8.RuneCountInString(text)
	if length < v.minLength {
		return false, ReasonTooShort
	}
	if length > v.maxLength {
		return false, ReasonTooLong
	}

	lower := strings.ToLower(text)
	for _, word := range v.blockedWords {
		if strings.Contains(lower, word) {
			return false, ReasonContentNotAllowed
		}
	}

	return true, ""
}
