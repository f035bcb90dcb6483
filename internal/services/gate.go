package services

import (
	"math/rand/v2"
	"strings"

	"welcome-backend/internal/models"
)

// redirectMinWords is the word count a keyword-less message must exceed to be redirected.
const redirectMinWords = 5

// TopicGate is a keyword screen deciding whether a message is off-domain.
// False positives and negatives are expected.
type TopicGate struct {
	forbidden []string
	keywords  []string
	replies   []string
	pick      func(n int) int
}

// NewTopicGate builds a gate from the policy. replies must already be rendered.
func NewTopicGate(policy models.TopicPolicy, replies []string) *TopicGate {
	return &TopicGate{
		forbidden: lowerAll(policy.ForbiddenTopics),
		keywords:  lowerAll(policy.DomainKeywords),
		replies:   replies,
		pick:      rand.IntN,
	}
}

// ShouldRedirect reports whether message must get a canned reply instead of a completion.
func (g *TopicGate) ShouldRedirect(message string) bool {
	lower := strings.ToLower(message)

	for _, topic := range g.forbidden {
		if strings.Contains(lower, topic) {
			return true
		}
	}

	for _, keyword := range g.keywords {
		if strings.Contains(lower, keyword) {
			return false
		}
	}

	return len(strings.Fields(message)) > redirectMinWords
}

// RedirectReply returns one canned reply, picked uniformly.
func (g *TopicGate) RedirectReply() string {
	if len(g.replies) == 0 {
		return ""
	}
	return g.replies[g.pick(len(g.replies))]
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
