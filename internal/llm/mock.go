package llm

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opinari/interviewer/internal/config"
	"github.com/opinari/interviewer/internal/domain"
)

// MockProvider is the network-free substitute for the real provider. It
// synthesizes token counts from text length and decides ask-followup vs
// move-on from answer length and probe count, so full interview flows run
// without external dependencies. Deterministic for a fixed seed.
type MockProvider struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	sleep func(time.Duration)
}

func NewMockProvider(seed int64) *MockProvider {
	return &MockProvider{
		rnd:   rand.New(rand.NewSource(seed)),
		sleep: time.Sleep,
	}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, req Request) (*ProviderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	latency := config.MockLatencyMin +
		time.Duration(m.rnd.Int63n(int64(config.MockLatencyMax-config.MockLatencyMin)))
	m.sleep(latency)

	var text string
	switch req.AgentTag {
	case domain.AgentFollowUp:
		text = m.followupReply(req.UserMessage)
	case domain.AgentSummary:
		text = m.summaryReply(req.UserMessage)
	default:
		text = `{"mock": "response"}`
	}

	return &ProviderResult{
		Text:         text,
		FinishReason: "end_turn",
		InputTokens:  estimateTokens(req.UserMessage),
		OutputTokens: estimateTokens(text),
	}, nil
}

// estimateTokens is the usual 4-chars-per-token approximation.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n < 10 {
		return 10
	}
	return n
}

func (m *MockProvider) followupReply(prompt string) string {
	answer := extractSection(prompt, "RESPONDENT'S ANSWER:")
	probe := extractProbeCount(prompt)
	words := len(strings.Fields(answer))

	var ask bool
	var reason, confidence string
	switch {
	case probe >= 3:
		ask, reason, confidence = false, "Maximum probes reached", "high"
	case words < 10:
		ask, reason, confidence = true, "Answer appears surface-level, seeking deeper understanding", "low"
	case words < 30:
		ask = m.rnd.Float64() < 0.7
		confidence = "medium"
		if ask {
			reason = "Seeking clarification on key points mentioned"
		} else {
			reason = "Sufficient detail provided"
		}
	default:
		ask = m.rnd.Float64() < 0.3
		confidence = "high"
		if ask {
			reason = "Exploring specific aspect mentioned"
		} else {
			reason = "Comprehensive response with clear motivation and preference"
		}
	}

	if !ask {
		out, _ := json.Marshal(map[string]any{
			"action":            "move_on",
			"followup_question": nil,
			"reason":            reason,
			"confidence":        confidence,
			"probe_count":       probe,
		})
		return string(out)
	}

	out, _ := json.Marshal(map[string]any{
		"action":            "ask_followup",
		"followup_question": m.pickQuestion(prompt),
		"reason":            reason,
		"confidence":        confidence,
		"probe_count":       probe + 1,
	})
	return string(out)
}

var mockFollowupQuestions = []string{
	"What factors led you to that perspective?",
	"Can you tell me more about what concerns you most about this?",
	"What would an ideal solution look like from your point of view?",
	"How do you think this affects people in your community?",
	"What experiences have shaped your thinking on this?",
	"What trade-offs do you see with different approaches?",
	"Can you walk me through your reasoning on this?",
}

func (m *MockProvider) pickQuestion(prompt string) string {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "economic") || strings.Contains(lower, "cost"):
		return "How do economic considerations factor into your view on this?"
	case strings.Contains(lower, "family") || strings.Contains(lower, "personal"):
		return "How have personal or family experiences influenced your perspective?"
	case strings.Contains(lower, "security") || strings.Contains(lower, "safety"):
		return "What specific security or safety concerns are most important to you?"
	}
	return mockFollowupQuestions[m.rnd.Intn(len(mockFollowupQuestions))]
}

var mockThemeKeywords = []struct {
	words []string
	theme string
}{
	{[]string{"economic", "cost", "money"}, "economic concerns"},
	{[]string{"family", "personal"}, "personal values"},
	{[]string{"security", "safety"}, "security priorities"},
	{[]string{"community", "people"}, "community impact"},
	{[]string{"concern", "worry", "negative"}, "critical perspective"},
	{[]string{"support", "positive"}, "supportive stance"},
}

func (m *MockProvider) summaryReply(prompt string) string {
	lower := strings.ToLower(prompt)

	var themes []string
	for _, kw := range mockThemeKeywords {
		for _, w := range kw.words {
			if strings.Contains(lower, w) {
				themes = append(themes, kw.theme)
				break
			}
		}
		if len(themes) == config.MaxThemes {
			break
		}
	}
	if len(themes) < config.MinThemes {
		themes = append(themes, "general perspective", "personal reasoning")
		themes = themes[:config.MinThemes]
	}

	verbs := []string{"expressed", "indicated", "stated", "articulated"}
	summary := "Respondent " + verbs[m.rnd.Intn(len(verbs))] +
		" views rooted in " + themes[0] + ", emphasizing practical considerations."

	out, _ := json.Marshal(map[string]any{
		"summary":    summary,
		"key_themes": themes,
	})
	return string(out)
}

func extractSection(prompt, header string) string {
	_, rest, ok := strings.Cut(prompt, header)
	if !ok {
		return ""
	}
	rest = strings.TrimLeft(rest, "\n ")
	if body, _, found := strings.Cut(rest, "\n\n"); found {
		return body
	}
	return rest
}

func extractProbeCount(prompt string) int {
	_, rest, ok := strings.Cut(prompt, "CURRENT PROBE COUNT:")
	if !ok {
		return 0
	}
	rest = strings.TrimSpace(rest)
	if i := strings.IndexByte(rest, '/'); i > 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(rest[:i])); err == nil {
			return n
		}
	}
	return 0
}
