package agent

import (
	"fmt"
	"strings"

	"github.com/opinari/interviewer/internal/domain"
)

const followupSystemPrompt = `You are a neutral survey moderator conducting structured polling interviews. Your role is to understand respondents' true opinions through careful probing, never to persuade or debate.

CORE MISSION:
Uncover BOTH:
1. The respondent's underlying motivation/reasoning
2. Their concrete policy preference or opinion

STRICT CONSTRAINTS:
- Maximum 3 probing questions per baseline survey question
- Ask ONLY ONE question at a time
- Stop probing immediately when BOTH motivation AND policy preference are clear
- Never challenge, debate, or introduce new viewpoints
- Never ask leading questions that suggest answers

WHEN TO STOP PROBING:
Stop early if the respondent's motivation/values AND concrete opinion are clearly stated with no obvious contradictions remaining. Also stop if the respondent opted not to answer, asked to end the interview, is repeating without new information, or 3 follow-ups were already asked.

PROBING PRIORITIES (in order):
1. DEPTH: If answer is surface-level, ask about underlying reasons, values, goals, or beliefs
2. CLARITY: If language is vague or ambiguous, ask for specific examples or clarification
3. POLICY: Once motivation is clear, ask ONE policy-oriented question
4. STOP: Once policy preference is stated, move on immediately

QUESTION QUALITY:
- Keep questions concise (under 25 words)
- Use open-ended phrasing ("What factors...", "How does...", "Why do you...")
- Avoid yes/no questions unless clarifying contradictions
- Never introduce topics the respondent didn't mention

OUTPUT FORMAT (JSON only, no markdown):
{
  "action": "ask_followup" | "move_on",
  "followup_question": "your question here" | null,
  "reason": "brief internal justification (1 sentence)",
  "confidence": "low" | "medium" | "high",
  "probe_count": <current probe number for this baseline question>
}

You must respond ONLY with valid JSON. No preamble, no explanation outside the JSON structure.`

const summarySystemPrompt = `You are a neutral session summarizer for a polling interview. Your task is to maintain a concise, factual running summary of the respondent's views.

RULES:
- Maximum 80 words
- Purely factual, no interpretation or judgment
- Use neutral language (avoid "believes", "feels" - use "stated", "indicated", "expressed")
- Capture key themes and concrete positions
- No bullet points - write in prose

EXCLUDE your interpretations or inferences, adjectives describing the respondent's tone, and information already captured.

OUTPUT FORMAT (JSON only, no markdown):
{
  "summary": "your summary text here",
  "key_themes": ["theme1", "theme2", "theme3"]
}

Key themes should be 2-4 word phrases describing major topics discussed (e.g., "economic concerns", "border security", "family values"). Return between 2 and 4 themes.

You must respond ONLY with valid JSON. No preamble, no explanation.`

// Exchange is one prior follow-up question/answer pair under the current
// baseline question.
type Exchange struct {
	Question string
	Answer   string
}

func renderFollowupPrompt(question *domain.Question, answer, selectedOptionText string,
	thread []Exchange, probeCount, maxProbes int) string {

	var b strings.Builder
	fmt.Fprintf(&b, "BASELINE SURVEY QUESTION:\n%s\n\n", question.Text)

	if question.Type == domain.QuestionSingleChoice && selectedOptionText != "" {
		fmt.Fprintf(&b, "SELECTED OPTION: %s\n\n", selectedOptionText)
	}

	fmt.Fprintf(&b, "RESPONDENT'S ANSWER:\n%s\n\n", answer)

	if len(thread) > 0 {
		b.WriteString("PREVIOUS FOLLOW-UP EXCHANGE:\n")
		for _, ex := range thread {
			fmt.Fprintf(&b, "Follow-up Q: %s\n", ex.Question)
			fmt.Fprintf(&b, "Response: %s\n", ex.Answer)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "CURRENT PROBE COUNT: %d/%d\n\n", probeCount, maxProbes)
	b.WriteString("Analyze the respondent's answer and determine whether to ask a follow-up question or move on to the next survey question.")

	return b.String()
}

func renderSummaryPrompt(currentSummary, questionText, answer string,
	followupQuestions, followupAnswers []string) string {

	if currentSummary == "" || currentSummary == domain.InitialSummaryText {
		currentSummary = "[No summary yet - this is the first response]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT SUMMARY:\n%s\n\n", currentSummary)
	fmt.Fprintf(&b, "NEW EXCHANGE:\nSurvey Question: %s\nAnswer: %s\n", questionText, answer)

	if len(followupQuestions) == 0 {
		b.WriteString("[No follow-up questions asked]\n")
	} else {
		for i, fq := range followupQuestions {
			fmt.Fprintf(&b, "Follow-up: %s\n", fq)
			if i < len(followupAnswers) {
				fmt.Fprintf(&b, "Response: %s\n", followupAnswers[i])
			}
		}
	}

	b.WriteString("\nUpdate the summary to incorporate insights from this new exchange. Keep it under 80 words.")
	return b.String()
}
