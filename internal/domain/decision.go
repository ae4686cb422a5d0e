package domain

type DecisionAction string

const (
	ActionAskFollowup DecisionAction = "ask_followup"
	ActionMoveOn      DecisionAction = "move_on"
)

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// FollowupDecision is the closed outcome of the follow-up policy. Action is
// always one of the two declared values; FollowupQuestion is set only for
// ask_followup.
type FollowupDecision struct {
	Action           DecisionAction
	FollowupQuestion string
	Reason           string
	Confidence       Confidence
	ProbeCount       int
}

// MoveOn builds the safe-default decision the policy degrades to whenever
// the model cannot be consulted or its reply cannot be decoded.
func MoveOn(reason string, confidence Confidence, probeCount int) FollowupDecision {
	return FollowupDecision{
		Action:     ActionMoveOn,
		Reason:     reason,
		Confidence: confidence,
		ProbeCount: probeCount,
	}
}

// SummaryUpdate is the summary agent's result. On failure the agent returns
// the prior summary text with empty themes.
type SummaryUpdate struct {
	Summary string
	Themes  []string
}
