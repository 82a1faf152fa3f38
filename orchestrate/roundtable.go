package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sun-rs/three"
)

// Participant is one named seat in a roundtable.
type Participant struct {
	Name  string
	Role  string
	Model string // optional model_override, empty = role default
}

// contextLevelDefaults provides per_agent_chars/total_chars when the caller
// names a level but doesn't override the numbers directly.
var contextLevelDefaults = map[string][2]int{
	"compact":  {400, 2000},
	"balanced": {800, 6000},
	"rich":     {1600, 12000},
}

// RoundtableRequest is the engine-facing shape of the `roundtable` tool
// surface operation.
type RoundtableRequest struct {
	WorkDir        string
	Client         string
	ConversationID string

	Topic        string
	Participants []Participant
	Rounds       int

	Round1ForceNew          bool
	ContextLevel            string // "compact" | "balanced" | "rich"
	PerAgentChars           int    // overrides ContextLevel's default when > 0
	TotalChars              int    // overrides ContextLevel's default when > 0
	StageTimeoutSecs        int
	StageMinSuccesses       int
	Round2OnlyStage1Success bool
	Anonymous               bool

	// PersistArtifacts writes run.start.json/round-NN.json/run.complete.json
	// under ArtifactsDir/<run id> (ArtifactsDir defaults to "."; the run id
	// is RunID, or a generated uuid when RunID is empty) as each round
	// completes.
	PersistArtifacts bool
	ArtifactsDir     string
	RunID            string
}

// Contribution is one participant's outcome within one round.
type Contribution struct {
	Participant string // label, anonymized when RoundtableRequest.Anonymous
	Success     bool
	Message     string
	Truncated   bool
	Error       *three.Error
}

// ConvergenceStats is the discussion_dynamics block reported from round 2
// onward.
type ConvergenceStats struct {
	AverageSimilarity  float64
	HighSimilarityRatio float64
	LengthDelta        int
	Converged          bool
}

// RoundOutput is one round's structured result.
type RoundOutput struct {
	Round              int
	Summary            string
	Stage              string // "completed" | "stage_timeout"
	Contributions       []Contribution
	FailedCount        int
	DiscussionDynamics *ConvergenceStats
	CharsUsed          int
	CharsTruncated     int
}

// RoundtableResponse is the `roundtable` tool surface's return shape.
type RoundtableResponse struct {
	Success       bool
	AbortedReason string
	Rounds        []RoundOutput
	ArtifactsDir  string `json:",omitempty"`
}

// participantState tracks what Roundtable carries forward between rounds
// for one participant.
type participantState struct {
	label          string
	sessionID      string
	stage1Success  bool
	previousText   string
	hasPreviousText bool
}

// Roundtable runs a topic through N rounds of a fixed participant panel,
// resuming each participant's own round-1 session from round 2 onward,
// applying a round-level deadline with a single bounded extension, and
// detecting convergence between rounds. Synthesis across the discussion is
// left entirely to the caller.
func (e *Engine) Roundtable(ctx context.Context, req RoundtableRequest) RoundtableResponse {
	perAgentChars, totalChars := resolveContextBudget(req)

	states := make(map[string]*participantState, len(req.Participants))
	for i, p := range req.Participants {
		label := p.Name
		if req.Anonymous {
			label = anonymousLabel(i)
		}
		states[p.Name] = &participantState{label: label}
	}

	runDir := ""
	if req.PersistArtifacts {
		runDir = e.beginArtifacts(req)
	}

	var carryover string
	var roundsOut []RoundOutput
	abortedReason := ""

	for round := 1; round <= req.Rounds; round++ {
		participants := req.Participants
		if round >= 2 && req.Round2OnlyStage1Success {
			filtered := make([]Participant, 0, len(req.Participants))
			for _, p := range req.Participants {
				if states[p.Name].stage1Success {
					filtered = append(filtered, p)
				}
			}
			participants = filtered
		}

		roundOut, roundCarryoverText := e.runRound(ctx, req, participants, states, round, carryover, perAgentChars)
		roundsOut = append(roundsOut, roundOut)
		carryover = appendCarryover(carryover, roundOut.Round, roundCarryoverText, totalChars)

		if runDir != "" {
			e.writeArtifact(runDir, fmt.Sprintf("round-%02d.json", round), roundOut)
		}

		if round >= 2 && roundOut.DiscussionDynamics != nil && roundOut.DiscussionDynamics.Converged {
			abortedReason = fmt.Sprintf("discussion_converged_at_round_%d", round)
			break
		}
	}

	success := true
	for _, r := range roundsOut {
		if r.FailedCount > 0 && r.FailedCount == len(r.Contributions) {
			success = false
		}
	}
	resp := RoundtableResponse{Success: success, AbortedReason: abortedReason, Rounds: roundsOut, ArtifactsDir: runDir}

	if runDir != "" {
		e.writeArtifact(runDir, "run.complete.json", resp)
	}
	return resp
}

// beginArtifacts creates the run's artifact directory (generating a uuid
// run id when the caller didn't supply one) and writes run.start.json.
// Persistence failures are logged, not fatal — the discussion still runs.
func (e *Engine) beginArtifacts(req RoundtableRequest) string {
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	base := req.ArtifactsDir
	if base == "" {
		base = "."
	}
	runDir := filepath.Join(base, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		e.log.Warnw("roundtable artifact dir creation failed", "dir", runDir, "error", err)
		return ""
	}
	e.writeArtifact(runDir, "run.start.json", map[string]any{
		"run_id":       runID,
		"topic":        req.Topic,
		"rounds":       req.Rounds,
		"participants": req.Participants,
	})
	return runDir
}

func (e *Engine) writeArtifact(runDir, name string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		e.log.Warnw("roundtable artifact marshal failed", "file", name, "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(runDir, name), data, 0o644); err != nil {
		e.log.Warnw("roundtable artifact write failed", "file", name, "error", err)
	}
}

// resolveContextBudget applies the named context level's defaults, letting
// explicit PerAgentChars/TotalChars values override them.
func resolveContextBudget(req RoundtableRequest) (perAgentChars, totalChars int) {
	perAgentChars, totalChars = contextLevelDefaults["balanced"][0], contextLevelDefaults["balanced"][1]
	if defaults, ok := contextLevelDefaults[req.ContextLevel]; ok {
		perAgentChars, totalChars = defaults[0], defaults[1]
	}
	if req.PerAgentChars > 0 {
		perAgentChars = req.PerAgentChars
	}
	if req.TotalChars > 0 {
		totalChars = req.TotalChars
	}
	return perAgentChars, totalChars
}

// anonymousLabel renders participant index i as "Response A", "Response B",
// ..., "Response Z", "Response AA", ...
func anonymousLabel(i int) string {
	letters := ""
	for n := i; ; n = n/26 - 1 {
		letters = string(rune('A'+n%26)) + letters
		if n < 26 {
			break
		}
	}
	return "Response " + letters
}

// runRound executes one round's concurrent fan-out under a round-level
// deadline (with the single bounded extension), builds its Contribution
// list, updates per-participant state, and runs convergence detection.
// It returns both the structured RoundOutput and the per-agent-truncated
// text, labelled with each participant's (possibly anonymized) label, to
// fold into the next round's carryover.
func (e *Engine) runRound(ctx context.Context, req RoundtableRequest, participants []Participant, states map[string]*participantState, round int, carryover string, perAgentChars int) (RoundOutput, []contributionText) {
	type roundResult struct {
		idx int
		res three.Result
	}

	deadline := time.Duration(req.StageTimeoutSecs) * time.Second
	if deadline <= 0 {
		deadline = 120 * time.Second
	}
	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan roundResult, len(participants))

	for i, p := range participants {
		st := states[p.Name]
		if round >= 2 && st.sessionID == "" {
			ch <- roundResult{idx: i, res: three.Failure(three.NewError(three.KindSessionInvalidOnResume,
				"no round 1 session recorded for participant %q, cannot resume", p.Name))}
			continue
		}

		i, p, st := i, p, st
		go func() {
			prompt := buildParticipantPrompt(req.Topic, round, req.Rounds, carryover)
			callReq := CallRequest{
				Prompt:          prompt,
				WorkDir:         req.WorkDir,
				Role:            p.Role,
				Client:          req.Client,
				ConversationID:  req.ConversationID,
				ForceNewSession: round == 1 && req.Round1ForceNew,
				ModelOverride:   p.Model,
			}
			if round >= 2 {
				callReq.SessionID = st.sessionID
			}
			res := e.Call(roundCtx, callReq)
			ch <- roundResult{idx: i, res: res}
		}()
	}

	results := make([]*three.Result, len(participants))
	remaining := len(participants)
	timer := time.NewTimer(deadline)
	defer timer.Stop()
	extensionUsed := false

collect:
	for remaining > 0 {
		select {
		case rr := <-ch:
			if results[rr.idx] == nil {
				results[rr.idx] = &rr.res
				remaining--
			}
		case <-timer.C:
			if !extensionUsed && countSuccesses(results) < req.StageMinSuccesses {
				extensionUsed = true
				extra := deadline / 2
				if extra > 30*time.Second {
					extra = 30 * time.Second
				}
				timer.Reset(extra)
				continue
			}
			break collect
		}
	}
	cancel()

	stage := "completed"
	for i := range results {
		if results[i] == nil {
			stage = "stage_timeout"
			timeoutErr := three.NewError(three.KindTimeout, "stage_timeout: participant did not complete before the round deadline")
			f := three.Failure(timeoutErr)
			results[i] = &f
		}
	}

	contributions := make([]Contribution, len(participants))
	carryoverTexts := make([]contributionText, 0, len(participants))
	failedCount := 0
	charsUsed := 0
	charsTruncated := 0

	for i, p := range participants {
		st := states[p.Name]
		res := results[i]
		contrib := Contribution{Participant: st.label, Success: res.Success, Message: res.Message, Error: res.Error}

		if res.Success {
			if round == 1 {
				st.stage1Success = true
				st.sessionID = res.SessionID
			}
			truncated, wasTruncated := truncateAtParagraph(res.Message, perAgentChars)
			contrib.Truncated = wasTruncated
			charsUsed += len(truncated)
			if wasTruncated {
				charsTruncated++
			}
			carryoverTexts = append(carryoverTexts, contributionText{label: st.label, text: truncated})
		} else {
			failedCount++
		}
		contributions[i] = contrib
	}

	var dynamics *ConvergenceStats
	if round >= 2 {
		dynamics = detectConvergence(participants, states, results)
	}
	for i, p := range participants {
		res := results[i]
		if res.Success {
			states[p.Name].previousText = res.Message
			states[p.Name].hasPreviousText = true
		}
	}

	out := RoundOutput{
		Round:              round,
		Summary:            fmt.Sprintf("round %d/%d: %d/%d participants succeeded", round, req.Rounds, len(participants)-failedCount, len(participants)),
		Stage:              stage,
		Contributions:      contributions,
		FailedCount:        failedCount,
		DiscussionDynamics: dynamics,
		CharsUsed:          charsUsed,
		CharsTruncated:     charsTruncated,
	}
	return out, carryoverTexts
}

func countSuccesses(results []*three.Result) int {
	n := 0
	for _, r := range results {
		if r != nil && r.Success {
			n++
		}
	}
	return n
}

// buildParticipantPrompt renders the ROUND/TOPIC header plus, from round 2
// on, the carryover context and the required reply structure.
func buildParticipantPrompt(topic string, round, rounds int, carryover string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ROUND %d/%d\nTOPIC: %s\n", round, rounds, topic)
	if round == 1 {
		return sb.String()
	}
	sb.WriteString("\nPREVIOUS ROUND CONTEXT:\n")
	sb.WriteString(carryover)
	sb.WriteString("\n\nReply with the following structure: position update, agreements, disagreements, new insights, and an updated recommendation. Cite your peers by name where relevant.\n")
	return sb.String()
}

// contributionText is one successful, already-per-agent-truncated response
// awaiting assembly into the cross-round carryover.
type contributionText struct {
	label string
	text  string
}

// truncateAtParagraph truncates s to at most max characters, preferring a
// paragraph boundary ("\n\n") in the back half of the cut, else a hard cut.
func truncateAtParagraph(s string, max int) (string, bool) {
	if len(s) <= max {
		return s, false
	}
	cut := s[:max]
	if idx := strings.LastIndex(cut, "\n\n"); idx > max/2 {
		return strings.TrimRight(cut[:idx], "\n") + "\n...[truncated]...", true
	}
	return cut + "...[truncated]...", true
}

// appendCarryover folds one round's contributions into the running
// cross-round context, then truncates the merged text to totalChars from
// the front so the most recent round is kept. After the cut, the kept text
// starts at the next "=== ROUND " header when one remains in it; otherwise
// it is a hard cut.
func appendCarryover(existing string, round int, contributions []contributionText, totalChars int) string {
	var sb strings.Builder
	sb.WriteString(existing)
	fmt.Fprintf(&sb, "=== ROUND %d ===\n", round)
	for _, c := range contributions {
		fmt.Fprintf(&sb, "%s:\n%s\n\n", c.label, c.text)
	}
	merged := sb.String()
	if len(merged) <= totalChars {
		return merged
	}
	cutFrom := len(merged) - totalChars
	kept := merged[cutFrom:]
	if idx := strings.Index(kept, "=== ROUND "); idx > 0 {
		kept = kept[idx:]
	}
	return "...[earlier rounds truncated]...\n" + kept
}

// wordBagPattern extracts case-folded words longer than two characters for
// Jaccard similarity, with punctuation stripped.
var wordBagPattern = regexp.MustCompile(`[A-Za-z0-9]{3,}`)

func wordBag(s string) map[string]struct{} {
	bag := map[string]struct{}{}
	for _, w := range wordBagPattern.FindAllString(strings.ToLower(s), -1) {
		bag[w] = struct{}{}
	}
	return bag
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// detectConvergence compares this round's successful responses against each
// participant's previous-round text and reports the aggregate similarity
// signals that decide whether the discussion has converged.
func detectConvergence(participants []Participant, states map[string]*participantState, results []*three.Result) *ConvergenceStats {
	var similarities []float64
	var lengthDeltas []int
	highSim := 0

	for i, p := range participants {
		st := states[p.Name]
		res := results[i]
		if res == nil || !res.Success || !st.hasPreviousText {
			continue
		}
		sim := jaccard(wordBag(res.Message), wordBag(st.previousText))
		similarities = append(similarities, sim)
		lengthDeltas = append(lengthDeltas, len(res.Message)-len(st.previousText))
		if sim > 0.80 {
			highSim++
		}
	}
	if len(similarities) == 0 {
		return &ConvergenceStats{}
	}

	avg := 0.0
	for _, s := range similarities {
		avg += s
	}
	avg /= float64(len(similarities))

	highRatio := float64(highSim) / float64(len(similarities))

	deltaSum := 0
	for _, d := range lengthDeltas {
		deltaSum += d
	}
	avgDelta := int(math.Round(float64(deltaSum) / float64(len(lengthDeltas))))

	converged := highRatio > 0.65 || (avg > 0.75 && avgDelta < -200)

	return &ConvergenceStats{
		AverageSimilarity:   avg,
		HighSimilarityRatio: highRatio,
		LengthDelta:         avgDelta,
		Converged:           converged,
	}
}
