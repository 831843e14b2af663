package council

import (
	"context"
	"errors"
	"time"

	"github.com/mtzanidakis/synedrio/internal/config"
	"github.com/mtzanidakis/synedrio/internal/store"
	"github.com/mtzanidakis/synedrio/internal/transcript"
)

// MaxAttachments is the number of images a turn may carry (Image A and B).
const MaxAttachments = 2

var (
	ErrBusy               = errors.New("a deliberation is already in progress")
	ErrEmptyTurn          = errors.New("turn has no text and no attachments")
	ErrTooManyAttachments = errors.New("turn carries more than two attachments")
)

type Attachment = transcript.Attachment

// Turn is one user request to the council.
type Turn struct {
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type AnalysisResult struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
	Text    string `json:"text"`
}

type Critique struct {
	ReviewerID string `json:"reviewer_id"`
	Reviewer   string `json:"reviewer"`
	Text       string `json:"text"`
}

// Reply is what an invocation produced. Degraded replies carry fallback text
// and are otherwise treated like any other reply.
type Reply struct {
	Text     string
	Degraded bool
}

// Invoker turns prompts into agent text. Implementations never fail: provider
// errors come back as degraded replies.
type Invoker interface {
	InvokeAgent(ctx context.Context, agent config.AgentDefinition, turn Turn, prior []transcript.Message) Reply
	InvokeCritique(ctx context.Context, reviewer config.AgentDefinition, others []AnalysisResult) Reply
	InvokeSynthesis(ctx context.Context, synthesizer config.AgentDefinition, turn Turn, analyses []AnalysisResult, critiques []Critique) Reply
}

type Publisher interface {
	PublishJSON(topic string, v any) error
}

type RunStore interface {
	SaveRun(r *store.Run) error
	CompleteRun(id string, critiques, degraded int, synthesized bool) error
}

type Phase string

const (
	PhaseIdle         Phase = ""
	PhaseInitializing Phase = "INITIALIZING COUNCIL..."
	PhaseAnalysis     Phase = "PHASE 1/3: INDIVIDUAL ANALYSIS..."
	PhaseCritique     Phase = "PHASE 2/3: PEER VERIFICATION..."
	PhaseSynthesis    Phase = "PHASE 3/3: FINAL VERDICT..."
)

// State is a snapshot of the conversation and the run flag.
type State struct {
	Messages []transcript.Message `json:"messages"`
	Active   bool                 `json:"active"`
	Phase    Phase                `json:"phase"`
	RunID    string               `json:"run_id,omitempty"`
}

type Outcome struct {
	RunID       string           `json:"run_id"`
	Analyses    []AnalysisResult `json:"analyses"`
	Critiques   []Critique       `json:"critiques"`
	Verdict     string           `json:"verdict,omitempty"`
	Synthesized bool             `json:"synthesized"`
	Degraded    int              `json:"degraded"`
	StartedAt   time.Time        `json:"started_at"`
	Duration    time.Duration    `json:"duration"`
}
