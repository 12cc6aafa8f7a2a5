package node

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/graph"
	"github.com/fairplaylabs/adviser/resilience"
	"github.com/fairplaylabs/adviser/retrieval"
)

type pipelineModels struct {
	classifier  *scriptedModel
	planner     *scriptedModel
	synthesizer *scriptedModel
	quality     *scriptedModel
	escalate    *scriptedModel
}

func buildPipeline(t *testing.T, models pipelineModels, retriever *retrieval.HybridRetriever, opts Options) *graph.Graph[core.RunState, core.Delta] {
	t.Helper()
	expander := retrieval.NewExpander(models.planner, retriever, nil, retrieval.ExpanderOptions{
		Retry: resilience.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
	}, nil)
	opts.Retry = resilience.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}

	g, err := NewPipeline(Deps{
		ClassifierModel:  models.classifier,
		PlannerModel:     models.planner,
		SynthesizerModel: models.synthesizer,
		QualityModel:     models.quality,
		EscalateModel:    models.escalate,
		Retriever:        retriever,
		Expander:         expander,
	}, opts)
	require.NoError(t, err)
	return g
}

func TestPipelineEscalatesAbuseReportImmediately(t *testing.T) {
	models := pipelineModels{
		classifier:  script(`{"domain": "safeguarding", "emotional_state": "fearful", "imminent_danger": true}`),
		planner:     script(`{"complex": false}`),
		synthesizer: script("never used"),
		quality:     script(`{"passed": true}`),
		escalate:    script("You deserve to be safe. Please reach out right away."),
	}
	g := buildPipeline(t, models, stubRetriever(), Options{})

	final, err := g.Invoke(context.Background(),
		userState("my coach is abusing me and I am in danger right now"), graph.RunOptions{})
	require.NoError(t, err)

	require.NotNil(t, final.Escalation)
	assert.Equal(t, core.UrgencyImmediate, final.Escalation.Urgency)
	assert.Equal(t, core.ReasonImminentDanger, final.Escalation.Reason)
	assert.Contains(t, final.Answer, DefaultAuthorities()[core.DomainSafeguarding].Contact)

	// The escalation path never touches retrieval or synthesis.
	assert.Zero(t, models.synthesizer.Calls())
	assert.Zero(t, models.quality.Calls())
	assert.Empty(t, final.Documents)
}

func TestPipelineNoEvidenceDegradesToFixedAnswer(t *testing.T) {
	models := pipelineModels{
		classifier:  script(`{"domain": "governance", "emotional_state": "neutral"}`),
		planner:     script(`{"complex": false}`),
		synthesizer: script("never used"),
		quality:     script(`{"passed": true}`),
		escalate:    script("never used"),
	}
	// Empty corpus: base retrieval and the expansion round both come back
	// with nothing.
	g := buildPipeline(t, models, stubRetriever(), Options{})

	final, err := g.Invoke(context.Background(),
		userState("what does bylaw 12 say about quorum?"), graph.RunOptions{})
	require.NoError(t, err)

	assert.True(t, final.ExpansionAttempted)
	assert.Equal(t, NoEvidenceAnswer, final.Answer)
	assert.Empty(t, final.Citations)
	assert.Nil(t, final.Escalation)
	// The fixed fallback never came from the synthesizer model.
	assert.Zero(t, models.synthesizer.Calls())
}

func TestPipelineQualityLoopBoundedByRetryBudget(t *testing.T) {
	models := pipelineModels{
		classifier:  script(`{"domain": "anti_doping", "emotional_state": "neutral"}`),
		planner:     script(`{"complex": false}`),
		synthesizer: script("draft one", "draft two", "draft three"),
		quality:     script(`{"passed": false, "critique": "too vague"}`),
		escalate:    script("never used"),
	}
	g := buildPipeline(t, models,
		stubRetriever(core.VectorMatch{Content: "the rule text", Distance: 0.1}),
		Options{MaxQualityRetries: 2})

	final, err := g.Invoke(context.Background(),
		userState("is this substance prohibited?"), graph.RunOptions{})
	require.NoError(t, err)

	// Retry budget of 2 allows exactly three drafts, then the last one
	// ships despite the failing verdict.
	assert.Equal(t, 3, models.synthesizer.Calls())
	assert.Equal(t, 2, final.QualityRetryCount)
	assert.Equal(t, "draft three", final.Answer)
	require.NotNil(t, final.QualityCheck)
	assert.False(t, final.QualityCheck.Passed)
	assert.NotEmpty(t, final.Citations)
}

func TestPipelineAcceptedDraftCarriesCitationsAndDisclaimer(t *testing.T) {
	models := pipelineModels{
		classifier:  script(`{"domain": "anti_doping", "emotional_state": "neutral"}`),
		planner:     script(`{"complex": false}`),
		synthesizer: script("The substance is prohibited in competition [S1]."),
		quality:     script(`{"passed": true}`),
		escalate:    script("never used"),
	}
	g := buildPipeline(t, models,
		stubRetriever(core.VectorMatch{
			Content:  "Substance X is prohibited in competition.",
			Metadata: map[string]any{"title": "Prohibited list"},
			Distance: 0.1,
		}),
		Options{})

	final, err := g.Invoke(context.Background(),
		userState("is substance X prohibited?"), graph.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, models.synthesizer.Calls())
	assert.Contains(t, final.Answer, "[S1]")
	require.Len(t, final.Citations, 1)
	assert.Equal(t, "Prohibited list", final.Citations[0].Title)
	assert.Equal(t, Disclaimer, final.Disclaimer)
	assert.Equal(t, 0, final.QualityRetryCount)
}
