package node

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairplaylabs/adviser/internal/testutil"
)

func TestQualityCheckerAcceptsGoodDraft(t *testing.T) {
	m := script(`{"passed": true, "critique": ""}`)
	q := NewQualityChecker(m, nil, fastRetry(), nil)

	state := testutil.NewStateBuilder().
		Question("q").
		Documents(testutil.Doc("Doc", "content")).
		Answer("a solid answer").
		Build()

	d, err := q.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, d.QualityCheck)
	assert.True(t, d.QualityCheck.Passed)
}

func TestQualityCheckerRejectsWithCritique(t *testing.T) {
	m := script(`{"passed": false, "critique": "the 30 day deadline is missing"}`)
	q := NewQualityChecker(m, nil, fastRetry(), nil)

	state := testutil.NewStateBuilder().
		Question("q").
		Documents(testutil.Doc("Doc", "content")).
		Answer("a weak answer").
		Build()

	d, err := q.Run(context.Background(), state)
	require.NoError(t, err)
	require.NotNil(t, d.QualityCheck)
	assert.False(t, d.QualityCheck.Passed)
	assert.Equal(t, "the 30 day deadline is missing", d.QualityCheck.Critique)
}

func TestQualityCheckerPassesThroughNoEvidenceFallback(t *testing.T) {
	m := script("unused")
	q := NewQualityChecker(m, nil, fastRetry(), nil)

	state := testutil.NewStateBuilder().
		Question("q").
		Answer(NoEvidenceAnswer).
		Build()

	d, err := q.Run(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, d.QualityCheck.Passed)
	assert.Zero(t, m.Calls())
}

func TestQualityCheckerFailsOpenOnModelError(t *testing.T) {
	m := script()
	m.err = errors.New("model down")
	q := NewQualityChecker(m, nil, fastRetry(), nil)

	state := testutil.NewStateBuilder().
		Question("q").
		Documents(testutil.Doc("Doc", "content")).
		Answer("draft").
		Build()

	d, err := q.Run(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, d.QualityCheck.Passed)
}

func TestQualityCheckerFailsOpenOnMalformedOutput(t *testing.T) {
	m := script("Looks good to me!")
	q := NewQualityChecker(m, nil, fastRetry(), nil)

	state := testutil.NewStateBuilder().
		Question("q").
		Documents(testutil.Doc("Doc", "content")).
		Answer("draft").
		Build()

	d, err := q.Run(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, d.QualityCheck.Passed)
}
