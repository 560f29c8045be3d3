package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowvault/internal/domain/workflow"
)

func TestEffectiveSequenceMandatoryOnly(t *testing.T) {
	seq := workflow.EffectiveSequence(nil)
	require.NotEmpty(t, seq)
	for _, s := range seq {
		assert.True(t, s.Mandatory, "stage %s should be mandatory", s.Key)
	}
	assert.Equal(t, workflow.StagePendingShipment, seq[0].Key)
	assert.Equal(t, workflow.StageArchive, seq[len(seq)-1].Key)
}

func TestEffectiveSequenceKeepsGlobalOrder(t *testing.T) {
	seq := workflow.EffectiveSequence([]workflow.StageKey{
		workflow.StageFinalQC,
		workflow.StageToScan, // order of the input must not matter
	})
	positions := map[workflow.StageKey]int{}
	for i, s := range seq {
		positions[s.Key] = i
	}
	assert.Less(t, positions[workflow.StageToScan], positions[workflow.StageFinalQC])
	assert.Less(t, positions[workflow.StageFinalQC], positions[workflow.StageDelivery])
}

func TestNextEnabledSkipsDisabledStages(t *testing.T) {
	// Only scanning enabled: from To Scan the book skips the started stage
	// and lands in Storage, the next mandatory step.
	next, ok, err := workflow.NextEnabled(workflow.StageToScan, []workflow.StageKey{workflow.StageToScan})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, workflow.StageStorage, next.Key)
}

func TestNextEnabledWithFullPipeline(t *testing.T) {
	enabled := []workflow.StageKey{
		workflow.StageToScan, workflow.StageScanningStarted,
		workflow.StageToIndexing, workflow.StageIndexingStarted,
		workflow.StageToChecking, workflow.StageCheckingStarted,
		workflow.StageReadyForProcessing, workflow.StageInProcessing,
		workflow.StageProcessed, workflow.StageFinalQC,
	}
	steps := []workflow.StageKey{workflow.StagePendingShipment}
	cur := workflow.StagePendingShipment
	for {
		next, ok, err := workflow.NextEnabled(cur, enabled)
		require.NoError(t, err)
		if !ok {
			break
		}
		steps = append(steps, next.Key)
		cur = next.Key
	}
	assert.Len(t, steps, len(workflow.Sequence), "full pipeline must visit every stage")
	assert.Equal(t, workflow.StageArchive, steps[len(steps)-1])
}

func TestNextEnabledUnknownStage(t *testing.T) {
	_, _, err := workflow.NextEnabled(workflow.StageKey("no-such-stage"), nil)
	assert.ErrorIs(t, err, workflow.ErrUnknownStage)
}

func TestNextEnabledEndOfSequence(t *testing.T) {
	_, ok, err := workflow.NextEnabled(workflow.StageArchive, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMandatoryKeysMatchCatalog(t *testing.T) {
	keys := workflow.MandatoryKeys()
	set := map[workflow.StageKey]bool{}
	for _, k := range keys {
		set[k] = true
	}
	assert.True(t, set[workflow.StageStorage])
	assert.True(t, set[workflow.StageDelivery])
	assert.True(t, set[workflow.StageFinalized])
	assert.False(t, set[workflow.StageToScan])
	assert.False(t, set[workflow.StageFinalQC])
}

func TestFromStatusRoundTrip(t *testing.T) {
	for _, s := range workflow.Sequence {
		got, ok := workflow.FromStatus(s.Status)
		require.True(t, ok, s.Status)
		assert.Equal(t, s.Key, got.Key)
	}
	_, ok := workflow.FromStatus("Totally Made Up")
	assert.False(t, ok)
}

func TestRoleStatuses(t *testing.T) {
	assert.Equal(t, []string{"To Scan", "Scanning Started"}, workflow.RoleStatuses(workflow.RoleScanner))
	assert.Equal(t, []string{"To Checking", "Checking Started"}, workflow.RoleStatuses(workflow.RoleQC))
	assert.Nil(t, workflow.RoleStatuses(workflow.RoleNone))
}
