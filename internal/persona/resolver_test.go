package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKnownPersona(t *testing.T) {
	r := NewResolver()

	p := r.Resolve("support")
	assert.Equal(t, "support", p.ID)
	assert.Equal(t, "Sam", p.Name)
	assert.NotEmpty(t, p.VoiceID)
	assert.NotEmpty(t, p.BaseInstructions)
}

func TestResolveIsCaseAndSpaceInsensitive(t *testing.T) {
	r := NewResolver()
	assert.Equal(t, "sales", r.Resolve("  SALES ").ID)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	r := NewResolver()

	for _, id := range []string{"", "does-not-exist"} {
		p := r.Resolve(id)
		assert.Equal(t, DefaultPersonaID, p.ID, "id %q", id)
		assert.False(t, r.Known(id))
	}
}

func TestResolveReturnsIndependentCopies(t *testing.T) {
	r := NewResolver()

	p := r.Resolve("reminder")
	require.NotEmpty(t, p.TriggerPhrases)
	p.TriggerPhrases[0] = "mutated"

	assert.NotEqual(t, "mutated", r.Resolve("reminder").TriggerPhrases[0])
}

func TestListIsSortedAndComplete(t *testing.T) {
	list := NewResolver().List()
	require.Len(t, list, 5)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID, list[i].ID)
	}
}
