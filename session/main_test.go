package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"counselordev/extract"
	"counselordev/leads"
)

func TestMergeOverwritesSingleValueFields(t *testing.T) {
	s := NewState()

	s.Merge(leads.FieldMap{"Budget": "20 lakhs"})
	s.Merge(leads.FieldMap{"Budget": "35 lakhs"})

	assert.Equal(t, "35 lakhs", s.Field("Budget"))
}

func TestMergeAccumulatesMultiValueFieldsWithoutDedup(t *testing.T) {
	s := NewState()

	s.Merge(leads.FieldMap{"Country": "UK"})
	assert.Equal(t, "UK", s.Field("Country"))

	s.Merge(leads.FieldMap{"Country": "USA"})
	assert.Equal(t, "UK, USA", s.Field("Country"))

	// Restating a value appends again; accumulation never dedups.
	s.Merge(leads.FieldMap{"Country": "USA"})
	assert.Equal(t, "UK, USA, USA", s.Field("Country"))
}

func TestMergeIgnoresEmptyValues(t *testing.T) {
	s := NewState()
	s.Merge(leads.FieldMap{"Name": "Priya"})

	s.Merge(leads.FieldMap{"Name": "", "Email": "   "})

	assert.Equal(t, "Priya", s.Field("Name"))
	assert.Equal(t, "", s.Field("Email"))
	assert.True(t, s.HasFields())
}

func TestMergeIgnoresUnknownFields(t *testing.T) {
	s := NewState()
	s.Merge(leads.FieldMap{"Suggestions": "USA, UK"})

	assert.False(t, s.HasFields())
}

func TestAbsentFieldMeansNeverObserved(t *testing.T) {
	s := NewState()
	assert.False(t, s.HasFields())
	assert.Equal(t, "", s.Field("Country"))
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := NewState()
	s.Merge(leads.FieldMap{"Country": "UK"})
	s.AddTurn("I want to study in the UK", "Great choice!")

	lead := s.Snapshot()
	s.Merge(leads.FieldMap{"Country": "USA"})

	assert.Equal(t, "UK", lead.Fields["Country"])
	assert.Equal(t, "UK, USA", s.Field("Country"))
	assert.NotEmpty(t, lead.SessionID)
	assert.Contains(t, lead.Conversation, "User: I want to study in the UK | Bot: Great choice!")
	assert.Contains(t, lead.UserInputs, "I want to study in the UK")
	assert.NotContains(t, lead.UserInputs, "Great choice!")
}

func TestTurnWithMalformedModelOutputLeavesStateUnchanged(t *testing.T) {
	s := NewState()
	s.Merge(leads.FieldMap{"Country": "UK"})

	_, err := extract.Extract(`Sorry, something broke {"Country": "USA"`, leads.Names())
	assert.ErrorIs(t, err, extract.ErrInvalidJSON)

	// The turn is absorbed: no merge happens, prior state intact.
	assert.Equal(t, "UK", s.Field("Country"))
}

func TestTurnFeedsExtractionIntoMerge(t *testing.T) {
	s := NewState()

	first, err := extract.Extract(`Noted! {"Country": "UK", "Budget": null}`, leads.Names())
	require.NoError(t, err)
	s.Merge(first)

	second, err := extract.Extract(`Great choices! {"Country": "USA", "Budget": "30 lakhs"}`, leads.Names())
	require.NoError(t, err)
	s.Merge(second)

	assert.Equal(t, "UK, USA", s.Field("Country"))
	assert.Equal(t, "30 lakhs", s.Field("Budget"))
}

func TestStoreGetCreatesOnce(t *testing.T) {
	st := NewStore()

	a := st.Get(42)
	b := st.Get(42)
	other := st.Get(7)

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
	assert.NotEqual(t, a.SessionID, other.SessionID)
}

func TestStoreResetReturnsPriorState(t *testing.T) {
	st := NewStore()

	first := st.Get(42)
	first.Merge(leads.FieldMap{"Name": "Priya"})

	prior := st.Reset(42)
	assert.Same(t, first, prior)

	fresh := st.Get(42)
	assert.NotSame(t, first, fresh)
	assert.False(t, fresh.HasFields())
}

func TestStoreResetWithoutPriorSession(t *testing.T) {
	st := NewStore()
	assert.Nil(t, st.Reset(99))
	assert.NotNil(t, st.Get(99))
}
