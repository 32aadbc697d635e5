package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"counselordev/leads"
)

func TestExtractIgnoresSurroundingNoise(t *testing.T) {
	raw := `Great, noted! {"Country": "UK", "Budget": "30 lakhs"} Anything else?`

	fields, err := Extract(raw, leads.Names())
	require.NoError(t, err)
	assert.Equal(t, leads.FieldMap{"Country": "UK", "Budget": "30 lakhs"}, fields)
}

func TestExtractNullFieldTreatedAsAbsent(t *testing.T) {
	raw := `Sure! {"Country": "UK", "Budget": null} Thanks!`

	fields, err := Extract(raw, leads.Names())
	require.NoError(t, err)
	assert.Equal(t, leads.FieldMap{"Country": "UK"}, fields)
}

func TestExtractPlaceholderLiteralsTreatedAsAbsent(t *testing.T) {
	raw := `{"Name": "null", "Email": "N/A", "College": "unknown", "Country": "Germany"}`

	fields, err := Extract(raw, leads.Names())
	require.NoError(t, err)
	assert.Equal(t, leads.FieldMap{"Country": "Germany"}, fields)
}

func TestExtractMarkdownFencedObject(t *testing.T) {
	raw := "Here you go:\n```json\n{\"Intended_Major\": \"CS, Data Science\"}\n```\nLet me know!"

	fields, err := Extract(raw, leads.Names())
	require.NoError(t, err)
	assert.Equal(t, leads.FieldMap{"Intended_Major": "CS, Data Science"}, fields)
}

func TestExtractMalformedJSON(t *testing.T) {
	_, err := Extract(`Sorry, {"Country": "UK"`, leads.Names())
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = Extract("no braces at all", leads.Names())
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestExtractSkipsBogusBraceBeforeRealObject(t *testing.T) {
	raw := `smiley {:-) aside, here it is {"Country": "Canada"} done`

	fields, err := Extract(raw, leads.Names())
	require.NoError(t, err)
	assert.Equal(t, leads.FieldMap{"Country": "Canada"}, fields)
}

func TestExtractNoRecognizedFields(t *testing.T) {
	raw := `{"Suggestions": "USA, UK", "Sources": []}`

	fields, err := Extract(raw, leads.Names())
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestExtractNestedBracesInsideStrings(t *testing.T) {
	raw := `note {"Name": "Raj {the builder}", "Country": "USA"} end`

	fields, err := Extract(raw, leads.Names())
	require.NoError(t, err)
	assert.Equal(t, "Raj {the builder}", fields["Name"])
	assert.Equal(t, "USA", fields["Country"])
}

func TestExtractNumericValue(t *testing.T) {
	fields, err := Extract(`{"Budget": 4500000}`, leads.Names())
	require.NoError(t, err)
	assert.Equal(t, "4500000", fields["Budget"])
}

func TestStripRemovesPayloadAndFences(t *testing.T) {
	raw := "You should look at UK universities.\n```json\n{\"Country\": \"UK\"}\n```"
	assert.Equal(t, "You should look at UK universities.", Strip(raw))
}

func TestStripWithoutObject(t *testing.T) {
	assert.Equal(t, "Just a plain reply.", Strip("Just a plain reply.\n"))
}

func TestStripMidSentenceObjectLeavesSingleSpace(t *testing.T) {
	raw := `Great! {"Country": "UK"} Anything else I can help with?`
	assert.Equal(t, "Great! Anything else I can help with?", Strip(raw))
}

func TestSuggestionsFromArray(t *testing.T) {
	raw := `Noted! {"Country": "UK", "Suggestions": ["Tell me about Loans", "Visa Rules", " Top Universities "]}`
	assert.Equal(t, []string{"Tell me about Loans", "Visa Rules", "Top Universities"}, Suggestions(raw))
}

func TestSuggestionsFromCommaString(t *testing.T) {
	raw := `{"Suggestions": "USA, UK, Germany"}`
	assert.Equal(t, []string{"USA", "UK", "Germany"}, Suggestions(raw))
}

func TestSuggestionsAbsentOrEmpty(t *testing.T) {
	assert.Nil(t, Suggestions(`{"Country": "UK"}`))
	assert.Nil(t, Suggestions(`{"Suggestions": []}`))
	assert.Nil(t, Suggestions(`{"Suggestions": null}`))
	assert.Nil(t, Suggestions("no object here"))
}
