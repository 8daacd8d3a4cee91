package vision

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanAnalysis = `{"furniture":[{"type":"sofa","style":["modern"],"materials":["linen"],"colors":["grey"],"dimensions":"220x90cm","searchTerms":["grey linen sofa"]}],"decor":[{"type":"rug","style":["minimal"],"colors":["beige"],"searchTerms":["beige rug"]}],"structural":{"walls":["white paint"],"flooring":["oak"],"windows":["floor-to-ceiling"]}}`

func TestSanitizeModelOutputLeavesCleanJSONUnchanged(t *testing.T) {
	assert.Equal(t, cleanAnalysis, SanitizeModelOutput(cleanAnalysis))
	assert.Equal(t, cleanAnalysis, SanitizeModelOutput(SanitizeModelOutput(cleanAnalysis)))
}

func TestSanitizeModelOutputStripsFences(t *testing.T) {
	cases := map[string]string{
		"json tag":          "```json\n" + cleanAnalysis + "\n```",
		"upper json tag":    "```JSON " + cleanAnalysis + "```",
		"bare fence":        "```\n" + cleanAnalysis + "\n```",
		"padding":           "  \n```json\n" + cleanAnalysis + "\n```  \n",
		"leading only":      "```json\n" + cleanAnalysis,
		"trailing only":     cleanAnalysis + "\n```",
		"surrounding space": "\n\t" + cleanAnalysis + "  ",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, cleanAnalysis, SanitizeModelOutput(raw))
		})
	}
}

func TestParseAnalysisFencedMatchesClean(t *testing.T) {
	want, err := ParseAnalysis(cleanAnalysis)
	require.NoError(t, err)

	for _, raw := range []string{"```json\n" + cleanAnalysis + "\n```", "```\n" + cleanAnalysis + "\n```"} {
		got, err := ParseAnalysis(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	require.Len(t, want.Furniture, 1)
	assert.Equal(t, "sofa", want.Furniture[0].Type)
	assert.Equal(t, StringList{"white paint"}, want.Structural.Walls)
}

func TestParseAnalysisExtractsObjectFromProse(t *testing.T) {
	got, err := ParseAnalysis("Here is the analysis you asked for:\n" + cleanAnalysis + "\nLet me know if you need more.")
	require.NoError(t, err)
	assert.Equal(t, "rug", got.Decor[0].Type)
}

func TestParseAnalysisFailureCarriesRawText(t *testing.T) {
	raw := "I'm sorry, I can't analyze this image."
	_, err := ParseAnalysis(raw)

	var parseErr *AnalysisParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, raw, parseErr.Raw)
	assert.Equal(t, "parse", Phase(err))
}

func TestParseAnalysisRejectsForeignObjects(t *testing.T) {
	_, err := ParseAnalysis(`{"summary":"a nice room"}`)
	var parseErr *AnalysisParseError
	require.ErrorAs(t, err, &parseErr)

	_, err = ParseAnalysis(`[1,2,3]`)
	require.ErrorAs(t, err, &parseErr)
}

func TestParseAnalysisNormalizesShape(t *testing.T) {
	got, err := ParseAnalysis(`{"structural":{"walls":"brick","flooring":null}}`)
	require.NoError(t, err)
	assert.Equal(t, StringList{"brick"}, got.Structural.Walls)

	encoded, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"furniture":[],"decor":[],"structural":{"walls":["brick"],"flooring":[],"windows":[]}}`, string(encoded))
}

func TestStringListDropsDuplicates(t *testing.T) {
	var list StringList
	require.NoError(t, json.Unmarshal([]byte(`["oak","","oak","walnut"]`), &list))
	assert.Equal(t, StringList{"oak", "walnut"}, list)
}
