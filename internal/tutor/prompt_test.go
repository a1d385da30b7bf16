package tutor

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemPromptEmbedsPaperBetweenHeaderAndRules(t *testing.T) {
	p := SystemPrompt("PAPER BODY")
	header := strings.Index(p, "You are helping someone understand an academic paper.")
	body := strings.Index(p, "PAPER BODY")
	rules := strings.Index(p, "CRITICAL RULES:")
	require.GreaterOrEqual(t, header, 0)
	assert.Less(t, header, body)
	assert.Less(t, body, rules)
	assert.Contains(t, p, "TEACHING FLOW:")
	assert.Contains(t, p, "L_ij = q_i × q_j × exp(-α × D_ij^γ)")
}

func TestSystemPromptLayout(t *testing.T) {
	p := SystemPrompt("X")
	assert.True(t, strings.HasPrefix(p, "\nYou are helping someone understand an academic paper.\nHere is the paper \n\n\nX\n\nCRITICAL RULES:\n"))
	assert.Contains(t, p, "5. Use concrete examples and analogies before math. \n6. Build foundations")
	assert.True(t, strings.HasSuffix(p, "BAD (don't do this):\n\"Here's everything about DPPs: [wall of text with all equations]\"\n"))
}

func TestClampPaperIsRuneSafe(t *testing.T) {
	got, cut := clampPaper("αβγδε", 3)
	assert.True(t, cut)
	assert.Equal(t, "αβγ"+truncationMarker, got)

	got, cut = clampPaper("short", 10)
	assert.False(t, cut)
	assert.Equal(t, "short", got)

	got, cut = clampPaper("no limit", 0)
	assert.False(t, cut)
	assert.Equal(t, "no limit", got)
}

func TestTurnJSONUsesRoleNames(t *testing.T) {
	raw, err := json.Marshal([]Turn{{Role: RoleUser, Text: "hi"}, {Role: RoleAssistant, Text: "hello"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]`, string(raw))

	_, err = json.Marshal(Turn{Role: Role(9)})
	require.Error(t, err)
}
