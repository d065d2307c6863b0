package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDirectivesBasic(t *testing.T) {
	src := []byte("intro\n\n::: note\nhello *world*\n:::\n\nafter\n")
	directives, errs := ExtractDirectives(src, nil)
	require.Empty(t, errs)
	require.Len(t, directives, 1)
	assert.Equal(t, "note", directives[0].Name)
	assert.Contains(t, directives[0].Body, "hello")
}

func TestExtractDirectivesNamedCloser(t *testing.T) {
	src := []byte("::: warning\nbe careful\n::: {/warning}\n")
	directives, errs := ExtractDirectives(src, nil)
	require.Empty(t, errs)
	require.Len(t, directives, 1)
	assert.Equal(t, "warning", directives[0].Name)
}

func TestExtractDirectivesUnclosedIsError(t *testing.T) {
	src := []byte("::: note\nnever closes\n")
	_, errs := ExtractDirectives(src, nil)
	require.Len(t, errs, 1)
	cerr, ok := errs[0].(*ContractError)
	require.True(t, ok)
	assert.Equal(t, "rendering/directive_contract_unclosed", cerr.Code)
}

func TestExtractDirectivesSkipsFencedCode(t *testing.T) {
	src := []byte("```\n::: note\nnot a directive, just code\n:::\n```\n")
	directives, errs := ExtractDirectives(src, nil)
	assert.Empty(t, errs)
	assert.Empty(t, directives)
}

func TestExtractDirectivesNestedSameName(t *testing.T) {
	src := []byte("::: tabs\n::: tabs\ninner\n:::\nouter-after\n:::\n")
	directives, errs := ExtractDirectives(src, nil)
	require.Empty(t, errs)
	require.Len(t, directives, 2)
	var outer, inner *Directive
	for i := range directives {
		if directives[i].Parent == "" {
			outer = &directives[i]
		} else {
			inner = &directives[i]
		}
	}
	require.NotNil(t, outer)
	require.NotNil(t, inner)
	assert.Contains(t, outer.Body, "outer-after")
}

func TestCheckContractRequiresParent(t *testing.T) {
	src := []byte("::: tab\ncontent\n:::\n")
	contracts := map[string]Contract{
		"tab": {Name: "tab", AllowedParents: []string{"tabs"}},
	}
	_, errs := ExtractDirectives(src, contracts)
	require.Len(t, errs, 1)
	cerr := errs[0].(*ContractError)
	assert.Equal(t, "rendering/directive_contract_parent", cerr.Code)
}
