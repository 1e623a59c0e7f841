package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLibrary = `
vars:
  company: Acme
templates:
  standup:
    description: Daily standup
    instruction: Summarize {{company}}'s standup as yesterday, today and blockers.
  board:
    description: Board meeting
    instruction: |
      Formal board minutes. List resolutions and votes.
`

func TestParse_ResolveAndList(t *testing.T) {
	lib, err := Parse([]byte(sampleLibrary))
	require.NoError(t, err)

	assert.Equal(t, "Summarize Acme's standup as yesterday, today and blockers.", lib.Resolve("standup"))
	assert.Equal(t, "Formal board minutes. List resolutions and votes.", lib.Resolve(" board "))
	assert.Equal(t, "Only action items, please.", lib.Resolve("Only action items, please."))
	assert.Equal(t, "", lib.Resolve(""))
	assert.Equal(t, "", lib.Resolve(" \n\t"))

	list := lib.List()
	require.Len(t, list, 2)
	assert.Equal(t, "board", list[0].Name)
	assert.Equal(t, "standup", list[1].Name)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "missing variable", doc: "templates:\n  a:\n    instruction: hi {{who}}\n", wantErr: "missing template variables: who"},
		{name: "empty instruction", doc: "templates:\n  a:\n    description: x\n", wantErr: `template "a": instruction is empty`},
		{name: "not yaml", doc: "templates: [", wantErr: "parse templates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	lib, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, lib.List())
	assert.Equal(t, "raw", lib.Resolve("raw"))

	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleLibrary), 0o600))
	lib, err = Load(path)
	require.NoError(t, err)
	assert.Len(t, lib.List(), 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNilLibrary(t *testing.T) {
	var lib *Library
	assert.Equal(t, "verbatim", lib.Resolve("verbatim"))
	assert.Nil(t, lib.List())
}

func TestRender(t *testing.T) {
	out, err := Render("{{a}} and {{b}} and {{a}}", map[string]string{"a": "x", "b": "y"})
	require.NoError(t, err)
	assert.Equal(t, "x and y and x", out)

	assert.Equal(t, []string{"a", "b"}, ExtractVariables("{{a}} {{b}} {{a}}"))
	assert.Empty(t, ExtractVariables("no placeholders"))
}
