package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/swmlgen/internal/ordered"
	"github.com/dgallion1/swmlgen/internal/render"
	"github.com/dgallion1/swmlgen/internal/swml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inline = `
version: 1.0.0
applications:
  - {section: main, kind: answer}
  - {section: main, kind: record_call, options: {format: wav, stereo: true}}
include: {url: "https://x/swaig", capabilities: [search]}
languages:
  - {code: en-US, name: English, voice: voice-1}
params: {debug: 1}
prompt:
  params: {temperature: 0.5, top_p: 0.5}
  sections:
    - title: Overview
      bullets: [b1]
post_prompt:
  text: Summarize the call.
activate: main
extra:
  custom: {z: 1, a: 2}
`

func TestBuild_InlineSections(t *testing.T) {
	m, err := Load([]byte(inline))
	require.NoError(t, err)
	d, err := m.Build(t.TempDir())
	require.NoError(t, err)

	out, err := d.Render(render.JSON)
	require.NoError(t, err)
	assert.Equal(t,
		`{"version":"1.0.0",`+
			`"applications":{"main":[{"kind":"answer","options":{}},{"kind":"record_call","options":{"format":"wav","stereo":true}}]},`+
			`"include":{"url":"https://x/swaig","capabilities":["search"]},`+
			`"language":[{"code":"en-US","name":"English","voice":"voice-1"}],`+
			`"params":{"debug":1},`+
			`"prompt":{"temperature":0.5,"top_p":0.5,"content":[{"title":"Overview","bullets":["b1"]}]},`+
			`"post_prompt":{"content":"Summarize the call."},`+
			`"activate":"main",`+
			`"custom":{"z":1,"a":2}}`,
		string(out))
}

func TestBuild_FileContent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompt.md"),
		[]byte("## Personality\n\nYou are a movie expert.\n\n## Rules\n\n- Be accurate.\n- Be brief.\n"), 0o644))

	m, err := Load([]byte("applications: [{section: main, kind: answer}]\nprompt: {file: prompt.md}\n"))
	require.NoError(t, err)
	d, err := m.Build(dir)
	require.NoError(t, err)

	out, err := d.Render(render.JSON)
	require.NoError(t, err)
	assert.Contains(t, string(out),
		`"prompt":{"content":[{"title":"Personality","body":"You are a movie expert."},{"title":"Rules","bullets":["Be accurate.","Be brief."]}]}`)
	assert.Equal(t, swml.DefaultVersion, d.Version())
}

func TestBuild_MissingFile(t *testing.T) {
	m, err := Load([]byte("prompt: {file: nope.md}\n"))
	require.NoError(t, err)
	_, err = m.Build(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt: import nope.md")
}

func TestLoad_ConflictingContent(t *testing.T) {
	_, err := Load([]byte("prompt: {text: hi, file: prompt.md}\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflictingContent))
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"unknown field": "versoin: 1.0.0\n",
		"no kind":       "applications: [{section: main}]\n",
		"no section":    "applications: [{kind: answer}]\n",
		"no code":       "languages: [{name: English}]\n",
		"bad type":      "applications: {main: answer}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestBuild_InvalidSections(t *testing.T) {
	m, err := Load([]byte("prompt:\n  sections:\n    - body: no title\n"))
	require.NoError(t, err)
	_, err = m.Build("")
	require.Error(t, err)
}

func TestBuild_ReservedExtra(t *testing.T) {
	m, err := Load([]byte("extra: {version: 2}\n"))
	require.NoError(t, err)
	_, err = m.Build("")
	assert.True(t, errors.Is(err, swml.ErrReservedKey))
}

func TestLoad_JSON(t *testing.T) {
	m, err := Load([]byte(`{"version": "2.0.0", "applications": [{"section": "main", "kind": "answer"}], "activate": "main"}`))
	require.NoError(t, err)
	d, err := m.Build("")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", d.Version())
	assert.Equal(t, "main", d.Activation())
}

func TestLoadFile_Moviebot(t *testing.T) {
	path := filepath.Join("..", "..", "examples", "moviebot", "moviebot.yaml")
	m, err := LoadFile(path)
	require.NoError(t, err)
	d, err := m.Build(filepath.Dir(path))
	require.NoError(t, err)

	wire, err := d.SWML()
	require.NoError(t, err)
	sections, _ := wire.Get("sections")
	mainVal, _ := sections.(*ordered.Map).Get("main")
	steps := mainVal.([]any)
	require.Len(t, steps, 3)
	assert.Equal(t, []string{"answer"}, steps[0].(*ordered.Map).Keys())
	last := steps[len(steps)-1].(*ordered.Map)
	assert.Equal(t, []string{swml.VerbAI}, last.Keys())

	ai, _ := last.Get(swml.VerbAI)
	prompt, _ := ai.(*ordered.Map).Get("prompt")
	assert.Equal(t, []string{"temperature", "top_p", "pom"}, prompt.(*ordered.Map).Keys())
}

func TestManifest_Files(t *testing.T) {
	m, err := Load([]byte("prompt: {file: a.md}\npost_prompt: {file: b.txt}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.txt"}, m.Files())

	m, err = Load([]byte(inline))
	require.NoError(t, err)
	assert.Empty(t, m.Files())
}

func TestBuild_FollowsManifestOrder(t *testing.T) {
	m, err := Load([]byte("activate: main\npost_prompt: {text: bye}\napplications: [{section: main, kind: answer}]\nprompt: {text: hi}\n"))
	require.NoError(t, err)
	d, err := m.Build("")
	require.NoError(t, err)
	assert.Equal(t, []string{"version", "activate", "post_prompt", "applications", "prompt"}, d.Keys())

	built := &Manifest{Prompt: &Content{Text: "hi"}, Activate: "main"}
	d, err = built.Build("")
	require.NoError(t, err)
	assert.Equal(t, []string{"version", "prompt", "activate"}, d.Keys())
}

func TestLoad_ExcessiveAliasing(t *testing.T) {
	src := "version: 1.0.0\napplications: [{section: main, kind: answer}]\nextra:\n" +
		"  l0: &l0 [x, x, x, x, x, x, x, x, x, x]\n"
	for i := 1; i < 8; i++ {
		refs := strings.TrimSuffix(strings.Repeat(fmt.Sprintf("*l%d, ", i-1), 10), ", ")
		src += fmt.Sprintf("  l%d: &l%d [%s]\n", i, i, refs)
	}

	_, err := Load([]byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "excessive aliasing")
}
