package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/require"
)

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"limit=3", "debug=true", "name=ada", "tags=[a, b]", "empty=", "url=http://x?a=b"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"limit": 3,
		"debug": true,
		"name":  "ada",
		"tags":  []any{"a", "b"},
		"empty": "",
		"url":   "http://x?a=b",
	}, vars)

	_, err = parseVars([]string{"novalue"})
	require.ErrorContains(t, err, "expected name=value")
	_, err = parseVars([]string{"=3"})
	require.Error(t, err)
}

func writeFlow(t *testing.T, dir, name, doc string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	homedir.DisableCache = true
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LOG_LEVEL", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

const doubleFlow = `{
  "nodes": [
    {"id": "start", "kind": "start"},
    {"id": "double", "kind": "evaluate", "config": {"expression": "{{limit}} * 2"}},
    {"id": "check", "kind": "condition", "config": {"cases": [
      {"leftOperand": "{{double.value}}", "operator": "greaterThan", "rightOperand": "5", "returnValue": "true"}
    ]}},
    {"id": "big", "kind": "log", "config": {"message": "big {{double.value}}"}},
    {"id": "small", "kind": "log", "config": {"message": "small"}}
  ],
  "edges": [
    {"source": "start", "target": "double"},
    {"source": "double", "target": "check"},
    {"source": "check", "target": "big", "branch": "true"},
    {"source": "check", "target": "small", "branch": "false"}
  ],
  "variables": [{"name": "limit", "value": 1}]
}`

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFlow(t, dir, "double.json", doubleFlow)
	report := filepath.Join(dir, "report.json")
	db := filepath.Join(dir, "history.db")

	_, err := execute(t, "run", path, "--db", db, "--no-history=false", "--show-output=true",
		"--report", "json:"+report, "--var", "limit=3")
	require.NoError(t, err)

	raw, err := os.ReadFile(report)
	require.NoError(t, err)
	var results []map[string]any
	require.NoError(t, json.Unmarshal(raw, &results))
	require.Len(t, results, 1)
	require.Equal(t, "double", results[0]["flow_name"])
	require.Equal(t, "Succeeded", results[0]["status"])

	runCtx := results[0]["context"].(map[string]any)
	require.Equal(t, float64(6), runCtx["double"].(map[string]any)["value"])
	require.Contains(t, runCtx, "big")
	require.NotContains(t, runCtx, "small")

	out, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	require.Contains(t, out, "double")
	require.Contains(t, out, "Succeeded")
}

func TestRunCommand_FailedRunExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	path := writeFlow(t, dir, "broken.json", `{
  "nodes": [
    {"id": "start", "kind": "start"},
    {"id": "boom", "kind": "fail", "config": {"message": "nope"}}
  ],
  "edges": [{"source": "start", "target": "boom"}]
}`)

	_, err := execute(t, "run", path, "--db", filepath.Join(dir, "h.db"), "--no-history=true",
		"--show-output=false", "--report", "json:"+filepath.Join(dir, "r.json"))
	var exitErr *exitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 1, exitErr.code)
	require.Contains(t, exitErr.Error(), "boom")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFlow(t, dir, "good.json", doubleFlow)
	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	require.Contains(t, out, "ok (5 nodes, 4 edges)")

	bad := writeFlow(t, dir, "bad.yaml", `
nodes:
  - id: start
    kind: start
  - id: fetch
    kind: htp.request
edges:
  - source: start
    target: fetch
`)
	out, err = execute(t, "validate", bad)
	var exitErr *exitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 2, exitErr.code)
	require.Contains(t, out, `did you mean "http.request"`)
}

func TestVarCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "vars.db")
	_, err := execute(t, "var", "set", "orders", "limit", "10", "--db", db)
	require.NoError(t, err)
	out, err := execute(t, "var", "list", "orders", "--db", db)
	require.NoError(t, err)
	require.Equal(t, "limit=10\n", out)
}
