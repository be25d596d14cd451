package mflow_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
)

const sampleJSON = `{
  "trigger": "onClick",
  "componentId": "button-1",
  "nodes": [
    {"id": "start", "kind": "start", "label": "Start", "position": {"x": 10, "y": 20}},
    {"id": "fetch", "kind": "http.request", "label": "Fetch",
     "config": {"url": "https://api.example.com/items?limit={{limit}}", "timeoutMs": 1500.50, "headers": {"X-Token": "{{secrets.token}}"}},
     "failurePolicy": "continue"},
    {"id": "check", "kind": "condition", "label": "Has items",
     "config": {"returnType": "boolean", "cases": [{"id": "c1", "leftOperand": "{{fetch.body.count}}", "operator": "greaterThan", "rightOperand": "0", "rightOperandType": "static", "returnValue": "true"}]}}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "fetch"},
    {"id": "e2", "source": "fetch", "target": "check"}
  ],
  "variables": [{"name": "limit", "value": 25}]
}`

func TestDecodeEncode_StableRoundTrip(t *testing.T) {
	f, err := mflow.Load([]byte(sampleJSON), mflow.FormatJSON)
	require.NoError(t, err)
	require.Len(t, f.Nodes, 3)
	require.Equal(t, mflow.FailurePolicyContinue, f.Nodes[1].Policy())
	require.Equal(t, mflow.FailurePolicyStop, f.Nodes[0].Policy())

	first, err := mflow.Encode(f, mflow.FormatJSON)
	require.NoError(t, err)
	require.Contains(t, string(first), "1500.50")

	again, err := mflow.Decode(first, mflow.FormatJSON)
	require.NoError(t, err)
	second, err := mflow.Encode(again, mflow.FormatJSON)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestStripLayoutKeepsSemantics(t *testing.T) {
	f, err := mflow.Decode([]byte(sampleJSON), mflow.FormatJSON)
	require.NoError(t, err)

	stripped := f.StripLayout()
	require.Nil(t, stripped.Nodes[0].Position)
	require.NotNil(t, f.Nodes[0].Position)
	require.Equal(t, f.Nodes[1].Config, stripped.Nodes[1].Config)
}

func TestLoadYAML(t *testing.T) {
	doc := `
trigger: onLoad
componentId: page
nodes:
  - id: start
    kind: start
  - id: log
    kind: log
    config:
      message: "hello {{name}}"
edges:
  - id: e1
    source: start
    target: log
variables:
  - name: name
    value: world
`
	f, err := mflow.Load([]byte(doc), mflow.FormatYAML)
	require.NoError(t, err)
	require.Equal(t, "onLoad", f.Trigger)
	require.Equal(t, map[string]any{"name": "world"}, f.VariableMap())
	require.Equal(t, "hello {{name}}", f.Nodes[1].Config["message"])
}

func TestValidateSchema_RejectsBadShape(t *testing.T) {
	doc := `{"nodes": [{"id": "start"}], "edges": [{"source": "start"}]}`
	err := mflow.ValidateSchema([]byte(doc), mflow.FormatJSON)
	var verrs mflow.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.GreaterOrEqual(t, len(verrs), 2)
}

func TestFormatFromPath(t *testing.T) {
	require.Equal(t, mflow.FormatYAML, mflow.FormatFromPath("flow.yml"))
	require.Equal(t, mflow.FormatYAML, mflow.FormatFromPath("flow.YAML"))
	require.Equal(t, mflow.FormatJSON, mflow.FormatFromPath("flow.json"))
}
