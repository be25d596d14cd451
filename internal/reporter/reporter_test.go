package reporter_test

import (
	"bytes"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/internal/reporter"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/idwrap"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
)

func TestParseReportSpecs(t *testing.T) {
	tests := []struct {
		name    string
		values  []string
		want    []reporter.ReportSpec
		wantErr string
	}{
		{name: "default console", values: nil, want: []reporter.ReportSpec{{Format: "console"}}},
		{name: "blank entries ignored", values: []string{" ", ""}, want: []reporter.ReportSpec{{Format: "console"}}},
		{
			name:   "file reporters",
			values: []string{"JSON:out/report.json", "junit: out/junit.xml", "console"},
			want: []reporter.ReportSpec{
				{Format: "json", Path: "out/report.json"},
				{Format: "junit", Path: "out/junit.xml"},
				{Format: "console"},
			},
		},
		{name: "json needs path", values: []string{"json"}, wantErr: "requires a file path"},
		{name: "console rejects path", values: []string{"console:x"}, wantErr: "does not accept a path"},
		{name: "unknown format", values: []string{"html:x"}, wantErr: "unsupported report format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reporter.ParseReportSpecs(tt.values)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func sampleOutcome() runner.Outcome {
	return runner.Outcome{
		RunID:         idwrap.NewNow(),
		Status:        runner.FlowStatusFailed,
		StartedAt:     time.Now(),
		Duration:      2 * time.Second,
		FailedNodeIDs: []string{"charge"},
		Context:       map[string]any{"fetch": map[string]any{"success": true}},
		Nodes: []runner.FlowNodeStatus{
			{ExecutionID: idwrap.NewMonotonic(), NodeID: "fetch", Name: "Fetch", State: mflow.NODE_STATE_SUCCESS, RunDuration: time.Millisecond},
			{ExecutionID: idwrap.NewMonotonic(), NodeID: "charge", Name: "Charge", State: mflow.NODE_STATE_FAILURE, Error: errors.New("card declined")},
			{ExecutionID: idwrap.NewMonotonic(), NodeID: "notify", Name: "Notify", State: mflow.NODE_STATE_SKIPPED},
			{
				ExecutionID:      idwrap.NewMonotonic(),
				NodeID:           "item",
				Name:             "Item",
				State:            mflow.NODE_STATE_SUCCESS,
				IterationContext: &runner.IterationContext{IterationPath: []int{0, 2}, ExecutionIndex: 2, ParentNodes: []string{"outer", "inner"}},
			},
		},
	}
}

func TestBuildFlowRunResult(t *testing.T) {
	o := sampleOutcome()
	res := reporter.BuildFlowRunResult("checkout", o, false)
	require.Equal(t, "checkout", res.FlowName)
	require.Equal(t, "Failed", res.Status)
	require.Nil(t, res.Context)
	require.Len(t, res.Nodes, 4)
	require.Equal(t, "card declined", res.Nodes[1].Error)
	require.Equal(t, "Skipped", res.Nodes[2].State)
	require.Equal(t, &reporter.IterationContextResult{
		IterationPath: []int{0, 2}, ExecutionIndex: 2, ParentNodes: []string{"outer", "inner"},
	}, res.Nodes[3].IterationContext)

	require.NotNil(t, reporter.BuildFlowRunResult("checkout", o, true).Context)
}

func TestFileReporters(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "nested", "report.json")
	junitPath := filepath.Join(dir, "junit.xml")

	group, err := reporter.NewReporterGroup([]reporter.ReportSpec{
		{Format: reporter.ReportFormatJSON, Path: jsonPath},
		{Format: reporter.ReportFormatJUnit, Path: junitPath},
	}, reporter.ReporterOptions{})
	require.NoError(t, err)
	require.False(t, group.HasConsole())

	group.HandleFlowResult(reporter.BuildFlowRunResult("checkout", sampleOutcome(), false))
	require.NoError(t, group.Flush())

	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "checkout", decoded[0]["flow_name"])
	assert.Equal(t, "Failed", decoded[0]["status"])

	raw, err = os.ReadFile(junitPath)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte(xml.Header)))

	var suites struct {
		Suites []struct {
			Name     string `xml:"name,attr"`
			Tests    int    `xml:"tests,attr"`
			Failures int    `xml:"failures,attr"`
			Skipped  int    `xml:"skipped,attr"`
		} `xml:"testsuite"`
	}
	require.NoError(t, xml.Unmarshal(raw, &suites))
	require.Len(t, suites.Suites, 1)
	assert.Equal(t, "checkout", suites.Suites[0].Name)
	assert.Equal(t, 4, suites.Suites[0].Tests)
	assert.Equal(t, 1, suites.Suites[0].Failures)
	assert.Equal(t, 1, suites.Suites[0].Skipped)
	assert.Contains(t, string(raw), "card declined")
}

func TestConsoleReporter(t *testing.T) {
	var out bytes.Buffer
	group, err := reporter.NewReporterGroup([]reporter.ReportSpec{{Format: reporter.ReportFormatConsole}},
		reporter.ReporterOptions{Out: &out, ShowOutput: true})
	require.NoError(t, err)
	require.True(t, group.HasConsole())

	o := sampleOutcome()
	group.HandleFlowStart(reporter.FlowStartInfo{FlowName: "checkout", TotalNodes: 4, NodeNames: []string{"Fetch", "Charge", "Notify", "Item"}})
	group.HandleNodeStatus(reporter.NodeStatusEvent{FlowName: "checkout", Status: runner.FlowNodeStatus{NodeID: "fetch", Name: "Fetch", State: mflow.NODE_STATE_RESOLVING}})
	group.HandleNodeStatus(reporter.NodeStatusEvent{FlowName: "checkout", Status: runner.FlowNodeStatus{NodeID: "fetch", Name: "Fetch", State: mflow.NODE_STATE_RUNNING}})
	for _, st := range o.Nodes {
		if st.NodeID == "fetch" {
			st.OutputData = map[string]any{"status": 200}
		}
		group.HandleNodeStatus(reporter.NodeStatusEvent{FlowName: "checkout", Status: st})
	}
	group.HandleFlowResult(reporter.BuildFlowRunResult("checkout", o, false))
	require.NoError(t, group.Flush())

	text := out.String()
	assert.Contains(t, text, "Flow: checkout")
	assert.Contains(t, text, "Success")
	assert.Contains(t, text, "Failure")
	assert.Contains(t, text, "error: card declined")
	assert.Contains(t, text, "[Output: Fetch]")
	assert.Contains(t, text, `"status": 200`)
	assert.Contains(t, text, "Flow ❌ Failed in")
	assert.Contains(t, text, "Steps: 2/4 Successful")
	assert.NotContains(t, text, "Running")
	assert.NotContains(t, text, "Resolving")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500.00µs", reporter.FormatDuration(500*time.Microsecond))
	assert.Equal(t, "12.50ms", reporter.FormatDuration(12500*time.Microsecond))
	assert.Equal(t, "1.50s", reporter.FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2.00m", reporter.FormatDuration(2*time.Minute))
	assert.Equal(t, "1.50h", reporter.FormatDuration(90*time.Minute))
}
