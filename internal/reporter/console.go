package reporter

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
)

type consoleReporter struct {
	out        io.Writer
	showOutput bool

	mu    sync.Mutex
	flows map[string]*consoleFlowState
}

type consoleFlowState struct {
	rowFormat  string
	border     string
	totalNodes int
	succeeded  map[string]struct{}
}

func newConsoleReporter(out io.Writer, showOutput bool) Reporter {
	return &consoleReporter{
		out:        out,
		showOutput: showOutput,
		flows:      make(map[string]*consoleFlowState),
	}
}

func stateLabel(state mflow.NodeState) string {
	icons := map[mflow.NodeState]string{
		mflow.NODE_STATE_SUCCESS:  "✅",
		mflow.NODE_STATE_FAILURE:  "❌",
		mflow.NODE_STATE_CANCELED: "⛔",
		mflow.NODE_STATE_SKIPPED:  "⏭",
	}
	if icon, ok := icons[state]; ok {
		return icon + " " + mflow.StringNodeState(state)
	}
	return mflow.StringNodeState(state)
}

func (c *consoleReporter) HandleFlowStart(info FlowStartInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stepWidth := len("Step")
	for _, name := range info.NodeNames {
		stepWidth = max(stepWidth, len(name))
	}
	width := 2 + 20 + 3 + stepWidth + 3 + 10 + 3 + 12 + 2
	border := strings.Repeat("=", width)
	rowFmt := fmt.Sprintf("| %%-20s | %%-%ds | %%-10s | %%-12s |\n", stepWidth)

	title := " Flow: " + info.FlowName
	if len(title) > width-2 {
		title = title[:max(width-5, 0)] + "..."
	}

	fmt.Fprintln(c.out, border)
	fmt.Fprintf(c.out, "|%-*s|\n", width-2, title)
	fmt.Fprintln(c.out, strings.Repeat("-", width))
	fmt.Fprintf(c.out, rowFmt, "Timestamp", "Step", "Duration", "Status")
	fmt.Fprintln(c.out, strings.Repeat("-", width))

	c.flows[info.FlowName] = &consoleFlowState{
		rowFormat:  rowFmt,
		border:     border,
		totalNodes: info.TotalNodes,
		succeeded:  make(map[string]struct{}),
	}
}

func (c *consoleReporter) HandleNodeStatus(event NodeStatusEvent) {
	if !mflow.IsNodeStateDone(event.Status.State) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.flows[event.FlowName]
	if !ok {
		return
	}

	fmt.Fprintf(c.out, state.rowFormat,
		time.Now().Format("2006-01-02 15:04:05"),
		event.Status.Name,
		FormatDuration(event.Status.RunDuration),
		stateLabel(event.Status.State))

	if c.showOutput && event.Status.OutputData != nil {
		data, err := json.MarshalIndent(event.Status.OutputData, "    ", "  ")
		if err != nil {
			fmt.Fprintf(c.out, "    [Output: %s] (failed to marshal: %v)\n", event.Status.Name, err)
		} else {
			fmt.Fprintf(c.out, "    [Output: %s]\n    %s\n", event.Status.Name, data)
		}
	}
	if event.Status.Error != nil {
		fmt.Fprintf(c.out, "    error: %v\n", event.Status.Error)
	}

	// Nodes inside loops report once per iteration; count each node once.
	if event.Status.State == mflow.NODE_STATE_SUCCESS {
		state.succeeded[event.Status.NodeID] = struct{}{}
	}
}

func (c *consoleReporter) HandleFlowResult(result FlowRunResult) {
	c.mu.Lock()
	state, ok := c.flows[result.FlowName]
	delete(c.flows, result.FlowName)
	c.mu.Unlock()
	if !ok {
		return
	}

	fmt.Fprintln(c.out, state.border)
	fmt.Fprintf(c.out, "Flow %s in %s | Steps: %d/%d Successful\n",
		runner.FlowStatusStringWithIcons(result.FlowStatus), FormatDuration(result.Duration), len(state.succeeded), state.totalNodes)
}

func (c *consoleReporter) Flush() error {
	return nil
}
