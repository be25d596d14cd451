package reporter

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/model/mflow"
)

type collector struct {
	mu      sync.Mutex
	results []FlowRunResult
}

func (c *collector) HandleFlowStart(FlowStartInfo) {}

func (c *collector) HandleNodeStatus(NodeStatusEvent) {}

func (c *collector) HandleFlowResult(result FlowRunResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, result)
}

func (c *collector) snapshot() []FlowRunResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]FlowRunResult{}, c.results...)
}

func writeReport(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

type jsonReporter struct {
	collector
	path string
}

func newJSONReporter(path string) Reporter {
	return &jsonReporter{path: path}
}

func (j *jsonReporter) Flush() error {
	data, err := json.MarshalIndent(j.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("serializing json report: %w", err)
	}
	return writeReport(j.path, data)
}

type junitReporter struct {
	collector
	path string
}

func newJUnitReporter(path string) Reporter {
	return &junitReporter{path: path}
}

type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *struct{}     `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr,omitempty"`
	Data    string `xml:",chardata"`
}

var (
	stateSuccess = mflow.StringNodeState(mflow.NODE_STATE_SUCCESS)
	stateSkipped = mflow.StringNodeState(mflow.NODE_STATE_SKIPPED)
)

func (j *junitReporter) Flush() error {
	results := j.snapshot()
	suites := make([]junitTestSuite, 0, len(results))
	for _, result := range results {
		suite := junitTestSuite{
			Name:  result.FlowName,
			Tests: len(result.Nodes),
			Time:  fmt.Sprintf("%.6f", result.Duration.Seconds()),
			Cases: make([]junitTestCase, 0, len(result.Nodes)),
		}
		for _, n := range result.Nodes {
			tc := junitTestCase{
				Name:      n.Name,
				Classname: result.FlowName + "." + n.NodeID,
				Time:      fmt.Sprintf("%.6f", n.Duration.Seconds()),
			}
			switch n.State {
			case stateSuccess:
			case stateSkipped:
				tc.Skipped = &struct{}{}
				suite.Skipped++
			default:
				tc.Failure = &junitFailure{Message: n.State, Type: n.State, Data: n.Error}
				suite.Failures++
			}
			suite.Cases = append(suite.Cases, tc)
		}
		suites = append(suites, suite)
	}

	data, err := xml.MarshalIndent(junitTestSuites{Suites: suites}, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing junit report: %w", err)
	}
	return writeReport(j.path, append([]byte(xml.Header), data...))
}
