package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/the-dev-tools/dev-tools/packages/actionflow/pkg/flow/runner"
)

type FlowStartInfo struct {
	FlowName   string
	TotalNodes int
	NodeNames  []string
}

type NodeStatusEvent struct {
	FlowName string
	Status   runner.FlowNodeStatus
}

type Reporter interface {
	HandleFlowStart(info FlowStartInfo)
	HandleNodeStatus(event NodeStatusEvent)
	HandleFlowResult(result FlowRunResult)
	Flush() error
}

type ReporterGroup struct {
	reporters      []Reporter
	consoleEnabled bool
}

func (g *ReporterGroup) HandleFlowStart(info FlowStartInfo) {
	for _, r := range g.reporters {
		r.HandleFlowStart(info)
	}
}

func (g *ReporterGroup) HandleNodeStatus(event NodeStatusEvent) {
	for _, r := range g.reporters {
		r.HandleNodeStatus(event)
	}
}

func (g *ReporterGroup) HandleFlowResult(result FlowRunResult) {
	for _, r := range g.reporters {
		r.HandleFlowResult(result)
	}
}

// Flush flushes every reporter and returns the first error.
func (g *ReporterGroup) Flush() error {
	var firstErr error
	for _, r := range g.reporters {
		if err := r.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (g *ReporterGroup) HasConsole() bool {
	return g.consoleEnabled
}

type ReportSpec struct {
	Format string
	Path   string
}

const (
	ReportFormatConsole = "console"
	ReportFormatJSON    = "json"
	ReportFormatJUnit   = "junit"
)

// ParseReportSpecs reads "format[:path]" values. No values means console.
func ParseReportSpecs(values []string) ([]ReportSpec, error) {
	specs := make([]ReportSpec, 0, len(values))
	for _, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		format, path, _ := strings.Cut(trimmed, ":")
		format = strings.ToLower(strings.TrimSpace(format))
		path = strings.TrimSpace(path)

		switch format {
		case ReportFormatConsole:
			if path != "" {
				return nil, fmt.Errorf("console reporter does not accept a path")
			}
		case ReportFormatJSON, ReportFormatJUnit:
			if path == "" {
				return nil, fmt.Errorf("%s reporter requires a file path", format)
			}
		default:
			return nil, fmt.Errorf("unsupported report format %q", format)
		}
		specs = append(specs, ReportSpec{Format: format, Path: path})
	}

	if len(specs) == 0 {
		specs = append(specs, ReportSpec{Format: ReportFormatConsole})
	}
	return specs, nil
}

type ReporterOptions struct {
	// Out receives console output. Defaults to stdout.
	Out io.Writer
	// ShowOutput prints each node's output entry under its row.
	ShowOutput bool
}

func NewReporterGroup(specs []ReportSpec, opts ReporterOptions) (*ReporterGroup, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	reporters := make([]Reporter, 0, len(specs))
	hasConsole := false

	for _, spec := range specs {
		var r Reporter
		switch spec.Format {
		case ReportFormatConsole:
			r = newConsoleReporter(opts.Out, opts.ShowOutput)
			hasConsole = true
		case ReportFormatJSON:
			r = newJSONReporter(spec.Path)
		case ReportFormatJUnit:
			r = newJUnitReporter(spec.Path)
		default:
			return nil, fmt.Errorf("unsupported reporter format %q", spec.Format)
		}
		reporters = append(reporters, r)
	}

	return &ReporterGroup{reporters: reporters, consoleEnabled: hasConsole}, nil
}

func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1000000)
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.2fm", d.Minutes())
	}
	return fmt.Sprintf("%.2fh", d.Hours())
}
