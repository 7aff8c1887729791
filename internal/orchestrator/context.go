package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"graphkb/internal/config"
	"graphkb/internal/graphmodel"
	"graphkb/pkg/client"
)

// ProgressFunc receives a plugin name and a free-form progress message.
type ProgressFunc func(plugin, message string)

// IssueSpec describes an ISSUE node to create, spec.md §4.4.3's
// report_issue channel. Affects is optional: when set, an AFFECTS edge
// links the new ISSUE node to an existing node.
type IssueSpec struct {
	Category   string
	Severity   string
	Message    string
	Suggestion string
	Affects    string // node ID, or "" for a graph-wide issue
}

// Context is what every plugin's Execute receives, spec.md §4.4.3.
type Context struct {
	Client    *client.Client
	Batch     *client.Batcher
	Log       *zap.SugaredLogger
	Resources *Resources

	StrictMode bool
	Config     config.OrchestratorConfig
	OnProgress ProgressFunc

	phase    Phase
	issueSeq int
}

// Progress invokes OnProgress if one was configured, a no-op otherwise.
func (c *Context) Progress(plugin, message string) {
	if c.OnProgress != nil {
		c.OnProgress(plugin, message)
	}
}

// ReportIssue creates an ISSUE node (and optional AFFECTS edge), spec.md
// §4.4.3. Restricted to the VALIDATION phase, the only phase spec.md grants
// this channel to.
func (c *Context) ReportIssue(ctx context.Context, spec IssueSpec) error {
	if c.phase != PhaseValidation {
		return fmt.Errorf("orchestrator: report_issue is only available in the VALIDATION phase, got %s", c.phase)
	}
	c.issueSeq++
	id := fmt.Sprintf("ISSUE:%s:%d", spec.Category, c.issueSeq)

	node := client.NodeArg{
		ID:   id,
		Kind: graphmodel.KindIssue,
		Attributes: map[string]any{
			"category":   spec.Category,
			"severity":   spec.Severity,
			"message":    spec.Message,
			"suggestion": spec.Suggestion,
		},
	}
	if err := c.Batch.AddNode(ctx, node); err != nil {
		return err
	}
	if spec.Affects != "" {
		edge := client.EdgeArg{Src: id, Dst: spec.Affects, Kind: graphmodel.EdgeAffects}
		if err := c.Batch.AddEdge(ctx, edge); err != nil {
			return err
		}
	}
	return nil
}
