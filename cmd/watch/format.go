package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/JaimeStill/attest/internal/workflow"
)

var (
	stageColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	failColor  = color.New(color.FgRed, color.Bold)
)

var statusColors = map[workflow.Status]*color.Color{
	workflow.StatusCompliant: okColor,
	workflow.StatusPartial:   warnColor,
	workflow.StatusMissing:   failColor,
}

func formatEvent(ev workflow.ProgressEvent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %3d%% %s", stageColor.Sprintf("[%-10s]", ev.Stage), ev.Progress, ev.Step)

	if o := ev.Outcome; o != nil {
		status := string(o.Status)
		if c, ok := statusColors[o.Status]; ok {
			status = c.Sprint(status)
		}
		if o.Failed {
			status = failColor.Sprint("failed")
		}
		fmt.Fprintf(&b, "  %s %s (%.0f)", o.ControlCode, status, o.Confidence)
	}

	if ev.Replay {
		b.WriteString(" (replay)")
	}

	if ev.Terminal {
		t := ev.Totals
		switch ev.Stage {
		case workflow.StateCompleted:
			fmt.Fprintf(&b, "\n%s %d/%d evaluated: %s compliant, %s partial, %s missing, %s failed",
				okColor.Sprint("done"), t.Completed, t.Total,
				okColor.Sprint(t.Compliant), warnColor.Sprint(t.Partial),
				failColor.Sprint(t.Missing), failColor.Sprint(t.Failed))
		case workflow.StateFailed:
			fmt.Fprintf(&b, "\n%s %s", failColor.Sprint("failed:"), ev.Error)
		}
	}

	return b.String()
}
