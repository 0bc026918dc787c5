package tui

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/muesli/termenv"
)

// Timeline prints one colourised line per execution event.
type Timeline struct {
	mu  sync.Mutex
	out *termenv.Output

	depth map[string]int
}

// NewTimeline creates a timeline writing to w. Colours follow the terminal
// profile of w; pass termenv.WithProfile(termenv.Ascii) for plain text.
func NewTimeline(w io.Writer, opts ...termenv.OutputOption) *Timeline {
	return &Timeline{
		out:   termenv.NewOutput(w, opts...),
		depth: make(map[string]int),
	}
}

// Observe prints ev. Nested executions are indented under their caller.
func (t *Timeline) Observe(_ context.Context, ev domain.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.Type == domain.EventExecutionStart {
		info, _ := ev.Data[domain.DataExecution].(domain.ExecutionInfo)
		if parent, ok := t.depth[info.ExecutedBy]; ok && info.ExecutedBy != "" {
			t.depth[ev.ExecutionID] = parent + 1
		} else {
			t.depth[ev.ExecutionID] = 0
		}
	}
	indent := ""
	for i := 0; i < t.depth[ev.ExecutionID]; i++ {
		indent += "    "
	}

	name, _ := ev.Data[domain.DataName].(string)
	index := ""
	if i, ok := ev.Index(); ok {
		index = fmt.Sprintf("[%d]", i)
	}

	var line string
	switch ev.Type {
	case domain.EventExecutionStart:
		info, _ := ev.Data[domain.DataExecution].(domain.ExecutionInfo)
		line = t.paint("▶ "+info.Name, "#818cf8", true) + t.paint(" "+ev.ExecutionID, "#6b7280", false)
	case domain.EventFunctionStart:
		line = "  ● " + index + " " + name
	case domain.EventPathStart:
		path, _ := ev.Data[domain.DataPath].(string)
		line = t.paint("  ↳ "+path, "#fbbf24", false)
	case domain.EventFunctionEnd:
		line = t.paint("  ✓ "+index+" "+name, "#4ade80", false)
		if out, ok := ev.Data[domain.DataOutput].(domain.Payload); ok && len(out) > 0 {
			line += t.paint(fmt.Sprintf(" %v", map[string]any(out)), "#6b7280", false)
		}
	case domain.EventFunctionError:
		info, _ := ev.Data[domain.DataError].(map[string]any)
		line = t.paint(fmt.Sprintf("  ✗ %s %s: %v (%v)", index, name, info["message"], info["kind"]), "#f87171", true)
		delete(t.depth, ev.ExecutionID)
	case domain.EventExecutionEnd:
		line = t.paint("■ done", "#818cf8", false)
		delete(t.depth, ev.ExecutionID)
	case domain.EventExecutionData:
		line = t.paint(fmt.Sprintf("  ⋯ %s %v", index, ev.Data[domain.DataDebug]), "#6b7280", false)
	default:
		return
	}
	fmt.Fprintln(t.out, indent+line)
}

func (t *Timeline) paint(s, color string, bold bool) string {
	style := t.out.String(s).Foreground(t.out.Color(color))
	if bold {
		style = style.Bold()
	}
	return style.String()
}
