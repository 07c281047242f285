package event

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/lab47/provision/pkg/step"
)

// Renderer prints events for a person watching the terminal.
type Renderer struct {
	Out io.Writer
}

func (r *Renderer) WithContext(ctx context.Context) context.Context {
	return Listen(ctx, r.handleEvent)
}

func (r *Renderer) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}

	return r.Out
}

var banner = strings.Repeat("=", 80)

func (r *Renderer) handleEvent(event Event) {
	w := r.out()

	switch ev := event.(type) {
	case *StepStartEvent:
		fmt.Fprintf(w, "\n%s\n", banner)
		color.New(color.Bold).Fprintf(w, "Step %d: %s\n", ev.Number, ev.Title)
		fmt.Fprintf(w, "%s\n", banner)
	case *StepDoneEvent:
		res := ev.Result

		switch res.Status {
		case step.OK:
			fmt.Fprintf(w, "%s %s\n", color.GreenString("✓"), res.Name)
		case step.Skipped:
			fmt.Fprintf(w, "%s %s (%s)\n", color.YellowString("-"), res.Name, res.Detail)
		case step.Failed:
			fmt.Fprintf(w, "%s %s: %s\n", color.RedString("✗"), res.Name, res.Detail)
		}
	case *DownloadEvent:
		fmt.Fprintf(w, "Downloading %s to %s...\n", ev.URL, ev.Path)
	case *CommandEvent:
		fmt.Fprintf(w, "Running: %s\n", ev.Command)
	case *NoticeEvent:
		color.New(color.FgYellow).Fprintln(w, ev.Message)
	}
}
