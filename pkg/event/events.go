package event

import "github.com/lab47/provision/pkg/step"

type StepStartEvent struct {
	Number int
	Name   string
	Title  string
}

func (s *StepStartEvent) EventType() string {
	return "step-start"
}

type StepDoneEvent struct {
	Result step.Result
}

func (s *StepDoneEvent) EventType() string {
	return "step-done"
}

type DownloadEvent struct {
	URL  string
	Path string
}

func (d *DownloadEvent) EventType() string {
	return "download"
}

type CommandEvent struct {
	Command string
}

func (c *CommandEvent) EventType() string {
	return "command"
}

// NoticeEvent is something the user has to act on themselves, such as
// installing a tool the installer cannot.
type NoticeEvent struct {
	Message string
}

func (n *NoticeEvent) EventType() string {
	return "notice"
}
