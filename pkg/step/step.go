package step

import "fmt"

type Status int

const (
	OK Status = iota
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of a single pipeline step. It is consumed by the
// orchestrator's failure policy as soon as the step returns.
type Result struct {
	Name   string
	Status Status
	Detail string
	Err    error
}

func Ok(name, detail string) Result {
	return Result{Name: name, Status: OK, Detail: detail}
}

func Skip(name, detail string) Result {
	return Result{Name: name, Status: Skipped, Detail: detail}
}

func Fail(name string, err error) Result {
	r := Result{Name: name, Status: Failed, Err: err}
	if err != nil {
		r.Detail = err.Error()
	}

	return r
}

func (r Result) Failed() bool {
	return r.Status == Failed
}

func (r Result) String() string {
	if r.Detail == "" {
		return fmt.Sprintf("%s: %s", r.Name, r.Status)
	}

	return fmt.Sprintf("%s: %s (%s)", r.Name, r.Status, r.Detail)
}
