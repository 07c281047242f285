package venv

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

type Spec struct {
	Op      string
	Version string
}

// Requirement is one line of a pip requirements file. Markers are kept
// verbatim and never evaluated. Lines that are not name based requirements
// (local paths, wheels, anything unrecognised) are kept whole in URL so they
// still count toward the environment stamp.
type Requirement struct {
	Name   string
	Extras []string
	Specs  []Spec
	Marker string
	URL    string
}

func (r Requirement) String() string {
	if r.Name == "" {
		return r.URL
	}

	var sb strings.Builder

	sb.WriteString(r.Name)

	if len(r.Extras) > 0 {
		sb.WriteString("[" + strings.Join(r.Extras, ",") + "]")
	}

	for i, s := range r.Specs {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(s.Op + s.Version)
	}

	if r.URL != "" {
		sb.WriteString(" @ " + r.URL)
	}

	return sb.String()
}

var (
	nameRe = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(?:\[([^\]]*)\])?\s*(.*)$`)
	specRe = regexp.MustCompile(`^(===|~=|==|!=|<=|>=|<|>)\s*([^\s]+)$`)
	normRe = regexp.MustCompile(`[-_.]+`)

	// per-requirement options such as --hash and --config-settings follow
	// the requirement and any marker.
	optRe = regexp.MustCompile(`\s--[A-Za-z]`)
)

const bom = "\ufeff"

// NormalizeName folds a distribution name the way pip compares them.
func NormalizeName(name string) string {
	return normRe.ReplaceAllString(strings.ToLower(name), "-")
}

// ParseManifest reads a requirements file for stamping and verification.
// It never rejects content pip might accept: the only errors are read
// errors.
func ParseManifest(r io.Reader) ([]Requirement, error) {
	var (
		out     []Requirement
		pending string
		first   = true
	)

	br := bufio.NewScanner(r)
	br.Buffer(nil, 1024*1024)

	for br.Scan() {
		line := br.Text()

		if first {
			line = strings.TrimPrefix(line, bom)
			first = false
		}

		if strings.HasSuffix(line, "\\") {
			pending += strings.TrimSuffix(line, "\\")
			continue
		}

		line = pending + line
		pending = ""

		if req, ok := parseLine(line); ok {
			out = append(out, req)
		}
	}

	if err := br.Err(); err != nil {
		return nil, err
	}

	if pending != "" {
		if req, ok := parseLine(pending); ok {
			out = append(out, req)
		}
	}

	return out, nil
}

// ParseRequirement parses a single requirement such as an extra package
// name given on the command line.
func ParseRequirement(s string) (Requirement, error) {
	req, ok := parseLine(s)
	if !ok {
		return req, fmt.Errorf("empty requirement")
	}

	return req, nil
}

func stripComment(line string) string {
	if strings.HasPrefix(line, "#") {
		return ""
	}

	if idx := strings.Index(line, " #"); idx != -1 {
		line = line[:idx]
	}

	if idx := strings.Index(line, "\t#"); idx != -1 {
		line = line[:idx]
	}

	return line
}

// wheelName extracts the distribution name from a wheel or sdist path such
// as ./vendor/pkgX-1.0-py3-none-any.whl.
func wheelName(line string) string {
	base := path.Base(filepath.ToSlash(line))

	switch {
	case strings.HasSuffix(base, ".whl"), strings.HasSuffix(base, ".tar.gz"), strings.HasSuffix(base, ".zip"):
	default:
		return ""
	}

	idx := strings.IndexByte(base, '-')
	if idx <= 0 {
		return ""
	}

	return base[:idx]
}

func parseLine(line string) (Requirement, bool) {
	var req Requirement

	line = strings.TrimSpace(stripComment(strings.TrimSpace(line)))
	if line == "" {
		return req, false
	}

	// Options such as -r, -e, --index-url apply to pip, not to a package.
	if strings.HasPrefix(line, "-") {
		return req, false
	}

	if loc := optRe.FindStringIndex(line); loc != nil {
		line = strings.TrimSpace(line[:loc[0]])
	}

	orig := line

	verbatim := func() (Requirement, bool) {
		return Requirement{Name: wheelName(orig), URL: orig}, true
	}

	if idx := strings.IndexByte(line, ';'); idx != -1 {
		req.Marker = strings.TrimSpace(line[idx+1:])
		line = strings.TrimSpace(line[:idx])
	}

	if idx := strings.Index(line, " @ "); idx != -1 {
		req.URL = strings.TrimSpace(line[idx+3:])
		line = strings.TrimSpace(line[:idx])
	} else if strings.Contains(line, "://") {
		req.URL = line

		if u, err := url.Parse(line); err == nil {
			frag, _ := url.ParseQuery(u.Fragment)
			req.Name = frag.Get("egg")
		}

		return req, true
	}

	m := nameRe.FindStringSubmatch(line)
	if m == nil {
		return verbatim()
	}

	req.Name = m[1]

	if m[2] != "" {
		for _, e := range strings.Split(m[2], ",") {
			if e = strings.TrimSpace(e); e != "" {
				req.Extras = append(req.Extras, e)
			}
		}
	}

	rest := strings.TrimSpace(m[3])
	if rest == "" {
		return req, true
	}

	if req.URL != "" {
		return verbatim()
	}

	for _, part := range strings.Split(rest, ",") {
		sm := specRe.FindStringSubmatch(strings.TrimSpace(part))
		if sm == nil {
			return verbatim()
		}

		req.Specs = append(req.Specs, Spec{Op: sm[1], Version: sm[2]})
	}

	return req, true
}
