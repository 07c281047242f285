package venv

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
)

var ErrNotSatisfied = errors.New("requirement not satisfied")

var opMap = map[string]string{
	"==":  "=",
	"===": "=",
	"~=":  "~>",
}

func satisfies(installed string, specs []Spec) (bool, error) {
	v, err := version.NewVersion(installed)
	if err != nil {
		return false, err
	}

	for _, s := range specs {
		if strings.HasSuffix(s.Version, ".*") {
			prefix := strings.TrimSuffix(s.Version, ".*")
			match := installed == prefix || strings.HasPrefix(installed, prefix+".")

			switch s.Op {
			case "==":
				if !match {
					return false, nil
				}
			case "!=":
				if match {
					return false, nil
				}
			default:
				return false, fmt.Errorf("wildcard not allowed with %s", s.Op)
			}

			continue
		}

		op := s.Op
		if m, ok := opMap[op]; ok {
			op = m
		}

		c, err := version.NewConstraint(op + " " + s.Version)
		if err != nil {
			return false, err
		}

		if !c.Check(v) {
			return false, nil
		}
	}

	return true, nil
}

// Verify checks that everything the manifest pins and every extra is present
// in env. URL requirements without a name cannot be checked and are skipped.
func (p *Provisioner) Verify(ctx context.Context, env *Environment, req Request) error {
	reqs, err := readManifest(req.Manifest)
	if err != nil {
		return err
	}

	for _, e := range req.Extras {
		r, err := ParseRequirement(e)
		if err != nil {
			return errors.Wrapf(err, "extra %q", e)
		}

		reqs = append(reqs, r)
	}

	installed, err := p.Installed(ctx, env)
	if err != nil {
		return err
	}

	var result error

	for _, r := range reqs {
		if r.Name == "" {
			p.logger().Debug("skipping unnamed requirement", "url", r.URL)
			continue
		}

		have, ok := installed[NormalizeName(r.Name)]
		if !ok {
			result = multierror.Append(result, errors.Wrapf(ErrNotSatisfied, "%s is not installed", r.Name))
			continue
		}

		if r.URL != "" || len(r.Specs) == 0 {
			continue
		}

		good, err := satisfies(have, r.Specs)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "checking %s", r))
			continue
		}

		if !good {
			result = multierror.Append(result, errors.Wrapf(ErrNotSatisfied, "%s has %s", r, have))
		}
	}

	return result
}
