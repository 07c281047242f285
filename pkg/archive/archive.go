package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/lab47/provision/pkg/fetch"
	"github.com/lab47/provision/pkg/fileutils"
	"github.com/lab47/provision/pkg/hashdetect"
	"github.com/lab47/provision/pkg/step"
	"github.com/lab47/provision/pkg/verification"
	archiver "github.com/mholt/archiver/v3"
	"github.com/pkg/errors"
)

const StepName = "extract-and-merge"

var (
	ErrLayout      = errors.New("archive must contain exactly one top-level directory")
	ErrSumMismatch = errors.New("archive checksum mismatch")
)

// Error is a problem with the content of an archive, as opposed to getting it.
type Error struct {
	Archive string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("archive %s: %s: %s", e.Archive, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Extractor struct {
	L hclog.Logger

	// ExpectedSum, when set, must match the downloaded archive.
	ExpectedSum *hashdetect.Sum

	// Signature, when enabled, must verify over the downloaded archive.
	Signature *verification.Verifier

	// Digest is the blake2b sum of the last archive handled by
	// ExtractAndMerge. It is nil for tree sources.
	Digest *hashdetect.Sum
}

func (e *Extractor) logger() hclog.Logger {
	if e.L == nil {
		return hclog.NewNullLogger()
	}

	return e.L
}

// Extract expands archivePath into <scratch>/expand and returns the single
// directory it must contain.
func (e *Extractor) Extract(archivePath, scratch string) (string, error) {
	expand := filepath.Join(scratch, "expand")

	err := os.RemoveAll(expand)
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(expand, 0755)
	if err != nil {
		return "", err
	}

	e.logger().Debug("expanding archive", "archive", archivePath, "dir", expand)

	err = archiver.DefaultZip.Unarchive(archivePath, expand)
	if err != nil {
		return "", &Error{Archive: archivePath, Op: "expand", Err: err}
	}

	entries, err := os.ReadDir(expand)
	if err != nil {
		return "", &Error{Archive: archivePath, Op: "expand", Err: err}
	}

	if len(entries) != 1 || !entries[0].IsDir() {
		var names []string
		for _, ent := range entries {
			names = append(names, ent.Name())
		}

		return "", &Error{
			Archive: archivePath,
			Op:      "layout",
			Err:     errors.Wrapf(ErrLayout, "found %d entries [%s]", len(entries), strings.Join(names, ", ")),
		}
	}

	return filepath.Join(expand, entries[0].Name()), nil
}

func (e *Extractor) verify(path string) error {
	digest, err := hashdetect.FileSum("b2", path)
	if err != nil {
		return &Error{Archive: path, Op: "hash", Err: err}
	}

	e.Digest = digest

	if e.Signature.Enabled() {
		err = e.Signature.VerifyFile(path)
		if err != nil {
			return &Error{Archive: path, Op: "signature", Err: err}
		}

		e.logger().Debug("archive signature verified", "signer", e.Signature.Signer)
	}

	if e.ExpectedSum == nil {
		return nil
	}

	actual := digest

	if e.ExpectedSum.Algo != digest.Algo {
		actual, err = hashdetect.FileSum(e.ExpectedSum.Algo, path)
		if err != nil {
			return &Error{Archive: path, Op: "hash", Err: err}
		}
	}

	if !e.ExpectedSum.Matches(actual) {
		return &Error{
			Archive: path,
			Op:      "verify",
			Err:     errors.Wrapf(ErrSumMismatch, "expected %s, got %s", e.ExpectedSum, actual),
		}
	}

	e.logger().Debug("archive checksum verified", "sum", actual.String())

	return nil
}

// ExtractAndMerge expands the fetched archive (or takes the fetched tree
// as is) and merges its root into dest. The download and the expansion are
// removed afterwards whatever the outcome.
func (e *Extractor) ExtractAndMerge(ctx context.Context, fetched *fetch.Result, scratch, dest string) step.Result {
	L := e.logger()

	e.Digest = nil

	defer func() {
		var cleanErr error

		if err := os.RemoveAll(fetched.Path); err != nil {
			cleanErr = multierror.Append(cleanErr, err)
		}

		if err := os.RemoveAll(filepath.Join(scratch, "expand")); err != nil {
			cleanErr = multierror.Append(cleanErr, err)
		}

		if cleanErr != nil {
			L.Warn("unable to clean up scratch data", "error", cleanErr)
		}
	}()

	root := fetched.Path

	if !fetched.Tree {
		err := e.verify(fetched.Path)
		if err != nil {
			return step.Fail(StepName, err)
		}

		root, err = e.Extract(fetched.Path, scratch)
		if err != nil {
			return step.Fail(StepName, err)
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return step.Fail(StepName, &Error{Archive: fetched.Path, Op: "merge", Err: err})
	}

	L.Info("merging into destination", "root", root, "dest", dest, "entries", len(entries))

	m := &fileutils.Merger{
		L:      L.Named("merge"),
		Source: root,
		Dest:   dest,
	}

	err = m.Merge()
	if err != nil {
		return step.Fail(StepName, &Error{Archive: fetched.Path, Op: "merge", Err: err})
	}

	return step.Ok(StepName, fmt.Sprintf("merged %d entries into %s", len(entries), dest))
}
