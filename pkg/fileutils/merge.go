package fileutils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ChildError is a failure to replace one top level entry of the destination.
type ChildError struct {
	Name string
	Err  error
}

func (c *ChildError) Error() string {
	return fmt.Sprintf("%s: %s", c.Name, c.Err)
}

func (c *ChildError) Unwrap() error {
	return c.Err
}

// Merger moves every direct child of Source into Dest, replacing any entry of
// the same name. Entries in Dest without a counterpart are left alone.
//
// The merge is best-effort: a child that fails is recorded and the remaining
// children are still merged. The returned error is a *multierror.Error of
// *ChildError values. Running the merge again from a fresh source converges on
// the same tree as an uninterrupted run.
type Merger struct {
	L      hclog.Logger
	Source string
	Dest   string

	remove func(path string) error
}

func (m *Merger) logger() hclog.Logger {
	if m.L == nil {
		return hclog.NewNullLogger()
	}

	return m.L
}

func Merge(root, dest string) error {
	m := &Merger{Source: root, Dest: dest}
	return m.Merge()
}

func (m *Merger) Merge() error {
	entries, err := os.ReadDir(m.Source)
	if err != nil {
		return errors.Wrapf(err, "reading merge source")
	}

	err = os.MkdirAll(m.Dest, 0755)
	if err != nil {
		return errors.Wrapf(err, "creating destination")
	}

	var result error

	for _, ent := range entries {
		src := filepath.Join(m.Source, ent.Name())
		dst := filepath.Join(m.Dest, ent.Name())

		err := m.replace(src, dst)
		if err != nil {
			m.logger().Error("unable to merge entry", "name", ent.Name(), "error", err)
			result = multierror.Append(result, &ChildError{Name: ent.Name(), Err: err})
			continue
		}

		m.logger().Trace("merged entry", "name", ent.Name())
	}

	return result
}

func (m *Merger) replace(src, dst string) error {
	remove := m.remove
	if remove == nil {
		remove = os.RemoveAll
	}

	err := remove(dst)
	if err != nil {
		return errors.Wrapf(err, "removing existing entry")
	}

	return Move(src, dst)
}

var rename = os.Rename

// Move renames src to dst, copying and then removing src when they live on
// different filesystems or drives.
func Move(src, dst string) error {
	err := rename(src, dst)
	if err == nil {
		return nil
	}

	if !errors.Is(err, errCrossDevice) {
		return err
	}

	err = CopyTree(src, dst)
	if err != nil {
		return err
	}

	return os.RemoveAll(src)
}
