package gc

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid"
	"github.com/pkg/errors"
)

// Prefix starts the name of every scratch directory a run creates. The rest
// of the name is the run's ULID.
const Prefix = "provision-"

// DefaultMaxAge is how long a scratch directory may live before it is
// considered abandoned.
const DefaultMaxAge = 24 * time.Hour

// Collector removes scratch directories left behind by runs that were
// killed before they could clean up.
type Collector struct {
	dataDir string

	MaxAge time.Duration

	now  func() time.Time
	walk func(root string, fn filepath.WalkFunc) error
}

func NewCollector(dataDir string) (*Collector, error) {
	dataDir = filepath.Clean(dataDir)
	return &Collector{
		dataDir: dataDir,
		MaxAge:  DefaultMaxAge,
		now:     time.Now,
		walk:    filepath.Walk,
	}, nil
}

// runTime extracts the start time of the run that owns name. ok is false
// for entries that are not scratch directories.
func runTime(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, Prefix) {
		return time.Time{}, false
	}

	id, err := ulid.Parse(name[len(Prefix):])
	if err != nil {
		return time.Time{}, false
	}

	return ulid.Time(id.Time()), true
}

func (c *Collector) scan(fn func(name string, started time.Time) error) error {
	f, err := os.Open(c.dataDir)
	if err != nil {
		return err
	}
	defer f.Close()

	for {
		names, err := f.Readdirnames(100)
		if err != nil {
			if err == io.EOF {
				break
			}

			return err
		}

		for _, name := range names {
			started, ok := runTime(name)
			if !ok {
				continue
			}

			fi, err := os.Lstat(filepath.Join(c.dataDir, name))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}

				return err
			}

			if !fi.IsDir() {
				continue
			}

			err = fn(name, started)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// Mark returns the scratch directories young enough to belong to a run that
// may still be going.
func (c *Collector) Mark() ([]string, error) {
	var total []string

	cutoff := c.now().Add(-c.MaxAge)

	err := c.scan(func(name string, started time.Time) error {
		if !started.Before(cutoff) {
			total = append(total, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(total)

	return total, nil
}

// Sweep returns the scratch directories older than MaxAge.
func (c *Collector) Sweep() ([]string, error) {
	var notInUse []string

	cutoff := c.now().Add(-c.MaxAge)

	err := c.scan(func(name string, started time.Time) error {
		if started.Before(cutoff) {
			notInUse = append(notInUse, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(notInUse)

	return notInUse, nil
}

type SweepResult struct {
	Removed        []string
	BytesRecovered int64
	EntriesRemoved int64
}

// removeScratch deletes one scratch directory. A failure to measure it is
// reported but does not stop the removal.
func (c *Collector) removeScratch(name string, sr *SweepResult) error {
	root := filepath.Join(c.dataDir, name)

	var result error

	err := c.walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		sr.EntriesRemoved++
		sr.BytesRecovered += info.Size()
		return nil
	})
	if err != nil {
		result = multierror.Append(result, errors.Wrapf(err, "measuring %s", root))
	}

	err = os.RemoveAll(root)
	if err != nil {
		return multierror.Append(result, errors.Wrapf(err, "removing %s", root))
	}

	sr.Removed = append(sr.Removed, name)

	return result
}

// SweepAndRemove removes every abandoned scratch directory. Failures are
// collected and the sweep carries on with the remaining directories.
func (c *Collector) SweepAndRemove() (*SweepResult, error) {
	notInUse, err := c.Sweep()
	if err != nil {
		return nil, err
	}

	var (
		sr     SweepResult
		result error
	)

	for _, name := range notInUse {
		err = c.removeScratch(name, &sr)
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	return &sr, result
}
