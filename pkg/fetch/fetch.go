package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter"
	"github.com/hashicorp/go-hclog"
	"github.com/lab47/provision/pkg/event"
	"github.com/pkg/errors"
)

var (
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrEmptyDownload     = errors.New("download produced an empty file")
)

// TransportError means the source could not be retrieved. Nothing downstream
// can proceed without it, so it is never retried.
type TransportError struct {
	Source string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unable to fetch %s: %s", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Result struct {
	Source string
	Path   string

	// Tree is set when Path is an already expanded directory rather than
	// an archive.
	Tree bool
}

type Fetcher struct {
	L          hclog.Logger
	HTTPClient *http.Client

	// S3 is built from the default AWS session on first use when nil.
	S3 S3API

	// Progress receives clone progress for git sources.
	Progress io.Writer
}

func (f *Fetcher) logger() hclog.Logger {
	if f.L == nil {
		return hclog.NewNullLogger()
	}

	return f.L
}

// Fetch retrieves source into scratch. Supported forms are http(s) URLs,
// s3://bucket/key and git::<url>[?ref=<branch>].
func (f *Fetcher) Fetch(ctx context.Context, source, scratch string) (*Result, error) {
	err := os.MkdirAll(scratch, 0755)
	if err != nil {
		return nil, &TransportError{Source: source, Err: err}
	}

	var res *Result

	switch {
	case strings.HasPrefix(source, "git::"):
		res, err = f.fetchGit(ctx, strings.TrimPrefix(source, "git::"), scratch)
	case strings.HasPrefix(source, "s3://"):
		res, err = f.fetchS3(ctx, source, scratch)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		res, err = f.fetchHTTP(ctx, source, scratch)
	default:
		err = errors.Wrapf(ErrUnsupportedSource, "%s", source)
	}

	if err != nil {
		f.logger().Error("fetch failed", "source", source, "error", err)
		return nil, &TransportError{Source: source, Err: err}
	}

	res.Source = source

	return res, nil
}

// ArchiveName picks the local file name for a downloaded archive.
func ArchiveName(source string) string {
	name := "archive"

	if u, err := url.Parse(source); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}

	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		name += ".zip"
	}

	return name
}

func (f *Fetcher) fetchHTTP(ctx context.Context, source, scratch string) (*Result, error) {
	dst := filepath.Join(scratch, ArchiveName(source))

	f.logger().Info("downloading archive", "url", source, "path", dst)
	event.Fire(ctx, &event.DownloadEvent{URL: source, Path: dst})

	hg := &getter.HttpGetter{Client: f.HTTPClient}

	client := &getter.Client{
		Ctx:  ctx,
		Src:  source,
		Dst:  dst,
		Mode: getter.ClientModeFile,
		Getters: map[string]getter.Getter{
			"http":  hg,
			"https": hg,
		},
		// The archive is expanded by the extractor, never by the getter.
		Decompressors: map[string]getter.Decompressor{},
	}

	err := client.Get()
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(dst)
	if err != nil {
		return nil, err
	}

	if fi.Size() == 0 {
		return nil, ErrEmptyDownload
	}

	return &Result{Path: dst}, nil
}
