package fetch

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/lab47/provision/pkg/event"
)

// parseGit splits a go-getter style git source into the clone URL and the
// optional ref query parameter.
func parseGit(source string) (string, string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", "", err
	}

	q := u.Query()
	ref := q.Get("ref")
	q.Del("ref")
	u.RawQuery = q.Encode()

	return u.String(), ref, nil
}

func repoName(cloneURL string) string {
	name := strings.TrimSuffix(path.Base(cloneURL), ".git")
	if name == "" || name == "." || name == "/" {
		return "source"
	}

	return name
}

func (f *Fetcher) fetchGit(ctx context.Context, source, scratch string) (*Result, error) {
	cloneURL, ref, err := parseGit(source)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(scratch, repoName(cloneURL))

	f.logger().Info("cloning repository", "url", cloneURL, "ref", ref, "path", dir)
	event.Fire(ctx, &event.DownloadEvent{URL: cloneURL, Path: dir})

	opts := &git.CloneOptions{
		URL:          cloneURL,
		Depth:        1,
		SingleBranch: true,
		Progress:     f.Progress,
	}

	if ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref)
	}

	_, err = git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return nil, err
	}

	// Repository metadata is not part of the application.
	err = os.RemoveAll(filepath.Join(dir, ".git"))
	if err != nil {
		return nil, err
	}

	return &Result{Path: dir, Tree: true}, nil
}
