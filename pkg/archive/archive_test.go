package archive

import (
	"archive/zip"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/lab47/provision/pkg/fetch"
	"github.com/lab47/provision/pkg/hashdetect"
	"github.com/lab47/provision/pkg/step"
	"github.com/lab47/provision/pkg/verification"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeZip writes an archive holding files. Names ending in / are
// directories.
func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	defer f.Close()

	zw := zip.NewWriter(f)

	for name, content := range files {
		fh := &zip.FileHeader{Name: name, Method: zip.Deflate}

		if strings.HasSuffix(name, "/") {
			fh.SetMode(os.ModeDir | 0755)

			_, err := zw.CreateHeader(fh)
			require.NoError(t, err)
			continue
		}

		fh.SetMode(0644)

		w, err := zw.CreateHeader(fh)
		require.NoError(t, err)

		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
}

func tree(t *testing.T, dir string) map[string]string {
	t.Helper()

	out := map[string]string{}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, _ := filepath.Rel(dir, path)
		if rel == "." {
			return nil
		}

		if info.IsDir() {
			out[filepath.ToSlash(rel)] = "<dir>"
			return nil
		}

		data, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}

		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)

	return out
}

var appdir = map[string]string{
	"appdir/":        "",
	"appdir/a.txt":   "a",
	"appdir/b/":      "",
	"appdir/b/c.txt": "c",
}

func TestExtractAndMerge(t *testing.T) {
	t.Run("replaces stale content from the archive root", func(t *testing.T) {
		dir := t.TempDir()
		scratch := filepath.Join(dir, "scratch")
		dest := filepath.Join(dir, "dest")

		require.NoError(t, os.MkdirAll(filepath.Join(dest, "b"), 0755))
		require.NoError(t, ioutil.WriteFile(filepath.Join(dest, "b", "old.txt"), []byte("old"), 0644))

		require.NoError(t, os.MkdirAll(scratch, 0755))
		path := filepath.Join(scratch, "master.zip")
		writeZip(t, path, appdir)

		var e Extractor

		res := e.ExtractAndMerge(context.TODO(), &fetch.Result{Path: path}, scratch, dest)
		require.Equal(t, step.OK, res.Status, res.Detail)

		expected := map[string]string{
			"a.txt":   "a",
			"b":       "<dir>",
			"b/c.txt": "c",
		}

		if diff := cmp.Diff(expected, tree(t, dest)); diff != "" {
			t.Errorf("unexpected destination (-want +got):\n%s", diff)
		}

		require.NotNil(t, e.Digest)
		assert.Equal(t, "b2", e.Digest.Algo)
	})

	t.Run("converges when run twice", func(t *testing.T) {
		dir := t.TempDir()
		scratch := filepath.Join(dir, "scratch")
		dest := filepath.Join(dir, "dest")
		require.NoError(t, os.MkdirAll(scratch, 0755))

		var e Extractor

		path := filepath.Join(scratch, "master.zip")

		writeZip(t, path, appdir)
		res := e.ExtractAndMerge(context.TODO(), &fetch.Result{Path: path}, scratch, dest)
		require.False(t, res.Failed(), res.Detail)

		first := tree(t, dest)

		writeZip(t, path, appdir)
		res = e.ExtractAndMerge(context.TODO(), &fetch.Result{Path: path}, scratch, dest)
		require.False(t, res.Failed(), res.Detail)

		assert.Empty(t, cmp.Diff(first, tree(t, dest)))
	})

	t.Run("cleans up the download and expansion", func(t *testing.T) {
		dir := t.TempDir()
		scratch := filepath.Join(dir, "scratch")
		require.NoError(t, os.MkdirAll(scratch, 0755))

		path := filepath.Join(scratch, "master.zip")
		writeZip(t, path, appdir)

		var e Extractor

		res := e.ExtractAndMerge(context.TODO(), &fetch.Result{Path: path}, scratch, filepath.Join(dir, "dest"))
		require.False(t, res.Failed(), res.Detail)

		entries, err := os.ReadDir(scratch)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("rejects archives without a single root", func(t *testing.T) {
		dir := t.TempDir()
		scratch := filepath.Join(dir, "scratch")
		dest := filepath.Join(dir, "dest")
		require.NoError(t, os.MkdirAll(scratch, 0755))

		path := filepath.Join(scratch, "master.zip")
		writeZip(t, path, map[string]string{
			"one/a.txt": "a",
			"two/b.txt": "b",
		})

		var e Extractor

		res := e.ExtractAndMerge(context.TODO(), &fetch.Result{Path: path}, scratch, dest)
		require.True(t, res.Failed())

		var ae *Error
		require.True(t, errors.As(res.Err, &ae))
		assert.Equal(t, "layout", ae.Op)
		assert.True(t, errors.Is(res.Err, ErrLayout))

		_, err := os.Stat(dest)
		assert.True(t, os.IsNotExist(err))

		entries, err := os.ReadDir(scratch)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("reports corrupt archives as archive errors", func(t *testing.T) {
		dir := t.TempDir()

		path := filepath.Join(dir, "master.zip")
		require.NoError(t, ioutil.WriteFile(path, []byte("this is not a zip"), 0644))

		var e Extractor

		res := e.ExtractAndMerge(context.TODO(), &fetch.Result{Path: path}, dir, filepath.Join(dir, "dest"))
		require.True(t, res.Failed())

		var ae *Error
		require.True(t, errors.As(res.Err, &ae))
		assert.Equal(t, "expand", ae.Op)
	})

	t.Run("verifies the expected checksum", func(t *testing.T) {
		dir := t.TempDir()
		scratch := filepath.Join(dir, "scratch")
		require.NoError(t, os.MkdirAll(scratch, 0755))

		path := filepath.Join(scratch, "master.zip")
		writeZip(t, path, appdir)

		good, err := hashdetect.FileSum("sha256", path)
		require.NoError(t, err)

		e := Extractor{ExpectedSum: good}

		res := e.ExtractAndMerge(context.TODO(), &fetch.Result{Path: path}, scratch, filepath.Join(dir, "dest"))
		require.False(t, res.Failed(), res.Detail)

		writeZip(t, path, appdir)

		bad, err := hashdetect.ParseSum("sha256:" + strings.Repeat("00", 32))
		require.NoError(t, err)

		e = Extractor{ExpectedSum: bad}

		res = e.ExtractAndMerge(context.TODO(), &fetch.Result{Path: path}, scratch, filepath.Join(dir, "dest2"))
		require.True(t, res.Failed())
		assert.True(t, errors.Is(res.Err, ErrSumMismatch))

		_, err = os.Stat(filepath.Join(dir, "dest2"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("checks the archive signature", func(t *testing.T) {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		dir := t.TempDir()
		scratch := filepath.Join(dir, "scratch")
		require.NoError(t, os.MkdirAll(scratch, 0755))

		path := filepath.Join(scratch, "master.zip")
		writeZip(t, path, appdir)

		data, err := ioutil.ReadFile(path)
		require.NoError(t, err)

		e := Extractor{
			Signature: &verification.Verifier{
				Signer:    verification.SignerID(pub),
				Signature: verification.Sign(priv, data),
			},
		}

		res := e.ExtractAndMerge(context.TODO(), &fetch.Result{Path: path}, scratch, filepath.Join(dir, "dest"))
		require.False(t, res.Failed(), res.Detail)

		writeZip(t, path, map[string]string{"other/": "", "other/x.txt": "x"})

		res = e.ExtractAndMerge(context.TODO(), &fetch.Result{Path: path}, scratch, filepath.Join(dir, "dest2"))
		require.True(t, res.Failed())
		assert.True(t, errors.Is(res.Err, verification.ErrWrongSignature))

		var ae *Error
		require.True(t, errors.As(res.Err, &ae))
		assert.Equal(t, "signature", ae.Op)
	})

	t.Run("merges an already expanded tree", func(t *testing.T) {
		dir := t.TempDir()
		scratch := filepath.Join(dir, "scratch")
		dest := filepath.Join(dir, "dest")

		src := filepath.Join(scratch, "repo")
		require.NoError(t, os.MkdirAll(filepath.Join(src, "lib"), 0755))
		require.NoError(t, ioutil.WriteFile(filepath.Join(src, "UVR.py"), []byte("print()"), 0644))
		require.NoError(t, ioutil.WriteFile(filepath.Join(src, "lib", "x.py"), []byte("x"), 0644))

		var e Extractor

		res := e.ExtractAndMerge(context.TODO(), &fetch.Result{Path: src, Tree: true}, scratch, dest)
		require.False(t, res.Failed(), res.Detail)

		assert.Equal(t, map[string]string{
			"UVR.py":   "print()",
			"lib":      "<dir>",
			"lib/x.py": "x",
		}, tree(t, dest))

		assert.Nil(t, e.Digest)

		_, err := os.Stat(src)
		assert.True(t, os.IsNotExist(err))
	})
}
