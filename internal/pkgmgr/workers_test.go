package pkgmgr

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papapumpkin/ccgtools/internal/hashfold"
)

// settle polls task until it leaves StatusInProgress.
func settle[T any](t *testing.T, task *Task[T]) Status {
	t.Helper()
	require.Eventually(t, func() bool { return task.Status() != StatusInProgress }, 5*time.Second, time.Millisecond)
	return task.Status()
}

func TestTask_Lifecycle(t *testing.T) {
	var nilTask *Task[int]
	assert.Equal(t, StatusInvalid, nilTask.Status())

	release := make(chan struct{})
	task := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 7, nil
	})
	assert.Equal(t, StatusInProgress, task.Status())
	assert.Zero(t, task.Result())
	close(release)
	assert.Equal(t, StatusSucceeded, settle(t, task))
	assert.Equal(t, 7, task.Result())
	assert.NoError(t, task.Err())
}

func TestTask_FailureAndPanic(t *testing.T) {
	boom := errors.New("boom")
	failed := Go(context.Background(), func(context.Context) (string, error) { return "", boom })
	assert.Equal(t, StatusFailed, settle(t, failed))
	assert.ErrorIs(t, failed.Err(), boom)
	assert.Zero(t, failed.Result())

	panicked := Go(context.Background(), func(context.Context) (int, error) { panic("kaboom") })
	assert.Equal(t, StatusFailed, settle(t, panicked))
	require.Error(t, panicked.Err())
	assert.Contains(t, panicked.Err().Error(), "kaboom")
}

// hashTree writes n files across nested directories and returns the
// expected folded digest.
func hashTree(t *testing.T, root string, n int) hashfold.Hash {
	t.Helper()
	var contents []string
	for i := range n {
		dir := filepath.Join(root, fmt.Sprintf("d%d", i%3), fmt.Sprintf("e%d", i%2))
		content := fmt.Sprintf("file %d %s", i, bytes.Repeat([]byte{'x'}, i*10))
		writeFile(t, filepath.Join(dir, fmt.Sprintf("f%d.txt", i)), content)
		contents = append(contents, content)
	}
	return digestOf(t, contents...)
}

func TestHashPath_MatchesSerialFold(t *testing.T) {
	root := t.TempDir()
	want := hashTree(t, root, 25)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	for _, opts := range []HashOptions{
		{MaxWorkers: 1, BatchBytes: 1},
		{MaxWorkers: 3, BatchBytes: 100},
		{MaxWorkers: 8, BatchBytes: 2_000_000},
		{},
	} {
		t.Run(fmt.Sprintf("workers=%d/batch=%d", opts.MaxWorkers, opts.BatchBytes), func(t *testing.T) {
			got, err := HashPath(context.Background(), root, opts)
			require.NoError(t, err)
			assert.True(t, got.Equal(want), "got %s want %s", got, want)
		})
	}
}

func TestHashPath_SingleFileAndMissing(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pkg.zip")
	writeFile(t, file, "archive bytes")

	got, err := HashPath(context.Background(), file, HashOptions{})
	require.NoError(t, err)
	assert.True(t, got.Equal(digestOf(t, "archive bytes")))

	_, err = HashPath(context.Background(), filepath.Join(dir, "nope"), HashOptions{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHashPath_Cancelled(t *testing.T) {
	root := t.TempDir()
	hashTree(t, root, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := HashPath(ctx, root, HashOptions{MaxWorkers: 2, BatchBytes: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecompress_Zip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg.zip")
	require.NoError(t, os.WriteFile(archive, zipArchive(t, map[string]string{
		"src/a.h":     "a",
		"src/sub/b.h": "b",
		"lib/":        "",
	}), 0o644))

	dest := filepath.Join(dir, "unpack")
	require.NoError(t, Decompress(context.Background(), archive, dest))
	b, err := os.ReadFile(filepath.Join(dest, "src", "sub", "b.h"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(b))
	assert.DirExists(t, filepath.Join(dest, "lib"))
}

// tarball builds an uncompressed tarball of regular files.
func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

// tarGz builds a gzipped tarball of regular files.
func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(tarball(t, files))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecompress_TarGz(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg.tar.gz")
	require.NoError(t, os.WriteFile(archive, tarGz(t, map[string]string{"inc/x.h": "header"}), 0o644))

	dest := filepath.Join(dir, "unpack")
	require.NoError(t, Decompress(context.Background(), archive, dest))
	got, err := os.ReadFile(filepath.Join(dest, "inc", "x.h"))
	require.NoError(t, err)
	assert.Equal(t, "header", string(got))
}

func TestDecompress_Tar(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg.TAR")
	require.NoError(t, os.WriteFile(archive, tarball(t, map[string]string{"lib/x.so": "so"}), 0o644))

	dest := filepath.Join(dir, "unpack")
	require.NoError(t, Decompress(context.Background(), archive, dest))
	got, err := os.ReadFile(filepath.Join(dest, "lib", "x.so"))
	require.NoError(t, err)
	assert.Equal(t, "so", string(got))
}

func TestDecompress_Rejects(t *testing.T) {
	dir := t.TempDir()
	evil := filepath.Join(dir, "evil.tgz")
	require.NoError(t, os.WriteFile(evil, tarGz(t, map[string]string{"../escape.txt": "x"}), 0o644))
	err := Decompress(context.Background(), evil, filepath.Join(dir, "unpack"))
	assert.ErrorIs(t, err, ErrUnsafeArchivePath)
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))

	evilZip := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(evilZip, zipArchive(t, map[string]string{"../escape.txt": "x"}), 0o644))
	assert.Error(t, Decompress(context.Background(), evilZip, filepath.Join(dir, "unpack")))
	assert.NoFileExists(t, filepath.Join(dir, "escape.txt"))

	rar := filepath.Join(dir, "pkg.rar")
	writeFile(t, rar, "x")
	assert.ErrorIs(t, Decompress(context.Background(), rar, dir), ErrUnsupportedArchive)
}

func TestCopyAndHash_Directory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "unpack", "src")
	writeFile(t, filepath.Join(src, "a.h"), "a")
	writeFile(t, filepath.Join(src, "sub", "b.h"), "b")

	dest := filepath.Join(dir, "out")
	h, err := CopyAndHash(context.Background(), src, dest)
	require.NoError(t, err)
	assert.True(t, h.Equal(digestOf(t, "a", "b")))
	assert.FileExists(t, filepath.Join(dest, "a.h"))
	assert.FileExists(t, filepath.Join(dest, "sub", "b.h"))
}

func TestCopyAndHash_Glob(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib")
	writeFile(t, filepath.Join(lib, "one.dll"), "1")
	writeFile(t, filepath.Join(lib, "two.dll"), "2")
	writeFile(t, filepath.Join(lib, "readme.txt"), "r")

	dest := filepath.Join(dir, "bin")
	h, err := CopyAndHash(context.Background(), filepath.Join(lib, "*.dll"), dest)
	require.NoError(t, err)
	assert.True(t, h.Equal(digestOf(t, "1", "2")))
	assert.FileExists(t, filepath.Join(dest, "two.dll"))
	assert.NoFileExists(t, filepath.Join(dest, "readme.txt"))

	_, err = CopyAndHash(context.Background(), filepath.Join(lib, "*.so"), dest)
	assert.ErrorIs(t, err, ErrNoSourceFiles)
}

func TestDownloadPackage_Mirrors(t *testing.T) {
	dir := t.TempDir()
	d := newFakeDownloader()
	d.failing["https://a/pkg.zip"] = true
	d.serve("https://b/pkg.zip", []byte("zip"))
	d.serve("https://linux/pkg.tar.gz", []byte("tgz"))

	entry := InputEntry{Name: "Pkg", Mirrors: []Mirror{
		{OS: OSLinux, URL: "https://linux/pkg.tar.gz"},
		{OS: OSWindows, URL: "https://a/pkg.zip"},
		{OS: OSWindows | OSLinux, URL: "https://b/pkg.zip"},
	}}
	path, err := DownloadPackage(context.Background(), d, entry, OSWindows, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Pkg.zip"), path)
	assert.Equal(t, []string{"https://a/pkg.zip", "https://b/pkg.zip"}, d.calls)

	d.failing["https://b/pkg.zip"] = true
	_, err = DownloadPackage(context.Background(), d, entry, OSWindows, dir, nil)
	assert.ErrorIs(t, err, ErrAllMirrorsFailed)

	_, err = DownloadPackage(context.Background(), d, InputEntry{Name: "None"}, OSWindows, dir, nil)
	assert.ErrorIs(t, err, ErrNoMirror)
}

func TestHTTPDownloader_FileURL(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "mirror", "pkg.zip")
	writeFile(t, src, "payload")
	dest := filepath.Join(dir, "pkg.zip")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, HTTPDownloader{}.Download(ctx, "file://"+filepath.ToSlash(src), dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}
