package pkgmgr

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionRequest(f *fixture, flags Flags) Request {
	return Request{
		Flags:        flags,
		ConfigFile:   filepath.Join(f.root, "data", "PackageManagerConfig.yaml"),
		ManifestFile: filepath.Join(f.root, "data", "OutputManifest.db"),
		Options:      f.opts,
	}
}

func runSession(t *testing.T, f *fixture, flags Flags) Summary {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, sessionRequest(f, flags), Deps{Downloader: f.dl})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Run(ctx))
	sum, err := s.Finish()
	require.NoError(t, err)
	return sum
}

func TestOpen_GenConfigWithoutSettingsWritesSample(t *testing.T) {
	f := newFixture(t)
	req := sessionRequest(f, Flags{GenConfig: true})
	_, err := Open(context.Background(), req, Deps{})
	require.ErrorIs(t, err, ErrSampleWritten)

	loaded, err := LoadSettings(req.ConfigFile)
	require.NoError(t, err)
	assert.Equal(t, "TestPackage", loaded.Inputs[0].Name)

	s, err := Open(context.Background(), sessionRequest(f, Flags{}), Deps{})
	require.NoError(t, err, "the sample is a valid configuration")
	require.NoError(t, s.Close())
}

func TestSession_GenConfigRecordsHashes(t *testing.T) {
	f := newFixture(t)
	req := sessionRequest(f, Flags{})
	require.NoError(t, SaveSettings(req.ConfigFile, f.settings))

	// Without GENCONFIG the settings file carries no hashes, so every run
	// rebuilds.
	sum := runSession(t, f, Flags{})
	assert.Equal(t, 1, sum.Downloaded)
	assert.Equal(t, 2, sum.Built)
	sum = runSession(t, f, Flags{})
	assert.Equal(t, 2, sum.Built)

	sum = runSession(t, f, Flags{GenConfig: true, Unknown: []string{"bogus"}})
	assert.Equal(t, 2, sum.Built)
	saved, err := LoadSettings(req.ConfigFile)
	require.NoError(t, err)
	assert.True(t, saved.Inputs[0].Hash.Equal(digestOf(t, string(f.archive))))
	assert.True(t, saved.Outputs[0].Hash.Equal(digestOf(t, "a", "b")))
	assert.True(t, saved.Outputs[1].Hash.Equal(digestOf(t, "dll")))

	// With recorded hashes a plain run has nothing to do.
	calls := f.dl.callCount()
	sum = runSession(t, f, Flags{})
	assert.Zero(t, sum.Built)
	assert.Zero(t, sum.Downloaded)
	assert.Equal(t, calls, f.dl.callCount())

	// CLEAN forgets the manifest and rebuilds everything.
	sum = runSession(t, f, Flags{Clean: true})
	assert.Equal(t, 2, sum.Built)
	assert.Equal(t, 1, sum.PeakDownloading)
}
