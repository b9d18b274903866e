package certs_test

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/geodist/internal/certs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and writes the files openssl would produce.
type fakeRunner struct {
	runFunc func(name string, args []string) ([]byte, error)
	calls   int
	args    []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls++
	f.args = args
	return f.runFunc(name, args)
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func writingRunner() *fakeRunner {
	return &fakeRunner{
		runFunc: func(_ string, args []string) ([]byte, error) {
			if err := os.WriteFile(argValue(args, "-keyout"), []byte("KEY"), 0o600); err != nil {
				return nil, err
			}
			if err := os.WriteFile(argValue(args, "-out"), []byte("CERT"), 0o600); err != nil {
				return nil, err
			}
			return nil, nil
		},
	}
}

func foundTool(file string) (string, error) {
	return "/usr/bin/" + file, nil
}

func TestProvisioner_Ensure(t *testing.T) {
	defer filet.CleanUp(t)
	ctx := context.Background()
	logger := slog.Default()

	t.Run("generates a new pair", func(t *testing.T) {
		dir := filepath.Join(filet.TmpDir(t, ""), ".certs")
		runner := writingRunner()

		prov := certs.NewProvisioner(logger, certs.WithRunner(runner), certs.WithLookPath(foundTool))
		pair, err := prov.Ensure(ctx, dir)

		require.NoError(t, err)
		require.NotNil(t, pair)
		assert.True(t, pair.Generated)
		assert.Equal(t, filepath.Join(dir, certs.CertFileName), pair.CertFile)
		assert.Equal(t, filepath.Join(dir, certs.KeyFileName), pair.KeyFile)
		assert.True(t, filet.FileSays(t, pair.CertFile, []byte("CERT")))
		assert.True(t, filet.FileSays(t, pair.KeyFile, []byte("KEY")))
		assert.Equal(t, 1, runner.calls)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 2, "temporary files must be gone")
	})

	t.Run("passes fixed openssl arguments", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		runner := writingRunner()

		prov := certs.NewProvisioner(logger, certs.WithRunner(runner), certs.WithLookPath(foundTool))
		_, err := prov.Ensure(ctx, dir)

		require.NoError(t, err)
		assert.Equal(t, "req", runner.args[0])
		assert.Contains(t, runner.args, "-x509")
		assert.Contains(t, runner.args, "-nodes")
		assert.Equal(t, "rsa:4096", argValue(runner.args, "-newkey"))
		assert.Equal(t, "365", argValue(runner.args, "-days"))
		assert.Equal(t, "/C=JP/ST=Tokyo/L=Tokyo/O=Dev/OU=Dev/CN=localhost", argValue(runner.args, "-subj"))
	})

	t.Run("reuses an existing pair", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		filet.File(t, filepath.Join(dir, certs.CertFileName), "EXISTING CERT")
		filet.File(t, filepath.Join(dir, certs.KeyFileName), "EXISTING KEY")

		past := time.Now().Add(-time.Hour).Truncate(time.Second)
		require.NoError(t, os.Chtimes(filepath.Join(dir, certs.CertFileName), past, past))
		require.NoError(t, os.Chtimes(filepath.Join(dir, certs.KeyFileName), past, past))

		runner := writingRunner()
		prov := certs.NewProvisioner(logger, certs.WithRunner(runner), certs.WithLookPath(foundTool))

		for range 2 {
			pair, err := prov.Ensure(ctx, dir)
			require.NoError(t, err)
			assert.False(t, pair.Generated)
		}

		assert.Zero(t, runner.calls)
		assert.True(t, filet.FileSays(t, filepath.Join(dir, certs.CertFileName), []byte("EXISTING CERT")))
		assert.True(t, filet.FileSays(t, filepath.Join(dir, certs.KeyFileName), []byte("EXISTING KEY")))

		info, err := os.Stat(filepath.Join(dir, certs.CertFileName))
		require.NoError(t, err)
		assert.True(t, info.ModTime().Equal(past))
	})

	t.Run("regenerates a half pair", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		filet.File(t, filepath.Join(dir, certs.CertFileName), "ORPHAN CERT")
		runner := writingRunner()

		prov := certs.NewProvisioner(logger, certs.WithRunner(runner), certs.WithLookPath(foundTool))
		pair, err := prov.Ensure(ctx, dir)

		require.NoError(t, err)
		assert.True(t, pair.Generated)
		assert.Equal(t, 1, runner.calls)
		assert.True(t, filet.FileSays(t, pair.CertFile, []byte("CERT")))
		assert.True(t, filet.FileSays(t, pair.KeyFile, []byte("KEY")))
	})

	t.Run("tool not found", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		runner := writingRunner()

		prov := certs.NewProvisioner(logger,
			certs.WithRunner(runner),
			certs.WithLookPath(func(file string) (string, error) {
				return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
			}),
		)
		pair, err := prov.Ensure(ctx, dir)

		require.ErrorIs(t, err, certs.ErrToolNotFound)
		require.ErrorIs(t, err, exec.ErrNotFound)
		assert.NotErrorIs(t, err, certs.ErrToolFailed)
		assert.Nil(t, pair)
		assert.Zero(t, runner.calls)
		assert.False(t, filet.Exists(t, filepath.Join(dir, certs.CertFileName)))
		assert.False(t, filet.Exists(t, filepath.Join(dir, certs.KeyFileName)))
	})

	t.Run("tool exits with failure", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		runner := &fakeRunner{
			runFunc: func(_ string, args []string) ([]byte, error) {
				// A partial key on disk must not survive the failure.
				_ = os.WriteFile(argValue(args, "-keyout"), []byte("PARTIAL"), 0o600)
				return []byte("unable to write 'random state'\n"), errors.New("exit status 1")
			},
		}

		prov := certs.NewProvisioner(logger, certs.WithRunner(runner), certs.WithLookPath(foundTool))
		pair, err := prov.Ensure(ctx, dir)

		require.ErrorIs(t, err, certs.ErrToolFailed)
		assert.NotErrorIs(t, err, certs.ErrToolNotFound)
		assert.Contains(t, err.Error(), "unable to write 'random state'")
		assert.Nil(t, pair)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("tool succeeds without output files", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		runner := &fakeRunner{
			runFunc: func(_ string, _ []string) ([]byte, error) {
				return nil, nil
			},
		}

		prov := certs.NewProvisioner(logger, certs.WithRunner(runner), certs.WithLookPath(foundTool))
		pair, err := prov.Ensure(ctx, dir)

		require.ErrorIs(t, err, certs.ErrToolFailed)
		assert.Nil(t, pair)
	})

	t.Run("custom tool name", func(t *testing.T) {
		dir := filet.TmpDir(t, "")
		var looked string

		prov := certs.NewProvisioner(logger,
			certs.WithTool("libressl"),
			certs.WithRunner(writingRunner()),
			certs.WithLookPath(func(file string) (string, error) {
				looked = file
				return foundTool(file)
			}),
		)
		_, err := prov.Ensure(ctx, dir)

		require.NoError(t, err)
		assert.Equal(t, "libressl", looked)
	})

	t.Run("directory cannot be created", func(t *testing.T) {
		base := filet.TmpDir(t, "")
		blocker := filepath.Join(base, "blocker")
		filet.File(t, blocker, "not a directory")

		prov := certs.NewProvisioner(logger, certs.WithRunner(writingRunner()), certs.WithLookPath(foundTool))
		pair, err := prov.Ensure(ctx, filepath.Join(blocker, ".certs"))

		require.Error(t, err)
		assert.Nil(t, pair)
		assert.Contains(t, err.Error(), "failed to create certificate directory")
	})
}

func TestProvisioner_EnsureWithOpenSSL(t *testing.T) {
	if _, err := exec.LookPath("openssl"); err != nil {
		t.Skip("openssl is not installed")
	}
	if testing.Short() {
		t.Skip("generating a 4096-bit key is slow")
	}
	defer filet.CleanUp(t)

	dir := filet.TmpDir(t, "")
	prov := certs.NewProvisioner(slog.Default())

	pair, err := prov.Ensure(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, pair.Generated)

	_, err = tls.LoadX509KeyPair(pair.CertFile, pair.KeyFile)
	require.NoError(t, err)

	again, err := prov.Ensure(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, again.Generated)
}
