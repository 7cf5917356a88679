package archivecodec_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vgitarchive/vgitarchive/backend/pkg/archivecodec"
	"github.com/vgitarchive/vgitarchive/backend/pkg/mulog"
	"github.com/vgitarchive/vgitarchive/backend/pkg/rate"
	xrate "golang.org/x/time/rate"
)

func TestZipCodecRoundtrip(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.txt"), []byte("world"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "skip.class"), []byte("bin"), 0o644))

	dest := filepath.Join(t.TempDir(), "archive.zip")
	c := archivecodec.ZipCodec{}
	require.NoError(t, c.Pack(ctx, src, dest, ".class"))
	require.Equal(t, "ZIP", c.Identifier())

	out := t.TempDir()
	require.NoError(t, c.Unpack(ctx, dest, out))

	got, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))

	got, err = os.ReadFile(filepath.Join(out, "sub", "b.txt"))
	require.NoError(t, err)
	require.Equal(t, "world", string(got))

	_, err = os.Stat(filepath.Join(out, "skip.class"))
	require.True(t, os.IsNotExist(err))
}

func TestZipCodecPackReplacesExisting(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("v1"), 0o644))

	dest := filepath.Join(t.TempDir(), "archive.zip")
	c := archivecodec.ZipCodec{}
	require.NoError(t, c.Pack(ctx, src, dest))

	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("v2"), 0o644))
	require.NoError(t, c.Pack(ctx, src, dest))

	out := t.TempDir()
	require.NoError(t, c.Unpack(ctx, dest, out))
	got, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))
}

// A `Regulator` overrides the static `BandwidthLimit` with its current
// adaptive rate and records success/excess feedback on every call.
func TestZipCodecUsesRegulatorForBandwidthLimit(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello world"), 0o644))

	reg := rate.NewLimiter(mulog.Printer{}, rate.Config{
		Name:    "test",
		MinRate: xrate.Limit(1 << 20),
		MaxRate: xrate.Limit(1 << 30),
		Burst:   1 << 20,
		Tau:     time.Second,
	})

	dest := filepath.Join(t.TempDir(), "archive.zip")
	c := archivecodec.ZipCodec{Regulator: reg}
	require.NoError(t, c.Pack(ctx, src, dest))
	require.GreaterOrEqual(t, reg.SuccessRate(), 0.0)

	out := t.TempDir()
	require.NoError(t, c.Unpack(ctx, dest, out))
	got, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}
