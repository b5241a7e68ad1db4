package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/upkg/internal/archive/archivetest"
	"github.com/hpungsan/upkg/internal/config"
	"github.com/hpungsan/upkg/internal/errors"
)

func twoAssetArchive(t *testing.T, dir, name string) string {
	t.Helper()
	return archivetest.WriteFile(t, dir, name, archivetest.Concat(
		archivetest.Asset("aaa", "Assets/Textures/wood.png", "PNGDATA", "guid: aaa\n", "THUMB"),
		archivetest.Asset("bbb", "Assets/Scripts/Player.cs", "class Player {}", "guid: bbb\n", ""),
	)...)
}

func TestInflate_HappyPath(t *testing.T) {
	dir := t.TempDir()
	path := twoAssetArchive(t, dir, "pack.unitypackage")

	out, err := Inflate(context.Background(), config.DefaultConfig(), InflateInput{Path: path})
	require.NoError(t, err)
	require.NoError(t, out.Err())

	require.NotEmpty(t, out.RunID)
	require.Equal(t, filepath.Join(dir, "pack"), out.OutputDir)
	require.Equal(t, 2, out.Assets)
	require.Len(t, out.Written, 5)
	require.Empty(t, out.Warnings)
	require.Empty(t, out.Failures)

	root := filepath.Join(dir, "pack")
	for rel, want := range map[string]string{
		"Assets/Textures/wood.png":               "PNGDATA",
		"Assets/Textures/wood.png.meta":          "guid: aaa\n",
		"Assets/Textures/wood_preview_image.png": "THUMB",
		"Assets/Scripts/Player.cs":               "class Player {}",
		"Assets/Scripts/Player.cs.meta":          "guid: bbb\n",
	} {
		got, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		require.Equal(t, want, string(got), rel)
	}
	require.NoFileExists(t, filepath.Join(root, "Assets", "Scripts", "Player_preview_image.png"))
}

func TestInflate_WrongExtensionTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	path := twoAssetArchive(t, dir, "pack.tar.gz")

	_, err := Inflate(context.Background(), config.DefaultConfig(), InflateInput{Path: path})
	require.True(t, errors.Is(err, errors.ErrInvalidExtension), "got %v", err)
	require.NoDirExists(t, filepath.Join(dir, "pack.tar"))
	require.NoDirExists(t, filepath.Join(dir, "pack"))
}

func TestInflate_EmptyPath(t *testing.T) {
	_, err := Inflate(context.Background(), nil, InflateInput{Path: "  "})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestInflate_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Inflate(context.Background(), nil, InflateInput{Path: filepath.Join(dir, "gone.unitypackage")})
	require.True(t, errors.Is(err, errors.ErrOpenFailed), "got %v", err)
	require.NoDirExists(t, filepath.Join(dir, "gone"))
}

func TestInflate_CorruptArchiveWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.unitypackage")
	require.NoError(t, os.WriteFile(path, []byte("definitely not gzip"), 0644))

	_, err := Inflate(context.Background(), nil, InflateInput{Path: path})
	require.True(t, errors.Is(err, errors.ErrDecompressFailed), "got %v", err)
	require.NoDirExists(t, filepath.Join(dir, "broken"))
}

func TestInflate_CollisionWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := archivetest.WriteFile(t, dir, "clash.unitypackage", archivetest.Concat(
		archivetest.Asset("aaa", "Assets/same.txt", "one", "", ""),
		archivetest.Asset("bbb", "Assets/same.txt", "two", "", ""),
		archivetest.Asset("ccc", "Assets/other.txt", "three", "", ""),
	)...)

	_, err := Inflate(context.Background(), nil, InflateInput{Path: path})
	require.True(t, errors.Is(err, errors.ErrPathCollision), "got %v", err)
	require.NoDirExists(t, filepath.Join(dir, "clash"))
}

func TestInflate_UnsafePathFailsArchiveButWritesOthers(t *testing.T) {
	dir := t.TempDir()
	path := archivetest.WriteFile(t, dir, "mixed.unitypackage", archivetest.Concat(
		archivetest.Asset("aaa", "../escape.txt", "evil", "", ""),
		archivetest.Asset("bbb", "Assets/ok.txt", "fine", "", ""),
	)...)

	out, err := Inflate(context.Background(), nil, InflateInput{Path: path})
	require.NoError(t, err)
	require.Len(t, out.Failures, 1)
	require.Equal(t, "aaa", out.Failures[0].AssetID)
	require.True(t, errors.Is(out.Err(), errors.ErrWriteFailed))

	require.FileExists(t, filepath.Join(dir, "mixed", "Assets", "ok.txt"))
	require.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestInflate_StrictWarnings(t *testing.T) {
	dir := t.TempDir()
	path := archivetest.WriteFile(t, dir, "odd.unitypackage", append(
		archivetest.Asset("aaa", "Assets/a.txt", "a", "", ""),
		archivetest.File("aaa/thumbnail.jpg", "x"),
	)...)

	out, err := Inflate(context.Background(), config.DefaultConfig(), InflateInput{Path: path})
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	require.NoError(t, out.Err())

	cfg := config.DefaultConfig()
	cfg.Strict = true
	out, err = Inflate(context.Background(), cfg, InflateInput{Path: path})
	require.NoError(t, err)
	require.True(t, errors.Is(out.Err(), errors.ErrWarningsPresent))
	require.FileExists(t, filepath.Join(dir, "odd", "Assets", "a.txt"))
}

func TestInflate_UnroutableAssetsSkipped(t *testing.T) {
	dir := t.TempDir()
	path := archivetest.WriteFile(t, dir, "loose.unitypackage",
		archivetest.File("aaa/asset", "orphan"),
		archivetest.File("aaa/asset.meta", "guid: aaa\n"),
	)

	out, err := Inflate(context.Background(), nil, InflateInput{Path: path})
	require.NoError(t, err)
	require.NoError(t, out.Err())
	require.Equal(t, []string{"aaa"}, out.Unroutable)
	require.Empty(t, out.Written)
	require.NotNil(t, out.Written)
}

func TestInflate_InvalidModeConfig(t *testing.T) {
	dir := t.TempDir()
	path := twoAssetArchive(t, dir, "pack.unitypackage")

	cfg := config.DefaultConfig()
	cfg.FileMode = "rw-r--r--"
	_, err := Inflate(context.Background(), cfg, InflateInput{Path: path})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
	require.NoDirExists(t, filepath.Join(dir, "pack"))
}

func TestInflate_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := twoAssetArchive(t, dir, "pack.unitypackage")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Inflate(ctx, nil, InflateInput{Path: path})
	require.True(t, errors.Is(err, errors.ErrCancelled), "got %v", err)
}
