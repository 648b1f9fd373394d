package isoforge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/eltorito"
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/option"
)

// memSink is a growable in-memory Writer.Sink used instead of a temp file
// across these tests; it tracks the highest byte offset written so tests
// can assert a seed scenario's exact final image size.
type memSink struct {
	data []byte
}

func (m *memSink) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:end], p)
	return len(p), nil
}

func mustWrite(t *testing.T, img *Image) *memSink {
	t.Helper()
	sink := &memSink{}
	require.NoError(t, img.Write(sink))
	return sink
}

// Scenario 1: empty ISO at level 1 (spec §8 seed case 1).
func TestEmptyISO(t *testing.T) {
	img, err := New(option.WithInterchangeLevel(1))
	require.NoError(t, err)

	sectors, err := img.TotalSectors()
	require.NoError(t, err)
	assert.Equal(t, uint32(24), sectors)

	sink := mustWrite(t, img)
	assert.Equal(t, 49152, len(sink.data))

	entries, err := img.ListChildren(filesystem.ISO, "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// Scenario 2: one file at root (spec §8 seed case 2).
func TestOneFileAtRoot(t *testing.T) {
	img, err := New()
	require.NoError(t, err)

	_, err = img.AddFile([]byte("foo\n"), Paths{ISO: "/FOO.;1"}, 0)
	require.NoError(t, err)

	sink := mustWrite(t, img)
	assert.Equal(t, 51200, len(sink.data))

	children, err := img.ListChildren(filesystem.ISO, "/")
	require.NoError(t, err)
	assert.Len(t, children, 1)

	data, err := img.GetFileFromISO("/FOO.;1")
	require.NoError(t, err)
	assert.Equal(t, []byte("foo\n"), data)
}

// Scenario 4: Rock Ridge symlink whose SL target is a single "foo"
// component; reading it as file content must fail (spec §8 seed case 4).
func TestRockRidgeSymlink(t *testing.T) {
	img, err := New(option.WithRockRidge(option.RockRidge112))
	require.NoError(t, err)

	entry, err := img.AddSymlink("/SYM.;1", "sym", "foo", "")
	require.NoError(t, err)
	assert.Equal(t, "/SYM.;1", entry.FullPath)

	_, err = img.GetFileFromISO("/SYM.;1")
	assert.Error(t, err)

	node := entry.Node()
	require.Len(t, node.SymlinkTarget, 1)
	assert.Equal(t, "foo", node.SymlinkTarget[0].Name)
}

// Scenario 5: Joliet + Rock Ridge + El Torito, no extra files (spec §8
// seed case 5).
func TestJolietRockRidgeElTorito(t *testing.T) {
	img, err := New(
		option.WithJoliet(option.JolietLevel3),
		option.WithRockRidge(option.RockRidge112),
	)
	require.NoError(t, err)

	_, err = img.AddFile([]byte("boot\n"), Paths{ISO: "/BOOT.;1", Joliet: "boot"}, 0)
	require.NoError(t, err)

	_, err = img.AddElTorito(ElToritoRequest{
		BootFilePath:    "/BOOT.;1",
		BootCatalogPath: "/BOOT.CAT;1",
		Media:           MediaNoBootEmul,
		Platform:        eltorito.BIOS,
	})
	require.NoError(t, err)

	sectors, err := img.TotalSectors()
	require.NoError(t, err)
	assert.Equal(t, uint32(34), sectors)

	sink := mustWrite(t, img)
	assert.Equal(t, 69632, len(sink.data))

	isoChildren, err := img.ListChildren(filesystem.ISO, "/")
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range isoChildren {
		names[e.Name] = true
	}
	assert.True(t, names["BOOT.;1"])
	assert.True(t, names["BOOT.CAT;1"])

	jolietChildren, err := img.ListChildren(filesystem.Joliet, "/")
	require.NoError(t, err)
	require.Len(t, jolietChildren, 1)
	assert.Equal(t, "boot", jolietChildren[0].Name)
}

// Scenario 6: isohybrid (spec §8 seed case 6).
func TestIsohybrid(t *testing.T) {
	img, err := New(option.WithInterchangeLevel(1))
	require.NoError(t, err)

	bootFile := make([]byte, 512)
	bootFile[0x40] = 0xfb
	bootFile[0x41] = 0xc0
	bootFile[0x42] = 0x78
	bootFile[0x43] = 0x70

	_, err = img.AddFile(bootFile, Paths{ISO: "/ISOLINUX.BIN;1"}, 0)
	require.NoError(t, err)

	_, err = img.AddElTorito(ElToritoRequest{
		BootFilePath:    "/ISOLINUX.BIN;1",
		BootCatalogPath: "/BOOT.CAT;1",
		Media:           MediaNoBootEmul,
		Platform:        eltorito.BIOS,
		BootLoadSize:    4,
	})
	require.NoError(t, err)

	require.NoError(t, img.AddIsohybrid(false))
	assert.True(t, img.HasIsohybrid())

	sink := mustWrite(t, img)
	assert.GreaterOrEqual(t, len(sink.data), consts.ISO9660_SECTOR_SIZE*16)
}

// Idempotence: writing twice with no mutations in between yields identical
// bytes (spec §8 "Idempotence").
func TestWriteIsIdempotent(t *testing.T) {
	img, err := New()
	require.NoError(t, err)
	_, err = img.AddFile([]byte("hello\n"), Paths{ISO: "/HELLO.;1"}, 0)
	require.NoError(t, err)

	first := mustWrite(t, img)
	second := mustWrite(t, img)
	assert.Equal(t, first.data, second.data)
}

// A mutation that fails validation must leave the tree unchanged (spec §5
// "Failure atomicity").
func TestAddDirectoryRejectsDuplicateName(t *testing.T) {
	img, err := New()
	require.NoError(t, err)

	_, err = img.AddDirectory(Paths{ISO: "/DIR1"}, false)
	require.NoError(t, err)

	before, err := img.ListChildren(filesystem.ISO, "/")
	require.NoError(t, err)

	_, err = img.AddDirectory(Paths{ISO: "/DIR1"}, false)
	assert.Error(t, err)

	after, err := img.ListChildren(filesystem.ISO, "/")
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))
}

func TestRemoveFileRejectsElToritoBootFile(t *testing.T) {
	img, err := New()
	require.NoError(t, err)

	_, err = img.AddFile([]byte("boot\n"), Paths{ISO: "/BOOT.;1"}, 0)
	require.NoError(t, err)
	_, err = img.AddElTorito(ElToritoRequest{
		BootFilePath:    "/BOOT.;1",
		BootCatalogPath: "/BOOT.CAT;1",
		Media:           MediaNoBootEmul,
		Platform:        eltorito.BIOS,
	})
	require.NoError(t, err)

	err = img.RemoveFile(filesystem.ISO, "/BOOT.;1")
	assert.Error(t, err)
}
