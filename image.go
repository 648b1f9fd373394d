// Package isoforge is the root of the Mutation API (spec §4.1, §6 authoring
// surface): the type Image ties the Namespace Trees, Extent Planner, Writer
// and Opener/Parser components together behind the new/open/write/close
// contract spec.md names. Generalized from the teacher's own (stub) iso9660
// image handle, iso-forge's Image is the one place all seven components
// meet.
package isoforge

import (
	"io"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/eltorito"
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/isoerr"
	"github.com/bgrewell/iso-forge/pkg/logging"
	"github.com/bgrewell/iso-forge/pkg/option"
	"github.com/bgrewell/iso-forge/pkg/parser"
	"github.com/bgrewell/iso-forge/pkg/planner"
	"github.com/bgrewell/iso-forge/pkg/systemarea"
	"github.com/bgrewell/iso-forge/pkg/writer"
)

// Image is a single in-process handle over one logical tree and everything
// needed to plan and write it (spec §2 "Mutation API"). It is not safe for
// concurrent use from multiple goroutines (spec §5 "An instance must not be
// driven from multiple threads concurrently").
type Image struct {
	tree   *filesystem.Tree
	log    *logging.Logger
	opts   *option.CreateOptions
	source io.ReaderAt

	elTorito     *eltorito.ElTorito
	isohybrid    *systemarea.MBR
	duplicatePVD bool

	// layout caches the last planner pass. dirty is cleared by plan()
	// and set by every mutation (spec §4.1 "either marks the plan dirty
	// or ... re-runs the planner").
	layout *planner.Layout
	dirty  bool
}

// New creates a fresh, empty image per spec §6 `new(...)`.
func New(opts ...option.CreateOption) (*Image, error) {
	o := option.DefaultCreateOptions()
	for _, opt := range opts {
		opt(o)
	}
	if !validInterchangeLevel(o.InterchangeLevel) {
		return nil, isoerr.Invalid("", "interchange_level", "unsupported interchange level %d", o.InterchangeLevel)
	}
	logger := o.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	namespaces := []filesystem.Namespace{filesystem.ISO}
	if o.Joliet != option.JolietDisabled {
		namespaces = append(namespaces, filesystem.Joliet)
	}
	if o.UDF != option.UDFDisabled {
		namespaces = append(namespaces, filesystem.UDF)
	}

	img := &Image{
		tree:  filesystem.NewTree(namespaces, logger),
		log:   logger,
		opts:  o,
		dirty: true,
	}
	img.log.Debug("created image", "interchange_level", o.InterchangeLevel, "joliet", o.Joliet, "rock_ridge", o.RockRidge, "udf", o.UDF)
	return img, nil
}

// Open reconstructs an Image from an existing backing stream (spec §6
// `open(stream)`, §4.5 Opener/Parser). The create-time options governing a
// subsequent write are derived from what was on disc only in part (spec §9
// "must preserve semantics on re-read but may relayout on write"): the
// PVD identifiers are copied, and Joliet and Rock Ridge are enabled when
// present, always as Joliet level 3 and Rock Ridge 1.12. The interchange
// level is always 3, and UDF is never enabled.
func Open(source io.ReaderAt, opts ...option.OpenOption) (*Image, error) {
	if source == nil {
		return nil, isoerr.Invalid("", "source", "open: nil source")
	}
	o := &option.OpenOptions{ParseOnOpen: true}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	res, err := parser.Parse(parser.Options{
		Source:           source,
		RockRidgeEnabled: o.RockRidgeEnabled,
		ElToritoEnabled:  o.ElToritoEnabled,
		PreferJoliet:     o.PreferJoliet,
		StripVersionInfo: o.StripVersionInfo,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	createOpts := createOptionsFromParsed(res)
	createOpts.Logger = logger

	img := &Image{
		tree:      res.Tree,
		log:       logger,
		opts:      createOpts,
		source:    source,
		elTorito:  res.ElTorito,
		dirty:     true,
	}
	img.log.Debug("opened image", "joliet", res.HasJoliet, "rock_ridge", res.HasRockRidge, "el_torito", res.ElTorito != nil)
	return img, nil
}

// createOptionsFromParsed derives the CreateOptions a re-plan of a parsed
// tree should use from the volume descriptors the parser actually read,
// rather than silently defaulting back to DefaultCreateOptions() (which
// would, e.g., drop an opened image's Joliet tree on the next write).
func createOptionsFromParsed(res *parser.Result) *option.CreateOptions {
	o := option.DefaultCreateOptions()
	o.InterchangeLevel = 3
	if res.Primary != nil {
		o.SystemIdentifier = res.Primary.SystemIdentifier
		o.VolumeIdentifier = res.Primary.VolumeIdentifier
		o.VolumeSetIdentifier = res.Primary.VolumeSetIdentifier
		o.SequenceNumber = res.Primary.VolumeSequenceNumber
		o.SetSize = res.Primary.VolumeSetSize
	}
	if res.HasJoliet {
		o.Joliet = option.JolietLevel3
	}
	if res.HasRockRidge {
		o.RockRidge = option.RockRidge112
	}
	return o
}

func validInterchangeLevel(level int) bool {
	return level >= 1 && level <= 4
}

// Type reports whether this image publishes a plain ISO9660 tree or a
// UDF-bridge tree (spec §3 "UDF structures", consts.ISOType).
func (img *Image) Type() consts.ISOType {
	if img.tree.HasNamespace(filesystem.UDF) {
		return consts.ISOTypeUDFBridge
	}
	return consts.ISOTypeISO9660
}

// Options returns the create-time configuration currently in effect.
func (img *Image) Options() *option.CreateOptions { return img.opts }

// markDirty flags the plan as stale and, in always_consistent mode,
// immediately replans (spec §4.1 "either marks the plan dirty or ...
// re-runs the planner", §4.2 "Modes").
func (img *Image) markDirty() error {
	img.dirty = true
	if img.opts.AlwaysConsistent {
		return img.plan()
	}
	return nil
}

// plan runs the Extent Planner against the current tree state if the plan
// is stale, memoizing the result (spec §9 "lazy simply memoises the
// pre-write trigger point").
func (img *Image) plan() error {
	if !img.dirty && img.layout != nil {
		return nil
	}
	layout, err := planner.Plan(planner.Input{
		Tree:         img.tree,
		Options:      img.opts,
		ElTorito:     img.elTorito,
		Isohybrid:    img.isohybrid,
		Logger:       img.log,
		DuplicatePVD: img.duplicatePVD,
	})
	if err != nil {
		return err
	}
	img.layout = layout
	img.dirty = false
	return nil
}

// ForceConsistency re-runs the Extent Planner immediately regardless of
// mode (spec §4.6 "force_consistency()").
func (img *Image) ForceConsistency() error {
	img.dirty = true
	return img.plan()
}

// Write plans (if needed) and streams the image to sink (spec §6 `write`).
func (img *Image) Write(sink writer.Sink) error {
	if err := img.checkPendingContent(); err != nil {
		return err
	}
	if err := img.plan(); err != nil {
		return err
	}
	w := writer.New(sink, img.layout)
	if err := w.Write(); err != nil {
		return err
	}
	img.log.Info("wrote image", "sectors", img.layout.TotalSectors)
	return nil
}

// checkPendingContent rejects a write while any add_fp placeholder is
// still waiting on SetFileContent (spec §6 `add_fp`: "write fails if any
// pending content remains unresolved"), as a validating InvalidInput
// raised before planning rather than letting the writer discover it deep
// inside content.Bytes().
func (img *Image) checkPendingContent() error {
	for _, node := range img.tree.AllNodes() {
		if node.Content != nil && node.Content.Source == filesystem.SourcePending {
			return isoerr.Invalid("", "content", "write: pending content from add_fp was never resolved with SetFileContent")
		}
	}
	return nil
}

// Close releases the backing source handle, if Open supplied one that
// implements io.Closer (spec §6 `close`).
func (img *Image) Close() error {
	if closer, ok := img.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// ListChildren returns dirPath's immediate children in namespace ns (spec
// §6 `list_children`).
func (img *Image) ListChildren(ns filesystem.Namespace, dirPath string) ([]*filesystem.Entry, error) {
	return img.tree.ListChildren(ns, dirPath)
}

// GetRecord resolves path in namespace ns to its current entry (spec §6
// `get_record`).
func (img *Image) GetRecord(ns filesystem.Namespace, path string) (*filesystem.Entry, error) {
	return img.tree.GetEntry(ns, path)
}

// FullPathFromDirRecord recovers the logical path a previously returned
// record names (spec §6 `full_path_from_dirrecord`).
func (img *Image) FullPathFromDirRecord(entry *filesystem.Entry) string {
	return entry.FullPath
}

// GetFileFromISO reads a regular file's full content by its ISO9660 path
// (spec §6 `get_file_from_iso`, §8 scenario 2 `get_file("/FOO.;1")`).
func (img *Image) GetFileFromISO(path string) ([]byte, error) {
	entry, err := img.tree.GetEntry(filesystem.ISO, path)
	if err != nil {
		return nil, err
	}
	return entry.Bytes()
}

// ListFiles, ListDirectories and GetAllEntries expose the same
// snapshot/point-in-time listing pycdlib's list_dir walks provide (spec
// §4.6 "Supplemented from original_source").
func (img *Image) ListFiles(ns filesystem.Namespace) []*filesystem.Entry       { return img.tree.ListFiles(ns) }
func (img *Image) ListDirectories(ns filesystem.Namespace) []*filesystem.Entry { return img.tree.ListDirectories(ns) }
func (img *Image) GetAllEntries(ns filesystem.Namespace) []*filesystem.Entry   { return img.tree.GetAllEntries(ns) }

// HasElTorito reports whether a boot catalog has been added.
func (img *Image) HasElTorito() bool { return img.elTorito != nil }

// HasIsohybrid reports whether the isohybrid MBR prelude is installed.
func (img *Image) HasIsohybrid() bool { return img.isohybrid != nil }

// TotalSectors plans (if needed) and reports the final image size in
// 2048-byte logical sectors (spec §8 "Empty ISO" / "One file at root" seed
// scenarios size the whole image in sectors).
func (img *Image) TotalSectors() (uint32, error) {
	if err := img.plan(); err != nil {
		return 0, err
	}
	return img.layout.TotalSectors, nil
}
