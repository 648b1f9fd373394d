package isoforge

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/eltorito"
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/isoerr"
	"github.com/bgrewell/iso-forge/pkg/option"
	"github.com/bgrewell/iso-forge/pkg/rockridge"
	"github.com/bgrewell/iso-forge/pkg/systemarea"
	"github.com/bgrewell/iso-forge/pkg/validation"
)

// Paths names the same logical entry in up to three coexisting namespaces
// (spec §6 "Configuration": "Per-call parameters name the namespace a path
// belongs to"). An empty field means that namespace is not given an entry;
// at least one must be non-empty.
type Paths struct {
	ISO    string
	Joliet string
	UDF    string
}

// attachment is a pre-validated (parent, identifier) pair: every mutation
// that creates a new facet resolves all of its target namespaces into
// attachments before touching the tree, so a validation failure on the
// second or third namespace never leaves the first half-attached (spec §5
// "Failure atomicity": "A detected violation leaves the tree bit-identical
// to its state before the call").
type attachment struct {
	ns     filesystem.Namespace
	parent filesystem.NodeID
	name   string
	hidden bool
}

// resolveAttachment validates path against ns's naming and structural
// rules and resolves its parent, without mutating the tree.
func (img *Image) resolveAttachment(ns filesystem.Namespace, path string, hidden bool, validate func(string) error) (*attachment, error) {
	if !img.tree.HasNamespace(ns) {
		return nil, isoerr.Invalid(path, "namespace", "namespace %v is not enabled", ns)
	}
	parent, name, err := img.tree.LookupParent(ns, path)
	if err != nil {
		return nil, err
	}
	if err := validate(name); err != nil {
		return nil, isoerr.Invalid(path, "path", "%v", err)
	}
	for _, cid := range img.tree.Node(parent).Children[ns] {
		if f := img.tree.Node(cid).Facets[ns]; f != nil && f.Identifier == name {
			return nil, isoerr.Invalid(path, "path", "an entry named %q already exists", name)
		}
	}
	if ns == filesystem.ISO {
		depth := img.tree.Depth(ns, parent) + 1
		if err := validation.ValidDepth(depth, len(path), img.level()); err != nil {
			return nil, isoerr.Invalid(path, "path", "%v", err)
		}
	}
	return &attachment{ns: ns, parent: parent, name: name, hidden: hidden}, nil
}

// resolvePaths resolves every non-empty field of paths into an attachment,
// rejecting a namespace path when that namespace was not enabled at New().
func (img *Image) resolvePaths(paths Paths, hidden bool, isoValidate func(string) error) ([]*attachment, error) {
	var atts []*attachment
	if paths.ISO != "" {
		a, err := img.resolveAttachment(filesystem.ISO, paths.ISO, hidden, isoValidate)
		if err != nil {
			return nil, err
		}
		atts = append(atts, a)
	}
	if paths.Joliet != "" {
		if img.opts.Joliet == option.JolietDisabled {
			return nil, isoerr.Invalid(paths.Joliet, "joliet_path", "joliet is not enabled")
		}
		a, err := img.resolveAttachment(filesystem.Joliet, paths.Joliet, hidden, img.validateJolietIdentifier)
		if err != nil {
			return nil, err
		}
		atts = append(atts, a)
	}
	if paths.UDF != "" {
		if img.opts.UDF == option.UDFDisabled {
			return nil, isoerr.Invalid(paths.UDF, "udf_path", "udf is not enabled")
		}
		a, err := img.resolveAttachment(filesystem.UDF, paths.UDF, hidden, img.validateUDFIdentifier)
		if err != nil {
			return nil, err
		}
		atts = append(atts, a)
	}
	if len(atts) == 0 {
		return nil, isoerr.Invalid("", "path", "at least one namespace path is required")
	}
	return atts, nil
}

func (img *Image) attachAll(node *filesystem.Node, atts []*attachment) error {
	for _, a := range atts {
		if err := img.tree.Attach(node, a.ns, a.parent, &filesystem.Facet{Identifier: a.name, Hidden: a.hidden}); err != nil {
			return err
		}
	}
	return nil
}

// firstEntry returns the Entry for whichever namespace path paths supplied
// first, used as the return value for mutations spec §4.1 describes as
// returning a single node.
func (img *Image) firstEntry(paths Paths) (*filesystem.Entry, error) {
	switch {
	case paths.ISO != "":
		return img.tree.GetEntry(filesystem.ISO, paths.ISO)
	case paths.Joliet != "":
		return img.tree.GetEntry(filesystem.Joliet, paths.Joliet)
	default:
		return img.tree.GetEntry(filesystem.UDF, paths.UDF)
	}
}

func (img *Image) level() validation.InterchangeLevel {
	return validation.InterchangeLevel(img.opts.InterchangeLevel)
}

func (img *Image) validateISOFileIdentifier(name string) error {
	return validation.ValidISO9660FileIdentifier(name, img.level())
}

func (img *Image) validateISODirIdentifier(name string) error {
	return validation.ValidISO9660DirIdentifier(name, img.level())
}

func (img *Image) validateJolietIdentifier(name string) error {
	return validation.ValidJolietIdentifier(name)
}

func (img *Image) validateUDFIdentifier(name string) error {
	return validation.ValidUDFIdentifier(name)
}

// AddDirectory creates a new directory node and attaches it under every
// namespace path supplied (spec §4.1 `add_directory`).
func (img *Image) AddDirectory(paths Paths, hidden bool) (*filesystem.Entry, error) {
	atts, err := img.resolvePaths(paths, hidden, img.validateISODirIdentifier)
	if err != nil {
		return nil, err
	}
	node := img.tree.CreateDirectory()
	node.Mode = os.ModeDir | 0o755
	now := time.Now()
	node.CreateTime, node.ModTime = now, now
	if err := img.attachAll(node, atts); err != nil {
		return nil, isoerr.Internal("add_directory: %v", err)
	}
	if err := img.markDirty(); err != nil {
		return nil, err
	}
	return img.firstEntry(paths)
}

// AddFile creates a new regular file node owning content and attaches it
// under every namespace path supplied (spec §4.1 `add_file`). mode is
// accepted only when Rock Ridge is enabled; pass 0 to leave it unset.
func (img *Image) AddFile(content []byte, paths Paths, mode os.FileMode) (*filesystem.Entry, error) {
	if mode != 0 && img.opts.RockRidge == option.RockRidgeNone {
		return nil, isoerr.Invalid("", "file_mode", "file_mode is only accepted when rock ridge is enabled")
	}
	atts, err := img.resolvePaths(paths, false, img.validateISOFileIdentifier)
	if err != nil {
		return nil, err
	}
	node := img.tree.CreateFile(filesystem.NewOwnedContent(content))
	if mode != 0 {
		node.Mode = mode
	}
	now := time.Now()
	node.CreateTime, node.ModTime = now, now
	if err := img.attachAll(node, atts); err != nil {
		return nil, isoerr.Internal("add_file: %v", err)
	}
	if err := img.markDirty(); err != nil {
		return nil, err
	}
	return img.firstEntry(paths)
}

// AddFP reserves size bytes of pending content to be supplied later via
// SetFileContent (spec §6 `add_fp`, pycdlib's deferred-handle convention).
// write fails if any pending content remains unresolved.
func (img *Image) AddFP(size int64, paths Paths, mode os.FileMode) (*filesystem.Entry, error) {
	if mode != 0 && img.opts.RockRidge == option.RockRidgeNone {
		return nil, isoerr.Invalid("", "file_mode", "file_mode is only accepted when rock ridge is enabled")
	}
	atts, err := img.resolvePaths(paths, false, img.validateISOFileIdentifier)
	if err != nil {
		return nil, err
	}
	node := img.tree.CreateFile(filesystem.NewPendingContent(size))
	if mode != 0 {
		node.Mode = mode
	}
	now := time.Now()
	node.CreateTime, node.ModTime = now, now
	if err := img.attachAll(node, atts); err != nil {
		return nil, isoerr.Internal("add_fp: %v", err)
	}
	if err := img.markDirty(); err != nil {
		return nil, err
	}
	return img.firstEntry(paths)
}

// SetFileContent resolves a pending AddFP placeholder with its real bytes.
func (img *Image) SetFileContent(entry *filesystem.Entry, data []byte) error {
	node := entry.Node()
	if node.Kind != filesystem.KindFile {
		return isoerr.Invalid(entry.FullPath, "path", "not a regular file")
	}
	node.Content.Source = filesystem.SourceOwned
	node.Content.Owned = data
	node.Content.Length = int64(len(data))
	node.Content.Reader = nil
	return img.markDirty()
}

// AddHardLink attaches a new facet for an existing node at targetPath in
// targetNS (spec §4.1 `add_hard_link`). A directory cannot be linked into
// ISO9660 or Joliet; other namespaces accept it.
func (img *Image) AddHardLink(sourceNS filesystem.Namespace, sourcePath string, targetNS filesystem.Namespace, targetPath string, hidden bool) (*filesystem.Entry, error) {
	srcID, err := img.tree.Lookup(sourceNS, sourcePath)
	if err != nil {
		return nil, err
	}
	return img.addHardLinkToNode(img.tree.Node(srcID), targetNS, targetPath, hidden)
}

// AddHardLinkFromBootCatalog attaches a new facet for the El Torito boot
// catalog node (spec §4.1 `add_hard_link(source facet or boot-catalog,
// ...)`).
func (img *Image) AddHardLinkFromBootCatalog(targetNS filesystem.Namespace, targetPath string, hidden bool) (*filesystem.Entry, error) {
	if img.elTorito == nil {
		return nil, isoerr.Invalid("", "el_torito", "no boot catalog exists to hard link")
	}
	catID, err := img.tree.Lookup(filesystem.ISO, img.elTorito.BootCatalog)
	if err != nil {
		return nil, err
	}
	return img.addHardLinkToNode(img.tree.Node(catID), targetNS, targetPath, hidden)
}

func (img *Image) addHardLinkToNode(node *filesystem.Node, targetNS filesystem.Namespace, targetPath string, hidden bool) (*filesystem.Entry, error) {
	if node.IsDir() && (targetNS == filesystem.ISO || targetNS == filesystem.Joliet) {
		return nil, isoerr.Invalid(targetPath, "path", "hard links to directories are not allowed in iso9660/joliet")
	}
	var validate func(string) error
	switch targetNS {
	case filesystem.ISO:
		validate = img.validateISOFileIdentifier
	case filesystem.Joliet:
		if img.opts.Joliet == option.JolietDisabled {
			return nil, isoerr.Invalid(targetPath, "joliet_path", "joliet is not enabled")
		}
		validate = img.validateJolietIdentifier
	case filesystem.UDF:
		if img.opts.UDF == option.UDFDisabled {
			return nil, isoerr.Invalid(targetPath, "udf_path", "udf is not enabled")
		}
		validate = img.validateUDFIdentifier
	default:
		return nil, isoerr.Invalid(targetPath, "namespace", "unknown namespace")
	}
	att, err := img.resolveAttachment(targetNS, targetPath, hidden, validate)
	if err != nil {
		return nil, err
	}
	if err := img.tree.Attach(node, att.ns, att.parent, &filesystem.Facet{Identifier: att.name, Hidden: hidden}); err != nil {
		return nil, err
	}
	if err := img.markDirty(); err != nil {
		return nil, err
	}
	return img.tree.GetEntry(targetNS, targetPath)
}

// RemoveFile removes the named facet (spec §4.1 `rm_file`); when the last
// facet is gone the node and its content are released. Removing a boot
// file or boot catalog still referenced by El Torito is a fatal error.
func (img *Image) RemoveFile(ns filesystem.Namespace, path string) error {
	id, err := img.tree.Lookup(ns, path)
	if err != nil {
		return err
	}
	node := img.tree.Node(id)
	if node.IsDir() {
		return isoerr.Invalid(path, "path", "rm_file: %q is a directory; use rm_directory", path)
	}
	if img.elTorito != nil && ns == filesystem.ISO {
		if img.elTorito.BootCatalog == path {
			return isoerr.Invalid(path, "path", "cannot remove the el torito boot catalog; use rm_eltorito")
		}
		for _, e := range img.elTorito.Entries {
			if e.BootFile == path {
				return isoerr.Invalid(path, "path", "cannot remove a file still referenced by el torito")
			}
		}
	}
	img.tree.Detach(node, ns)
	return img.markDirty()
}

// RemoveHardLink is an alias for RemoveFile naming spec §6's
// `rm_hard_link`: a hard link is simply an extra facet, so removing one is
// identical to removing any other facet of a shared node.
func (img *Image) RemoveHardLink(ns filesystem.Namespace, path string) error {
	return img.RemoveFile(ns, path)
}

// RemoveDirectory removes an empty directory facet (spec §4.1
// `rm_directory`). The root of any namespace is never removable.
func (img *Image) RemoveDirectory(ns filesystem.Namespace, path string) error {
	id, err := img.tree.Lookup(ns, path)
	if err != nil {
		return err
	}
	if id == img.tree.Root(ns) {
		return isoerr.Invalid(path, "path", "the namespace root is never removable")
	}
	node := img.tree.Node(id)
	if !node.IsDir() {
		return isoerr.Invalid(path, "path", "rm_directory: %q is not a directory", path)
	}
	if len(node.Children[ns]) > 0 {
		return isoerr.Invalid(path, "path", "rm_directory: %q is not empty", path)
	}
	img.tree.Detach(node, ns)
	return img.markDirty()
}

// AddJolietDirectory creates a directory with only a Joliet facet (spec §6
// `add_joliet_directory`), for callers authoring a Joliet tree that
// diverges from the ISO9660 tree's shape.
func (img *Image) AddJolietDirectory(path string, hidden bool) (*filesystem.Entry, error) {
	return img.AddDirectory(Paths{Joliet: path}, hidden)
}

// RemoveJolietDirectory removes an empty Joliet-only directory facet (spec
// §6 `rm_joliet_directory`).
func (img *Image) RemoveJolietDirectory(path string) error {
	return img.RemoveDirectory(filesystem.Joliet, path)
}

// parseSymlinkTarget splits a "/"-separated symlink target into Rock Ridge
// SL components (spec §4.1 `add_symlink`: "target is split on '/' into
// components, each mapped either to a literal name, '.', '..', or root").
func parseSymlinkTarget(target string) []rockridge.SymlinkComponent {
	var comps []rockridge.SymlinkComponent
	if strings.HasPrefix(target, "/") {
		comps = append(comps, rockridge.SymlinkComponent{Kind: rockridge.SymlinkRoot})
		target = strings.TrimPrefix(target, "/")
	}
	if target == "" {
		return comps
	}
	for _, part := range strings.Split(target, "/") {
		switch part {
		case ".":
			comps = append(comps, rockridge.SymlinkComponent{Kind: rockridge.SymlinkCurrent})
		case "..":
			comps = append(comps, rockridge.SymlinkComponent{Kind: rockridge.SymlinkParent})
		default:
			comps = append(comps, rockridge.SymlinkComponent{Kind: rockridge.SymlinkLiteral, Name: part})
		}
	}
	return comps
}

// AddSymlink creates a symlink node (spec §4.1 `add_symlink`). Requires
// Rock Ridge; isoPath is the raw ISO9660 8.3 identifier every reader sees,
// rrName is the Rock Ridge NM display name, target is split into SL
// components, and jolietPath optionally mirrors the entry into Joliet.
func (img *Image) AddSymlink(isoPath, rrName, target, jolietPath string) (*filesystem.Entry, error) {
	if img.opts.RockRidge == option.RockRidgeNone {
		return nil, isoerr.Invalid(isoPath, "rock_ridge", "add_symlink requires rock ridge to be enabled")
	}
	if err := validation.ValidRockRidgeName(rrName); err != nil {
		return nil, isoerr.Invalid(rrName, "rr_name", "%v", err)
	}
	isoAtt, err := img.resolveAttachment(filesystem.ISO, isoPath, false, img.validateISOFileIdentifier)
	if err != nil {
		return nil, err
	}
	var jolietAtt *attachment
	if jolietPath != "" {
		if img.opts.Joliet == option.JolietDisabled {
			return nil, isoerr.Invalid(jolietPath, "joliet_path", "joliet is not enabled")
		}
		jolietAtt, err = img.resolveAttachment(filesystem.Joliet, jolietPath, false, img.validateJolietIdentifier)
		if err != nil {
			return nil, err
		}
	}

	node := img.tree.CreateSymlink(parseSymlinkTarget(target))
	node.Mode = os.ModeSymlink | 0o777
	now := time.Now()
	node.CreateTime, node.ModTime = now, now

	if err := img.tree.Attach(node, filesystem.ISO, isoAtt.parent, &filesystem.Facet{Identifier: isoAtt.name, RRName: rrName}); err != nil {
		return nil, isoerr.Internal("add_symlink: %v", err)
	}
	if jolietAtt != nil {
		if err := img.tree.Attach(node, filesystem.Joliet, jolietAtt.parent, &filesystem.Facet{Identifier: jolietAtt.name}); err != nil {
			return nil, isoerr.Internal("add_symlink: %v", err)
		}
	}
	if err := img.markDirty(); err != nil {
		return nil, err
	}
	return img.tree.GetEntry(filesystem.ISO, isoPath)
}

// ElToritoMedia selects the emulation mode add_eltorito validates and
// stamps into the boot catalog entry (spec §4.1 `media_name`).
type ElToritoMedia int

const (
	MediaNoBootEmul ElToritoMedia = iota
	MediaFloppy
	MediaHDEmul
)

// ElToritoRequest gathers add_eltorito's parameters (spec §4.1
// `add_eltorito`).
type ElToritoRequest struct {
	// BootFilePath is the ISO9660 path of a file node already added via
	// AddFile/AddFP (spec §3 "Each entry points at a file node in the ISO
	// namespace via an extent number").
	BootFilePath string
	// BootCatalogPath names the ISO9660 path the boot catalog node is
	// created at on the first call, or must match on subsequent calls
	// appending further entries to the same catalog.
	BootCatalogPath string
	Media           ElToritoMedia
	Platform        eltorito.Platform
	// BootLoadSize overrides the catalog entry's emulated-sector-count
	// field instead of deriving it from the boot file's length; 0 means
	// auto-compute. Isohybrid images require exactly 4 (spec §4.1
	// add_isohybrid).
	BootLoadSize    uint16
	BootInfoTable   bool
	HideBootFile    bool
	HideBootCatalog bool
}

// AddElTorito creates (or appends to) the El Torito boot catalog and
// cross-links it to an already-added boot file node (spec §4.1
// `add_eltorito`).
func (img *Image) AddElTorito(req ElToritoRequest) (*filesystem.Entry, error) {
	bootID, err := img.tree.Lookup(filesystem.ISO, req.BootFilePath)
	if err != nil {
		return nil, isoerr.Invalid(req.BootFilePath, "boot_file", "missing el torito prerequisite: %v", err)
	}
	bootNode := img.tree.Node(bootID)
	if bootNode.Kind != filesystem.KindFile {
		return nil, isoerr.Invalid(req.BootFilePath, "boot_file", "el torito boot file must be a regular file")
	}
	data, err := bootNode.Content.Bytes()
	if err != nil {
		return nil, err
	}

	var emulation eltorito.Emulation
	switch req.Media {
	case MediaNoBootEmul:
		emulation = eltorito.NoEmulation
	case MediaFloppy:
		switch int64(len(data)) {
		case consts.FLOPPY_1200K_SIZE:
			emulation = eltorito.Floppy12Emulation
		case consts.FLOPPY_1440K_SIZE:
			emulation = eltorito.Floppy144Emulation
		case consts.FLOPPY_2880K_SIZE:
			emulation = eltorito.Floppy288Emulation
		default:
			return nil, isoerr.Invalid(req.BootFilePath, "media_name", "floppy boot file must be exactly 1200K, 1440K, or 2880K bytes, got %d", len(data))
		}
	case MediaHDEmul:
		emulation = eltorito.HardDiskEmulation
		if err := validateHDEmulMBR(data); err != nil {
			return nil, isoerr.Invalid(req.BootFilePath, "media_name", "%v", err)
		}
	default:
		return nil, isoerr.Invalid("", "media_name", "unknown el torito media type")
	}

	entry := &eltorito.ElToritoEntry{
		Platform:         req.Platform,
		Emulation:        emulation,
		BootFile:         req.BootFilePath,
		HideBootFile:     req.HideBootFile,
		BootInfoTable:    req.BootInfoTable,
		LoadSizeOverride: req.BootLoadSize,
	}

	if img.elTorito == nil {
		if _, err := img.tree.Lookup(filesystem.ISO, req.BootCatalogPath); err == nil {
			return nil, isoerr.Invalid(req.BootCatalogPath, "boot_catalog", "an entry already exists at this path")
		}
		att, err := img.resolveAttachment(filesystem.ISO, req.BootCatalogPath, req.HideBootCatalog, img.validateISOFileIdentifier)
		if err != nil {
			return nil, err
		}
		catNode := img.tree.CreateBootCatalogNode(filesystem.NewOwnedContent(nil))
		now := time.Now()
		catNode.CreateTime, catNode.ModTime = now, now
		if err := img.tree.Attach(catNode, att.ns, att.parent, &filesystem.Facet{Identifier: att.name, Hidden: req.HideBootCatalog}); err != nil {
			return nil, isoerr.Internal("add_eltorito: %v", err)
		}
		img.elTorito = &eltorito.ElTorito{
			BootCatalog:     req.BootCatalogPath,
			HideBootCatalog: req.HideBootCatalog,
			Platform:        req.Platform,
		}
	} else if img.elTorito.BootCatalog != req.BootCatalogPath {
		return nil, isoerr.Invalid(req.BootCatalogPath, "boot_catalog", "boot catalog path mismatch with existing catalog %q", img.elTorito.BootCatalog)
	}

	img.elTorito.Entries = append(img.elTorito.Entries, entry)
	if err := img.markDirty(); err != nil {
		return nil, err
	}
	return img.tree.GetEntry(filesystem.ISO, req.BootFilePath)
}

// validateHDEmulMBR checks the hdemul media requirements (spec §4.1
// "hdemul validates an MBR signature and a single active partition").
func validateHDEmulMBR(data []byte) error {
	if len(data) < 512 {
		return fmt.Errorf("hdemul boot file too short for an MBR")
	}
	if data[510] != 0x55 || data[511] != 0xAA {
		return fmt.Errorf("hdemul boot file missing 0x55AA MBR signature")
	}
	active := 0
	for i := 0; i < 4; i++ {
		off := 0x1BE + i*16
		if data[off] == 0x80 {
			active++
		}
	}
	if active != 1 {
		return fmt.Errorf("hdemul boot file must have exactly one active partition, found %d", active)
	}
	return nil
}

// RemoveElTorito detaches the boot catalog and clears every boot entry
// (spec §6 `rm_eltorito`).
func (img *Image) RemoveElTorito() error {
	if img.elTorito == nil {
		return isoerr.Invalid("", "el_torito", "no boot catalog to remove")
	}
	if catID, err := img.tree.Lookup(filesystem.ISO, img.elTorito.BootCatalog); err == nil {
		img.tree.Detach(img.tree.Node(catID), filesystem.ISO)
	}
	img.elTorito = nil
	return img.markDirty()
}

// SetHidden toggles the hidden file-flag on the named facet (spec §4.1
// `set_hidden`).
func (img *Image) SetHidden(ns filesystem.Namespace, path string) error {
	return img.setHidden(ns, path, true)
}

// ClearHidden toggles the hidden file-flag off (spec §4.1 `clear_hidden`).
func (img *Image) ClearHidden(ns filesystem.Namespace, path string) error {
	return img.setHidden(ns, path, false)
}

func (img *Image) setHidden(ns filesystem.Namespace, path string, hidden bool) error {
	id, err := img.tree.Lookup(ns, path)
	if err != nil {
		return err
	}
	img.tree.Node(id).Facets[ns].Hidden = hidden
	return img.markDirty()
}

// DuplicatePVD requests a second, byte-identical Primary Volume Descriptor
// (spec §4.1 `duplicate_pvd`).
func (img *Image) DuplicatePVD() error {
	img.duplicatePVD = true
	return img.markDirty()
}

// AddIsohybrid validates the El Torito initial boot entry and installs the
// isohybrid MBR (spec §4.1 `add_isohybrid`).
func (img *Image) AddIsohybrid(mac bool) error {
	if img.elTorito == nil || len(img.elTorito.Entries) == 0 {
		return isoerr.Invalid("", "el_torito", "add_isohybrid requires an existing el torito initial boot entry")
	}
	initial := img.elTorito.Entries[0]
	bootID, err := img.tree.Lookup(filesystem.ISO, initial.BootFile)
	if err != nil {
		return err
	}
	data, err := img.tree.Node(bootID).Content.Bytes()
	if err != nil {
		return err
	}
	if err := systemarea.ValidateInitialBootEntry(data, initial.LoadSizeOverride); err != nil {
		return isoerr.Invalid(initial.BootFile, "boot_file", "%v", err)
	}
	if mac {
		hasEFI := false
		for _, e := range img.elTorito.Entries[1:] {
			if e.Platform == eltorito.EFI || e.Platform == eltorito.Mac {
				hasEFI = true
				break
			}
		}
		if !hasEFI {
			return isoerr.Invalid("", "el_torito", "add_isohybrid(mac=true) requires an additional EFI/Mac boot entry")
		}
	}
	img.isohybrid = &systemarea.MBR{Mac: mac}
	return img.markDirty()
}

// RemoveIsohybrid reverts to a plain system area (spec §6 `rm_isohybrid`).
func (img *Image) RemoveIsohybrid() error {
	img.isohybrid = nil
	return img.markDirty()
}
