// Package writer implements the Writer component (spec §4.4): it streams a
// planner.Layout to a random-access sink exactly as planned, applying the
// one piece of write-time-only logic the plan itself cannot precompute -
// patching the El Torito boot_info_table into a boot file's first bytes
// after its final location is known.
package writer

import (
	"github.com/bgrewell/iso-forge/pkg/consts"
	"github.com/bgrewell/iso-forge/pkg/eltorito"
	"github.com/bgrewell/iso-forge/pkg/filesystem"
	"github.com/bgrewell/iso-forge/pkg/isoerr"
	"github.com/bgrewell/iso-forge/pkg/planner"
)

// Sink is the minimal random-access destination a Writer needs; *os.File
// and an in-memory byte buffer wrapped in a WriterAt both satisfy it.
type Sink interface {
	WriteAt(p []byte, off int64) (int, error)
}

// Writer streams one planned layout to a sink.
type Writer struct {
	out    Sink
	layout *planner.Layout
}

// New returns a Writer that streams layout to out.
func New(out Sink, layout *planner.Layout) *Writer {
	return &Writer{out: out, layout: layout}
}

// Write emits every section of the plan, in any order, since every section
// occupies a disjoint, already-assigned byte range (spec §4.2 "Every
// section of a planned image occupies a disjoint range of the final file").
func (w *Writer) Write() error {
	l := w.layout
	if l == nil {
		return isoerr.Internal("writer: nil layout")
	}

	if err := w.writeSystemArea(); err != nil {
		return err
	}
	if err := w.writeDescriptors(); err != nil {
		return err
	}
	if err := w.writePathTables(); err != nil {
		return err
	}
	if err := w.writeDirectories(); err != nil {
		return err
	}
	if err := w.writeRockRidgeContinuationArea(); err != nil {
		return err
	}
	if err := w.writeContent(); err != nil {
		return err
	}
	if l.UDF != nil {
		if err := w.writeUDF(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeAt(b []byte, lba uint32) error {
	_, err := w.out.WriteAt(b, int64(lba)*consts.ISO9660_SECTOR_SIZE)
	if err != nil {
		return isoerr.IO("writer.writeAt", err)
	}
	return nil
}

func (w *Writer) writeSystemArea() error {
	l := w.layout
	if l.SystemArea == nil {
		return nil
	}
	_, err := w.out.WriteAt(l.SystemArea[:], 0)
	if err != nil {
		return isoerr.IO("writer.writeSystemArea", err)
	}
	return nil
}

func (w *Writer) writeDescriptors() error {
	l := w.layout
	set := l.Descriptors
	if set == nil {
		return isoerr.Internal("writer: layout has no volume descriptor set")
	}

	lba := uint32(consts.ISO9660_SYSTEM_AREA_SECTORS)

	pvd, err := set.Primary.Marshal()
	if err != nil {
		return isoerr.Internal("writer: marshal primary volume descriptor: %v", err)
	}
	if err := w.writeAt(pvd[:], lba); err != nil {
		return err
	}
	lba++

	for _, extra := range set.ExtraPrimary {
		b, err := extra.Marshal()
		if err != nil {
			return isoerr.Internal("writer: marshal duplicate primary volume descriptor: %v", err)
		}
		if err := w.writeAt(b[:], lba); err != nil {
			return err
		}
		lba++
	}

	if set.Boot != nil {
		boot, err := set.Boot.Marshal()
		if err != nil {
			return isoerr.Internal("writer: marshal boot record: %v", err)
		}
		if err := w.writeAt(boot[:], lba); err != nil {
			return err
		}
		lba++
	}

	for _, svd := range set.Supplementary {
		b, err := svd.Marshal()
		if err != nil {
			return isoerr.Internal("writer: marshal supplementary volume descriptor: %v", err)
		}
		if err := w.writeAt(b[:], lba); err != nil {
			return err
		}
		lba++
	}

	if set.Terminator != nil {
		term := set.Terminator.Marshal()
		if err := w.writeAt(term[:], lba); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writePathTables() error {
	for _, pt := range w.layout.PathTables {
		if err := w.writeAt(pt.L, pt.LExtent.Location); err != nil {
			return err
		}
		if err := w.writeAt(pt.M, pt.MExtent.Location); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeDirectories() error {
	for ns, content := range w.layout.DirectoryContent {
		extents := w.layout.DirectoryExtents[ns]
		for id, bytes := range content {
			ext := extents[id]
			if err := w.writeAt(bytes, ext.Location); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) writeRockRidgeContinuationArea() error {
	l := w.layout
	if len(l.RRContinuationArea) == 0 {
		return nil
	}
	return w.writeAt(l.RRContinuationArea, l.RRContinuationExtent.Location)
}

func (w *Writer) writeContent() error {
	patches := map[*filesystem.Content]planner.BootInfoTablePatch{}
	for _, p := range w.layout.BootInfoTablePatches {
		patches[p.Content] = p
	}

	for c, ext := range w.layout.ContentExtents {
		data, err := c.Bytes()
		if err != nil {
			return err
		}
		if patch, ok := patches[c]; ok {
			patched := make([]byte, len(data))
			copy(patched, data)
			if err := eltorito.PatchBootInfoTable(patched, patch.PVDLBA, patch.BootFileLBA); err != nil {
				return isoerr.Internal("writer: patch boot_info_table: %v", err)
			}
			data = patched
		}
		padded := make([]byte, int64(ext.Sectors)*consts.ISO9660_SECTOR_SIZE)
		copy(padded, data)
		if err := w.writeAt(padded, ext.Location); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeUDF() error {
	u := w.layout.UDF

	if err := w.writeAt(u.AVDP, u.AVDPExtent.Location); err != nil {
		return err
	}
	for i, b := range u.Main {
		if err := w.writeAt(b, u.MainVDSExtent.Location+uint32(i)); err != nil {
			return err
		}
	}
	for i, b := range u.Reserve {
		if err := w.writeAt(b, u.ReserveVDSExtent.Location+uint32(i)); err != nil {
			return err
		}
	}
	if err := w.writeAt(u.FSD, u.FSDExtent.Location); err != nil {
		return err
	}
	if err := w.writeAt(u.LVID, u.LVIDExtent.Location); err != nil {
		return err
	}
	for id, b := range u.FileEntryBytes {
		ext := u.FileEntryExtents[id]
		if err := w.writeAt(b, ext.Location); err != nil {
			return err
		}
	}
	for id, b := range u.DirEntryBytes {
		ext := u.DirEntryExtents[id]
		if err := w.writeAt(b, ext.Location); err != nil {
			return err
		}
	}
	return nil
}
