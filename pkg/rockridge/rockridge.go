// Package rockridge implements the IEEE P1282 / SUSP 1.12 POSIX extensions
// layered on top of ISO9660 directory records: PX (permissions), NM
// (alternate name), TF (timestamps), SL (symlink target), PN (device
// number), CL/PL/RE (deep-directory relocation), SF (sparse file) and the
// SP/ER bootstrap entries. Rock Ridge is not a namespace of its own; it
// annotates ISO9660 facets (spec §3).
package rockridge

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/bgrewell/iso-forge/pkg/encoding"
	"github.com/bgrewell/iso-forge/pkg/susp"
)

// Version109 and Version112 select the Rock Ridge revision a facet was
// authored against (spec §6, `new(rock_ridge ∈ {none,"1.09","1.12"})`).
const (
	Version109 = "1.09"
	Version112 = "1.12"
)

const (
	extensionIdentifier109 = "RRIP_1991A"
	extensionIdentifier112 = "IEEE_P1282"
	extensionDescriptor    = "THE ROCK RIDGE INTERCHANGE PROTOCOL PROVIDES SUPPORT FOR POSIX FILE SYSTEM SEMANTICS"
)

const (
	sigPX susp.EntryType = "PX"
	sigPN susp.EntryType = "PN"
	sigSL susp.EntryType = "SL"
	sigNM susp.EntryType = "NM"
	sigCL susp.EntryType = "CL"
	sigPL susp.EntryType = "PL"
	sigRE susp.EntryType = "RE"
	sigTF susp.EntryType = "TF"
	sigSF susp.EntryType = "SF"
)

// NM continuation/current/parent flag bits (IEEE P1282 4.1.4).
const (
	NMContinue uint8 = 1 << 0
	NMCurrent  uint8 = 1 << 1
	NMParent   uint8 = 1 << 2
)

// SL component flag bits (IEEE P1282 4.1.3.1).
const (
	SLContinue uint8 = 1 << 0
	SLCurrent  uint8 = 1 << 1
	SLParent   uint8 = 1 << 2
	SLRoot     uint8 = 1 << 3
)

// TF timestamp-presence bit vector (IEEE P1282 4.1.6), in the order the
// bits appear: creation, modify, access, attributes, backup, expiration,
// effective.
const (
	TFCreation    uint8 = 1 << 0
	TFModify      uint8 = 1 << 1
	TFAccess      uint8 = 1 << 2
	TFAttributes  uint8 = 1 << 3
	TFBackup      uint8 = 1 << 4
	TFExpiration  uint8 = 1 << 5
	TFEffective   uint8 = 1 << 6
	TFLongForm    uint8 = 1 << 7
	tfFieldsCount       = 7
)

// Posix carries the PX entry's POSIX metadata.
type Posix struct {
	Mode  fs.FileMode
	Links uint32
	UID   uint32
	GID   uint32
	Serial uint32
}

// SymlinkComponent is one "/"-separated piece of an SL target (spec §4.1
// add_symlink: "each mapped either to a literal name, '.', '..', or root").
type SymlinkComponent struct {
	Kind  SymlinkComponentKind
	Name  string // only meaningful when Kind == SymlinkLiteral
}

type SymlinkComponentKind int

const (
	SymlinkLiteral SymlinkComponentKind = iota
	SymlinkCurrent
	SymlinkParent
	SymlinkRoot
)

// Attributes aggregates every Rock Ridge annotation a single ISO9660 facet
// may carry (spec §3 Namespace facet, "optional Rock Ridge annotations").
type Attributes struct {
	Version    string
	Name       string // full POSIX name, reassembled from any NM chain
	Posix      *Posix
	Symlink    []SymlinkComponent
	Device     *DeviceNumber
	Timestamps map[uint8]time.Time // keyed by TFCreation, TFModify, ...
	Relocated  bool                // RE present: this is the RR_MOVED placeholder
	ChildLink  uint32              // CL: extent of the relocated real directory
	ParentLink uint32              // PL: extent of the relocated directory's true parent
	Sparse     *SparseFile
}

type DeviceNumber struct {
	High uint32
	Low  uint32
}

type SparseFile struct {
	VirtualSizeHigh uint32
	VirtualSizeLow  uint32
	TableDepth      uint8
}

// extensionRecord builds the ER entry announcing Rock Ridge, identified by
// revision.
func extensionRecord(version string) *susp.Entry {
	id := extensionIdentifier109
	if version == Version112 {
		id = extensionIdentifier112
	}
	return susp.EncodeExtensionRecord(&susp.ExtensionRecord{
		Version:    1,
		Identifier: id,
		Descriptor: extensionDescriptor,
		Source:     "ROCK RIDGE",
	})
}

// ContinuationAreaBytes returns the bytes of the dedicated extent that
// carries the ER record: the record itself followed by an ST terminator
// (SUSP-112 5.1). pycdlib always gives the ER record its own continuation
// area rather than inlining it in the root "." record, so this is sized
// and placed as a normal planner extent.
func ContinuationAreaBytes(version string) []byte {
	entries := susp.Entries{extensionRecord(version), &susp.Entry{Signature: susp.AreaTerminator, Version: 1}}
	return entries.Marshal()
}

// ContinuationAreaLen returns len(ContinuationAreaBytes(version)) without
// building the slice, so sizing passes can compute a CE entry's Length
// field before the continuation area itself is needed.
func ContinuationAreaLen(version string) uint32 {
	return uint32(extensionRecord(version).Len() + 4)
}

// RootBootstrapEntries returns the SP and CE entries that must open the
// System Use field of the root directory's "." record: SP announces SUSP
// itself, CE points at the ER record's continuation area (SUSP-112
// 5.3/5.5).
func RootBootstrapEntries(version string, ceExtent uint32) susp.Entries {
	sp := &susp.Entry{Signature: susp.SharingProtocolIndicator, Version: 1, Payload: []byte{0xBE, 0xEF, 0x00}}
	ce := susp.EncodeContinuationEntry(&susp.ContinuationEntry{
		BlockLocation: ceExtent,
		Offset:        0,
		Length:        ContinuationAreaLen(version),
	})
	return susp.Entries{sp, ce}
}

// BuildEntries encodes attrs into the ordered SUSP entries a directory
// record's System Use field should carry (PX, TF, NM*, SL, CL/PL/RE, PN,
// SF as applicable).
func BuildEntries(attrs *Attributes) susp.Entries {
	var out susp.Entries
	if attrs.Posix != nil {
		out = append(out, encodePX(attrs.Posix))
	}
	if len(attrs.Timestamps) > 0 {
		out = append(out, encodeTF(attrs.Timestamps))
	}
	if attrs.Name != "" {
		out = append(out, encodeNM(attrs.Name)...)
	}
	if len(attrs.Symlink) > 0 {
		out = append(out, encodeSL(attrs.Symlink)...)
	}
	if attrs.ChildLink != 0 {
		out = append(out, encodeCL(attrs.ChildLink))
	}
	if attrs.ParentLink != 0 {
		out = append(out, encodePL(attrs.ParentLink))
	}
	if attrs.Relocated {
		out = append(out, &susp.Entry{Signature: sigRE, Version: 1})
	}
	if attrs.Device != nil {
		out = append(out, encodePN(attrs.Device))
	}
	if attrs.Sparse != nil {
		out = append(out, encodeSF(attrs.Sparse))
	}
	return out
}

// ParseAttributes decodes the Rock Ridge fields present in entries. Fields
// that are absent leave the corresponding Attributes member nil/zero.
func ParseAttributes(entries susp.Entries) (*Attributes, error) {
	attrs := &Attributes{Timestamps: map[uint8]time.Time{}}
	var nmChain []string
	for _, e := range entries {
		switch e.Signature {
		case sigPX:
			px, err := decodePX(e)
			if err != nil {
				return nil, err
			}
			attrs.Posix = px
		case sigTF:
			if err := decodeTFInto(e, attrs.Timestamps); err != nil {
				return nil, err
			}
		case sigNM:
			name, cont, err := decodeNM(e)
			if err != nil {
				return nil, err
			}
			nmChain = append(nmChain, name)
			if !cont {
				attrs.Name = joinNM(nmChain)
				nmChain = nil
			}
		case sigSL:
			comps, err := decodeSL(e)
			if err != nil {
				return nil, err
			}
			attrs.Symlink = append(attrs.Symlink, comps...)
		case sigCL:
			loc, err := encoding.UnmarshalUint32LSBMSB(e.Payload)
			if err != nil {
				return nil, fmt.Errorf("rockridge: CL: %w", err)
			}
			attrs.ChildLink = loc
		case sigPL:
			loc, err := encoding.UnmarshalUint32LSBMSB(e.Payload)
			if err != nil {
				return nil, fmt.Errorf("rockridge: PL: %w", err)
			}
			attrs.ParentLink = loc
		case sigRE:
			attrs.Relocated = true
		case sigPN:
			dev, err := decodePN(e)
			if err != nil {
				return nil, err
			}
			attrs.Device = dev
		case sigSF:
			attrs.Sparse = decodeSF(e)
		}
	}
	if len(nmChain) > 0 {
		// A dangling CONTINUE flag on the final NM entry is benign per
		// spec §7 ("recovers internally only from benign out-of-order
		// SUSP records"); treat it as the complete name.
		attrs.Name = joinNM(nmChain)
	}
	return attrs, nil
}

func joinNM(parts []string) string {
	out := ""
	for _, p := range parts {
		out += p
	}
	return out
}

func encodePX(p *Posix) *susp.Entry {
	payload := make([]byte, 32)
	encoding.WriteInt32LSBMSB(payload[0:8], int32(posixModeBits(p.Mode)))
	encoding.WriteInt32LSBMSB(payload[8:16], int32(p.Links))
	encoding.WriteInt32LSBMSB(payload[16:24], int32(p.UID))
	encoding.WriteInt32LSBMSB(payload[24:32], int32(p.GID))
	payload = append(payload, make([]byte, 8)...)
	encoding.WriteInt32LSBMSB(payload[32:40], int32(p.Serial))
	return &susp.Entry{Signature: sigPX, Version: 1, Payload: payload}
}

func decodePX(e *susp.Entry) (*Posix, error) {
	if len(e.Payload) < 32 {
		return nil, fmt.Errorf("rockridge: PX payload too short: %d", len(e.Payload))
	}
	mode, err := encoding.UnmarshalUint32LSBMSB(e.Payload[0:8])
	if err != nil {
		return nil, fmt.Errorf("rockridge: PX mode: %w", err)
	}
	links, err := encoding.UnmarshalUint32LSBMSB(e.Payload[8:16])
	if err != nil {
		return nil, fmt.Errorf("rockridge: PX links: %w", err)
	}
	uid, err := encoding.UnmarshalUint32LSBMSB(e.Payload[16:24])
	if err != nil {
		return nil, fmt.Errorf("rockridge: PX uid: %w", err)
	}
	gid, err := encoding.UnmarshalUint32LSBMSB(e.Payload[24:32])
	if err != nil {
		return nil, fmt.Errorf("rockridge: PX gid: %w", err)
	}
	var serial uint32
	if len(e.Payload) >= 40 {
		serial, _ = encoding.UnmarshalUint32LSBMSB(e.Payload[32:40])
	}
	return &Posix{Mode: bitsToPosixMode(mode), Links: links, UID: uid, GID: gid, Serial: serial}, nil
}

func encodeNM(name string) susp.Entries {
	const maxChunk = 250 // 254 - 4-byte header
	var out susp.Entries
	for len(name) > maxChunk {
		payload := append([]byte{NMContinue}, name[:maxChunk]...)
		out = append(out, &susp.Entry{Signature: sigNM, Version: 1, Payload: payload})
		name = name[maxChunk:]
	}
	payload := append([]byte{0}, name...)
	out = append(out, &susp.Entry{Signature: sigNM, Version: 1, Payload: payload})
	return out
}

func decodeNM(e *susp.Entry) (string, bool, error) {
	if len(e.Payload) < 1 {
		return "", false, fmt.Errorf("rockridge: NM payload empty")
	}
	flags := e.Payload[0]
	if flags&NMCurrent != 0 {
		return ".", false, nil
	}
	if flags&NMParent != 0 {
		return "..", false, nil
	}
	return string(e.Payload[1:]), flags&NMContinue != 0, nil
}

func encodeSL(comps []SymlinkComponent) susp.Entries {
	var payload []byte
	for _, c := range comps {
		var flag byte
		var name string
		switch c.Kind {
		case SymlinkCurrent:
			flag = SLCurrent
		case SymlinkParent:
			flag = SLParent
		case SymlinkRoot:
			flag = SLRoot
		default:
			name = c.Name
		}
		payload = append(payload, flag, byte(len(name)))
		payload = append(payload, name...)
	}
	full := append([]byte{0}, payload...)
	return susp.Entries{{Signature: sigSL, Version: 1, Payload: full}}
}

func decodeSL(e *susp.Entry) ([]SymlinkComponent, error) {
	if len(e.Payload) < 1 {
		return nil, fmt.Errorf("rockridge: SL payload empty")
	}
	data := e.Payload[1:]
	var out []SymlinkComponent
	for len(data) > 0 {
		if len(data) < 2 {
			return nil, fmt.Errorf("rockridge: SL component truncated")
		}
		flag, length := data[0], int(data[1])
		if len(data) < 2+length {
			return nil, fmt.Errorf("rockridge: SL component length %d exceeds remaining %d", length, len(data)-2)
		}
		switch {
		case flag&SLCurrent != 0:
			out = append(out, SymlinkComponent{Kind: SymlinkCurrent})
		case flag&SLParent != 0:
			out = append(out, SymlinkComponent{Kind: SymlinkParent})
		case flag&SLRoot != 0:
			out = append(out, SymlinkComponent{Kind: SymlinkRoot})
		default:
			out = append(out, SymlinkComponent{Kind: SymlinkLiteral, Name: string(data[2 : 2+length])})
		}
		data = data[2+length:]
	}
	return out, nil
}

func encodeCL(extent uint32) *susp.Entry {
	payload := make([]byte, 8)
	encoding.WriteInt32LSBMSB(payload, int32(extent))
	return &susp.Entry{Signature: sigCL, Version: 1, Payload: payload}
}

func encodePL(extent uint32) *susp.Entry {
	payload := make([]byte, 8)
	encoding.WriteInt32LSBMSB(payload, int32(extent))
	return &susp.Entry{Signature: sigPL, Version: 1, Payload: payload}
}

func encodePN(d *DeviceNumber) *susp.Entry {
	payload := make([]byte, 16)
	encoding.WriteInt32LSBMSB(payload[0:8], int32(d.High))
	encoding.WriteInt32LSBMSB(payload[8:16], int32(d.Low))
	return &susp.Entry{Signature: sigPN, Version: 1, Payload: payload}
}

func decodePN(e *susp.Entry) (*DeviceNumber, error) {
	if len(e.Payload) < 16 {
		return nil, fmt.Errorf("rockridge: PN payload too short: %d", len(e.Payload))
	}
	high, err := encoding.UnmarshalUint32LSBMSB(e.Payload[0:8])
	if err != nil {
		return nil, fmt.Errorf("rockridge: PN high: %w", err)
	}
	low, err := encoding.UnmarshalUint32LSBMSB(e.Payload[8:16])
	if err != nil {
		return nil, fmt.Errorf("rockridge: PN low: %w", err)
	}
	return &DeviceNumber{High: high, Low: low}, nil
}

func encodeSF(s *SparseFile) *susp.Entry {
	payload := make([]byte, 17)
	encoding.WriteInt32LSBMSB(payload[0:8], int32(s.VirtualSizeHigh))
	encoding.WriteInt32LSBMSB(payload[8:16], int32(s.VirtualSizeLow))
	payload[16] = s.TableDepth
	return &susp.Entry{Signature: sigSF, Version: 1, Payload: payload}
}

func decodeSF(e *susp.Entry) *SparseFile {
	if len(e.Payload) < 17 {
		return nil
	}
	high, _ := encoding.UnmarshalUint32LSBMSB(e.Payload[0:8])
	low, _ := encoding.UnmarshalUint32LSBMSB(e.Payload[8:16])
	return &SparseFile{VirtualSizeHigh: high, VirtualSizeLow: low, TableDepth: e.Payload[16]}
}

// encodeTF packs the timestamps present in the map into a single TF entry,
// using the short (7-byte directory-time) form (spec §4.3).
func encodeTF(ts map[uint8]time.Time) *susp.Entry {
	var flags uint8
	order := []uint8{TFCreation, TFModify, TFAccess, TFAttributes, TFBackup, TFExpiration, TFEffective}
	var payload []byte
	for _, bit := range order {
		if t, ok := ts[bit]; ok {
			flags |= bit
			b, _ := encoding.EncodeDirectoryTime(t)
			payload = append(payload, b...)
		}
	}
	return &susp.Entry{Signature: sigTF, Version: 1, Payload: append([]byte{flags}, payload...)}
}

func decodeTFInto(e *susp.Entry, into map[uint8]time.Time) error {
	if len(e.Payload) < 1 {
		return fmt.Errorf("rockridge: TF payload empty")
	}
	flags := e.Payload[0]
	long := flags&TFLongForm != 0
	fieldLen := 7
	if long {
		fieldLen = 17
	}
	data := e.Payload[1:]
	order := []uint8{TFCreation, TFModify, TFAccess, TFAttributes, TFBackup, TFExpiration, TFEffective}
	for _, bit := range order {
		if flags&bit == 0 {
			continue
		}
		if len(data) < fieldLen {
			return fmt.Errorf("rockridge: TF field truncated")
		}
		var t time.Time
		var err error
		if long {
			t, err = encoding.DecodeVolumeDescriptorTime(data[:fieldLen])
		} else {
			t, err = encoding.DecodeDirectoryTime(data[:fieldLen])
		}
		if err != nil {
			return fmt.Errorf("rockridge: TF field: %w", err)
		}
		into[bit] = t
		data = data[fieldLen:]
	}
	return nil
}

func posixModeBits(mode fs.FileMode) uint32 {
	var bits uint32
	switch mode & fs.ModeType {
	case fs.ModeDir:
		bits |= 0o040000
	case fs.ModeSymlink:
		bits |= 0o120000
	case fs.ModeDevice:
		bits |= 0o060000
	case fs.ModeCharDevice:
		bits |= 0o020000
	case fs.ModeNamedPipe:
		bits |= 0o010000
	case fs.ModeSocket:
		bits |= 0o140000
	default:
		bits |= 0o100000
	}
	bits |= uint32(mode.Perm())
	if mode&fs.ModeSetuid != 0 {
		bits |= 0o4000
	}
	if mode&fs.ModeSetgid != 0 {
		bits |= 0o2000
	}
	if mode&fs.ModeSticky != 0 {
		bits |= 0o1000
	}
	return bits
}

func bitsToPosixMode(bits uint32) fs.FileMode {
	var mode fs.FileMode
	switch bits & 0o170000 {
	case 0o040000:
		mode |= fs.ModeDir
	case 0o120000:
		mode |= fs.ModeSymlink
	case 0o060000:
		mode |= fs.ModeDevice
	case 0o020000:
		mode |= fs.ModeCharDevice | fs.ModeDevice
	case 0o010000:
		mode |= fs.ModeNamedPipe
	case 0o140000:
		mode |= fs.ModeSocket
	}
	mode |= fs.FileMode(bits & 0o777)
	if bits&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if bits&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if bits&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	return mode
}
