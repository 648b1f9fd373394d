package susp

import (
	"fmt"

	"github.com/bgrewell/iso-forge/pkg/encoding"
)

// ExtensionRecord is the decoded payload of an "ER" entry, identifying the
// SUSP extension (e.g. Rock Ridge) in effect for the records that follow
// it (SUSP-112 5.5).
type ExtensionRecord struct {
	Version    int
	Identifier string
	Descriptor string
	Source     string
}

// DecodeExtensionRecord decodes an "ER" entry's payload.
func DecodeExtensionRecord(e *Entry) (*ExtensionRecord, error) {
	if e.Signature != ExtensionReference {
		return nil, fmt.Errorf("susp: expected ER entry, got %q", e.Signature)
	}
	if len(e.Payload) < 4 {
		return nil, fmt.Errorf("susp: ER payload too short: %d bytes", len(e.Payload))
	}
	idLen := int(e.Payload[0])
	descLen := int(e.Payload[1])
	srcLen := int(e.Payload[2])
	need := 4 + idLen + descLen + srcLen
	if len(e.Payload) < need {
		return nil, fmt.Errorf("susp: ER payload declares %d bytes, has %d", need, len(e.Payload))
	}
	return &ExtensionRecord{
		Version:    int(e.Payload[3]),
		Identifier: string(e.Payload[4 : 4+idLen]),
		Descriptor: string(e.Payload[4+idLen : 4+idLen+descLen]),
		Source:     string(e.Payload[4+idLen+descLen : 4+idLen+descLen+srcLen]),
	}, nil
}

// EncodeExtensionRecord is the inverse of DecodeExtensionRecord.
func EncodeExtensionRecord(r *ExtensionRecord) *Entry {
	payload := make([]byte, 4, 4+len(r.Identifier)+len(r.Descriptor)+len(r.Source))
	payload[0] = byte(len(r.Identifier))
	payload[1] = byte(len(r.Descriptor))
	payload[2] = byte(len(r.Source))
	payload[3] = byte(r.Version)
	payload = append(payload, r.Identifier...)
	payload = append(payload, r.Descriptor...)
	payload = append(payload, r.Source...)
	return &Entry{Signature: ExtensionReference, Version: 1, Payload: payload}
}

// ContinuationEntry is the decoded payload of a "CE" entry: the location of
// a continuation area that holds System Use Entries too large to fit in
// the 254-byte directory record cap (SUSP-112 5.1, spec §4.1/§9).
type ContinuationEntry struct {
	BlockLocation uint32
	Offset        uint32
	Length        uint32
}

// DecodeContinuationEntry decodes a "CE" entry's payload.
func DecodeContinuationEntry(e *Entry) (*ContinuationEntry, error) {
	if e.Signature != ContinuationArea {
		return nil, fmt.Errorf("susp: expected CE entry, got %q", e.Signature)
	}
	if len(e.Payload) != 24 {
		return nil, fmt.Errorf("susp: CE payload must be 24 bytes, got %d", len(e.Payload))
	}
	location, err := encoding.UnmarshalUint32LSBMSB(e.Payload[0:8])
	if err != nil {
		return nil, fmt.Errorf("susp: CE block location: %w", err)
	}
	offset, err := encoding.UnmarshalUint32LSBMSB(e.Payload[8:16])
	if err != nil {
		return nil, fmt.Errorf("susp: CE offset: %w", err)
	}
	length, err := encoding.UnmarshalUint32LSBMSB(e.Payload[16:24])
	if err != nil {
		return nil, fmt.Errorf("susp: CE length: %w", err)
	}
	return &ContinuationEntry{BlockLocation: location, Offset: offset, Length: length}, nil
}

// EncodeContinuationEntry is the inverse of DecodeContinuationEntry.
func EncodeContinuationEntry(ce *ContinuationEntry) *Entry {
	payload := make([]byte, 24)
	encoding.WriteInt32LSBMSB(payload[0:8], int32(ce.BlockLocation))
	encoding.WriteInt32LSBMSB(payload[8:16], int32(ce.Offset))
	encoding.WriteInt32LSBMSB(payload[16:24], int32(ce.Length))
	return &Entry{Signature: ContinuationArea, Version: 1, Payload: payload}
}
