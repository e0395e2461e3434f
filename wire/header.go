// Package wire encodes and decodes the byte-exact structures carried over
// the shared region: the transport header, the frame descriptor, the
// cursor descriptor, and the reverse-channel command payloads. Everything
// here is little-endian and packed, per spec.md §6 ("Shared region layout
// (bit-exact with existing consumers)"). Adapted from the pack's
// binary-protocol examples (fixed header size, manual field packing via
// encoding/binary), generalized to this project's own field layout.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HeaderMagic is the 8-byte sequence every transport header begins with.
var HeaderMagic = [8]byte{'[', '[', 'G', 'L', 'A', 'N', 'C', 'E'}

// Version is the wire version of the structures in this package. Bump
// whenever a field is added, removed, or reinterpreted.
const Version uint32 = 1

// Feature bits negotiated through Header.Features.
const (
	FeatureSetCursorPosition uint32 = 1 << 0
)

const hostVersionLen = 32

// RecordType tags a HeaderRecord's payload, per spec.md §6's "sequence of
// records (type/length/value)".
type RecordType uint8

const (
	RecordVMInfo RecordType = iota + 1
	RecordOSInfo
)

func (t RecordType) String() string {
	switch t {
	case RecordVMInfo:
		return "VMInfo"
	case RecordOSInfo:
		return "OSInfo"
	default:
		return fmt.Sprintf("RecordType(%d)", uint8(t))
	}
}

// OSTag enumerates the OS-info record's platform tag.
type OSTag uint8

const (
	OSUnknown OSTag = iota
	OSWindows
	OSLinux
	OSMacOS
	OSBSD
)

// HeaderRecord is one TLV entry trailing the fixed portion of the header.
type HeaderRecord struct {
	Type    RecordType
	Payload []byte
}

// VMInfo is the decoded payload of a RecordVMInfo record: spec.md §6's
// "cpu/core/socket counts, UUID, capture-interface name, human-readable
// model string".
type VMInfo struct {
	CPUs         uint16
	Cores        uint16
	Sockets      uint16
	UUID         [16]byte
	CaptureIface string
	Model        string
}

// Encode packs v into a RecordVMInfo payload.
func (v VMInfo) Encode() []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, v.CPUs)
	_ = binary.Write(buf, binary.LittleEndian, v.Cores)
	_ = binary.Write(buf, binary.LittleEndian, v.Sockets)
	buf.Write(v.UUID[:])
	writeLPString(buf, v.CaptureIface)
	writeLPString(buf, v.Model)
	return buf.Bytes()
}

// DecodeVMInfo unpacks a RecordVMInfo payload produced by VMInfo.Encode.
func DecodeVMInfo(payload []byte) (VMInfo, error) {
	r := bytes.NewReader(payload)
	var v VMInfo
	if err := binary.Read(r, binary.LittleEndian, &v.CPUs); err != nil {
		return v, fmt.Errorf("wire: decode VMInfo.CPUs: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &v.Cores); err != nil {
		return v, fmt.Errorf("wire: decode VMInfo.Cores: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &v.Sockets); err != nil {
		return v, fmt.Errorf("wire: decode VMInfo.Sockets: %w", err)
	}
	if _, err := r.Read(v.UUID[:]); err != nil {
		return v, fmt.Errorf("wire: decode VMInfo.UUID: %w", err)
	}
	var err error
	if v.CaptureIface, err = readLPString(r); err != nil {
		return v, fmt.Errorf("wire: decode VMInfo.CaptureIface: %w", err)
	}
	if v.Model, err = readLPString(r); err != nil {
		return v, fmt.Errorf("wire: decode VMInfo.Model: %w", err)
	}
	return v, nil
}

// OSInfo is the decoded payload of a RecordOSInfo record.
type OSInfo struct {
	Tag  OSTag
	Name string
}

func (o OSInfo) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(o.Tag))
	writeLPString(buf, o.Name)
	return buf.Bytes()
}

func DecodeOSInfo(payload []byte) (OSInfo, error) {
	r := bytes.NewReader(payload)
	var o OSInfo
	tag, err := r.ReadByte()
	if err != nil {
		return o, fmt.Errorf("wire: decode OSInfo.Tag: %w", err)
	}
	o.Tag = OSTag(tag)
	if o.Name, err = readLPString(r); err != nil {
		return o, fmt.Errorf("wire: decode OSInfo.Name: %w", err)
	}
	return o, nil
}

func writeLPString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(s)))
	buf.WriteString(s)
}

func readLPString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// Header is the transport header's user-data prefix: spec.md §3 ("magic,
// version, queue descriptors, heap bitmap") and §6 ("magic 8-byte sequence,
// a 32-bit version ..., a feature bitset ..., a fixed-width host-version
// string, and a sequence of records").
type Header struct {
	Magic       [8]byte
	Version     uint32
	SessionID   uint64
	Features    uint32
	HostVersion string
	Records     []HeaderRecord
}

// NewHeader builds a header with the current wire Version and magic,
// stamped with the given session id and advertised features.
func NewHeader(sessionID uint64, features uint32, hostVersion string) Header {
	return Header{
		Magic:       HeaderMagic,
		Version:     Version,
		SessionID:   sessionID,
		Features:    features,
		HostVersion: hostVersion,
	}
}

// HasFeature reports whether bit is set in Features.
func (h Header) HasFeature(bit uint32) bool {
	return h.Features&bit != 0
}

// Encode serializes h, including its trailing TLV records.
func (h Header) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Write(h.Magic[:])
	_ = binary.Write(buf, binary.LittleEndian, h.Version)
	_ = binary.Write(buf, binary.LittleEndian, h.SessionID)
	_ = binary.Write(buf, binary.LittleEndian, h.Features)

	hv := make([]byte, hostVersionLen)
	copy(hv, h.HostVersion)
	buf.Write(hv)

	_ = binary.Write(buf, binary.LittleEndian, uint16(len(h.Records)))
	for _, rec := range h.Records {
		buf.WriteByte(byte(rec.Type))
		_ = binary.Write(buf, binary.LittleEndian, uint16(len(rec.Payload)))
		buf.Write(rec.Payload)
	}
	return buf.Bytes()
}

// DecodeHeader parses a Header previously produced by Header.Encode, and
// validates the magic and version.
func DecodeHeader(data []byte) (Header, error) {
	var h Header
	r := bytes.NewReader(data)

	if _, err := r.Read(h.Magic[:]); err != nil {
		return h, fmt.Errorf("wire: read magic: %w", err)
	}
	if h.Magic != HeaderMagic {
		return h, fmt.Errorf("wire: bad magic %v", h.Magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return h, fmt.Errorf("wire: read version: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("wire: unsupported version %d (want %d)", h.Version, Version)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.SessionID); err != nil {
		return h, fmt.Errorf("wire: read session id: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Features); err != nil {
		return h, fmt.Errorf("wire: read features: %w", err)
	}

	hv := make([]byte, hostVersionLen)
	if _, err := r.Read(hv); err != nil {
		return h, fmt.Errorf("wire: read host version: %w", err)
	}
	h.HostVersion = string(bytes.TrimRight(hv, "\x00"))

	var recordCount uint16
	if err := binary.Read(r, binary.LittleEndian, &recordCount); err != nil {
		return h, fmt.Errorf("wire: read record count: %w", err)
	}
	for i := uint16(0); i < recordCount; i++ {
		typ, err := r.ReadByte()
		if err != nil {
			return h, fmt.Errorf("wire: read record %d type: %w", i, err)
		}
		var length uint16
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return h, fmt.Errorf("wire: read record %d length: %w", i, err)
		}
		payload := make([]byte, length)
		if _, err := r.Read(payload); err != nil {
			return h, fmt.Errorf("wire: read record %d payload: %w", i, err)
		}
		h.Records = append(h.Records, HeaderRecord{Type: RecordType(typ), Payload: payload})
	}
	return h, nil
}
