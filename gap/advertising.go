package gap

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// AD Types (Advertising Data Types) - EIR/AD format
const (
	ADTypeFlags                       = 0x01 // Flags
	ADTypeIncomplete16BitServiceUUIDs = 0x02 // Incomplete List of 16-bit Service UUIDs
	ADTypeComplete16BitServiceUUIDs   = 0x03 // Complete List of 16-bit Service UUIDs
	ADTypeComplete128BitServiceUUIDs  = 0x07 // Complete List of 128-bit Service UUIDs
	ADTypeShortenedLocalName          = 0x08 // Shortened Local Name
	ADTypeCompleteLocalName           = 0x09 // Complete Local Name
	ADTypeTxPowerLevel                = 0x0A // Tx Power Level
	ADTypeAppearance                  = 0x19 // Appearance
	ADTypeManufacturerSpecificData    = 0xFF // Manufacturer Specific Data
)

// Advertising Flags (used in ADTypeFlags)
const (
	FlagLELimitedDiscoverable = 0x01 // LE Limited Discoverable Mode
	FlagLEGeneralDiscoverable = 0x02 // LE General Discoverable Mode
	FlagBREDRNotSupported     = 0x04 // BR/EDR Not Supported
)

const (
	MaxAdvertisingDataLen = 31 // BLE 4.x advertising data limit
)

// ADStructure represents a single TLV (Type-Length-Value) structure in advertising data
// Format: [Length: 1 byte] [Type: 1 byte] [Data: N bytes]
// Note: Length includes the Type byte but not itself
type ADStructure struct {
	Type byte   // AD Type (flags, service UUIDs, etc.)
	Data []byte // AD Data
}

// AdvertisingData accumulates AD structures for an advertising payload.
// Fields are appended in call order; the total encoded size must stay
// within the 31-byte advertising data limit.
type AdvertisingData struct {
	fields []ADStructure
	size   int
}

// AddField appends a raw AD structure
func (ad *AdvertisingData) AddField(adType byte, data []byte) error {
	fieldLen := 2 + len(data) // length byte + type byte + data
	if ad.size+fieldLen > MaxAdvertisingDataLen {
		return fmt.Errorf("advertising data exceeds %d bytes: %d", MaxAdvertisingDataLen, ad.size+fieldLen)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	ad.fields = append(ad.fields, ADStructure{Type: adType, Data: cp})
	ad.size += fieldLen
	return nil
}

// AddFlags appends a flags AD structure (discoverability, BR/EDR support)
func (ad *AdvertisingData) AddFlags(flags byte) error {
	return ad.AddField(ADTypeFlags, []byte{flags})
}

// AddCompleteLocalName appends the complete local name AD structure
func (ad *AdvertisingData) AddCompleteLocalName(name string) error {
	return ad.AddField(ADTypeCompleteLocalName, []byte(name))
}

// AddComplete16BitServiceIDs appends the complete list of 16-bit service UUIDs,
// little-endian per the AD format. An empty list adds nothing.
func (ad *AdvertisingData) AddComplete16BitServiceIDs(uuids []uint16) error {
	if len(uuids) == 0 {
		return nil
	}
	data := make([]byte, 2*len(uuids))
	for i, u := range uuids {
		binary.LittleEndian.PutUint16(data[2*i:], u)
	}
	return ad.AddField(ADTypeComplete16BitServiceUUIDs, data)
}

// Size returns the encoded payload size in bytes
func (ad *AdvertisingData) Size() int {
	return ad.size
}

// Bytes serializes the advertising data to the AD TLV wire format
func (ad *AdvertisingData) Bytes() []byte {
	buf := make([]byte, 0, ad.size)
	for _, f := range ad.fields {
		buf = append(buf, byte(1+len(f.Data)), f.Type)
		buf = append(buf, f.Data...)
	}
	return buf
}

// Field returns the data of the first AD structure with the given type,
// or nil if the payload carries none.
func (ad *AdvertisingData) Field(adType byte) []byte {
	for _, f := range ad.fields {
		if f.Type == adType {
			return f.Data
		}
	}
	return nil
}

// LocalName returns the complete local name carried by the payload, if any
func (ad *AdvertisingData) LocalName() string {
	return string(ad.Field(ADTypeCompleteLocalName))
}

// ServiceIDs returns the 16-bit service UUIDs carried by the payload
func (ad *AdvertisingData) ServiceIDs() []uint16 {
	data := ad.Field(ADTypeComplete16BitServiceUUIDs)
	if len(data) < 2 {
		return nil
	}
	uuids := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		uuids = append(uuids, binary.LittleEndian.Uint16(data[i:]))
	}
	return uuids
}

// DecodeAdvertisingData parses an AD TLV payload back into its structures
func DecodeAdvertisingData(data []byte) (*AdvertisingData, error) {
	if len(data) > MaxAdvertisingDataLen {
		return nil, fmt.Errorf("advertising data exceeds %d bytes: %d", MaxAdvertisingDataLen, len(data))
	}
	ad := &AdvertisingData{}
	for i := 0; i < len(data); {
		fieldLen := int(data[i])
		if fieldLen == 0 {
			return nil, errors.New("zero-length AD structure")
		}
		if i+1+fieldLen > len(data) {
			return nil, fmt.Errorf("AD structure truncated at offset %d", i)
		}
		if err := ad.AddField(data[i+1], data[i+2:i+1+fieldLen]); err != nil {
			return nil, err
		}
		i += 1 + fieldLen
	}
	return ad, nil
}
