package gap

import (
	"bytes"
	"strings"
	"testing"
)

func TestAdvertisingDataBuildAndDecode(t *testing.T) {
	ad := &AdvertisingData{}
	if err := ad.AddFlags(FlagLEGeneralDiscoverable | FlagBREDRNotSupported); err != nil {
		t.Fatalf("AddFlags failed: %v", err)
	}
	if err := ad.AddCompleteLocalName("SM_device"); err != nil {
		t.Fatalf("AddCompleteLocalName failed: %v", err)
	}
	if err := ad.AddComplete16BitServiceIDs([]uint16{0xA000}); err != nil {
		t.Fatalf("AddComplete16BitServiceIDs failed: %v", err)
	}

	// flags (3) + name (2+9) + service IDs (2+2)
	if ad.Size() != 18 {
		t.Errorf("Expected payload size 18, got %d", ad.Size())
	}

	encoded := ad.Bytes()
	decoded, err := DecodeAdvertisingData(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	flags := decoded.Field(ADTypeFlags)
	if len(flags) != 1 || flags[0] != FlagLEGeneralDiscoverable|FlagBREDRNotSupported {
		t.Errorf("Flags mismatch: got %v", flags)
	}
	if decoded.LocalName() != "SM_device" {
		t.Errorf("Expected local name SM_device, got %q", decoded.LocalName())
	}
	ids := decoded.ServiceIDs()
	if len(ids) != 1 || ids[0] != 0xA000 {
		t.Errorf("Service IDs mismatch: got %v", ids)
	}
	if !bytes.Equal(decoded.Bytes(), encoded) {
		t.Errorf("Re-encoded payload differs: %v vs %v", decoded.Bytes(), encoded)
	}
}

func TestAdvertisingDataServiceIDsLittleEndian(t *testing.T) {
	ad := &AdvertisingData{}
	if err := ad.AddComplete16BitServiceIDs([]uint16{0xA000, 0x180D}); err != nil {
		t.Fatalf("AddComplete16BitServiceIDs failed: %v", err)
	}

	data := ad.Field(ADTypeComplete16BitServiceUUIDs)
	expected := []byte{0x00, 0xA0, 0x0D, 0x18}
	if !bytes.Equal(data, expected) {
		t.Errorf("Expected little-endian UUIDs %v, got %v", expected, data)
	}
}

func TestAdvertisingDataEmptyServiceIDs(t *testing.T) {
	ad := &AdvertisingData{}
	if err := ad.AddComplete16BitServiceIDs(nil); err != nil {
		t.Fatalf("Expected empty service ID list to be a no-op, got %v", err)
	}
	if ad.Size() != 0 {
		t.Errorf("Expected size 0, got %d", ad.Size())
	}
}

func TestAdvertisingDataOverflow(t *testing.T) {
	ad := &AdvertisingData{}
	if err := ad.AddFlags(FlagLEGeneralDiscoverable); err != nil {
		t.Fatalf("AddFlags failed: %v", err)
	}
	// 3 bytes used; a 27-byte name needs 29 more
	if err := ad.AddCompleteLocalName(strings.Repeat("x", 27)); err == nil {
		t.Fatal("Expected overflow error, got nil")
	}
	// The failed add must not change the payload
	if ad.Size() != 3 {
		t.Errorf("Expected size 3 after rejected add, got %d", ad.Size())
	}

	// A 26-byte name fits exactly (3 + 28 = 31)
	if err := ad.AddCompleteLocalName(strings.Repeat("x", 26)); err != nil {
		t.Errorf("Expected 31-byte payload to fit, got %v", err)
	}
	if ad.Size() != MaxAdvertisingDataLen {
		t.Errorf("Expected size %d, got %d", MaxAdvertisingDataLen, ad.Size())
	}
}

func TestDecodeAdvertisingDataMalformed(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"zero length field", []byte{0x00, 0x01}},
		{"truncated field", []byte{0x05, 0x09, 'a'}},
		{"oversized payload", bytes.Repeat([]byte{0x02, 0x01, 0x06}, 11)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeAdvertisingData(tc.data); err == nil {
				t.Errorf("Expected decode error for %v", tc.data)
			}
		})
	}
}

func TestAddressString(t *testing.T) {
	addr := Address{0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	if addr.String() != "11:22:33:44:55:66" {
		t.Errorf("Expected 11:22:33:44:55:66, got %s", addr.String())
	}
}
