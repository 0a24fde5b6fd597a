// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion primitives and format descriptors
package audio

import "testing"

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected int32
	}{
		{"zero", 0, 0},
		{"positive", 100, 100 << 8},
		{"negative", -100, -100 << 8},
		{"max", 32767, 32767 << 8},
		{"min", -32768, -32768 << 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected int16
	}{
		{"zero", 0, 0},
		{"positive", 100 << 8, 100},
		{"negative", -100 << 8, -100},
		{"24bit positive", 1000000, 3906},
		{"24bit negative", -1000000, -3907},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleValueLayout(t *testing.T) {
	tests := []struct {
		name  string
		typ   SampleType
		value int32
		bytes []byte
	}{
		{"s16 positive", SampleTypeS16, 0x1234, []byte{0x34, 0x12}},
		{"s16 negative", SampleTypeS16, -2, []byte{0xFE, 0xFF}},
		{"s24 positive", SampleTypeS24, 0x123456, []byte{0x56, 0x34, 0x12}},
		{"s24 negative", SampleTypeS24, -256, []byte{0x00, 0xFF, 0xFF}},
		{"s24 max", SampleTypeS24, Max24Bit, []byte{0xFF, 0xFF, 0x7F}},
		{"s24 min", SampleTypeS24, Min24Bit, []byte{0x00, 0x00, 0x80}},
		{"s24 padded negative", SampleTypeS24Padded, -256, []byte{0x00, 0xFF, 0xFF, 0xFF}},
		{"s24 padded positive", SampleTypeS24Padded, 0x123456, []byte{0x56, 0x34, 0x12, 0x00}},
		{"s32", SampleTypeS32, -1, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// index 1 checks that offsets are computed in samples, not bytes
			buf := make([]byte, 2*tt.typ.Size())
			SetSampleValue(buf, 1, tt.value, tt.typ)
			got := buf[tt.typ.Size():]
			for i := range tt.bytes {
				if got[i] != tt.bytes[i] {
					t.Fatalf("expected bytes %v, got %v", tt.bytes, got)
				}
			}
			if v := SampleValue(buf, 1, tt.typ); v != tt.value {
				t.Errorf("expected %d, got %d", tt.value, v)
			}
			if v := SampleValue(buf, 0, tt.typ); v != 0 {
				t.Errorf("sample 0 was touched: %d", v)
			}
		})
	}
}

func TestConvertSample(t *testing.T) {
	tests := []struct {
		name     string
		value    int32
		from, to SampleType
		expected int32
	}{
		{"16 to 32", 1, SampleTypeS16, SampleTypeS32, 1 << 16},
		{"32 to 16", 1 << 16, SampleTypeS32, SampleTypeS16, 1},
		{"32 to 16 negative", -65537, SampleTypeS32, SampleTypeS16, -2},
		{"16 to 24", -100, SampleTypeS16, SampleTypeS24, -100 << 8},
		{"24 to 24 padded", Min24Bit, SampleTypeS24, SampleTypeS24Padded, Min24Bit},
		{"24 to 32", Max24Bit, SampleTypeS24, SampleTypeS32, Max24Bit << 8},
		{"32 to 24", -1 << 8, SampleTypeS32, SampleTypeS24Padded, -1},
		{"same type", 12345, SampleTypeS16, SampleTypeS16, 12345},
		{"unknown source", 12345, SampleTypeUnknown, SampleTypeS16, 0},
		{"unknown target", 12345, SampleTypeS32, SampleTypeUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConvertSample(tt.value, tt.from, tt.to); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestRoundTrip16Bit(t *testing.T) {
	samples := []int32{0, 100, -100, 1000, -1000, 32767, -32768}

	for _, original := range samples {
		wide := ConvertSample(original, SampleTypeS16, SampleTypeS32)
		result := ConvertSample(wide, SampleTypeS32, SampleTypeS16)
		if result != original {
			t.Errorf("round-trip failed: %d -> %d -> %d", original, wide, result)
		}
	}
}

func TestRoundTrip32Through16(t *testing.T) {
	samples := []int32{0, 1, -1, 0x12345678, -0x12345678, 0x7FFFFFFF, -0x80000000, 65535, -65536}

	for _, original := range samples {
		narrow := ConvertSample(original, SampleTypeS32, SampleTypeS16)
		result := ConvertSample(narrow, SampleTypeS16, SampleTypeS32)
		expected := int32(uint32(original) & 0xFFFF0000)
		if result != expected {
			t.Errorf("round-trip failed: %d -> %d -> %d (expected %d)", original, narrow, result, expected)
		}
	}
}

func TestRoundTrip24Bit(t *testing.T) {
	samples := []int32{0, 100000, -100000, Max24Bit, Min24Bit}

	for _, typ := range []SampleType{SampleTypeS24, SampleTypeS24Padded} {
		buf := make([]byte, typ.Size())
		for _, original := range samples {
			SetSampleValue(buf, 0, original, typ)
			if result := SampleValue(buf, 0, typ); result != original {
				t.Errorf("%s round-trip failed: %d -> %v -> %d", typ, original, buf, result)
			}
		}
	}
}

func TestScaleSample(t *testing.T) {
	tests := []struct {
		name     string
		value    int32
		volume   int
		expected int32
	}{
		{"unity", 1000, MaxVolume, 1000},
		{"above unity clamps", 1000, MaxVolume * 2, 1000},
		{"silence", 1000, 0, 0},
		{"negative volume", 1000, -5, 0},
		{"half", 1000, MaxVolume / 2, 500},
		{"half of full range", 0x7FFFFFFF, MaxVolume / 2, 0x3FFFFFFF},
		{"quarter negative", -1000, MaxVolume / 4, -250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScaleSample(tt.value, tt.volume); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestPlaybackPropertiesIsValid(t *testing.T) {
	valid := PlaybackProperties{
		Properties: Properties{Frequency: 44100, Channels: 2, SampleType: SampleTypeS16},
		BufferSize: 1024,
	}
	if !valid.IsValid() {
		t.Errorf("expected %s to be valid", valid)
	}

	mutations := map[string]func(p *PlaybackProperties){
		"no frequency":   func(p *PlaybackProperties) { p.Frequency = 0 },
		"no channels":    func(p *PlaybackProperties) { p.Channels = 0 },
		"unknown type":   func(p *PlaybackProperties) { p.SampleType = SampleTypeUnknown },
		"no buffer size": func(p *PlaybackProperties) { p.BufferSize = 0 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			if p.IsValid() {
				t.Errorf("expected %s to be invalid", p)
			}
		})
	}
}

func TestParseSampleType(t *testing.T) {
	for _, typ := range []SampleType{SampleTypeS16, SampleTypeS24, SampleTypeS24Padded, SampleTypeS32} {
		got, err := ParseSampleType(typ.String())
		if err != nil {
			t.Fatalf("parse %s: %v", typ, err)
		}
		if got != typ {
			t.Errorf("expected %s, got %s", typ, got)
		}
	}
	if _, err := ParseSampleType("f32"); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestSample24BitPacking(t *testing.T) {
	tests := []struct {
		name   string
		sample int32
		packed [3]byte
	}{
		{"zero", 0, [3]byte{0, 0, 0}},
		{"positive", 0x123456, [3]byte{0x56, 0x34, 0x12}},
		{"negative", -256, [3]byte{0x00, 0xFF, 0xFF}},
		{"max positive", Max24Bit, [3]byte{0xFF, 0xFF, 0x7F}},
		{"max negative", Min24Bit, [3]byte{0x00, 0x00, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SampleTo24Bit(tt.sample); got != tt.packed {
				t.Errorf("expected %v, got %v", tt.packed, got)
			}
			if got := SampleFrom24Bit(tt.packed); got != tt.sample {
				t.Errorf("expected %d, got %d", tt.sample, got)
			}
		})
	}
}
