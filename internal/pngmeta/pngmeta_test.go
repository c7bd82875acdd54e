package pngmeta

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pixelbatch/internal/domain"
)

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode sample png: %v", err)
	}
	return buf.Bytes()
}

func sampleMetadata() Metadata {
	return Metadata{
		Prompt:         "a dark castle, neon colors",
		OriginalPrompt: "a __moods__ castle",
		NegativePrompt: "blurry",
		Selections: []domain.Selection{
			{Kind: domain.SelectionWildcard, OriginalText: "__moods__", Value: "dark", WildcardName: "moods", Placement: domain.PlacementManual},
			{Kind: domain.SelectionVariation, OriginalText: "{a|b}", Value: "b"},
		},
		Width:         "64",
		Height:        "48",
		Outline:       "single color black outline",
		Shading:       "basic shading",
		Detail:        "medium detail",
		GuidanceScale: "8",
		NoBackground:  "false",
		Seed:          "0",
		Timestamp:     "2026-10-14T09:30:00Z",
		Settings: map[string]any{
			"width":  float64(64),
			"nested": map[string]any{"outline": "lineless", "tags": []any{"x", "y"}},
		},
		Generator: "Pixflux Batch Generation v2.0",
	}
}

func TestChecksumConformance(t *testing.T) {
	if got := Checksum([]byte("123456789")); got != 0xCBF43926 {
		t.Fatalf("Checksum = %#x, want 0xCBF43926", got)
	}
	// IEND with empty data has the well-known CRC AE 42 60 82.
	if got := chunkCRC(tagIEND, nil); got != 0xAE426082 {
		t.Fatalf("IEND crc = %#x", got)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	original := samplePNG(t, 4, 3)
	md := sampleMetadata()

	encoded := Encode(original, md)
	iend := findTerminal(original)
	if iend < 0 {
		t.Fatalf("sample has no IEND")
	}
	if !bytes.Equal(encoded[:iend], original[:iend]) {
		t.Fatalf("bytes before the splice point changed")
	}
	if !bytes.Equal(encoded[len(encoded)-12:], original[iend:iend+12]) {
		t.Fatalf("terminal chunk changed")
	}
	if _, err := png.Decode(bytes.NewReader(encoded)); err != nil {
		t.Fatalf("encoded file is no longer a valid png: %v", err)
	}

	decoded := Decode(encoded)
	if decoded.Err != nil {
		t.Fatalf("Decode error: %v", decoded.Err)
	}
	if diff := cmp.Diff(md, decoded.Metadata); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if decoded.TextChunks != len(Fields) {
		t.Fatalf("text chunks = %d, want %d", decoded.TextChunks, len(Fields))
	}
	if decoded.CRCMismatches != 0 {
		t.Fatalf("crc mismatches = %d", decoded.CRCMismatches)
	}
	if !decoded.DimensionsKnown || decoded.ImageWidth != 4 || decoded.ImageHeight != 3 {
		t.Fatalf("IHDR dimensions = %dx%d known=%v", decoded.ImageWidth, decoded.ImageHeight, decoded.DimensionsKnown)
	}
}

func TestEncodeKeepRule(t *testing.T) {
	original := samplePNG(t, 1, 1)
	md := Metadata{
		Prompt:       "hero",
		NoBackground: "false",
		Seed:         "0",
		Width:        "",
	}
	decoded := Decode(Encode(original, md))
	for _, f := range []Field{FieldPrompt, FieldNoBackground, FieldSeed, FieldSelections, FieldSettings} {
		if !decoded.Found[f] {
			t.Fatalf("field %s should be kept", f)
		}
	}
	for _, f := range []Field{FieldWidth, FieldHeight, FieldOriginalPrompt, FieldNegativePrompt, FieldGenerator, FieldTimestamp} {
		if decoded.Found[f] {
			t.Fatalf("empty field %s should be dropped", f)
		}
	}
	if decoded.Seed != "0" || decoded.NoBackground != "false" {
		t.Fatalf("falsy-looking values altered: seed=%q noBackground=%q", decoded.Seed, decoded.NoBackground)
	}
	if decoded.Selections == nil || len(decoded.Selections) != 0 {
		t.Fatalf("selections = %#v", decoded.Selections)
	}
}

func TestEncodeChunkOrder(t *testing.T) {
	encoded := Encode(samplePNG(t, 1, 1), sampleMetadata())
	var keywords []string
	cur := newCursor(encoded, signatureLen)
	for cur.remaining() > 0 {
		length, _ := cur.readUint32()
		tag, _ := cur.readTag()
		data, _ := cur.readBytes(int(length))
		_, _ = cur.readUint32()
		if tag == tagText {
			keywords = append(keywords, string(data[:bytes.IndexByte(data, 0)]))
		}
	}
	if len(keywords) != len(Fields) {
		t.Fatalf("keywords = %v", keywords)
	}
	for i, f := range Fields {
		if keywords[i] != KeywordPrefix+string(f) {
			t.Fatalf("chunk %d = %q, want %q", i, keywords[i], KeywordPrefix+string(f))
		}
	}
}

func TestEncodeWithoutTerminalReturnsInput(t *testing.T) {
	input := []byte("not a png at all, definitely no terminal chunk here")
	out := Encode(input, sampleMetadata())
	if !bytes.Equal(out, input) {
		t.Fatalf("expected input unchanged")
	}
	if out := Encode(nil, sampleMetadata()); out != nil {
		t.Fatalf("expected nil passthrough")
	}
}

func TestDecodeTooShort(t *testing.T) {
	got := Decode([]byte{0x89, 'P', 'N'})
	if !errors.Is(got.Err, domain.ErrCodec) {
		t.Fatalf("expected codec error, got %v", got.Err)
	}
	m := got.Map()
	if _, ok := m["error"]; !ok {
		t.Fatalf("map should carry an error indicator: %v", m)
	}
}

func TestDecodeTruncatedReturnsPartial(t *testing.T) {
	encoded := Encode(samplePNG(t, 2, 2), sampleMetadata())
	cut := bytes.Index(encoded, []byte(KeywordPrefix+string(FieldSettings)))
	if cut < 0 {
		t.Fatalf("settings chunk not found")
	}
	truncated := encoded[:cut+4]

	got := Decode(truncated)
	if !got.Truncated || !IsCodecError(got.Err) {
		t.Fatalf("expected truncation error, got truncated=%v err=%v", got.Truncated, got.Err)
	}
	if got.Prompt != sampleMetadata().Prompt || got.Timestamp == "" {
		t.Fatalf("chunks before the cut should be recovered: %+v", got.Metadata)
	}
	if got.Found[FieldSettings] || got.Found[FieldGenerator] {
		t.Fatalf("fields after the cut must not appear")
	}
}

func TestDecodeUnknownAndForeignKeywords(t *testing.T) {
	original := samplePNG(t, 1, 1)
	iend := findTerminal(original)
	var extra []byte
	extra = appendChunk(extra, tagText, textChunkData("PixelLab-API", "pixellab.ai"))
	extra = appendChunk(extra, tagText, textChunkData("Software", "paint"))
	extra = appendChunk(extra, tagText, textChunkData("PixelLab-Selections", "{not json"))
	extra = appendChunk(extra, tagText, textChunkData("PixelLab-Settings", "[broken"))
	img := append(append(append([]byte{}, original[:iend]...), extra...), original[iend:]...)

	got := Decode(img)
	if got.Err != nil {
		t.Fatalf("unexpected error: %v", got.Err)
	}
	if got.Extra["api"] != "pixellab.ai" {
		t.Fatalf("extra = %v", got.Extra)
	}
	if _, ok := got.Extra["software"]; ok {
		t.Fatalf("foreign keywords should be ignored")
	}
	if got.Selections == nil || len(got.Selections) != 0 {
		t.Fatalf("bad selections json should degrade to empty list, got %#v", got.Selections)
	}
	if got.Settings != nil {
		t.Fatalf("bad settings json should degrade to nil, got %#v", got.Settings)
	}
	m := got.Map()
	if m["api"] != "pixellab.ai" {
		t.Fatalf("map extra = %v", m)
	}
	if v, ok := m["settings"]; !ok || v.(map[string]any) != nil {
		t.Fatalf("settings should be present as null, got %#v", v)
	}
	if m["width"] != 1 || m["height"] != 1 {
		t.Fatalf("IHDR fallback width/height = %v/%v", m["width"], m["height"])
	}
}

func TestDecodeCountsCRCMismatch(t *testing.T) {
	encoded := Encode(samplePNG(t, 1, 1), Metadata{Prompt: "hero"})
	idx := bytes.Index(encoded, []byte("hero"))
	corrupted := append([]byte{}, encoded...)
	corrupted[idx] = 'H'
	got := Decode(corrupted)
	if got.CRCMismatches != 1 {
		t.Fatalf("crc mismatches = %d", got.CRCMismatches)
	}
	if got.Prompt != "Hero" {
		t.Fatalf("prompt = %q", got.Prompt)
	}
}

func TestMetadataMapJSON(t *testing.T) {
	m := sampleMetadata().Map()
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back["seed"] != "0" || back["noBackground"] != "false" || back["prompt"] != "a dark castle, neon colors" {
		t.Fatalf("map = %v", back)
	}
}
