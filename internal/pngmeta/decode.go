package pngmeta

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"pixelbatch/internal/domain"
)

// UnknownDimension is reported in Map when the IHDR chunk is unavailable.
const UnknownDimension = "Unknown"

// Decoded is the best-effort result of reading an image's metadata.
type Decoded struct {
	Metadata
	// Found lists the fields present in the file.
	Found map[Field]bool
	// ImageWidth and ImageHeight come from the IHDR chunk when DimensionsKnown.
	ImageWidth      int
	ImageHeight     int
	DimensionsKnown bool
	// Extra holds namespaced values with an unrecognized suffix under its
	// lower-cased form.
	Extra         map[string]string
	TextChunks    int
	CRCMismatches int
	Truncated     bool
	// Err is set when the container is malformed; the fields above still hold
	// whatever was recovered before the failure.
	Err error
}

// Decode walks the chunks of img and recovers embedded metadata. It never
// fails: malformed input yields partial results with Err set.
func Decode(img []byte) (res Decoded) {
	res.Found = map[Field]bool{}
	res.Extra = map[string]string{}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %v", domain.ErrCodec, r)
		}
	}()

	if len(img) < signatureLen+chunkOverhead {
		res.Err = fmt.Errorf("%w: buffer too short (%d bytes)", domain.ErrCodec, len(img))
		return res
	}
	if !HasSignature(img) {
		res.Err = fmt.Errorf("%w: missing PNG signature", domain.ErrCodec)
	}
	res.readDimensions(img)

	cur := newCursor(img, signatureLen)
	for cur.remaining() > 0 {
		start := cur.off
		length, err := cur.readUint32()
		if err != nil {
			res.markTruncated(start)
			break
		}
		tag, err := cur.readTag()
		if err != nil {
			res.markTruncated(start)
			break
		}
		if int64(start)+chunkOverhead+int64(length) > int64(len(img)) {
			res.markTruncated(start)
			break
		}
		data, _ := cur.readBytes(int(length))
		crc, _ := cur.readUint32()
		if crc != chunkCRC(tag, data) {
			res.CRCMismatches++
		}
		switch tag {
		case tagText:
			res.TextChunks++
			res.readText(data)
		case tagIEND:
			return res
		}
	}
	return res
}

func (d *Decoded) readDimensions(img []byte) {
	body := newCursor(img, signatureLen)
	length, err := body.readUint32()
	if err != nil {
		return
	}
	tag, err := body.readTag()
	if err != nil || tag != tagIHDR || length < 8 {
		return
	}
	width, err := body.readUint32()
	if err != nil {
		return
	}
	height, err := body.readUint32()
	if err != nil {
		return
	}
	d.ImageWidth, d.ImageHeight, d.DimensionsKnown = int(width), int(height), true
}

func (d *Decoded) readText(data []byte) {
	sep := bytes.IndexByte(data, 0)
	if sep <= 0 {
		return
	}
	keyword := string(data[:sep])
	value := string(data[sep+1:])
	suffix, ok := strings.CutPrefix(keyword, KeywordPrefix)
	if !ok {
		return
	}
	if f, known := fieldForSuffix(suffix); known {
		d.Metadata.set(f, value)
		d.Found[f] = true
		return
	}
	d.Extra[strings.ToLower(suffix)] = value
}

func (d *Decoded) markTruncated(offset int) {
	d.Truncated = true
	if d.Err == nil {
		d.Err = fmt.Errorf("%w: truncated chunk at offset %d", domain.ErrCodec, offset)
	}
}

// Map renders the decoded metadata under canonical keys. Width and height fall
// back to the IHDR dimensions, then to UnknownDimension.
func (d Decoded) Map() map[string]any {
	out := d.Metadata.Map()
	for f := range d.Found {
		if f.IsJSON() {
			switch f {
			case FieldSelections:
				out[f.Key()] = d.Selections
			case FieldSettings:
				out[f.Key()] = d.Settings
			}
		}
	}
	if _, ok := out[FieldWidth.Key()]; !ok {
		out[FieldWidth.Key()] = dimension(d.ImageWidth, d.DimensionsKnown)
	}
	if _, ok := out[FieldHeight.Key()]; !ok {
		out[FieldHeight.Key()] = dimension(d.ImageHeight, d.DimensionsKnown)
	}
	for k, v := range d.Extra {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	if d.Err != nil {
		out["error"] = "Could not extract metadata: " + d.Err.Error()
	}
	return out
}

// IsCodecError reports whether err came from a malformed container.
func IsCodecError(err error) bool {
	return errors.Is(err, domain.ErrCodec)
}

func dimension(v int, known bool) any {
	if !known {
		return UnknownDimension
	}
	return v
}
