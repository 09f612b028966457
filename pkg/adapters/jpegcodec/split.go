package jpegcodec

// JPEG markers used for framing.
const (
	markerSOI = 0xD8
	markerEOI = 0xD9
	markerSOS = 0xDA
)

// Split cuts a Motion-JPEG byte stream into one payload per image.
//
// Marker segments are skipped by length, so thumbnails embedded in APP
// segments do not end the image early. Bytes before the first SOI are
// discarded. An image without EOI is returned as the last payload.
func Split(data []byte) [][]byte {
	var out [][]byte
	for {
		start := findSOI(data)
		if start < 0 {
			return out
		}
		data = data[start:]
		n := imageLength(data)
		out = append(out, data[:n:n])
		data = data[n:]
	}
}

func findSOI(data []byte) int {
	for i := 0; i+1 < len(data); i++ {
		if data[i] == 0xFF && data[i+1] == markerSOI {
			return i
		}
	}
	return -1
}

// imageLength returns the length of the image starting at data[0] (SOI),
// including its EOI, or len(data) when the image is incomplete.
func imageLength(data []byte) int {
	i := 2
	// Header segments up to and including SOS.
	for i+3 < len(data) {
		if data[i] != 0xFF {
			return len(data)
		}
		marker := data[i+1]
		switch {
		case marker == 0xFF:
			i++
			continue
		case marker == markerEOI:
			return i + 2
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			i += 2
			continue
		}
		seg := int(data[i+2])<<8 | int(data[i+3])
		i += 2 + seg
		if marker == markerSOS {
			break
		}
	}
	// Entropy-coded data: 0xFF is followed by 0x00 stuffing or a marker.
	for ; i+1 < len(data); i++ {
		if data[i] != 0xFF {
			continue
		}
		switch m := data[i+1]; {
		case m == 0x00, m == 0xFF, m >= 0xD0 && m <= 0xD7:
		case m == markerEOI:
			return i + 2
		default:
			// Another scan (progressive JPEG) or table: skip the segment.
			if i+3 < len(data) {
				i += 1 + (int(data[i+2])<<8 | int(data[i+3]))
			}
		}
	}
	return len(data)
}
