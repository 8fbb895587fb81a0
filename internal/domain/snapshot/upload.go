package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxUploadBytes bounds an upload after decompression.
const DefaultMaxUploadBytes int64 = 50 << 20

// DecodeUpload turns an uploaded file into UTF-8 JSON bytes. Gzip payloads
// are inflated up to maxBytes, byte order marks are dropped and other
// encodings are detected and converted. The result is not parsed.
func DecodeUpload(data []byte, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &MalformedInputError{Reason: "empty upload"}
	}

	if mimetype.Detect(data).Is("application/gzip") {
		inflated, err := gunzip(data, maxBytes)
		if err != nil {
			return nil, err
		}
		data = inflated
	}
	if int64(len(data)) > maxBytes {
		return nil, &MalformedInputError{Reason: fmt.Sprintf("snapshot exceeds %d bytes", maxBytes)}
	}

	stripped, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return nil, &MalformedInputError{Reason: "invalid byte order mark", Err: err}
	}
	if utf8.Valid(stripped) {
		return stripped, nil
	}
	return toUTF8(stripped)
}

func gunzip(data []byte, maxBytes int64) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, &MalformedInputError{Reason: "corrupt gzip stream", Err: err}
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxBytes+1))
	if err != nil {
		return nil, &MalformedInputError{Reason: "corrupt gzip stream", Err: err}
	}
	if int64(len(out)) > maxBytes {
		return nil, &MalformedInputError{Reason: fmt.Sprintf("decompressed snapshot exceeds %d bytes", maxBytes)}
	}
	return out, nil
}

func toUTF8(data []byte) ([]byte, error) {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return nil, &MalformedInputError{Reason: "unknown text encoding", Err: err}
	}
	enc, name := charset.Lookup(strings.ToLower(result.Charset))
	if enc == nil {
		return nil, &MalformedInputError{Reason: "unsupported charset " + result.Charset}
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, &MalformedInputError{Reason: "decode " + name, Err: err}
	}
	return out, nil
}
