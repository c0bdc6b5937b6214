// Compression for transaction-log old-row images.
//
// An UP record's before-image can be as large as the row it replaces;
// zstd-compressing it keeps the log compact without weakening rollback,
// since DecodeAll always restores the exact before-image that was
// compressed.
package isam

import (
	"github.com/klauspost/compress/zstd"
)

// Shared encoder/decoder, built once: zstd construction allocates
// internal state tables that would dominate the cost of compressing a
// single row image if rebuilt per call.
//
// SpeedFastest is deliberate: compression runs on every rewrite (hot
// path: rewriteRow builds the UP payload each time) while
// decompression only runs during Rollback/Recover (cold path).
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// compressRow compresses a row image for embedding in an UP log record.
func compressRow(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	return zstdEncoder.EncodeAll(data, nil)
}

// decompressRow restores a row image compressed by compressRow.
func decompressRow(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, nil
	}
	out, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, ErrBadLog
	}
	return out, nil
}
