package ewf

import "hash/crc32"

// crc32Seed is the initial value carried into every section, table and
// chunk checksum in this format. Ordinary CRC-32/IEEE checksums seed from
// zero; this format's checksums seed from 1, so they are computed with
// crc32.Update starting from crc32Seed rather than through hash.Hash32,
// which has no way to express a non-zero initial value.
const crc32Seed uint32 = 1

// checksum computes this format's seeded CRC-32/IEEE over data in one call,
// in the shape of the teacher's crc_writer.go (hash.Hash32 wrapped around
// hash/crc32), adapted to crc32.Update so the seed can be non-zero. Every
// CRC in this format is computed over an already-assembled section or
// table buffer rather than streamed incrementally, so a single call
// suffices in place of the teacher's io.Writer-shaped tee.
func checksum(data []byte) uint32 {
	return crc32.Update(crc32Seed, crc32.IEEETable, data)
}
