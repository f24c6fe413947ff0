package images

import (
	"hash/fnv"

	"gocv.io/x/gocv"
)

// MatChecksum hashes the pixel buffer of a Mat. Two reads with the same
// checksum carry the same picture, which happens when a driver hands out a
// stale buffer instead of waiting for the sensor.
//
// Arguments:
//   - mat: The Mat to hash.
//
// Returns:
//   - uint64: The FNV-1a hash, zero for an empty or non-continuous Mat.
func MatChecksum(mat gocv.Mat) uint64 {
	if mat.Empty() {
		return 0
	}
	data, err := mat.DataPtrUint8()
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}
