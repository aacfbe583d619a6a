package tester

import "strconv"

// tagTerminator ends every tag, so "1" never matches a prefix of "10". The
// digits-and-':' body keeps tags distinguishable from each other regardless
// of the surrounding pattern bytes.
const tagTerminator = 0x01

// fileTag returns the unique tag for file index i: the decimal index plus
// the terminator byte.
func fileTag(i int) []byte {
	tag := strconv.AppendInt(nil, int64(i), 10)

	return append(tag, tagTerminator)
}

// blockTag returns the unique tag for block j of file i: "i:j" plus the
// terminator byte.
//
// A tag read back at the expected position that does not match is strong
// evidence of address aliasing: counterfeit media silently redirects writes
// to offset N to offset N mod realCapacity, so some other unit's tag lands
// where this one should be.
func blockTag(i, j int) []byte {
	tag := strconv.AppendInt(nil, int64(i), 10)
	tag = append(tag, ':')
	tag = strconv.AppendInt(tag, int64(j), 10)

	return append(tag, tagTerminator)
}
