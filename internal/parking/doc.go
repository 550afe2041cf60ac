// Package parking implements the membership and ownership rules over
// shared parkings: who may read a parking's secret (its owner), who may
// register or promote credentials, and how join requests resolve —
// authenticated members join directly, anonymous callers are promoted
// into identified guest accounts with a fresh token.
//
// The Service serialises every operation under a single coarse lock, so
// domain reads and writes of one request never interleave with another's.
package parking
