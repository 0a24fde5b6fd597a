// ABOUTME: Stream transformer package
// ABOUTME: Converts decoder output to a sink's fixed playback format
// Package transform turns frames in a decoder's native format into a sink's
// playback format.
//
// Stages run in a fixed order: sample type conversion, channel mixing
// (N->N, 1->2, 2->1), frequency conversion and volume. Stages that would be
// no-ops are skipped and volume is applied in the same pass that writes the
// caller's buffer. Frames the converter produced beyond a request are kept
// and served first on the next call.
package transform
