// Package waveform reduces decoded audio to the fixed-length peak-amplitude
// sequence the frame compositor draws.
//
// Analyze is pure and operates on already-decoded PCM; AnalyzeFile pairs it
// with a Decoder. The production Decoder shells out to ffmpeg and extracts
// the first channel only.
package waveform
