// Package render composites waveform video frames and drives the frame
// sequence generation for the conversion pipeline.
//
// RenderFrame draws one fully composited frame for a playback progress value;
// Generator loops it across every time step of an audio file and encodes each
// frame to JPEG. Composition is deterministic so a sequence can be
// regenerated bit-identically from the same inputs.
package render
