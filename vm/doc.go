// Package vm implements the reference interpreter for compiled scenes.
//
// This package contains:
//   - Scene image loading and a writable data section
//   - A fixed-size stack sized from the image header
//   - Compound string printing and option display
//   - Native dispatch by name hash
package vm
