// Package core defines the shared vocabulary of schemamap: typed
// attributes and the ordered schemas built from them.
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
