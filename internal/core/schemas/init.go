// Package schemas registers every import kind with the core registry.
// Import this package for its side effects.
package schemas

// Each file registers its kind from init().
