// Package tool defines what a callable capability looks like to the rest of
// the framework: a name, a description, a JSON-schema parameter description,
// and the function to invoke. Tools stay flat structs composed by wrapping —
// there is no tool hierarchy to inherit from.
//
// Ordinary tools are plain Go functions; their parameter schemas are derived
// by reflection. Reserved end-turn tools carry an explicit schema instead,
// because their dispatch bypasses reflection entirely.
package tool
