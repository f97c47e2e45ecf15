// Package catalog defines the descriptors of a PKAdmin catalog backend.
//
// Descriptors mirror the backend's catalog entities one to one:
//
//	Database 1--* Schema 1--* Table 1--* {Column, Index}
//
// They are immutable values. Slice and map accessors return copies, so a
// descriptor handed to one component can never be mutated through another.
//
// The Decode* functions are the only way raw JSON enters the rest of the
// system. They validate shape and identity fields and fail with a
// *DecodeError instead of producing zero-valued descriptors.
package catalog
