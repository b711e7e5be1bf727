// Package fields is the field registry consulted by the query compiler.
//
// A Registry answers four questions about a field name: is it an array
// column, does it need no conversion at all, does it alias a computed
// expression, and (for aggregate filters) is it a known function. It also
// carries the transaction status name -> code table.
//
// Registries are written in CUE and validated against the embedded
// #Registry schema. Default returns the embedded registry; LoadFile loads
// a replacement from disk.
package fields
