// Package connectors provides the sources documents are read from.
// Each connector lists the files of a source and, where the source
// supports it, reports changes as they happen.
//
// Only the local filesystem is supported today.
package connectors
