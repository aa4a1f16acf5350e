// Package model defines the core data structures used throughout
// mailmirror, and the pure naming and path rules of the mirror tree.
//
// # Piece
//
// Piece is one physical mail item with its scanned media, as listed by the
// Earth Class Mail catalog.
//
// # Naming
//
// NameMedia maps a media item's tags and content type to its filename:
//
//	enclosure + front  ->  front-enclosure.<subtype>
//	enclosure + back   ->  back-enclosure.<subtype>
//	scan               ->  scan.<subtype>
//
// Any other combination is a *NamingError.
//
// # Paths
//
// PlanDirectory and PlanFile place every file at
//
//	<root>/<YYYY-MM-DD>/<piece id>/<filename>
//
// Both are deterministic, so a file that already exists on disk is never
// fetched again.
package model
