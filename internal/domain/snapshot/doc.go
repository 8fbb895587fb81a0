// Package snapshot interprets sidebar snapshot exports.
//
// A snapshot is a loosely structured JSON document: windows contain
// panel-group collections, which contain groups, which contain tab records
// carrying an indentation level. The package turns that foreign shape into
// an ordered panel/group/tree view and applies structural edits back onto
// the flat records.
//
// Components:
//   - Normalizer: classifies ambiguous nesting shapes (Classify, Normalize)
//   - Tree Builder: rebuilds the outline forest of one group (BuildTree)
//   - Panel Grouper: buckets groups under panels in nav order (BuildView)
//   - Mutator: deletes nodes, subtrees and panels on the raw records
//   - Service: fetch, mutate and persist through an injected Store
//
// The view is never cached. Every read decodes the stored document and
// derives a fresh view; every edit rewrites the raw document and replaces
// the stored copy wholesale (last write wins).
//
// Example Usage:
//
//	svc := snapshot.NewService(store, logger)
//	meta, err := svc.Upload(ctx, body)
//	view, err := svc.Parsed(ctx, meta.ID)
//	err = svc.DeleteNode(ctx, meta.ID, snapshot.NodeAddress{PanelID: "p1"}, true)
package snapshot
