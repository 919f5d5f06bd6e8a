// Package docmap maps typed Go values onto document-database collections
// through declared schemas: decode (document to instance), encode (instance
// to document), validation, normalization, default filling, migration, and
// the create/find/update/delete operations around them, with well-defined
// lifecycle options firing at each stage.
//
// The center of the package is the option invocation engine: schemas and
// fields declare (configuration, behavior) pairs; traversal materializes them
// against concrete instances; Perform executes the resulting worklist to
// saturation, letting a behavior block enqueue follow-up options and wait on
// their outcome.
//
// Schemas compose from the variants in this package (scalar, object, array,
// nullable, mapped, enum, unit); the dsl subpackage is the builder surface;
// the store subpackage supplies the collection capability; the wire and
// coerce subpackages hold the BSON value algebra and the fallback converters.
package docmap
