package schema

// AttrPrefix namespaces every attribute key the engine itself reserves,
// matching field_attrs.rs's COCOINDEX_PREFIX.
const AttrPrefix = "CocoIndex/"

// Reserved attribute keys recognized by built-in operators and the
// JSON-Schema emitter.
const (
	AttrContentFilename     = AttrPrefix + "content_filename"
	AttrContentMimeType     = AttrPrefix + "content_mime_type"
	AttrChunkBaseText       = AttrPrefix + "chunk_base_text"
	AttrEmbeddingOriginText = AttrPrefix + "embedding_origin_text"
)
