package badger

// Key prefixes for different data types
const (
	vectorPrefix = "vec"
	indexPrefix  = "idx"
	keySep       = "/"
)

// makeIndexKey generates the key holding an index's dimension.
// Format: idx/index
func makeIndexKey(index string) []byte {
	return []byte(indexPrefix + keySep + index)
}

// makeNamespacePrefix generates the prefix shared by every vector of a
// namespace. Index and namespace names never contain the separator.
// Format: vec/index/namespace/
func makeNamespacePrefix(index, namespace string) []byte {
	return []byte(vectorPrefix + keySep + index + keySep + namespace + keySep)
}

// makeVectorKey generates the key for a single vector.
// Format: vec/index/namespace/id
func makeVectorKey(index, namespace, id string) []byte {
	prefix := makeNamespacePrefix(index, namespace)
	buf := make([]byte, len(prefix)+len(id))
	offset := copy(buf, prefix)
	copy(buf[offset:], id)
	return buf
}
