package ports

// OutputWriterPort writes output files without disturbing unchanged ones,
// so downstream incremental builds see no spurious modification times.
// The boolean result reports whether the file was actually (re)written.
type OutputWriterPort interface {
	WriteFileIfChanged(path string, content []byte) (bool, error)
}
