package loaders

// Resource is the raw content of one file loaded from the assets directory.
type Resource struct {
	Name     string
	FullPath string
	DataSize uint64
	Data     []byte
}
