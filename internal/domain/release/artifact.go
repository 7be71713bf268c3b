package release

// Artifact is a single installable package file discovered on local storage.
type Artifact struct {
	// Name is the base filename, unique within a discovery batch.
	Name string
	// Path is the resolved local location of the file.
	Path string
}

// Names returns the names of artifacts in order.
func Names(artifacts []Artifact) []string {
	names := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		names = append(names, artifact.Name)
	}

	return names
}

// Paths returns the local paths of artifacts in order.
func Paths(artifacts []Artifact) []string {
	paths := make([]string, 0, len(artifacts))
	for _, artifact := range artifacts {
		paths = append(paths, artifact.Path)
	}

	return paths
}
