package types

// OutputManifest names one output manifest file. Its position in the
// outputs list is the group number it receives.
type OutputManifest struct {
	Path string
}
