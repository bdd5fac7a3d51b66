package engine

const (
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)
