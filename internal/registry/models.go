package registry

// Metadata is the subset of the registry's per-crate API response the mirror
// cares about.
type Metadata struct {
	Name       string  `json:"name"`
	Repository *string `json:"repository"`
	MaxVersion string  `json:"max_version"`
}

// crateResponse mirrors the registry's /api/v1/crates/{name} envelope.
type crateResponse struct {
	Crate Metadata `json:"crate"`
}
