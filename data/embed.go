package data

import "embed"

var (
	//go:embed store.yaml
	Configs embed.FS
)

// DefaultStoreConfig is the name of the embedded store service configuration.
const DefaultStoreConfig = "store.yaml"
