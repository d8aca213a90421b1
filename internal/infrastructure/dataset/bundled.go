package dataset

import (
	"embed"
	"io/fs"
)

//go:embed bundled/*.yaml
var bundled embed.FS

// Bundled returns the datasets shipped with the binary, addressed by file
// name (for example "tasks.yaml").
func Bundled() fs.FS {
	sub, err := fs.Sub(bundled, "bundled")
	if err != nil {
		panic(err)
	}
	return sub
}
