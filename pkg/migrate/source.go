package migrate

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed migrations/*.sql
var embedded embed.FS

// DefaultDir is where new migrations are written, relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

// Source is a set of goose SQL files: Dir inside FS.
type Source struct {
	FS    fs.FS
	Dir   string
	Label string
}

// Embedded returns the migrations compiled into the binary, so deployed
// services do not depend on the working directory.
func Embedded() Source {
	return Source{FS: embedded, Dir: "migrations", Label: "embedded"}
}

func FromDir(dir string) Source {
	return Source{FS: os.DirFS(dir), Dir: ".", Label: dir}
}
