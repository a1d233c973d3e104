package reach_test

import (
	"testing/fstest"
	"time"
)

// templateFS builds an in-memory template directory out of file contents,
// keyed by path.
func templateFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for path, contents := range files {
		fsys[path] = &fstest.MapFile{
			Data:    []byte(contents),
			Mode:    0o644,
			ModTime: time.Now(),
		}
	}
	return fsys
}
