// Package restyutil dumps full request/response transcripts of portal
// traffic to disk. It exists for debugging scrapes against the live
// portal where a span alone does not tell you what the markup looked
// like.
package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

type Output interface {
	Write(id string, contents string)
}

type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears dir and recreates it. Transcripts from a
// previous run are not worth keeping.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	os.RemoveAll(dir)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".txt"), []byte(contents), 0644)
	if err != nil {
		slog.Warn("failed to write http transcript", "id", id, "err", err)
	}
}
