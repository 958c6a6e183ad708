// Package storage keeps uploaded videos on behalf of the API.
package storage

import "io"

type FileInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// Storage names stored files by the opaque identifier SaveFile
// returns. Path exposes a filesystem location for tools that need a
// real file, such as ffmpeg.
type Storage interface {
	SaveFile(file io.Reader, info FileInfo) (string, error)
	OpenFile(name string) (io.ReadSeekCloser, error)
	Path(name string) (string, error)
	DeleteFile(name string) error
}
