//go:build !linux

package watcher

// DetectFilesystemType is only implemented on Linux.
func DetectFilesystemType(string) FilesystemType {
	return FSTypeUnknown
}
