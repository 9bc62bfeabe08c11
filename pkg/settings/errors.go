package settings

import "errors"

// Common errors returned by the settings manager.
var (
	// ErrFolderNotFound is returned when a folder path does not exist.
	ErrFolderNotFound = errors.New("folder does not exist")

	// ErrNotDirectory is returned when a path is not a directory.
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrDuplicateFolder is returned when a folder is already watched.
	ErrDuplicateFolder = errors.New("folder already watched")

	// ErrFolderNotWatched is returned when removing a folder that is not watched.
	ErrFolderNotWatched = errors.New("folder not watched")
)
