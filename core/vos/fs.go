package vos

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// FsOp is a textual description of the filesystem operation.
type FsOp = string

const (
	FsOpChtimes   FsOp = "chtimes"
	FsOpChmod     FsOp = "chmod"
	FsOpChown     FsOp = "chown"
	FsOpStat      FsOp = "stat"
	FsOpRename    FsOp = "rename"
	FsOpRemove    FsOp = "remove"
	FsOpRemoveAll FsOp = "removeall"
	FsOpOpen      FsOp = "open"
	FsOpMkdir     FsOp = "mkdir"
	FsOpCreate    FsOp = "create"
)

// FileMapper rewrites the path an operation applies to.
type FileMapper func(op FsOp, name string) (path string, err error)

// PathMappingFs maps all paths on a filesystem via callback to another path.
type PathMappingFs struct {
	BaseFs afero.Fs
	Mapper FileMapper
}

var _ afero.Fs = (*PathMappingFs)(nil)

// NewPathMappingFs creates a filesystem that rewrites every path with mapper
// before handing it to base.
func NewPathMappingFs(base afero.Fs, mapper FileMapper) afero.Fs {
	return &PathMappingFs{BaseFs: base, Mapper: mapper}
}

// NewWorkdirFs resolves relative paths against the directory returned by
// getwd at the time of each call.
func NewWorkdirFs(base afero.Fs, getwd func() string) afero.Fs {
	return NewPathMappingFs(base, func(_ FsOp, name string) (string, error) {
		return ResolvePath(getwd(), name), nil
	})
}

// ResolvePath joins a relative name onto dir, absolute names are cleaned and
// returned as-is.
func ResolvePath(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return filepath.Clean(name)
	}
	return filepath.Join(dir, name)
}

func (b *PathMappingFs) mapPath(op FsOp, name string) (string, error) {
	mapped, err := b.Mapper(op, name)
	if err != nil {
		return "", &os.PathError{Op: op, Path: name, Err: err}
	}
	return mapped, nil
}

func (b *PathMappingFs) Chtimes(name string, atime, mtime time.Time) error {
	name, err := b.mapPath(FsOpChtimes, name)
	if err != nil {
		return err
	}
	return b.BaseFs.Chtimes(name, atime, mtime)
}

func (b *PathMappingFs) Chmod(name string, mode os.FileMode) error {
	name, err := b.mapPath(FsOpChmod, name)
	if err != nil {
		return err
	}
	return b.BaseFs.Chmod(name, mode)
}

func (b *PathMappingFs) Chown(name string, uid, gid int) error {
	name, err := b.mapPath(FsOpChown, name)
	if err != nil {
		return err
	}
	return b.BaseFs.Chown(name, uid, gid)
}

func (b *PathMappingFs) Name() string {
	return "PathMappingFs"
}

func (b *PathMappingFs) Stat(name string) (os.FileInfo, error) {
	name, err := b.mapPath(FsOpStat, name)
	if err != nil {
		return nil, err
	}
	return b.BaseFs.Stat(name)
}

func (b *PathMappingFs) Rename(oldname, newname string) error {
	oldname, err := b.mapPath(FsOpRename, oldname)
	if err != nil {
		return err
	}
	newname, err = b.mapPath(FsOpRename, newname)
	if err != nil {
		return err
	}
	return b.BaseFs.Rename(oldname, newname)
}

func (b *PathMappingFs) RemoveAll(name string) error {
	name, err := b.mapPath(FsOpRemoveAll, name)
	if err != nil {
		return err
	}
	return b.BaseFs.RemoveAll(name)
}

func (b *PathMappingFs) Remove(name string) error {
	name, err := b.mapPath(FsOpRemove, name)
	if err != nil {
		return err
	}
	return b.BaseFs.Remove(name)
}

func (b *PathMappingFs) OpenFile(name string, flag int, mode os.FileMode) (afero.File, error) {
	name, err := b.mapPath(FsOpOpen, name)
	if err != nil {
		return nil, err
	}
	return b.BaseFs.OpenFile(name, flag, mode)
}

func (b *PathMappingFs) Open(name string) (afero.File, error) {
	name, err := b.mapPath(FsOpOpen, name)
	if err != nil {
		return nil, err
	}
	return b.BaseFs.Open(name)
}

func (b *PathMappingFs) Mkdir(name string, mode os.FileMode) error {
	name, err := b.mapPath(FsOpMkdir, name)
	if err != nil {
		return err
	}
	return b.BaseFs.Mkdir(name, mode)
}

func (b *PathMappingFs) MkdirAll(name string, mode os.FileMode) error {
	name, err := b.mapPath(FsOpMkdir, name)
	if err != nil {
		return err
	}
	return b.BaseFs.MkdirAll(name, mode)
}

func (b *PathMappingFs) Create(name string) (afero.File, error) {
	name, err := b.mapPath(FsOpCreate, name)
	if err != nil {
		return nil, err
	}
	return b.BaseFs.Create(name)
}
