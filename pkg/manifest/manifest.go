// Package manifest reads and writes the simulator's scenery_packs.ini load
// manifest: lenient tokenising on read, strict grammar on write, atomic
// replace with rotating timestamped backups, and a per-installation
// exclusive lock. Read and Write do not take the lock themselves; the
// Manager holds it around each Write only, not across the read.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"xaddonmgr/pkg/apperr"
	"xaddonmgr/pkg/model"
)

// VirtualGlobalAirports is the marker used for the "Global Airports" entry
// when no physical folder of that name has been discovered yet. Discovery
// reconciles it with the physical path when one appears.
const VirtualGlobalAirports = "*GLOBAL_AIRPORTS*"

const (
	directiveActive   = "SCENERY_PACK"
	directiveDisabled = "SCENERY_PACK_DISABLED"
)

// header is the fixed leading block every scenery_packs.ini starts with.
var header = []string{"I", "1000 Version", "SCENERY", ""}

// Manifest is the scenery load-order file at a fixed path.
type Manifest struct {
	Path string

	// BackupDir receives rotating timestamped copies before each write.
	// Empty disables backups.
	BackupDir string

	// BackupRetain is how many backups to keep; defaults to 10 when zero.
	BackupRetain int

	lock *flock.Flock
}

// New builds a Manifest for the ini file at path.
func New(path, backupDir string) *Manifest {
	return &Manifest{
		Path:      path,
		BackupDir: backupDir,
		lock:      flock.New(path + ".lock"),
	}
}

// Lock acquires the per-installation exclusive lock. The Manager holds it
// for the duration of a manifest write; reads are not locked.
func (m *Manifest) Lock() error {
	if err := m.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock manifest: %w", err)
	}
	return nil
}

// Unlock releases the manifest lock.
func (m *Manifest) Unlock() error {
	return m.lock.Unlock()
}

// Read parses the manifest into packs. A missing file yields an empty list.
// Lines are tokenised leniently: surrounding whitespace is ignored, unknown
// directives are skipped, and a pack line may carry a trailing comment
// (written by us for DuplicateHidden entries) or an unspecified trailing
// token, both ignored on read.
func (m *Manifest) Read() ([]model.SceneryPack, []error) {
	f, err := os.Open(m.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{apperr.NewIOErr("open", m.Path, err)}
	}
	defer f.Close()
	return parse(f, m.Path)
}

func parse(r io.Reader, file string) ([]model.SceneryPack, []error) {
	var (
		packs  []model.SceneryPack
		errs   []error
		lineNo int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		directive, rest, found := strings.Cut(line, " ")
		if !found {
			// Header tokens ("I", "SCENERY") and stray single words.
			continue
		}
		var status model.SceneryStatus
		switch directive {
		case directiveActive:
			status = model.StatusActive
		case directiveDisabled:
			status = model.StatusDisabled
		default:
			// Header version line and unknown directives: tolerated on
			// read, dropped on write.
			continue
		}

		relPath := rest
		if i := strings.Index(relPath, "#"); i >= 0 {
			relPath = relPath[:i]
		}
		// Tolerate an unspecified trailing token after the path. Pack paths
		// end with "/", so anything after "/ " is not part of the path.
		if i := strings.Index(relPath, "/ "); i >= 0 {
			relPath = relPath[:i+1]
		}
		relPath = strings.TrimSpace(relPath)
		if relPath == "" {
			errs = append(errs, apperr.NewParseErr(file, lineNo, "pack line has no path", nil))
			continue
		}

		name := packNameFromPath(relPath)
		if name == "Global Airports" {
			name = VirtualGlobalAirports
		}
		packs = append(packs, model.SceneryPack{
			Name:     name,
			Path:     relPath,
			Status:   status,
			Category: model.CategoryUnknown,
		})
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, apperr.NewIOErr("scan", file, err))
	}
	return packs, errs
}

func packNameFromPath(relPath string) string {
	trimmed := strings.TrimSuffix(relPath, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// Write persists packs in order: backup, then atomic replace (write to a
// .tmp sibling, fsync, rename over the target). The pre-save state survives
// any failure because the .tmp is never renamed until fully written.
func (m *Manifest) Write(packs []model.SceneryPack) error {
	if err := m.backup(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return apperr.NewIOErr("mkdir", filepath.Dir(m.Path), err)
	}

	tmp := m.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperr.NewIOErr("create", tmp, err)
	}

	w := bufio.NewWriter(f)
	for _, h := range header {
		fmt.Fprintln(w, h)
	}
	for _, p := range packs {
		fmt.Fprintln(w, formatLine(p))
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return apperr.NewIOErr("write", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return apperr.NewIOErr("fsync", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return apperr.NewIOErr("close", tmp, err)
	}
	if err := os.Rename(tmp, m.Path); err != nil {
		os.Remove(tmp)
		return apperr.NewIOErr("rename", m.Path, err)
	}
	return nil
}

func formatLine(p model.SceneryPack) string {
	relPath := normalizeRelPath(p.Path)
	switch p.Status {
	case model.StatusDisabled:
		return directiveDisabled + " " + relPath
	case model.StatusDuplicateHidden:
		line := directiveDisabled + " " + relPath
		if p.DuplicateOf != "" {
			line += " # duplicate of " + p.DuplicateOf
		}
		return line
	default:
		return directiveActive + " " + relPath
	}
}

// normalizeRelPath writes paths forward-slash relative with a trailing
// slash, the way the simulator expects them.
func normalizeRelPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// backup copies the current manifest into BackupDir under a millisecond
// timestamped name and prunes all but the newest BackupRetain copies.
func (m *Manifest) backup() error {
	if m.BackupDir == "" {
		return nil
	}
	if _, err := os.Stat(m.Path); err != nil {
		return nil
	}

	if err := os.MkdirAll(m.BackupDir, 0o755); err != nil {
		return apperr.NewIOErr("mkdir", m.BackupDir, err)
	}

	ts := time.Now().Format("20060102_150405.000")
	dst := filepath.Join(m.BackupDir, "scenery_packs.ini."+ts)
	if err := copyFile(m.Path, dst); err != nil {
		return err
	}
	return m.pruneBackups()
}

func (m *Manifest) pruneBackups() error {
	retain := m.BackupRetain
	if retain <= 0 {
		retain = 10
	}

	entries, err := os.ReadDir(m.BackupDir)
	if err != nil {
		return apperr.NewIOErr("readdir", m.BackupDir, err)
	}

	type backup struct {
		path  string
		mtime time.Time
	}
	var backups []backup
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "scenery_packs.ini.") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backup{
			path:  filepath.Join(m.BackupDir, e.Name()),
			mtime: info.ModTime(),
		})
	}

	if len(backups) <= retain {
		return nil
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].mtime.After(backups[j].mtime) })
	for _, b := range backups[retain:] {
		_ = os.Remove(b.path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return apperr.NewIOErr("open", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return apperr.NewIOErr("create", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return apperr.NewIOErr("copy", dst, err)
	}
	return nil
}
