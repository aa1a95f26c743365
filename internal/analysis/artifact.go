package analysis

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Unpack limits. Oversized or absurdly dense archives are a risk indicator
// of their own, but here they simply stop extraction early.
const (
	maxArchiveEntries  = 4096
	maxEntryBytes      = 8 << 20  // 8 MiB per file
	maxTotalBytes      = 64 << 20 // 64 MiB per archive
	maxScannedFileSize = 1 << 20  // 1 MiB per scanned source file
)

// scanExtensions are the source file types the static scanner inspects.
var scanExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".mjs": {}, ".cjs": {}, ".ts": {}, ".sh": {},
}

// UnpackTarGz extracts a gzipped tarball stream into dst.
// Entries with absolute or parent-escaping paths are skipped — extraction
// never writes outside dst.
func UnpackTarGz(r io.Reader, dst string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("analysis: open gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var entries int
	var total int64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("analysis: read tar: %w", err)
		}
		if entries++; entries > maxArchiveEntries {
			return nil
		}
		if !safeEntryName(hdr.Name) {
			continue
		}
		target := filepath.Join(dst, filepath.FromSlash(hdr.Name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("analysis: mkdir: %w", err)
			}
		case tar.TypeReg:
			if hdr.Size > maxEntryBytes {
				continue
			}
			if total += hdr.Size; total > maxTotalBytes {
				return nil
			}
			if err := writeEntry(target, io.LimitReader(tr, maxEntryBytes)); err != nil {
				return err
			}
		}
		// Symlinks and special files are deliberately not extracted.
	}
}

// UnpackZip extracts a zip (or wheel) archive into dst with the same
// traversal protection as UnpackTarGz.
func UnpackZip(data []byte, dst string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("analysis: open zip: %w", err)
	}

	var entries int
	var total int64
	for _, f := range zr.File {
		if entries++; entries > maxArchiveEntries {
			return nil
		}
		if !safeEntryName(f.Name) {
			continue
		}
		target := filepath.Join(dst, filepath.FromSlash(f.Name))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("analysis: mkdir: %w", err)
			}
			continue
		}
		if int64(f.UncompressedSize64) > maxEntryBytes {
			continue
		}
		if total += int64(f.UncompressedSize64); total > maxTotalBytes {
			return nil
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("analysis: open zip entry: %w", err)
		}
		err = writeEntry(target, io.LimitReader(rc, maxEntryBytes))
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// safeEntryName rejects archive member names that would escape the
// extraction root.
func safeEntryName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(name))
}

func writeEntry(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("analysis: mkdir: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("analysis: create file: %w", err)
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("analysis: write file: %w", err)
	}
	return nil
}

// ScanDir walks an unpacked artifact and applies the dangerous-code pattern
// catalog to every recognized source file. It returns the number of pattern
// hits and one reason per distinct (file, pattern) match, in path order.
func ScanDir(dir string) (int, []string, error) {
	var hits int
	var reasons []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := scanExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxScannedFileSize {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = d.Name()
		}
		for _, p := range codePatterns {
			if p.re.Match(content) {
				hits++
				reasons = append(reasons, fmt.Sprintf("%s: %s", filepath.ToSlash(rel), p.reason))
			}
		}
		return nil
	})
	if err != nil {
		return hits, reasons, fmt.Errorf("analysis: walk %s: %w", dir, err)
	}
	return hits, reasons, nil
}

// ListFiles returns the sorted, slash-normalized relative file names under
// dir, with the top-level directory component stripped (sdists and wheels
// nest their contents under differing roots).
func ListFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		name := filepath.ToSlash(rel)
		if i := strings.IndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		out = append(out, name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analysis: walk %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

// StructuralDiff compares two artifact forms of the same release and
// returns source-looking files present in one but absent from the other.
// Metadata files that legitimately differ between forms are ignored.
func StructuralDiff(sdistFiles, wheelFiles []string) []string {
	inWheel := make(map[string]struct{}, len(wheelFiles))
	for _, f := range wheelFiles {
		inWheel[f] = struct{}{}
	}
	inSdist := make(map[string]struct{}, len(sdistFiles))
	for _, f := range sdistFiles {
		inSdist[f] = struct{}{}
	}

	var diff []string
	for _, f := range wheelFiles {
		if !interestingForDiff(f) {
			continue
		}
		if _, ok := inSdist[f]; !ok {
			diff = append(diff, f+" only in built distribution")
		}
	}
	for _, f := range sdistFiles {
		if !interestingForDiff(f) {
			continue
		}
		if _, ok := inWheel[f]; !ok {
			diff = append(diff, f+" only in source distribution")
		}
	}
	sort.Strings(diff)
	return diff
}

// interestingForDiff keeps the structural diff focused on executable code.
func interestingForDiff(name string) bool {
	_, ok := scanExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
