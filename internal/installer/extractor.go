package installer

import (
	"archive/tar"    // .tar archives
	"archive/zip"    // .zip archives
	"compress/bzip2" // .bz2 compressed data
	"compress/gzip"  // .gz compressed data
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip" // .7z archives
	"github.com/cockroachdb/errors"
	"github.com/xi2/xz" // .xz compressed data

	"forge/internal/faults"
	"forge/internal/logger"
)

// InstallAsset unpacks a downloaded release asset and places its executables
// into binDir with executable permission. Archives are extracted into a
// scoped temporary directory (removed regardless of outcome) and searched at
// any depth for executables whose base name matches one of the tool's
// provides names, or the tool name itself when provides is empty. Anything
// that is not a recognized archive is treated as a raw binary.
func InstallAsset(assetPath, toolName string, provides []string, binDir string) ([]string, error) {
	wanted := provides
	if len(wanted) == 0 {
		wanted = []string{toolName}
	}

	if !isArchive(assetPath) {
		// Raw executable: install under the tool's primary name.
		dest := filepath.Join(binDir, wanted[0])
		if err := copyExecutable(assetPath, dest); err != nil {
			return nil, errors.Mark(err, faults.ErrExtractionFailed)
		}
		return []string{wanted[0]}, nil
	}

	tmpDir, err := os.MkdirTemp("", "forge-extract-")
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "creating extraction directory"), faults.ErrExtractionFailed)
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			logger.Warn("[WARN] Failed to clean up %s: %v\n", tmpDir, rerr)
		}
	}()

	if err := extractArchive(assetPath, tmpDir); err != nil {
		return nil, errors.Mark(err, faults.ErrExtractionFailed)
	}

	found, err := findExecutables(tmpDir, wanted)
	if err != nil {
		return nil, errors.Mark(err, faults.ErrExtractionFailed)
	}

	if err := os.MkdirAll(binDir, 0755); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "creating bin directory"), faults.ErrExtractionFailed)
	}

	installed := make([]string, 0, len(found))
	for name, src := range found {
		dest := filepath.Join(binDir, name)
		if err := copyExecutable(src, dest); err != nil {
			return nil, errors.Mark(err, faults.ErrExtractionFailed)
		}
		logger.Debug("[DEBUG] Installed %s -> %s\n", src, dest)
		installed = append(installed, name)
	}
	return installed, nil
}

func isArchive(path string) bool {
	for _, ext := range []string{".tar.gz", ".tgz", ".tar.xz", ".tar.bz2", ".tar", ".zip", ".7z"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// extractArchive routes to the right extraction function based on suffix.
func extractArchive(src, dest string) error {
	switch {
	case strings.HasSuffix(src, ".zip"):
		logger.Debug("[DEBUG] compression type is zip\n")
		return extractZip(src, dest)
	case strings.HasSuffix(src, ".7z"):
		logger.Debug("[DEBUG] compression type is 7z\n")
		return extract7z(src, dest)
	case strings.HasSuffix(src, ".tar"), strings.HasSuffix(src, ".tar.gz"), strings.HasSuffix(src, ".tgz"),
		strings.HasSuffix(src, ".tar.bz2"), strings.HasSuffix(src, ".tar.xz"):
		logger.Debug("[DEBUG] compression type is tar.*\n")
		return extractTarArchive(src, dest)
	}
	return errors.Newf("unsupported archive format: %s", src)
}

// extractTarArchive handles tar and its compressed variants.
func extractTarArchive(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	var reader io.Reader = f
	switch {
	case strings.HasSuffix(src, ".tar.gz"), strings.HasSuffix(src, ".tgz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gr.Close()
		reader = gr
	case strings.HasSuffix(src, ".tar.bz2"):
		reader = bzip2.NewReader(f)
	case strings.HasSuffix(src, ".tar.xz"):
		xzr, err := xz.NewReader(f, 0)
		if err != nil {
			return err
		}
		reader = xzr
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			mode := os.FileMode(hdr.Mode) & 0777
			if mode == 0 {
				mode = 0644
			}
			outFile, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
			if err != nil {
				return err
			}
			if _, err := io.Copy(outFile, tr); err != nil {
				outFile.Close()
				return err
			}
			if err := outFile.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractZip unpacks a .zip archive.
func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		outFile, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			outFile.Close()
			return err
		}
		_, err = io.Copy(outFile, rc)
		rc.Close()
		if cerr := outFile.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// extract7z unpacks a .7z archive using the sevenzip library.
func extract7z(src, dest string) error {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return errors.Wrap(err, "opening 7z archive")
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		outFile, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(outFile, rc)
		rc.Close()
		if cerr := outFile.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// safeJoin joins an archive member name under dest, rejecting entries that
// would escape it.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", errors.Newf("archive entry escapes extraction directory: %s", name)
	}
	return target, nil
}

// findExecutables walks the extracted tree looking for regular files whose
// base name matches one of the wanted names, at any internal path. Returns
// name -> path for every wanted name found; zero matches is an error listing
// what the archive actually contained.
func findExecutables(root string, wanted []string) (map[string]string, error) {
	found := make(map[string]string)
	var seen []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		seen = append(seen, base)
		for _, w := range wanted {
			// Windows release archives carry the .exe suffix.
			if base == w || base == w+".exe" {
				if _, dup := found[w]; !dup {
					found[w] = path
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanning extracted archive")
	}

	if len(found) == 0 {
		return nil, errors.Newf("no executable named %s found in archive (contents: %s)",
			strings.Join(wanted, "/"), strings.Join(seen, ", "))
	}
	return found, nil
}

// copyExecutable copies src to dest with mode 0755.
func copyExecutable(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "opening %s", src)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(dest))
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0755)
	if err != nil {
		return errors.Wrapf(err, "creating %s", dest)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			logger.Warn("[WARN] Failed to close %s: %v\n", dest, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "copying to %s", dest)
	}
	return nil
}
