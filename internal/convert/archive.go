package convert

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nwaples/rardecode"
)

var (
	archiveInputFormats  = []string{"zip", "tar", "gz", "tgz", "rar"}
	archiveOutputFormats = []string{"zip", "tar", "gz"}
)

// ArchiveConverter repacks archives: extract to a scratch directory, then
// build the target archive from the extracted tree. RAR is read-only;
// creating RAR archives is refused by the registry before dispatch.
type ArchiveConverter struct {
	pairs []Pair
}

// NewArchiveConverter builds the archive family
func NewArchiveConverter() *ArchiveConverter {
	return &ArchiveConverter{
		pairs: product(archiveInputFormats, archiveOutputFormats),
	}
}

func (c *ArchiveConverter) Name() string { return "archive" }

func (c *ArchiveConverter) Pairs() []Pair { return c.pairs }

func (c *ArchiveConverter) Convert(ctx context.Context, inputPath, outputPath string, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	workDir, err := os.MkdirTemp("", "archive-")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := extractArchive(inputPath, NormalizeFormat(fileExt(inputPath)), workDir); err != nil {
		return err
	}

	switch NormalizeFormat(opts.TargetFormat) {
	case "zip":
		return packZip(outputPath, workDir)
	case "tar":
		return packTar(outputPath, workDir, false)
	case "gz":
		return packTar(outputPath, workDir, true)
	default:
		return fmt.Errorf("no archive writer for '%s'", opts.TargetFormat)
	}
}

// entryPath joins an archive entry name under dir, refusing entries that
// would escape it
func entryPath(dir, name string) (string, error) {
	cleaned := filepath.Join(dir, filepath.FromSlash(name))
	if !strings.HasPrefix(cleaned, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes extraction dir: %s", name)
	}
	return cleaned, nil
}

func writeEntry(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func extractArchive(inputPath, format, dir string) error {
	switch format {
	case "zip":
		return extractZip(inputPath, dir)
	case "tar":
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer f.Close()
		return extractTar(f, dir)
	case "gz", "tgz":
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer f.Close()

		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to read gzip stream: %w", err)
		}
		defer gz.Close()
		return extractTar(gz, dir)
	case "rar":
		return extractRar(inputPath, dir)
	default:
		return fmt.Errorf("no archive reader for '%s'", format)
	}
}

func extractZip(inputPath, dir string) error {
	zr, err := zip.OpenReader(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		path, err := entryPath(dir, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
			}
			continue
		}

		r, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
		}
		err = writeEntry(path, r)
		r.Close()
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
		}
	}

	return nil
}

func extractTar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar stream: %w", err)
		}

		path, err := entryPath(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := writeEntry(path, tr); err != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
		}
	}
}

func extractRar(inputPath, dir string) error {
	rr, err := rardecode.OpenReader(inputPath, "")
	if err != nil {
		return fmt.Errorf("failed to open rar: %w", err)
	}
	defer rr.Close()

	for {
		hdr, err := rr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read rar stream: %w", err)
		}

		path, err := entryPath(dir, hdr.Name)
		if err != nil {
			return err
		}

		if hdr.IsDir {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
			continue
		}

		if err := writeEntry(path, rr); err != nil {
			return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
		}
	}
}

// walkFiles lists regular files under dir with their slash-separated
// archive-relative names
func walkFiles(dir string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.Mode().IsRegular() {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = path
		return nil
	})
	return files, err
}

func packZip(outputPath, dir string) error {
	files, err := walkFiles(dir)
	if err != nil {
		return fmt.Errorf("failed to walk extracted tree: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	for name, path := range files {
		f, err := os.Open(path)
		if err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("failed to pack %s: %w", name, err)
		}

		w, err := zw.Create(name)
		if err == nil {
			_, err = io.Copy(w, f)
		}
		f.Close()
		if err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("failed to pack %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Close()
}

func packTar(outputPath, dir string, compress bool) error {
	files, err := walkFiles(dir)
	if err != nil {
		return fmt.Errorf("failed to walk extracted tree: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	var tw *tar.Writer
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(out)
		tw = tar.NewWriter(gz)
	} else {
		tw = tar.NewWriter(out)
	}

	fail := func(name string, err error) error {
		tw.Close()
		if gz != nil {
			gz.Close()
		}
		out.Close()
		return fmt.Errorf("failed to pack %s: %w", name, err)
	}

	for name, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return fail(name, err)
		}

		hdr := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fail(name, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fail(name, err)
		}
		_, err = io.Copy(tw, f)
		f.Close()
		if err != nil {
			return fail(name, err)
		}
	}

	if err := tw.Close(); err != nil {
		if gz != nil {
			gz.Close()
		}
		out.Close()
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			out.Close()
			return fmt.Errorf("failed to finalize archive: %w", err)
		}
	}
	return out.Close()
}
