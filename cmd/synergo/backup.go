package main

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/mkaravel/synergo/internal/config"
)

func runBackup(args []string) error {
	outputPath, err := pathFlag(args, "backup -f <output.tar.zst>")
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	count, err := archiveDir(cfg.Data.Dir, outputPath)
	if err != nil {
		return err
	}

	info, _ := os.Stat(outputPath)
	size := int64(0)
	if info != nil {
		size = info.Size()
	}
	fmt.Printf("Backup complete: %d files, %s\n", count, formatSize(size))
	return nil
}

func runRestore(args []string) error {
	inputPath, err := pathFlag(args, "restore -f <backup.tar.zst>")
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	count, err := extractArchive(inputPath, cfg.Data.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("Restore complete: %d files\n", count)
	return nil
}

func pathFlag(args []string, usage string) (string, error) {
	for i := 0; i < len(args); i++ {
		if args[i] == "-f" {
			if i+1 >= len(args) {
				return "", fmt.Errorf("missing value for -f")
			}
			return args[i+1], nil
		}
	}
	fmt.Fprintf(os.Stderr, "Usage: synergo %s\n", usage)
	return "", fmt.Errorf("missing -f flag")
}

// archiveDir writes every regular file under dir into a zstd-compressed
// tar, with paths relative to dir.
func archiveDir(dir, outputPath string) (int, error) {
	f, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	count := 0
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		if _, err := io.Copy(tw, src); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("archive %s: %w", dir, err)
	}

	if err := tw.Close(); err != nil {
		return 0, fmt.Errorf("close tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("close zstd: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}
	return count, nil
}

// extractArchive unpacks a backup into dir. Entries that would escape dir
// are rejected.
func extractArchive(inputPath, dir string) (int, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	count := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Clean(filepath.FromSlash(hdr.Name))
		if name == ".." || strings.HasPrefix(name, ".."+string(os.PathSeparator)) || filepath.IsAbs(name) {
			return 0, fmt.Errorf("unsafe path in archive: %s", hdr.Name)
		}

		target := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return 0, fmt.Errorf("create dir: %w", err)
		}
		dst, err := os.Create(target)
		if err != nil {
			return 0, fmt.Errorf("create file: %w", err)
		}
		if _, err := io.Copy(dst, tr); err != nil {
			dst.Close()
			return 0, fmt.Errorf("write file: %w", err)
		}
		if err := dst.Close(); err != nil {
			return 0, fmt.Errorf("close file: %w", err)
		}
		count++
	}
	return count, nil
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
