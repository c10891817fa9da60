// Package pandoc converts Markdown to .docx with the pandoc binary, fetching
// a pinned release when none is installed.
package pandoc

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

const (
	// DefaultVersion is the release downloaded when pandoc is missing.
	DefaultVersion = "3.1.11.1"
	// DefaultReleaseURL is the base of the release asset URLs.
	DefaultReleaseURL = "https://github.com/jgm/pandoc/releases/download"
)

var (
	// ErrUnsupportedPlatform is returned when no release asset exists for the host.
	ErrUnsupportedPlatform = errors.New("no pandoc release for this platform")
	// ErrBinaryNotInArchive is returned when the release archive has no pandoc executable.
	ErrBinaryNotInArchive = errors.New("pandoc binary not found in release archive")
)

// Config configures a Converter. Zero values take the defaults.
type Config struct {
	// Path is an explicit pandoc executable. It disables lookup and download.
	Path       string
	Version    string
	CacheDir   string
	ReleaseURL string
	HTTPClient *http.Client
}

// Converter runs pandoc. The binary is resolved on first use and reused.
type Converter struct {
	cfg      Config
	lookPath func(string) (string, error)
	goos     string
	goarch   string

	mu     sync.Mutex
	binary string
}

// NewConverter creates a Converter.
func NewConverter(cfg Config) *Converter {
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.ReleaseURL == "" {
		cfg.ReleaseURL = DefaultReleaseURL
	}
	if cfg.CacheDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			cfg.CacheDir = filepath.Join(dir, "titlereport", "pandoc")
		} else {
			cfg.CacheDir = filepath.Join(os.TempDir(), "titlereport-pandoc")
		}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &Converter{
		cfg:      cfg,
		lookPath: exec.LookPath,
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
	}
}

// Convert writes markdown to path as a .docx document.
func (c *Converter) Convert(ctx context.Context, markdown, path string) error {
	binary, err := c.Ensure(ctx)
	if err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-f", "markdown", "-t", "docx", "-o", path)
	cmd.Stdin = strings.NewReader(markdown)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pandoc failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Ensure returns a usable pandoc executable: the configured path, one on
// PATH, a cached download, or a fresh download.
func (c *Converter) Ensure(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.binary != "" {
		return c.binary, nil
	}

	if c.cfg.Path != "" {
		if _, err := os.Stat(c.cfg.Path); err != nil {
			return "", fmt.Errorf("configured pandoc %s: %w", c.cfg.Path, err)
		}
		c.binary = c.cfg.Path
		return c.binary, nil
	}

	if found, err := c.lookPath("pandoc"); err == nil {
		c.binary = found
		return c.binary, nil
	}

	cached := c.cachedBinary()
	if _, err := os.Stat(cached); err == nil {
		c.binary = cached
		return c.binary, nil
	}

	if err := c.download(ctx, cached); err != nil {
		return "", err
	}
	c.binary = cached
	return c.binary, nil
}

func (c *Converter) cachedBinary() string {
	name := "pandoc"
	if c.goos == "windows" {
		name = "pandoc.exe"
	}
	return filepath.Join(c.cfg.CacheDir, c.cfg.Version, name)
}

// assetName is the release archive for the host platform.
func (c *Converter) assetName() (string, error) {
	v := c.cfg.Version
	switch c.goos + "/" + c.goarch {
	case "linux/amd64":
		return fmt.Sprintf("pandoc-%s-linux-amd64.tar.gz", v), nil
	case "linux/arm64":
		return fmt.Sprintf("pandoc-%s-linux-arm64.tar.gz", v), nil
	case "darwin/amd64":
		return fmt.Sprintf("pandoc-%s-x86_64-macOS.zip", v), nil
	case "darwin/arm64":
		return fmt.Sprintf("pandoc-%s-arm64-macOS.zip", v), nil
	case "windows/amd64":
		return fmt.Sprintf("pandoc-%s-windows-x86_64.zip", v), nil
	}
	return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, c.goos, c.goarch)
}

func (c *Converter) download(ctx context.Context, dest string) error {
	asset, err := c.assetName()
	if err != nil {
		return err
	}
	url := strings.TrimSuffix(c.cfg.ReleaseURL, "/") + "/" + c.cfg.Version + "/" + asset
	logCtx := slog.With("url", url, "dest", dest)
	logCtx.Info("Pandoc not found, downloading release.")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build pandoc download request: %w", err)
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download pandoc: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download pandoc: status %d from %s", resp.StatusCode, url)
	}
	archive, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read pandoc archive: %w", err)
	}

	var binary []byte
	if strings.HasSuffix(asset, ".zip") {
		binary, err = binaryFromZip(archive)
	} else {
		binary, err = binaryFromTarGz(archive)
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create pandoc cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pandoc-*")
	if err != nil {
		return fmt.Errorf("failed to create pandoc temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(binary); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write pandoc binary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write pandoc binary: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		return fmt.Errorf("failed to mark pandoc executable: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to install pandoc binary: %w", err)
	}
	logCtx.Info("Pandoc installed.", "bytes", len(binary))
	return nil
}

func isPandocEntry(name string) bool {
	base := path.Base(name)
	return base == "pandoc" || base == "pandoc.exe"
}

func binaryFromTarGz(archive []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("failed to open pandoc archive: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, ErrBinaryNotInArchive
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read pandoc archive: %w", err)
		}
		if hdr.Typeflag == tar.TypeReg && isPandocEntry(hdr.Name) {
			return io.ReadAll(tr)
		}
	}
}

func binaryFromZip(archive []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pandoc archive: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isPandocEntry(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in pandoc archive: %w", f.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, ErrBinaryNotInArchive
}
