package staging

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/casper-network/casper-node-launcher/internal/netcfg"
)

var (
	ErrPathNotFound   = errors.New("staging: required root directory not found")
	ErrPathConflict   = errors.New("staging: version directory already exists")
	ErrFetchFailure   = errors.New("staging: archive download failed")
	ErrExtractFailure = errors.New("staging: archive extraction failed")
)

const configArchive = "config.tar.gz"

// Fetcher downloads and unpacks the config and binary archives for one
// protocol version. Completed downloads can take a while, so only the
// response headers are held to a deadline.
type Fetcher struct {
	layout Layout
	client *http.Client
}

func NewFetcher(layout Layout) *Fetcher {
	return &Fetcher{
		layout: layout,
		client: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: 5 * time.Second},
		},
	}
}

// BinArchiveName computes which binary archive a node pulls. One config.tar.gz
// is published per version but several bin archives: bin.tar.gz is the
// mainnet debian build, a platform tag selects alternative builds and the
// "new" tag selects builds for networks launched after mainnet.
func BinArchiveName(platform, binMode string) string {
	name := "bin"
	if platform != defaultPlatform {
		name += "_" + platform
	}
	if binMode != "mainnet" {
		name += "_new"
	}
	return name + ".tar.gz"
}

// Fetch stages the archives for version: config first, then binary. Each
// archive is downloaded to a scratch file in its root, extracted into the
// version directory, then deleted. Pre-existing version directories abort
// with ErrPathConflict so partially staged state is never clobbered.
func (f *Fetcher) Fetch(version string, cfg netcfg.NetworkConfig, platform string) error {
	if !exists(f.layout.BinRoot) {
		return fmt.Errorf("%w: %s", ErrPathNotFound, f.layout.BinRoot)
	}
	if !exists(f.layout.ConfigRoot) {
		return fmt.Errorf("%w: %s", ErrPathNotFound, f.layout.ConfigRoot)
	}

	configDir := f.layout.VersionConfigDir(version)
	binDir := f.layout.VersionBinDir(version)
	if exists(configDir) {
		return fmt.Errorf("%w: %s", ErrPathConflict, configDir)
	}
	if exists(binDir) {
		return fmt.Errorf("%w: %s", ErrPathConflict, binDir)
	}

	binArchive := BinArchiveName(platform, cfg.BinMode)
	log.Info().Str("version", version).Str("bin_archive", binArchive).Msg("pulling protocol version")

	baseURL := fmt.Sprintf("%s/%s", cfg.NetworkURL(), version)
	if err := f.stageArchive(baseURL+"/"+configArchive, filepath.Join(f.layout.ConfigRoot, configArchive), configDir); err != nil {
		return err
	}
	return f.stageArchive(baseURL+"/"+binArchive, filepath.Join(f.layout.BinRoot, binArchive), binDir)
}

// stageArchive runs the download / extract / cleanup sequence for one archive.
func (f *Fetcher) stageArchive(url, scratchPath, targetDir string) error {
	if err := f.download(url, scratchPath); err != nil {
		return err
	}
	defer os.Remove(scratchPath)

	log.Info().Str("archive", scratchPath).Str("target", targetDir).Msg("extracting")
	if err := extractTarGz(scratchPath, targetDir); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrExtractFailure, scratchPath, err)
	}
	return nil
}

func (f *Fetcher) download(url, targetPath string) error {
	log.Info().Str("url", url).Str("target", targetPath).Msg("downloading")
	resp, err := f.client.Get(url)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFetchFailure, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrFetchFailure, url, resp.StatusCode)
	}
	out, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFetchFailure, targetPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFetchFailure, url, err)
	}
	return nil
}

// extractTarGz unpacks every entry beneath targetDir, preserving the
// archive's internal directory structure. Entries escaping targetDir are
// rejected.
func extractTarGz(archivePath, targetDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target := filepath.Join(targetDir, hdr.Name)
		if !strings.HasPrefix(target, filepath.Clean(targetDir)+string(os.PathSeparator)) &&
			target != filepath.Clean(targetDir) {
			return fmt.Errorf("entry %q escapes target directory", hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		default:
			// Archives ship plain files, directories and the odd symlink.
			return fmt.Errorf("unsupported entry type %d for %q", hdr.Typeflag, hdr.Name)
		}
	}
}
