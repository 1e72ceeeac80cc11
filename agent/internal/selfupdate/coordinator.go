// Package selfupdate replaces the running agent binary with a newer release.
// The agent downloads the new build beside itself and hands off to a helper
// process that swaps the files once the agent has exited.
package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"patchpilot/agent/internal/logger"
	"patchpilot/network"
)

// ErrUpToDate is returned by Run when the latest release is already running.
var ErrUpToDate = errors.New("agent is up to date")

type Asset struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
}

// Release is the subset of a GitHub-style release document the agent reads.
type Release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// Coordinator checks for, downloads and hands off a new agent build.
type Coordinator struct {
	ReleaseURL string
	AssetName  string
	HelperPath string
	Version    string
	HTTP       *http.Client

	Executable func() (string, error)
	// Launch starts the helper detached; its exit status is never awaited.
	Launch func(helper string, args ...string) error
	Exit   func(code int)
}

func NewCoordinator(releaseURL, assetName, helperPath, version string) *Coordinator {
	if assetName == "" {
		assetName = DefaultAssetName()
	}
	return &Coordinator{
		ReleaseURL: releaseURL,
		AssetName:  assetName,
		HelperPath: helperPath,
		Version:    version,
		HTTP:       &http.Client{},
		Executable: os.Executable,
		Launch:     startDetached,
		Exit:       os.Exit,
	}
}

// DefaultAssetName is the release asset built for this platform.
func DefaultAssetName() string {
	name := fmt.Sprintf("patchpilot-agent-%s-%s", runtime.GOOS, runtime.GOARCH)
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return name
}

// Latest fetches the release document.
func (c *Coordinator) Latest(ctx context.Context) (Release, error) {
	var rel Release
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ReleaseURL, nil)
	if err != nil {
		return rel, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return rel, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return rel, fmt.Errorf("release lookup: status %d", resp.StatusCode)
	}
	if err := network.JSON.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return rel, fmt.Errorf("decode release: %w", err)
	}
	return rel, nil
}

// Run performs one update cycle. On success it launches the helper and calls
// Exit(0), so it only returns on ErrUpToDate or a failure before the handoff.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.ReleaseURL == "" {
		return errors.New("no release url configured")
	}
	rel, err := c.Latest(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rel.TagName) == c.Version {
		return ErrUpToDate
	}

	var asset *Asset
	for i := range rel.Assets {
		if rel.Assets[i].Name == c.AssetName {
			asset = &rel.Assets[i]
			break
		}
	}
	if asset == nil {
		return fmt.Errorf("release %s has no asset %s", rel.TagName, c.AssetName)
	}

	exe, err := c.Executable()
	if err != nil {
		return fmt.Errorf("locate running binary: %w", err)
	}
	newPath := exe + ".new"
	logger.Infof("Downloading agent %s (running %s) to %s", rel.TagName, c.Version, newPath)
	if err := c.download(ctx, asset.URL, newPath); err != nil {
		_ = os.Remove(newPath)
		return err
	}

	if fi, err := os.Stat(c.HelperPath); err != nil || fi.IsDir() {
		return fmt.Errorf("update helper missing at %s", c.HelperPath)
	}
	if err := c.Launch(c.HelperPath, exe, newPath); err != nil {
		return fmt.Errorf("launch update helper: %w", err)
	}
	logger.Infof("Update helper started, exiting for swap to %s", rel.TagName)
	c.Exit(0)
	return nil
}

func (c *Coordinator) download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download: status %d", resp.StatusCode)
	}
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("download: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, 0o755)
}

func startDetached(path string, args ...string) error {
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
