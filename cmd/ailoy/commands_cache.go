package main

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ailoy-go/ailoy/internal/assetcache"
)

// newListCmd implements `list`: enumerate cached model directories and
// sizes under the cache root.
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached model directories and their size on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := assetcache.New()
			entries, err := os.ReadDir(c.Root())
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "cache is empty:", c.Root())
					return nil
				}
				return err
			}

			type row struct {
				name  string
				bytes int64
			}
			rows := make([]row, 0, len(entries))
			for _, e := range entries {
				if !e.IsDir() {
					continue
				}
				size, err := dirSize(filepath.Join(c.Root(), e.Name()))
				if err != nil {
					return err
				}
				rows = append(rows, row{name: e.Name(), bytes: size})
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

			for _, r := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "%-48s %10s\n", r.name, humanBytes(r.bytes))
			}
			return nil
		},
	}
}

// newRemoveCmd implements `remove <org/model>`: delete every cache
// directory whose name has the dirname prefix `<org>--<model>` (the
// model-specific and any platform/accelerator-suffixed variants).
func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <org/model>",
		Short: "Delete all cache directories for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := assetcache.New()
			prefix := assetcache.DirnameForModelKey(args[0])

			entries, err := os.ReadDir(c.Root())
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}

			removed := 0
			for _, e := range entries {
				if !e.IsDir() {
					continue
				}
				if e.Name() != prefix && !strings.HasPrefix(e.Name(), prefix+"--") {
					continue
				}
				if err := os.RemoveAll(filepath.Join(c.Root(), e.Name())); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "removed", e.Name())
				removed++
			}
			if removed == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no cache directories matched", args[0])
			}
			return nil
		},
	}
}

// newUploadCmd implements `upload <path> [--to-local-path P]`: produce a
// content-addressed mirror of every file directly under path plus the
// `_manifest.json` that describes it. S3 upload is not offered here; see
// DESIGN.md for why.
func newUploadCmd() *cobra.Command {
	var toLocalPath string

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Mirror a directory of files into a content-addressed layout with a manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if toLocalPath == "" {
				return fmt.Errorf("--to-local-path is required")
			}
			srcDir := args[0]
			dirname := filepath.Base(filepath.Clean(srcDir))
			destDir := filepath.Join(toLocalPath, dirname)
			if err := os.MkdirAll(destDir, 0o755); err != nil {
				return err
			}

			entries, err := os.ReadDir(srcDir)
			if err != nil {
				return err
			}

			files := make(map[string]assetcache.FileManifest)
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				data, err := os.ReadFile(filepath.Join(srcDir, e.Name()))
				if err != nil {
					return err
				}
				sum := sha1.Sum(data)
				digest := hex.EncodeToString(sum[:])
				size := int64(len(data))
				files[e.Name()] = assetcache.FileManifest{SHA1: digest, Size: &size}

				if err := os.WriteFile(filepath.Join(destDir, digest), data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s -> %s/%s\n", e.Name(), dirname, digest)
			}

			manifest := struct {
				Files map[string]assetcache.FileManifest `json:"files"`
			}{Files: files}
			manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
			if err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(destDir, "_manifest.json"), manifestJSON, 0o644)
		},
	}
	cmd.Flags().StringVar(&toLocalPath, "to-local-path", "", "local directory to mirror the content-addressed layout into")
	return cmd
}

// newDownloadCmd implements `download <org/model>`: resolve the common
// dirname (and, if given, a platform/accelerator-suffixed variant), then
// fetch every file the manifest declares through Cache.Get, reporting a
// one-line progress bar per file.
func newDownloadCmd() *cobra.Command {
	var platform, device, version string

	cmd := &cobra.Command{
		Use:   "download <org/model>",
		Short: "Fetch every cached file for a model from the remote cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := assetcache.New()

			dirnames := []string{assetcache.DirnameForModelKey(args[0])}
			if platform != "" || device != "" {
				dirnames = append(dirnames, assetcache.DirnameForModelVariant(args[0], platform, device))
			}

			for _, dirname := range dirnames {
				entries, err := c.ManifestEntries(ctx, dirname)
				if err != nil {
					return fmt.Errorf("download %s: %w", dirname, err)
				}
				for i, entry := range entries {
					if _, err := c.Get(ctx, entry); err != nil {
						return fmt.Errorf("download %s: %w", entry, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s\n", i+1, len(entries), entry)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "platform triple for an accelerator-specific variant")
	cmd.Flags().StringVar(&device, "device", "", "accelerator name for an accelerator-specific variant")
	cmd.Flags().StringVar(&version, "ailoy-version", "", "client version (accepted but not applied: versioned manifest entries are not filtered)")
	return cmd
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
