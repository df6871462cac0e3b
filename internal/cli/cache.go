package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// newCacheCmd creates the cache management command.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}

	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCachePathCmd())

	return cmd
}

// newCacheClearCmd creates the "cache clear" subcommand.
func newCacheClearCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached results",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveCacheDir(dir)
			if err != nil {
				return err
			}

			if _, err := os.Stat(target); os.IsNotExist(err) {
				printInfo("Cache is empty")
				return nil
			}

			count := 0
			err = filepath.Walk(target, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return nil // Skip errors, continue walking
				}
				if path == target {
					return nil
				}
				if !info.IsDir() {
					if err := os.Remove(path); err == nil {
						count++
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			// Clean up empty subdirectories
			_ = filepath.Walk(target, func(path string, info os.FileInfo, err error) error {
				if err != nil || path == target {
					return nil
				}
				if info.IsDir() {
					_ = os.Remove(path)
				}
				return nil
			})

			printSuccess("Cleared %d cached results", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "cache directory (default: user cache dir)")
	return cmd
}

// newCachePathCmd creates the "cache path" subcommand.
func newCachePathCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := resolveCacheDir(dir)
			if err != nil {
				return err
			}
			fmt.Println(target)
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "cache directory (default: user cache dir)")
	return cmd
}

func resolveCacheDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return defaultCacheDir()
}
