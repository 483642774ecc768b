package usecase

import (
	"context"
	"fmt"
)

// FormatSize renders a byte count with binary multiples: "1023 B", "1.50 KB",
// "12.00 MB", "1.00 GB". Values of a terabyte and above stay in GB.
func FormatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes < kb:
		return fmt.Sprintf("%d B", bytes)
	case bytes < mb:
		return fmt.Sprintf("%.2f KB", float64(bytes)/kb)
	case bytes < gb:
		return fmt.Sprintf("%.2f MB", float64(bytes)/mb)
	default:
		return fmt.Sprintf("%.2f GB", float64(bytes)/gb)
	}
}

// treeSize sums regular file sizes under root. Unreadable entries are skipped.
func treeSize(ctx context.Context, fs FileSystemPort, root string) (int64, error) {
	var total int64
	walkErr := fs.Walk(ctx, root, func(path string, info FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil
		}
		if info != nil && info.IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total, walkErr
}

// installationSize measures userdata and addons under sourceRoot, one walk each.
func installationSize(ctx context.Context, fs FileSystemPort, sourceRoot string) (int64, error) {
	var total int64
	for _, dir := range installationDirs {
		root := fs.Join(sourceRoot, dir)
		if _, err := fs.Stat(ctx, root); err != nil {
			if fs.IsNotExist(err) {
				continue
			}
			return total, err
		}
		size, err := treeSize(ctx, fs, root)
		total += size
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
