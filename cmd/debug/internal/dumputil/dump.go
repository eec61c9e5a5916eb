// Package dumputil has helpers shared by debug dump tools.
package dumputil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputPath returns name of the dump file placed next to input or into
// outDir when it is set.
func OutputPath(inPath, outDir, suffix string) string {
	base := filepath.Base(inPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := filepath.Dir(inPath)
	if outDir != "" {
		dir = outDir
	}
	return filepath.Join(dir, stem+suffix)
}

// WriteOutput writes dump file, existing file is only replaced when overwrite
// is set.
func WriteOutput(inPath, outDir, suffix string, data []byte, overwrite bool) error {
	outPath := OutputPath(inPath, outDir, suffix)

	if _, err := os.Stat(outPath); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s (use -overwrite)", outPath)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", outPath)
	return nil
}
