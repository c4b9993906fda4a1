// Command schema-gen writes the config JSON Schema to a directory, schema/ by
// default.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/fsutil"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/schema"
)

func main() {
	outDir := "schema"
	if len(os.Args) > 1 {
		outDir = os.Args[1]
	}

	path, err := write(outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(path)
}

func write(outDir string) (string, error) {
	data, err := schema.GenerateJSON(true)
	if err != nil {
		return "", err
	}

	path := filepath.Join(filepath.Clean(outDir), schema.FileName)

	return path, fsutil.WriteFileAtomic(path, data)
}
