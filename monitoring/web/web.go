// Package web holds the dashboard page served by the monitor.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"runtime"
	"strings"
)

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the dashboard files. When OSIM_MONITOR_DEV is set, the
// files are read from the source tree so that the page can be edited without
// rebuilding.
func GetAssets() http.FileSystem {
	if isDevelopmentMode() {
		_, assetPath, _, ok := runtime.Caller(0)
		if !ok {
			panic("error getting path")
		}

		assetPath = path.Join(path.Dir(assetPath), "dist")

		fmt.Fprintf(os.Stderr, "Serving dashboard from %s\n", assetPath)

		return http.Dir(assetPath)
	}

	subFS, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(subFS)
}

func isDevelopmentMode() bool {
	v, ok := os.LookupEnv("OSIM_MONITOR_DEV")
	if !ok {
		return false
	}

	return strings.ToLower(v) == "true" || v == "1"
}
