package core

import (
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Round2 rounds `f` half-up to 2 decimal places.
func Round2(f float64) float64 {
	// absorb float noise such as 4.1*100 = 409.99999999999994
	return math.Floor(f*100+0.5+1e-9) / 100
}

// Getwd tries to find the project root: the closest parent directory holding a go.mod file.
// go test changes the working directory to the package being tested, hence the walk up.
// Falls back to the current working directory (e.g. when running a built binary).
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
