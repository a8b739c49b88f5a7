package pkgbuild

import (
	"os"
	"path/filepath"
)

// PackageManager is the Node package-manager dialect used for pack and
// run invocations.
type PackageManager string

const (
	PackageManagerNPM  PackageManager = "npm"
	PackageManagerYarn PackageManager = "yarn"
	PackageManagerPNPM PackageManager = "pnpm"
)

// DetectPackageManager selects the dialect from the lockfile present in
// dir. Exactly one of the three lockfile markers selects its manager;
// with no lockfile the most common dialect (npm) is assumed.
func DetectPackageManager(dir string) PackageManager {
	if fileExists(filepath.Join(dir, "package-lock.json")) {
		return PackageManagerNPM
	}
	if fileExists(filepath.Join(dir, "yarn.lock")) {
		return PackageManagerYarn
	}
	if fileExists(filepath.Join(dir, "pnpm-lock.yaml")) {
		return PackageManagerPNPM
	}
	return PackageManagerNPM
}

// RunnerCommand returns the ephemeral-package-runner invocation for the
// dialect, launching the packed artifact at artifactPath.
func (pm PackageManager) RunnerCommand(artifactPath string) (string, []string) {
	switch pm {
	case PackageManagerYarn:
		return "yarn", []string{"dlx", artifactPath}
	case PackageManagerPNPM:
		return "pnpm", []string{"dlx", artifactPath}
	default:
		return "npx", []string{"-y", artifactPath}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
