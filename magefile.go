//go:build mage

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target executed when none is specified.
var Default = CI

// CI runs the standard pipeline: format, lint, test, build.
func CI() {
	mg.SerialDeps(Format, Lint, Test, Build)
}

// Format updates Go sources using gofmt.
func Format() error {
	return sh.RunV("go", "fmt", "./...")
}

// Lint executes go vet to perform static analysis.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Test runs the full Go test suite.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Build compiles all packages and produces the trisk binary with the
// version stamped from the nearest git tag.
func Build() error {
	if err := sh.RunV("go", "build", "./..."); err != nil {
		return err
	}

	ldflags := fmt.Sprintf("-X main.version=%s", resolveVersion())
	return sh.RunV("go", "build", "-ldflags", ldflags, "-o", "trisk", "./cmd/trisk")
}

// resolveVersion derives a version string from git state: the nearest tag,
// suffixed -dirty when the tree has uncommitted changes or HEAD is not the
// tagged commit.
func resolveVersion() string {
	tag, err := sh.Output("git", "describe", "--tags", "--abbrev=0")
	if err != nil || strings.TrimSpace(tag) == "" {
		return "v0.0.0"
	}
	tag = strings.TrimSpace(tag)

	status, err := sh.Output("git", "status", "--porcelain")
	if err == nil && strings.TrimSpace(status) != "" {
		return tag + "-dirty"
	}

	if err := sh.Run("git", "describe", "--tags", "--exact-match"); err != nil {
		return tag + "-dirty"
	}
	return tag
}
