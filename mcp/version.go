// Package mcp negotiates the Model Context Protocol revision spoken with a
// client.
package mcp

import (
	"fmt"
	"strings"

	"github.com/localrivet/currentdt/protocol"
)

// Known MCP specification versions
const (
	Version20241105 = protocol.OldProtocolVersion
	Version20250326 = protocol.CurrentProtocolVersion
)

// SupportedVersions is a list of all supported MCP specification versions in order of preference (newest first)
var SupportedVersions = []string{
	Version20250326,
	Version20241105,
}

// VersionDetector negotiates MCP versions
type VersionDetector struct {
	DefaultVersion string   // Version answered when the client's is unknown
	Supported      []string // Supported versions in order of preference (newest first)
}

// NewVersionDetector creates a new version detector with default settings
func NewVersionDetector() *VersionDetector {
	return &VersionDetector{
		DefaultVersion: SupportedVersions[0],
		Supported:      SupportedVersions,
	}
}

// ValidateVersion checks if a version is supported and returns a normalized version string
func (d *VersionDetector) ValidateVersion(version string) (string, error) {
	normalized := NormalizeVersion(version)
	for _, supported := range d.Supported {
		if NormalizeVersion(supported) == normalized {
			return supported, nil
		}
	}
	return "", fmt.Errorf("unsupported version: %s", version)
}

// Negotiate picks the version to answer an initialize request with: the
// client's version when supported, otherwise the default.
func (d *VersionDetector) Negotiate(requested string) string {
	if v, err := d.ValidateVersion(requested); err == nil {
		return v
	}
	return d.DefaultVersion
}

// NormalizeVersion normalizes a version string for comparison
func NormalizeVersion(version string) string {
	version = strings.ToLower(strings.TrimSpace(version))
	version = strings.TrimPrefix(version, "v")

	switch version {
	case "latest", "current", "stable":
		return NormalizeVersion(SupportedVersions[0])
	}
	return version
}

// IsVersionCompatible checks if two versions are compatible
func (d *VersionDetector) IsVersionCompatible(v1, v2 string) bool {
	return NormalizeVersion(v1) == NormalizeVersion(v2)
}
