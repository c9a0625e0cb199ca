// Package sysinfo validates the execution environment before any host
// mutation: elevated privileges, a supported Ubuntu release, required host
// binaries, and the interactive account that will receive automation access.
package sysinfo

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// SupportedVersions lists the Ubuntu LTS releases this tool targets.
var SupportedVersions = []string{"20.04", "22.04", "24.04"}

// RequiredTools are host binaries the pipeline shells out to. They ship with
// every supported Ubuntu release, so a missing one means a broken base image.
var RequiredTools = []string{"ip", "apt-get", "systemctl"}

// Function variables swapped in tests.
var (
	geteuid    = os.Geteuid
	readFile   = os.ReadFile
	lookPath   = exec.LookPath
	getenv     = os.Getenv
	statHome   = os.Stat
	passwdPath = "/etc/passwd"
)

// RequireRoot fails unless the process runs with elevated privileges.
func RequireRoot() error {
	if geteuid() != 0 {
		return fmt.Errorf("this tool must run as root (use sudo)")
	}
	return nil
}

// OSRelease holds the fields of /etc/os-release this tool cares about.
type OSRelease struct {
	ID        string
	VersionID string
}

// ReadOSRelease reads and parses /etc/os-release.
func ReadOSRelease() (*OSRelease, error) {
	data, err := readFile("/etc/os-release")
	if err != nil {
		return nil, fmt.Errorf("read /etc/os-release: %w", err)
	}
	return ParseOSRelease(string(data)), nil
}

// ParseOSRelease parses os-release key=value content. Values may be quoted.
func ParseOSRelease(content string) *OSRelease {
	rel := &OSRelease{}
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "ID":
			rel.ID = value
		case "VERSION_ID":
			rel.VersionID = value
		}
	}
	return rel
}

// CheckSupported fails unless the release is a supported Ubuntu version.
func CheckSupported(rel *OSRelease) error {
	if rel.ID != "ubuntu" {
		return fmt.Errorf("unsupported distribution %q (only ubuntu is supported)", rel.ID)
	}
	for _, v := range SupportedVersions {
		if rel.VersionID == v {
			return nil
		}
	}
	return fmt.Errorf("unsupported ubuntu version %q (supported: %s)",
		rel.VersionID, strings.Join(SupportedVersions, ", "))
}

// CheckTools verifies required host binaries are on PATH.
func CheckTools() error {
	var missing []string
	for _, tool := range RequiredTools {
		if _, err := lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required host tools: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Interactive account UIDs per login.defs convention.
const (
	minInteractiveUID = 1000
	maxInteractiveUID = 65533
)

// SystemUser identifies the account that will receive automation access:
// the user who invoked sudo, or, when running directly as root, the first
// interactive account in /etc/passwd with an existing home directory.
func SystemUser() (string, error) {
	if u := getenv("SUDO_USER"); u != "" && u != "root" {
		return u, nil
	}

	data, err := readFile(passwdPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", passwdPath, err)
	}
	user := firstInteractiveUser(string(data))
	if user == "" {
		return "", fmt.Errorf("no interactive user account found; create one before running this tool")
	}
	return user, nil
}

// firstInteractiveUser scans passwd content for the first account with a UID
// in the conventional interactive range and a home directory that exists.
func firstInteractiveUser(passwd string) string {
	scanner := bufio.NewScanner(strings.NewReader(passwd))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ":")
		if len(fields) < 6 {
			continue
		}
		uid, err := strconv.Atoi(fields[2])
		if err != nil || uid < minInteractiveUID || uid > maxInteractiveUID {
			continue
		}
		if info, err := statHome(fields[5]); err != nil || !info.IsDir() {
			continue
		}
		return fields[0]
	}
	return ""
}
