package native

import (
	"runtime"
	"strconv"
	"strings"

	"facter/internal/domain"
)

// osFamilies maps os-release IDs to their family
var osFamilies = map[string]string{
	"debian":      "Debian",
	"ubuntu":      "Debian",
	"linuxmint":   "Debian",
	"raspbian":    "Debian",
	"rhel":        "RedHat",
	"centos":      "RedHat",
	"fedora":      "RedHat",
	"rocky":       "RedHat",
	"almalinux":   "RedHat",
	"amzn":        "RedHat",
	"ol":          "RedHat",
	"sles":        "Suse",
	"opensuse":    "Suse",
	"arch":        "Archlinux",
	"manjaro":     "Archlinux",
	"alpine":      "Alpine",
	"gentoo":      "Gentoo",
	"void":        "Void",
	"nixos":       "NixOS",
	"photon":      "VMware Photon OS",
	"clear-linux": "Clear Linux OS",
}

// parseOSRelease reads KEY=value lines of an os-release file
func parseOSRelease(content string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if unq, err := strconv.Unquote(value); err == nil {
			value = unq
		} else {
			value = strings.Trim(value, `"'`)
		}
		out[key] = value
	}
	return out
}

// releaseMap splits a version string into full, major and minor
func releaseMap(full string) *domain.Map {
	m := domain.NewMap()
	if full == "" {
		return m
	}
	m.Set("full", domain.String(full))
	parts := strings.SplitN(full, ".", 3)
	m.Set("major", domain.String(parts[0]))
	if len(parts) > 1 {
		m.Set("minor", domain.String(parts[1]))
	}
	return m
}

func resolveOS(p *Provider, fs *domain.FactSet) {
	osm := domain.NewMap()
	osm.Set("architecture", domain.String(runtime.GOARCH))
	osm.Set("hardware", domain.String(hardwareModel(runtime.GOARCH)))

	name := capitalize(runtime.GOOS)
	family := name
	var release string

	content := p.readFile("/etc/os-release")
	if content == "" {
		content = p.readFile("/usr/lib/os-release")
	}
	if content != "" {
		rel := parseOSRelease(content)
		if id := rel["ID"]; id != "" {
			name = osName(id, rel["NAME"])
			family = osFamily(id, rel["ID_LIKE"], name)
		}
		release = rel["VERSION_ID"]

		distro := domain.NewMap()
		putString(distro, "id", rel["ID"])
		putString(distro, "codename", rel["VERSION_CODENAME"])
		putString(distro, "description", rel["PRETTY_NAME"])
		if release != "" {
			distro.Set("release", releaseMap(release))
		}
		if distro.Len() > 0 {
			osm.Set("distro", distro)
		}
	}

	osm.Set("name", domain.String(name))
	osm.Set("family", domain.String(family))
	if release != "" {
		osm.Set("release", releaseMap(release))
	}

	fs.Set("os", osm)
}

func osName(id, prettyName string) string {
	switch id {
	case "rhel":
		return "RedHat"
	case "amzn":
		return "Amazon"
	case "ol":
		return "OracleLinux"
	case "sles":
		return "SLES"
	case "opensuse", "opensuse-leap", "opensuse-tumbleweed":
		return "OpenSuSE"
	case "almalinux":
		return "AlmaLinux"
	}
	if prettyName != "" && !strings.Contains(prettyName, " ") {
		return prettyName
	}
	return capitalize(id)
}

func osFamily(id, idLike, name string) string {
	if f, ok := osFamilies[id]; ok {
		return f
	}
	for _, like := range strings.Fields(idLike) {
		if f, ok := osFamilies[like]; ok {
			return f
		}
	}
	return name
}

func hardwareModel(arch string) string {
	switch arch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		return "aarch64"
	default:
		return arch
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func resolveKernel(p *Provider, fs *domain.FactSet) {
	fs.Set("kernel", domain.String(capitalize(runtime.GOOS)))

	release := p.readFile("/proc/sys/kernel/osrelease")
	if release == "" {
		return
	}
	fs.Set("kernelrelease", domain.String(release))

	// "6.1.0-13-amd64" has version "6.1.0" and major version "6.1"
	version, _, _ := strings.Cut(release, "-")
	fs.Set("kernelversion", domain.String(version))
	parts := strings.SplitN(version, ".", 3)
	if len(parts) >= 2 {
		fs.Set("kernelmajversion", domain.String(parts[0]+"."+parts[1]))
	} else {
		fs.Set("kernelmajversion", domain.String(version))
	}
}
