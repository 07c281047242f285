package platform

import (
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
)

type Family int

const (
	Unsupported Family = iota
	LinuxArch
	LinuxDebian
	MacOS
	Windows
)

var familyNames = map[Family]string{
	Unsupported: "unsupported",
	LinuxArch:   "linux-arch",
	LinuxDebian: "linux-debian",
	MacOS:       "macos",
	Windows:     "windows",
}

func (f Family) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}

	return fmt.Sprintf("family(%d)", int(f))
}

// ParseFamily accepts the names produced by Family.String.
func ParseFamily(s string) (Family, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	for f, name := range familyNames {
		if name == s {
			return f, nil
		}
	}

	return Unsupported, fmt.Errorf("unknown platform family: %s", s)
}

// Profile is derived once per run and passed by value.
type Profile struct {
	Family         Family
	PackageManager string
	Packages       []string

	// Guessed is set when no marker matched and the Debian strategy was
	// chosen as the fallback.
	Guessed bool
	Reason  string
}

func (p Profile) Supported() bool {
	return p.Family != Unsupported
}

type UnsupportedError struct {
	Profile Profile
}

func (e *UnsupportedError) Error() string {
	if e.Profile.Reason != "" {
		return fmt.Sprintf("unsupported platform: %s (%s)", e.Profile.Family, e.Profile.Reason)
	}

	return fmt.Sprintf("unsupported platform: %s", e.Profile.Family)
}

type strategy struct {
	manager  string
	packages []string
}

var strategies = map[Family]strategy{
	LinuxArch:   {"pacman", []string{"ffmpeg", "python-pip", "tk"}},
	LinuxDebian: {"apt", []string{"ffmpeg", "python3-pip", "python3-tk"}},
	MacOS:       {"brew", []string{"ffmpeg", "python", "tk"}},
	Windows:     {"pip", []string{"tkinter"}},
}

// ForFamily builds the profile for a family without looking at the host.
func ForFamily(f Family, reason string) Profile {
	p := Profile{Family: f, Reason: reason}

	if s, ok := strategies[f]; ok {
		p.PackageManager = s.manager
		p.Packages = append([]string(nil), s.packages...)
	}

	return p
}

const (
	archRelease = "etc/arch-release"
	osRelease   = "etc/os-release"
)

var archMarkers = []string{"arch", "endeavouros", "manjaro"}

type Detector struct {
	GOOS string

	// FS is rooted at the host's filesystem root.
	FS fs.FS
}

func NewDetector() *Detector {
	return &Detector{
		GOOS: runtime.GOOS,
		FS:   os.DirFS("/"),
	}
}

func (d *Detector) Detect() Profile {
	switch d.GOOS {
	case "linux":
		return d.detectLinux()
	case "darwin":
		return ForFamily(MacOS, "darwin")
	case "windows":
		return ForFamily(Windows, "windows")
	default:
		return ForFamily(Unsupported, d.GOOS)
	}
}

func (d *Detector) detectLinux() Profile {
	if d.FS == nil {
		p := ForFamily(LinuxDebian, "no filesystem to inspect")
		p.Guessed = true
		return p
	}

	if _, err := fs.Stat(d.FS, archRelease); err == nil {
		return ForFamily(LinuxArch, "/"+archRelease)
	}

	data, err := fs.ReadFile(d.FS, osRelease)
	if err == nil {
		content := strings.ToLower(string(data))

		for _, m := range archMarkers {
			if strings.Contains(content, m) {
				return ForFamily(LinuxArch, "os-release mentions "+m)
			}
		}
	}

	p := ForFamily(LinuxDebian, "no arch markers found, assuming debian")
	p.Guessed = true

	return p
}
