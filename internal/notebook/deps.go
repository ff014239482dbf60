package notebook

import (
	"regexp"
	"sort"
)

// Import statement heads: `import X` and `from X import ...`. This is a
// line-prefix scan, not a parse — indented and string-embedded matches
// count too, which is a documented limitation.
var importRe = regexp.MustCompile(`(?m)^(?:import|from)\s+(\w+)`)

// importToPackage maps import names to their installable (PyPI) package
// names where the two differ. Unmapped names pass through unchanged.
var importToPackage = map[string]string{
	"cv2":      "opencv-python",
	"PIL":      "Pillow",
	"sklearn":  "scikit-learn",
	"skimage":  "scikit-image",
	"attr":     "attrs",
	"yaml":     "pyyaml",
	"bs4":      "beautifulsoup4",
	"gi":       "PyGObject",
	"wx":       "wxPython",
	"Crypto":   "pycryptodome",
	"serial":   "pyserial",
	"usb":      "pyusb",
	"Bio":      "biopython",
	"cv":       "opencv-python",
	"dotenv":   "python-dotenv",
	"jose":     "python-jose",
	"magic":    "python-magic",
	"dateutil": "python-dateutil",
	"git":      "GitPython",
}

// ResolverConfig holds the lookup tables dependency inference runs against:
// the standard-library filter set and the import-name/package-name alias
// table. The tables are explicit, pinned data handed to the resolver, never
// queried from a live Python runtime.
type ResolverConfig struct {
	Stdlib  map[string]bool
	Aliases map[string]string
}

// DefaultResolverConfig returns the pinned tables: the CPython 3.12 stdlib
// manifest and the known import/package name mismatches.
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{Stdlib: stdlibModules, Aliases: importToPackage}
}

// DetectThirdPartyImports scans source text with the default pinned tables.
func DetectThirdPartyImports(source string) []string {
	return DefaultResolverConfig().Detect(source)
}

// Detect scans source text for imported modules, drops names in the stdlib
// set, and translates known import-name/package-name mismatches. The result
// is sorted and deduplicated so identical input always yields identical
// output.
func (c ResolverConfig) Detect(source string) []string {
	found := make(map[string]bool)
	for _, m := range importRe.FindAllStringSubmatch(source, -1) {
		found[m[1]] = true
	}

	seen := make(map[string]bool)
	var pkgs []string
	for mod := range found {
		if c.Stdlib[mod] {
			continue
		}
		pkg := mod
		if mapped, ok := c.Aliases[mod]; ok {
			pkg = mapped
		}
		if !seen[pkg] {
			seen[pkg] = true
			pkgs = append(pkgs, pkg)
		}
	}

	sort.Strings(pkgs)
	return pkgs
}
