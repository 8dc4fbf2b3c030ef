// lockfile.go parses the dependency lockfile and content-addresses it.
//
// The lockfile digest is the backbone of reproducible builds: the image
// tag is derived from it, so two builds against byte-identical
// lockfiles produce the same tag, and a changed lockfile can never be
// mistaken for the previous dependency set.
package buildspec

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/zeebo/blake3"

	"github.com/saultyevil/markovbotctl/internal/model"
)

// LockedPackage is a single pinned dependency from the lockfile.
type LockedPackage struct {
	// Name is the package name as declared in the lockfile.
	Name string `toml:"name"`

	// Version is the exact pinned version. Constraint expressions
	// (^, ~, ranges, wildcards) are rejected during parsing.
	Version string `toml:"version"`

	// Optional marks packages that are only installed for optional
	// dependency groups.
	Optional bool `toml:"optional"`
}

// LockfileSummary is the parsed and content-addressed view of a
// lockfile.
type LockfileSummary struct {
	// Path is the lockfile path that was read.
	Path string

	// Packages lists every pinned dependency in lockfile order.
	Packages []LockedPackage

	// PythonVersions is the interpreter constraint recorded in the
	// lockfile metadata.
	PythonVersions string

	// ContentHash is the dependency manager's own hash of the manifest
	// content, carried through for drift reporting.
	ContentHash string

	// Digest is the hex BLAKE3 digest of the raw lockfile bytes.
	Digest string
}

// lockFile mirrors the TOML structure of a poetry.lock file. Only the
// sections this tool reads are declared; everything else is ignored.
type lockFile struct {
	Package  []LockedPackage `toml:"package"`
	Metadata lockMetadata    `toml:"metadata"`
}

type lockMetadata struct {
	LockVersion    string `toml:"lock-version"`
	PythonVersions string `toml:"python-versions"`
	ContentHash    string `toml:"content-hash"`
}

// versionConstraintChars are characters that indicate a version
// constraint rather than an exact pin.
const versionConstraintChars = "^~<>*= "

// ParseLockfile reads and parses the lockfile in the given build
// context, returning the pinned package summary and content digest.
//
// Every package must carry an exact version: lockfiles exist to make
// dependency resolution deterministic, and a constraint in one would
// mean the dependency manager could resolve differently between
// builds.
func ParseLockfile(contextDir string, lockfileName string) (*LockfileSummary, error) {
	lockPath := filepath.Join(contextDir, lockfileName)

	data, err := os.ReadFile(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitLockfileMissing,
				fmt.Sprintf("lockfile not found: %s", lockPath),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read lockfile %s: %w", lockPath, err)
	}

	var lock lockFile
	if err := toml.Unmarshal(data, &lock); err != nil {
		return nil, model.WrapCLIError(
			model.ExitLockfileMissing,
			fmt.Sprintf("failed to parse lockfile %s", lockPath),
			err,
		)
	}

	for _, pkg := range lock.Package {
		if err := validatePin(pkg); err != nil {
			return nil, model.WrapCLIError(
				model.ExitLockfileMissing,
				fmt.Sprintf("lockfile %s is not fully pinned", lockPath),
				err,
			)
		}
	}

	return &LockfileSummary{
		Path:           lockPath,
		Packages:       lock.Package,
		PythonVersions: lock.Metadata.PythonVersions,
		ContentHash:    lock.Metadata.ContentHash,
		Digest:         DigestBytes(data),
	}, nil
}

// validatePin checks that a locked package carries an exact version.
func validatePin(pkg LockedPackage) error {
	if pkg.Name == "" {
		return fmt.Errorf("package entry with empty name")
	}
	if pkg.Version == "" {
		return fmt.Errorf("package %q has no pinned version", pkg.Name)
	}
	if strings.ContainsAny(pkg.Version, versionConstraintChars) {
		return fmt.Errorf("package %q version %q is a constraint, not an exact pin", pkg.Name, pkg.Version)
	}
	return nil
}

// DigestBytes returns the hex BLAKE3 digest of the given bytes.
func DigestBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ImageTag derives the image tag for a lockfile digest:
// "<repository>:<first 12 hex of digest>". Twelve hex characters match
// the short-ID convention Docker itself uses for content addresses.
func ImageTag(repository string, digest string) string {
	short := digest
	if len(short) > 12 {
		short = short[:12]
	}
	return fmt.Sprintf("%s:%s", repository, short)
}

// DefaultRepository is the image repository used when none is given.
const DefaultRepository = "markovbot"
