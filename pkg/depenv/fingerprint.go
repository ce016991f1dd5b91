package depenv

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/uniconv/uniconv/pkg/manifest"
)

// fingerprint hashes a manifest's dependency list (runtime+name+constraint,
// sorted for stability) so a caller can compare it with the value stored in
// deps.json to tell whether a previously installed environment is still
// current without re-invoking pip/npm on every run. Manager itself does not
// compare fingerprints.
func fingerprint(deps []manifest.Dependency) string {
	lines := make([]string, len(deps))
	for i, d := range deps {
		lines[i] = fmt.Sprintf("%s|%s|%s", d.Runtime, d.Name, d.Constraint)
	}
	sort.Strings(lines)

	h := xxhash.New()
	_, _ = h.Write([]byte(strings.Join(lines, "\n")))
	return fmt.Sprintf("%016x", h.Sum64())
}
