// Package deps probes the external binaries the pipeline shells out to so
// missing tools surface at startup rather than deep in a workflow.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency coldvault relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements returns the external tools needed for the given workflow
// inputs. par2 backs redundancy generation and repair; 7z backs extraction of
// foreign formats without a native decoder.
func Requirements(par2Binary, sevenZipBinary string, needRedundancy, needForeignExtract bool) []Requirement {
	reqs := []Requirement{
		{
			Name:        "par2",
			Command:     par2Binary,
			Description: "PAR2 recovery volume generation and repair (par2cmdline)",
			Optional:    !needRedundancy,
		},
		{
			Name:        "7z",
			Command:     sevenZipBinary,
			Description: "extraction of foreign archive formats (7z, rar, ...)",
			Optional:    !needForeignExtract,
		},
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// FirstMissing returns the first required dependency that is unavailable, or
// nil when all required tools resolve.
func FirstMissing(statuses []Status) *Status {
	for i := range statuses {
		if !statuses[i].Optional && !statuses[i].Available {
			return &statuses[i]
		}
	}
	return nil
}
