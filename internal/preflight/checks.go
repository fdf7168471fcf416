// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"net"
	"os"
	"syscall"
)

// minFileDescriptors is the soft-limit floor below which a busy file
// server starts refusing connections.
const minFileDescriptors = 1024

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(rootDir, listenAddr, adminAddr string) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	rootCheck := checkRootDir(rootDir)
	result.Checks = append(result.Checks, rootCheck)
	if !rootCheck.Passed {
		result.Passed = false
	}

	listenCheck := checkListenAddr("listen_addr", listenAddr)
	result.Checks = append(result.Checks, listenCheck)
	if !listenCheck.Passed {
		result.Passed = false
	}

	if adminAddr != "" {
		adminCheck := checkListenAddr("admin_addr", adminAddr)
		result.Checks = append(result.Checks, adminCheck)
		if !adminCheck.Passed {
			result.Passed = false
		}
	}

	// File descriptor check (warning only)
	result.Checks = append(result.Checks, checkFileDescriptors())

	return result
}

// checkRootDir verifies the served directory exists and is readable.
func checkRootDir(dir string) Check {
	info, err := os.Stat(dir)
	if err != nil {
		return Check{
			Name:    "root_dir",
			Passed:  false,
			Message: fmt.Sprintf("cannot stat %s: %v", dir, err),
		}
	}
	if !info.IsDir() {
		return Check{
			Name:    "root_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}

	f, err := os.Open(dir)
	if err != nil {
		return Check{
			Name:    "root_dir",
			Passed:  false,
			Message: fmt.Sprintf("cannot read %s: %v", dir, err),
		}
	}
	f.Close()

	return Check{
		Name:    "root_dir",
		Passed:  true,
		Message: fmt.Sprintf("serving %s", dir),
	}
}

// checkListenAddr verifies the address can actually be bound. The probe
// listener is closed immediately; the real server binds moments later.
func checkListenAddr(name, addr string) Check {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  false,
			Message: fmt.Sprintf("cannot bind %s: %v", addr, err),
		}
	}
	ln.Close()

	return Check{
		Name:    name,
		Passed:  true,
		Message: fmt.Sprintf("%s is bindable", addr),
	}
}

// checkFileDescriptors verifies the soft fd limit leaves headroom for
// a reasonable client population.
func checkFileDescriptors() Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	actual := int(limit.Cur)
	return Check{
		Name:     "file_descriptors",
		Required: minFileDescriptors,
		Actual:   actual,
		Passed:   true, // Don't fail on this
		Warning:  actual < minFileDescriptors,
		Message:  fmt.Sprintf("ulimit -n %d (recommend %d)", actual, minFileDescriptors),
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "root_dir":
		return "pass an existing readable directory with -root"
	case "listen_addr", "admin_addr":
		return "free the port or pick another with -listen / -admin"
	case "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	default:
		return "see documentation"
	}
}
