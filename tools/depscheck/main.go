// Command depscheck enforces the package layering of the navigation server.
// Run it from the module root.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const module = "realm-nav/server"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages under From from importing anything under the
// listed prefixes.
type rule struct {
	From   string
	Forbid []string
}

var rules = []rule{
	{
		// The corridor core stays free of transport and storage.
		From: module + "/internal/nav",
		Forbid: []string{
			module + "/internal/net",
			module + "/internal/realm",
			"github.com/gin-gonic/gin",
			"github.com/gorilla/websocket",
		},
	},
	{
		From: module + "/internal/detour",
		Forbid: []string{
			module + "/internal/ecs",
			module + "/internal/world",
			module + "/internal/net",
		},
	},
	{
		From: module + "/internal/net/proto",
		Forbid: []string{
			module + "/internal/sim",
			module + "/internal/nav",
			module + "/internal/ecs",
		},
	},
	{
		From: module + "/internal/replication",
		Forbid: []string{
			module + "/internal/net/ws",
			"github.com/gorilla/websocket",
		},
	},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	violations, err := check(bytes.NewReader(output), rules)
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: %v\n", err)
		os.Exit(1)
	}
	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

// check decodes a stream of `go list -json` records and reports every import
// that breaks a rule, sorted.
func check(r io.Reader, rules []rule) ([]string, error) {
	decoder := json.NewDecoder(r)
	var violations []string
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode package info: %w", err)
		}
		for _, rule := range rules {
			if !within(pkg.ImportPath, rule.From) {
				continue
			}
			for _, imp := range pkg.Imports {
				for _, forbidden := range rule.Forbid {
					if within(imp, forbidden) {
						violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
					}
				}
			}
		}
	}
	sort.Strings(violations)
	return violations, nil
}

func within(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
