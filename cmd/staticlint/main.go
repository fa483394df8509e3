// Command staticlint runs the blogsbook static checks in a single
// `multichecker.Main` invocation: a fixed set of Go toolchain and third-party
// analyzers, the project analyzer rawjwt, and the staticcheck analyzers named
// in config.json next to the binary.
//
// Usage:
//
//	staticlint ./...
package main

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"honnef.co/go/tools/staticcheck"

	"github.com/patric-chuzhbe/blogsbook/cmd/staticlint/rawjwt"
)

// Config is the name of the JSON configuration file that lists enabled staticcheck analyzers.
const Config = `config.json`

// defaultStaticcheck is used when no config.json sits next to the binary.
var defaultStaticcheck = []string{"SA1019", "SA4006", "SA5011"}

// ConfigData describes the structure of the configuration file.
// The Staticcheck field contains the names of enabled staticcheck analyzers, e.g., "SA1000", "SA4010".
type ConfigData struct {
	Staticcheck []string
}

func loadConfig() (ConfigData, error) {
	appfile, err := os.Executable()
	if err != nil {
		return ConfigData{}, err
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(appfile), Config))
	if errors.Is(err, os.ErrNotExist) {
		return ConfigData{Staticcheck: defaultStaticcheck}, nil
	}
	if err != nil {
		return ConfigData{}, err
	}

	var cfg ConfigData
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ConfigData{}, err
	}

	return cfg, nil
}

func baseAnalyzers() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		copylock.Analyzer,    // store structs embed sync.RWMutex
		loopclosure.Analyzer, // loop variables captured by goroutines
		lostcancel.Analyzer,  // timeouts around store calls
		printf.Analyzer,      // zap sugared format calls
		structtag.Analyzer,   // json, env and validate tags
		unmarshal.Analyzer,   // decode targets must be pointers
		unreachable.Analyzer,

		ineffassign.Analyzer,
		nilerr.Analyzer,

		rawjwt.Analyzer, // bearer tokens are parsed only by internal/auth
	}
}

func staticcheckAnalyzers(enabled []string) []*analysis.Analyzer {
	checks := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		checks[name] = true
	}

	var result []*analysis.Analyzer
	for _, v := range staticcheck.Analyzers {
		if checks[v.Analyzer.Name] {
			result = append(result, v.Analyzer)
		}
	}

	return result
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load %s: %v", Config, err)
	}

	multichecker.Main(append(baseAnalyzers(), staticcheckAnalyzers(cfg.Staticcheck)...)...)
}
