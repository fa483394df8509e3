package rawjwt

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

// Test runs the rawjwt Analyzer against test data using analysistest.
func Test(t *testing.T) {
	analysistest.Run(t, analysistest.TestData(), Analyzer, "handlers", "blogs/internal/auth")
}
