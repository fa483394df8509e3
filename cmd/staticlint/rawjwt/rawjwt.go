// Package rawjwt reports JWT parsing outside the auth package. Bearer tokens
// must be verified through auth.Verifier, which resolves the signing secret
// from the token owner and pins the HMAC algorithm.
package rawjwt

import (
	"go/ast"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/types/typeutil"
)

const (
	jwtPackagePath = "github.com/golang-jwt/jwt/v4"
	authPackageDir = "internal/auth"
)

var Analyzer = &analysis.Analyzer{
	Name: "rawjwt",
	Doc:  "prohibits parsing JWTs outside internal/auth",
	Run:  run,
}

func isAuthPackage(path string) bool {
	return path == authPackageDir || strings.HasSuffix(path, "/"+authPackageDir)
}

func run(pass *analysis.Pass) (interface{}, error) {
	if isAuthPackage(pass.Pkg.Path()) {
		return nil, nil
	}

	for _, file := range pass.Files {
		ast.Inspect(file, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}

			callee := typeutil.Callee(pass.TypesInfo, call)
			if callee == nil || callee.Pkg() == nil || callee.Pkg().Path() != jwtPackagePath {
				return true
			}

			if strings.HasPrefix(callee.Name(), "Parse") {
				pass.Reportf(call.Pos(), "parse bearer tokens with auth.Verifier instead of jwt.%s", callee.Name())
			}

			return true
		})
	}

	return nil, nil
}
