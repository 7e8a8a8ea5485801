// Package osexitmain defines an analyzer that reports direct process exits in main.main.
package osexitmain

import (
	"errors"
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// Analyzer is the osexitmain analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "osexitmain",
	Doc:      "reports direct os.Exit and syscall.Exit calls in main.main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// exits lists the functions that terminate the process without running deferred calls.
var exits = map[string]map[string]bool{
	"os":      {"Exit": true},
	"syscall": {"Exit": true},
}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg == nil || pass.Pkg.Name() != "main" {
		return nil, nil
	}

	insp, ok := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	if !ok {
		return nil, errors.New("failed to assert type: expected *inspector.Inspector")
	}

	insp.Preorder([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node) {
		fd, ok := n.(*ast.FuncDecl)
		if !ok || fd.Recv != nil || fd.Name == nil || fd.Name.Name != "main" || fd.Body == nil {
			return
		}

		ast.Inspect(fd.Body, func(nn ast.Node) bool {
			switch x := nn.(type) {
			case *ast.FuncLit:
				return false
			case *ast.CallExpr:
				if name, ok := exitCallee(pass.TypesInfo, x); ok {
					pass.Reportf(x.Pos(), "direct %s call in main skips deferred cleanup; return an error from run instead", name)
				}
			}
			return true
		})
	})

	return nil, nil
}

// exitCallee reports whether call statically resolves to a process exit, and its qualified name.
func exitCallee(info *types.Info, call *ast.CallExpr) (string, bool) {
	if info == nil || call == nil {
		return "", false
	}
	fn, ok := typeutil.Callee(info, call).(*types.Func)
	if !ok || fn.Pkg() == nil {
		return "", false
	}
	if exits[fn.Pkg().Path()][fn.Name()] {
		return fn.Pkg().Path() + "." + fn.Name(), true
	}
	return "", false
}
