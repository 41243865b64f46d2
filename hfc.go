// Package hfc is a pure Go hardware elaborator: it takes a typed
// function-IR design root (package thir) — the output of some external,
// statically-typed hazardflow-style frontend — and elaborates it down to
// synthesizable Verilog text.
//
// The pipeline has three stages: discover each module's submodule
// instance graph (package graph), lower its combinational bodies into a
// hash-consed expression IR (package lower/ir), and print a structural
// RTL AST for every distinct module reached (package emit/rtl). Package
// virgen drives all three recursively over one design.
//
// Example usage:
//
//	verilog, err := hfc.Compile(funcs, root)
//	if err != nil {
//	    log.Fatal(err)
//	}
package hfc

import (
	"fmt"

	"github.com/hazardflow/hfc/thir"
	"github.com/hazardflow/hfc/virgen"
)

// Compile elaborates root (and every distinct module it reaches,
// transitively) to Verilog text using virgen.DefaultConfig.
//
// This is the simplest way to run the elaborator. For more control over
// system-task emission or port naming, use CompileWithConfig.
func Compile(funcs map[string]*thir.FunctionIR, root *thir.FunctionIR) (string, error) {
	return CompileWithConfig(funcs, root, virgen.DefaultConfig())
}

// CompileWithConfig elaborates root to Verilog text under an explicit
// Config.
//
// The elaboration pipeline is:
//  1. Preprocess the root's submodule graph (discover its instances)
//  2. Emit the root module's RTL
//  3. Recursively preprocess+emit every distinct instance reached
func CompileWithConfig(funcs map[string]*thir.FunctionIR, root *thir.FunctionIR, cfg virgen.Config) (string, error) {
	if root == nil {
		return "", fmt.Errorf("hfc: nil design root")
	}
	if _, ok := funcs[root.Name]; !ok {
		return "", fmt.Errorf("hfc: design root %q is not present in its own function table", root.Name)
	}
	return virgen.Elaborate(funcs, root, cfg)
}

// LoadConfig reads a YAML driver configuration from path, falling back
// to virgen.DefaultConfig for any field left unset.
func LoadConfig(path string) (virgen.Config, error) {
	return virgen.LoadConfig(path)
}
