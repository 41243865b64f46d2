package lower

import (
	"fmt"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/thir"
)

// portDeclsOf converts a thir.Ty's bit-level projection into a concrete
// ir.PortDecls. Ty stays a narrow interface in package thir so thir need
// not import ir; this is the one place that bridges the two.
func portDeclsOf(ty thir.Ty) (ir.PortDecls, error) {
	raw, ok := ty.ToPortDecls()
	if !ok {
		return ir.PortDecls{}, fmt.Errorf("lower: type %s has no fixed bit-level layout", ty)
	}
	decl, ok := raw.(ir.PortDecls)
	if !ok {
		return ir.PortDecls{}, fmt.Errorf("lower: type %s's ToPortDecls did not return ir.PortDecls", ty)
	}
	return decl, nil
}

// enumVariantDecls resolves the ADT layout of an enum Ty: each declared
// variant's payload, in order, as a PortDecls struct of its own fields
// (the per-variant slot an EnumCtor construction must fill, active or
// not), alongside each variant's name for diagnostics.
func enumVariantDecls(ty thir.Ty) ([]ir.PortDecls, []string, error) {
	variants, ok := ty.EnumVariants()
	if !ok {
		return nil, nil, fmt.Errorf("lower: type %s is not an enum", ty)
	}
	decls := make([]ir.PortDecls, len(variants))
	names := make([]string, len(variants))
	for i, v := range variants {
		fields := make([]ir.PortDeclsField, len(v.Fields))
		for j, f := range v.Fields {
			fieldDecl, err := portDeclsOf(f.Typ)
			if err != nil {
				return nil, nil, err
			}
			name := f.Name
			fields[j] = ir.Field(name, fieldDecl)
		}
		decls[i] = ir.StructDecl(fields...)
		names[i] = v.Name
	}
	return decls, names, nil
}
