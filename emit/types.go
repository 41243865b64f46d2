package emit

import (
	"fmt"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/thir"
)

// portDeclsOf bridges a thir.Ty's narrow ToPortDecls escape hatch into a
// concrete ir.PortDecls, mirroring package lower's identical bridge
// (kept local to avoid exporting it from lower just for this one use).
func portDeclsOf(ty thir.Ty) (ir.PortDecls, error) {
	raw, ok := ty.ToPortDecls()
	if !ok {
		return ir.PortDecls{}, fmt.Errorf("emit: type %s has no fixed bit layout", ty)
	}
	decl, ok := raw.(ir.PortDecls)
	if !ok {
		return ir.PortDecls{}, fmt.Errorf("emit: type %s did not produce an ir.PortDecls", ty)
	}
	return decl, nil
}
