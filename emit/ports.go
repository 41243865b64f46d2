package emit

import (
	"strings"

	"github.com/hazardflow/hfc/ir"
	"github.com/hazardflow/hfc/rtl"
)

// fieldGroup collects every array-indexed repetition of one named
// channel field into a single group: array indices flatten into the
// outer dimension of the port's shape rather than one port per index.
type fieldGroup struct {
	Name    string
	IsUnit  bool
	Channel ir.ChannelTyp
	Count   int
	Leaves  []ir.PrimitiveLeaf
}

// groupPrimitives walks typ's leaves and groups repeated array
// instances of the same field path together, in first-occurrence
// order, preserving each leaf's index-ascending order within its
// group.
func groupPrimitives(typ ir.InterfaceTyp) []fieldGroup {
	var order []string
	groups := make(map[string]*fieldGroup)
	for _, leaf := range typ.IntoPrimitives() {
		name := fieldPathName(leaf.Path)
		g, ok := groups[name]
		if !ok {
			g = &fieldGroup{Name: name, IsUnit: leaf.IsUnit, Channel: leaf.Channel}
			groups[name] = g
			order = append(order, name)
		}
		g.Count++
		g.Leaves = append(g.Leaves, leaf)
	}
	out := make([]fieldGroup, len(order))
	for i, name := range order {
		out[i] = *groups[name]
	}
	return out
}

// locateLeaf finds the group a leaf path belongs to within typ and its
// zero-based position inside that group, used to compute the
// bit-offset of one array element within its flattened port.
func locateLeaf(typ ir.InterfaceTyp, path ir.Path) (groupName string, pos, count int, ch ir.ChannelTyp, isUnit bool, found bool) {
	key := path.String()
	for _, g := range groupPrimitives(typ) {
		for i, leaf := range g.Leaves {
			if leaf.Path.String() == key {
				return g.Name, i, g.Count, g.Channel, g.IsUnit, true
			}
		}
	}
	return "", 0, 0, ir.ChannelTyp{}, false, false
}

// fieldPathName renders a leaf path as a port-name fragment, dropping
// index segments (their multiplicity is folded into the port's width
// instead of its name).
func fieldPathName(path ir.Path) string {
	var parts []string
	for _, seg := range path {
		if !seg.IsIndex {
			parts = append(parts, seg.Name)
		}
	}
	return strings.Join(parts, "_")
}

// inputPorts builds the payload/resolver ports for a module's input
// interface: payload is an input, resolver is an output.
func inputPorts(typ ir.InterfaceTyp) []rtl.Port {
	return sidePorts(typ, "in", Input, Output)
}

// outputPorts builds the payload/resolver ports for a module's output
// interface: payload is an output, resolver is an input.
func outputPorts(typ ir.InterfaceTyp) []rtl.Port {
	return sidePorts(typ, "out", Output, Input)
}

type portDir = rtl.Direction

const (
	Input  = rtl.Input
	Output = rtl.Output
)

func sidePorts(typ ir.InterfaceTyp, prefix string, payloadDir, resolverDir portDir) []rtl.Port {
	var ports []rtl.Port
	for _, g := range groupPrimitives(typ) {
		if g.IsUnit {
			continue
		}
		base := prefix
		if g.Name != "" {
			base = prefix + "_" + g.Name
		}
		if g.Channel.Fwd.Width() > 0 {
			ports = append(ports, rtl.Port{Dir: payloadDir, Name: base + "_payload", Width: g.Channel.Fwd.Width() * g.Count})
		}
		if g.Channel.Bwd.Width() > 0 {
			ports = append(ports, rtl.Port{Dir: resolverDir, Name: base + "_resolver", Width: g.Channel.Bwd.Width() * g.Count})
		}
	}
	return ports
}
