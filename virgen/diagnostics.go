package virgen

import (
	"fmt"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/kr/pretty"

	"github.com/hazardflow/hfc/ir"
)

// runID tags one top-level Elaborate invocation so its log lines can be
// correlated across the recursive module walk.
func runID() string {
	return uuid.NewString()
}

// cacheSummary renders one module's hash-cons effectiveness and wall
// time for the driver's completion log line.
func cacheSummary(cache *ir.FsmCache, exprCount int, started time.Time) string {
	return fmt.Sprintf("%s exprs allocated in %s (%s)",
		humanize.Comma(int64(exprCount)),
		humanize.RelTime(started, time.Now(), "", ""),
		cache.Stats())
}

// dumpIR renders v (typically an ir.ExprId's resolved Expr, or a
// PortDecls) for a debug-level trace line.
func dumpIR(label string, v interface{}) string {
	return fmt.Sprintf("%s: %s", label, pretty.Sprint(v))
}
