package process

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mcpvet/mcpvet-core/pkg/pkgbuild"
)

// NodeManager runs Node servers by launching the packed artifact through
// the ephemeral runner of the package-manager dialect detected from the
// server's lockfile (npx, yarn dlx, or pnpm dlx).
type NodeManager struct {
	proc
	pm pkgbuild.PackageManager
}

// NewNodeManager creates a NodeManager for the given dialect.
func NewNodeManager(pm pkgbuild.PackageManager, logger *slog.Logger) *NodeManager {
	return &NodeManager{proc: newProc(logger), pm: pm}
}

// Start launches the server at path and polls for liveness. A packed
// tarball goes through the dialect's ephemeral runner; a plain source
// file (stored servers restarted from the registry) runs under node
// directly.
func (m *NodeManager) Start(ctx context.Context, path, name string) bool {
	if strings.HasSuffix(path, ".tgz") {
		command, args := m.pm.RunnerCommand(path)
		return m.launch(ctx, name, command, args...)
	}
	return m.launch(ctx, name, "node", path)
}

var _ Manager = (*NodeManager)(nil)
