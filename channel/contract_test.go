package channel_test

import (
	"testing"

	"github.com/HaD0Yun/godot-mcp/channel"
	"github.com/HaD0Yun/godot-mcp/channel/dap"
	"github.com/HaD0Yun/godot-mcp/channel/editor"
	"github.com/HaD0Yun/godot-mcp/channel/headless"
	"github.com/HaD0Yun/godot-mcp/channel/lsp"
)

func TestChannelContracts(t *testing.T) {
	// Every channel kind satisfies the base contract; the connection-oriented
	// kinds additionally satisfy Persistent.
	var _ channel.Channel = (*headless.Runner)(nil)
	var _ channel.Persistent = (*editor.Editor)(nil)
	var _ channel.Persistent = (*lsp.Client)(nil)
	var _ channel.Persistent = (*dap.Client)(nil)
}
