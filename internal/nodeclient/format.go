package nodeclient

import (
	"fmt"
	"strings"
)

// FormatStatus renders a short human report of a node's status. tip is an
// optional block from a node known to be at the chain tip, used to show how
// far behind this node is.
func FormatStatus(status NodeStatus, tip *BlockInfo) string {
	var out []string
	if status.LastAddedBlockInfo != nil {
		cur := status.LastAddedBlockInfo
		out = append(out, fmt.Sprintf("Last Block: %d (Era: %d)", cur.Height, cur.EraID))
		if tip != nil {
			out = append(out,
				fmt.Sprintf(" Tip Block: %d (Era: %d)", tip.Height, tip.EraID),
				fmt.Sprintf("    Behind: %d", int64(tip.Height)-int64(cur.Height)),
				"")
		}
	}
	nextUpgrade := "null"
	if len(status.NextUpgrade) > 0 {
		nextUpgrade = string(status.NextUpgrade)
	}
	out = append(out,
		fmt.Sprintf("Peer Count: %d", len(status.Peers)),
		fmt.Sprintf("Uptime: %s", status.Uptime),
		fmt.Sprintf("Build: %s", status.BuildVersion),
		fmt.Sprintf("Key: %s", status.OurPublicSigningKey),
		fmt.Sprintf("Next Upgrade: %s", nextUpgrade),
		"")
	return strings.Join(out, "\n")
}
