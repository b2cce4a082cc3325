package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/casper-network/casper-node-launcher/internal/nodeclient"
	"github.com/casper-network/casper-node-launcher/internal/staging"
)

const localNodeIP = "127.0.0.1"

func nodeStatusAction(c *cli.Context) error {
	client := nodeclient.New()
	status, err := client.Status(localNodeIP)
	if err != nil {
		return err
	}
	var tip *nodeclient.BlockInfo
	if tipIP := c.String("ip"); tipIP != "" {
		tipStatus, err := client.Status(tipIP)
		if err == nil {
			tip = tipStatus.LastAddedBlockInfo
		}
	}
	fmt.Print(nodeclient.FormatStatus(status, tip))
	return nil
}

func rpcActiveAction(c *cli.Context) error {
	if _, err := nodeclient.New().GetBlock(localNodeIP, -1); err != nil {
		fmt.Println("RPC: Not Ready")
		return err
	}
	fmt.Println("RPC: Ready")
	return nil
}

func trustedHashAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one node ip argument")
	}
	ip := c.Args().First()
	layout, err := loadLayout(c.String("paths"))
	if err != nil {
		return err
	}

	client := nodeclient.New()
	status, err := client.Status(ip)
	if err != nil {
		return err
	}

	chainspecPath := layout.ChainspecPath(c.String("protocol"))
	localName, err := staging.ChainspecName(chainspecPath)
	if err != nil {
		return fmt.Errorf("cannot verify network name: %w", err)
	}
	if localName != status.ChainspecName {
		return fmt.Errorf("node network name %q does not match %s: %q",
			status.ChainspecName, chainspecPath, localName)
	}
	if status.LastAddedBlockInfo == nil {
		return fmt.Errorf("node %s has no last added block; it is not in sync", ip)
	}

	hash := status.LastAddedBlockInfo.Hash
	if height := c.Int64("block"); height >= 0 {
		block, err := client.GetBlock(ip, height)
		if err != nil {
			return err
		}
		hash = block.Block.Hash
	}
	fmt.Println(hash)
	return nil
}
