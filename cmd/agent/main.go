package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"
)

var (
	registryFlag = cli.StringFlag{
		Name:   "registry",
		Usage:  "AgentMesh registry base URL",
		Value:  "http://localhost:8080",
		EnvVar: "AGENTMESH_REGISTRY",
	}
	identityFlag = cli.StringFlag{
		Name:   "identity",
		Usage:  "Agent identity file (YAML)",
		Value:  "agent.yaml",
		EnvVar: "AGENTMESH_IDENTITY",
	}
	capabilitiesFlag = cli.StringSliceFlag{
		Name:  "capability",
		Usage: "Capability to request (repeatable)",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "agent"
	app.Usage = "AgentMesh agent identity tool"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{registryFlag, identityFlag}
	app.Commands = []cli.Command{
		keygenCommand,
		registerCommand,
		handshakeCommand,
		scoreCommand,
		signCommand,
		rotateCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
