package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"agentmesh/internal/agentclient"
	"agentmesh/internal/identity"
	"agentmesh/internal/registry"
	"agentmesh/internal/trust"
)

var (
	keygenCommand = cli.Command{
		Action:    keygen,
		Name:      "keygen",
		Usage:     "Generate a new Ed25519 identity file",
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "name", Usage: "Agent name stored in the identity file"},
			cli.BoolFlag{Name: "force", Usage: "Overwrite an existing identity file"},
		},
	}
	registerCommand = cli.Command{
		Action: register,
		Name:   "register",
		Usage:  "Register the identity with the registry",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "name", Usage: "Agent name (defaults to the identity file name)"},
			cli.StringFlag{Name: "email", Usage: "Sponsor email"},
			cli.StringFlag{Name: "description", Usage: "Free-form description"},
			capabilitiesFlag,
		},
	}
	handshakeCommand = cli.Command{
		Action: handshake,
		Name:   "handshake",
		Usage:  "Prove key possession and obtain a session token",
		Flags:  []cli.Flag{capabilitiesFlag},
	}
	scoreCommand = cli.Command{
		Action:    score,
		Name:      "score",
		Usage:     "Show the trust score breakdown",
		ArgsUsage: "[did]",
	}
	signCommand = cli.Command{
		Action:    sign,
		Name:      "sign",
		Usage:     "Sign a message with the identity key",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "envelope", Usage: "Print a timestamped signed message as JSON"},
		},
	}
	rotateCommand = cli.Command{
		Action: rotate,
		Name:   "rotate-key",
		Usage:  "Replace the registered public key with a freshly generated one",
	}
)

func identityPath(ctx *cli.Context) string {
	return ctx.GlobalString(identityFlag.Name)
}

func newClient(ctx *cli.Context, f *agentclient.IdentityFile) *agentclient.Client {
	base := ctx.GlobalString(registryFlag.Name)
	if !ctx.GlobalIsSet(registryFlag.Name) && f != nil && f.Registry != "" {
		base = f.Registry
	}
	if f != nil && f.APIKey != "" {
		return agentclient.NewClient(base, agentclient.WithAPIKey(f.APIKey))
	}
	return agentclient.NewClient(base)
}

func requireDID(f *agentclient.IdentityFile) error {
	if f.DID == "" {
		return errors.New("identity is not registered yet; run `agent register` first")
	}
	return nil
}

func keygen(ctx *cli.Context) error {
	path := identityPath(ctx)
	if _, err := os.Stat(path); err == nil && !ctx.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	kp, err := identity.GenerateKeyPair()
	if err != nil {
		return err
	}
	f := &agentclient.IdentityFile{
		Name:       ctx.String("name"),
		Registry:   ctx.GlobalString(registryFlag.Name),
		PublicKey:  kp.PublicKey,
		PrivateKey: kp.PrivateKey,
	}
	if err := f.Save(path); err != nil {
		return err
	}
	fmt.Printf("Identity written to %s\nPublic key: %s\n", path, kp.PublicKey)
	return nil
}

func register(ctx *cli.Context) error {
	path := identityPath(ctx)
	f, err := agentclient.LoadIdentity(path)
	if err != nil {
		return err
	}
	if f.DID != "" {
		return fmt.Errorf("identity is already registered as %s", f.DID)
	}
	name := ctx.String("name")
	if name == "" {
		name = f.Name
	}

	resp, err := newClient(ctx, f).Register(context.Background(), &registry.RegisterRequest{
		Name:         name,
		SponsorEmail: ctx.String("email"),
		Description:  ctx.String("description"),
		Capabilities: ctx.StringSlice(capabilitiesFlag.Name),
		PublicKey:    f.PublicKey,
	})
	if err != nil {
		return err
	}

	f.Name = name
	f.DID = resp.AgentDID
	f.APIKey = resp.APIKey
	f.RegistryPublicKey = resp.RegistryPublicKey
	f.Registry = ctx.GlobalString(registryFlag.Name)
	if err := f.Save(path); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"DID", resp.AgentDID})
	table.Append([]string{"Status", resp.Status})
	table.Append([]string{"Trust score", fmt.Sprintf("%d (%s)", resp.TrustScore, resp.Tier)})
	table.Append([]string{"Capabilities", strings.Join(resp.Capabilities, ", ")})
	table.Render()
	fmt.Printf("API key saved to %s; it will not be shown again.\n", path)
	return nil
}

func handshake(ctx *cli.Context) error {
	f, err := agentclient.LoadIdentity(identityPath(ctx))
	if err != nil {
		return err
	}
	if err := requireDID(f); err != nil {
		return err
	}
	kp, err := f.KeyPair()
	if err != nil {
		return err
	}

	res, err := newClient(ctx, f).Authenticate(context.Background(), f.DID, kp, ctx.StringSlice(capabilitiesFlag.Name), f.RegistryPublicKey)
	if err != nil {
		if rejected, ok := agentclient.HandshakeResultOf(err); ok {
			fmt.Printf("Handshake rejected: %s (trust score %d, %s)\n", rejected.Error, rejected.TrustScore, rejected.Tier)
		}
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"Verified", strconv.FormatBool(res.Verified)})
	table.Append([]string{"Trust score", fmt.Sprintf("%d (%s)", res.TrustScore, res.Tier)})
	table.Append([]string{"Granted", strings.Join(res.CapabilitiesGranted, ", ")})
	table.Append([]string{"Session expires", time.Now().Add(time.Duration(res.ExpiresIn) * time.Second).Format(time.RFC3339)})
	table.Render()
	fmt.Println(res.SessionToken)
	return nil
}

func score(ctx *cli.Context) error {
	did := ctx.Args().First()
	var f *agentclient.IdentityFile
	if did == "" {
		loaded, err := agentclient.LoadIdentity(identityPath(ctx))
		if err != nil {
			return err
		}
		if err := requireDID(loaded); err != nil {
			return err
		}
		f, did = loaded, loaded.DID
	}

	resp, err := newClient(ctx, f).Score(context.Background(), did)
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s\n", resp.AgentDID, resp.Formatted)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Dimension", "Value", "Weight"})
	for _, dim := range trust.AllDimensions {
		table.Append([]string{
			string(dim),
			strconv.Itoa(resp.Dimensions.Get(dim)),
			fmt.Sprintf("%.0f%%", trust.Weight(dim)*100),
		})
	}
	table.Render()
	for _, r := range resp.Recommendations {
		fmt.Println(" - " + r)
	}
	return nil
}

func sign(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("usage: agent sign <message>")
	}
	f, err := agentclient.LoadIdentity(identityPath(ctx))
	if err != nil {
		return err
	}
	kp, err := f.KeyPair()
	if err != nil {
		return err
	}
	msg := ctx.Args().First()

	if ctx.Bool("envelope") {
		env, err := identity.CreateSignedMessage(msg, kp.PrivateKey, kp.PublicKey, time.Now())
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(env, "", "  ")
		fmt.Println(string(out))
		return nil
	}
	sig, err := kp.Sign(msg)
	if err != nil {
		return err
	}
	fmt.Println(sig)
	return nil
}

func rotate(ctx *cli.Context) error {
	path := identityPath(ctx)
	f, err := agentclient.LoadIdentity(path)
	if err != nil {
		return err
	}
	if err := requireDID(f); err != nil {
		return err
	}
	if f.APIKey == "" {
		return errors.New("identity file has no api_key")
	}
	next, err := identity.GenerateKeyPair()
	if err != nil {
		return err
	}
	if _, err := newClient(ctx, f).RotateKey(context.Background(), f.DID, next); err != nil {
		return err
	}

	f.PublicKey = next.PublicKey
	f.PrivateKey = next.PrivateKey
	if err := f.Save(path); err != nil {
		return fmt.Errorf("key rotated but identity file not updated, new private key %s: %w", next.PrivateKey, err)
	}
	fmt.Printf("Public key rotated to %s\n", next.PublicKey)
	return nil
}
