package main

import (
	"context"
	"crypto/x509"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"github.com/walletd-io/walletd/internal/pkpass"
)

// Version is set using ldflags at build time. See Makefile for details.
var Version = "dev"

func main() {
	// Override usage to capitalize "Show"
	cli.HelpFlag.(*cli.BoolFlag).Usage = "Show help"
	app := &cli.Command{
		Name:    "walletctl",
		Usage:   "build and verify signed wallet pass archives",
		Version: Version,
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Build a signed .pkpass archive from a definition file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "definition",
						Usage:    "Path to the pass definition JSON",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "assets",
						Usage: "Directory of asset files (icon.png, logo.png, ...) to package",
					},
					&cli.StringFlag{
						Name:     "cert",
						Usage:    "Path to the signing certificate (PEM)",
						Required: true,
						Sources:  cli.EnvVars("WALLETCTL_CERT"),
					},
					&cli.StringFlag{
						Name:     "key",
						Usage:    "Path to the signing private key (PEM)",
						Required: true,
						Sources:  cli.EnvVars("WALLETCTL_KEY"),
					},
					&cli.StringFlag{
						Name:    "key-password",
						Usage:   "Password for an encrypted signing key",
						Sources: cli.EnvVars("WALLETCTL_KEY_PASSWORD"),
					},
					&cli.StringFlag{
						Name:    "wwdr",
						Usage:   "Path to the issuing intermediate certificate (PEM)",
						Sources: cli.EnvVars("WALLETCTL_WWDR"),
					},
					&cli.StringFlag{
						Name:     "pass-type-id",
						Usage:    "Pass type identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "serial-number",
						Usage:    "Serial number",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "team-id",
						Usage:    "Team identifier",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "organization",
						Usage:    "Organization name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Pass description",
					},
					&cli.StringFlag{
						Name:  "output",
						Value: "pass.pkpass",
						Usage: "Where to write the archive",
					},
				},
				Action: buildArchive,
			},
			{
				Name:  "verify",
				Usage: "Verify the manifest and signature of a .pkpass archive",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "archive",
						Usage:    "Path to the .pkpass archive",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "roots",
						Usage: "PEM bundle of trusted root certificates; system roots are not consulted",
					},
				},
				Action: verifyArchive,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func buildArchive(_ context.Context, command *cli.Command) error {
	data, err := os.ReadFile(command.String("definition"))
	if err != nil {
		return err
	}
	definition, err := pkpass.ParseDefinition(data)
	if err != nil {
		return err
	}

	template := &pkpass.Template{
		PassTypeID:       command.String("pass-type-id"),
		SerialNumber:     command.String("serial-number"),
		TeamID:           command.String("team-id"),
		OrganizationName: command.String("organization"),
		Description:      command.String("description"),
	}
	if err := definition.Apply(template); err != nil {
		return err
	}

	if dir := command.String("assets"); dir != "" {
		if err := addAssets(template, dir); err != nil {
			return err
		}
	}

	signer, err := pkpass.LoadPKCS7Signer(
		command.String("cert"),
		command.String("key"),
		command.String("key-password"),
		command.String("wwdr"),
	)
	if err != nil {
		return err
	}

	archive, err := pkpass.Build(template, signer)
	if err != nil {
		return err
	}

	output := command.String("output")
	if err := os.WriteFile(output, archive, 0o600); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", output, len(archive))
	return nil
}

func addAssets(template *pkpass.Template, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		file, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		err = template.AddFile(entry.Name(), file)
		_ = file.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func verifyArchive(_ context.Context, command *cli.Command) error {
	archive, err := os.ReadFile(command.String("archive"))
	if err != nil {
		return err
	}

	var roots *x509.CertPool
	if path := command.String("roots"); path != "" {
		roots, err = loadCertPool(path)
		if err != nil {
			return err
		}
	}

	if err := pkpass.Verify(archive, roots); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	fmt.Println("archive OK")
	return nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
