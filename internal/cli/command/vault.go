package command

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/celerix-dev/celerix-store/internal/cli/output"
	"github.com/celerix-dev/celerix-store/pkg/crypto/adaptive"
	"github.com/celerix-dev/celerix-store/pkg/store"
	"github.com/celerix-dev/celerix-store/pkg/vault"
)

// VaultCommand returns the vault subcommand group.
func VaultCommand() *cli.Command {
	keyFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "key",
			Aliases: []string{"k"},
			Usage:   "Vault key, 32 bytes in hex or base64",
			EnvVars: []string{"CELERIX_VAULT_KEY"},
		},
		&cli.StringFlag{
			Name:  "key-file",
			Usage: "File holding the vault key",
		},
		&cli.StringFlag{
			Name:  "alg",
			Usage: "Cipher for new values: aes-gcm or chacha20-poly1305",
			Value: string(adaptive.CipherAESGCM),
		},
	}

	return &cli.Command{
		Name:  "vault",
		Usage: "Read and write encrypted values",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Decrypt and print a value",
				ArgsUsage: "PERSONA APP KEY",
				Flags:     keyFlags,
				Action:    vaultGet,
			},
			{
				Name:      "set",
				Usage:     "Encrypt and store a value; VALUE is JSON or else a string",
				ArgsUsage: "PERSONA APP KEY VALUE",
				Flags:     keyFlags,
				Action:    vaultSet,
			},
			{
				Name:      "del",
				Usage:     "Delete an encrypted value",
				ArgsUsage: "PERSONA APP KEY",
				Action:    vaultDel,
			},
			{
				Name:  "keygen",
				Usage: "Generate a vault key, or derive one from a passphrase",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "passphrase",
						Usage:   "Derive the key with Argon2id",
						EnvVars: []string{"CELERIX_VAULT_PASSPHRASE"},
					},
					&cli.StringFlag{
						Name:  "salt",
						Usage: "Base64 salt for --passphrase; generated when empty",
					},
				},
				Action: vaultKeygen,
			},
		},
	}
}

// vaultKey resolves the key from --key, --key-file or the config file.
func vaultKey(c *cli.Context, flags *GlobalFlags) ([]byte, error) {
	if s := c.String("key"); s != "" {
		return vault.ParseKey(s)
	}
	path := c.String("key-file")
	if path == "" {
		path = flags.VaultKeyFile
	}
	if path == "" {
		return nil, errors.New("vault key required: use --key, --key-file or CELERIX_VAULT_KEY")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vault key: %w", err)
	}
	return vault.ParseKey(string(data))
}

func vaultScope(c *cli.Context, s *session, persona, app string) (*store.VaultScope, error) {
	key, err := vaultKey(c, s.flags)
	if err != nil {
		return nil, err
	}
	defer vault.Zero(key)

	alg, err := adaptive.ParseType(c.String("alg"))
	if err != nil {
		return nil, err
	}
	return s.store.App(persona, app).Vault(key, vault.WithAlgorithm(alg))
}

func vaultGet(c *cli.Context) error {
	a, err := args(c, 3)
	if err != nil {
		return err
	}
	return withStore(c, func(s *session) error {
		v, err := vaultScope(c, s, a[0], a[1])
		if err != nil {
			return err
		}
		value, err := v.Get(s.ctx, a[2])
		if err != nil {
			return err
		}
		return s.print(value)
	})
}

func vaultSet(c *cli.Context) error {
	a, err := args(c, 4)
	if err != nil {
		return err
	}
	return withStore(c, func(s *session) error {
		v, err := vaultScope(c, s, a[0], a[1])
		if err != nil {
			return err
		}
		if err := v.Set(s.ctx, a[2], parseValue(a[3])); err != nil {
			return err
		}
		return s.done("OK")
	})
}

func vaultDel(c *cli.Context) error {
	a, err := args(c, 3)
	if err != nil {
		return err
	}
	return withStore(c, func(s *session) error {
		if err := s.store.App(a[0], a[1]).Delete(s.ctx, a[2]); err != nil {
			return err
		}
		return s.done("OK")
	})
}

type keygenResult struct {
	Key  string `json:"key" yaml:"key"`
	Salt string `json:"salt,omitempty" yaml:"salt,omitempty"`
}

func (r keygenResult) Table() *output.Table {
	t := &output.Table{Headers: []string{"FIELD", "VALUE"}}
	t.AddRow("key", r.Key)
	if r.Salt != "" {
		t.AddRow("salt", r.Salt)
	}
	return t
}

func vaultKeygen(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	var res keygenResult
	if pass := c.String("passphrase"); pass != "" {
		var salt []byte
		if s := c.String("salt"); s != "" {
			if salt, err = base64.StdEncoding.DecodeString(s); err != nil {
				return fmt.Errorf("salt: %w", err)
			}
		} else if salt, err = vault.NewSalt(); err != nil {
			return err
		}
		key, err := vault.DeriveKey([]byte(pass), salt)
		if err != nil {
			return err
		}
		res = keygenResult{
			Key:  base64.StdEncoding.EncodeToString(key),
			Salt: base64.StdEncoding.EncodeToString(salt),
		}
		vault.Zero(key)
	} else {
		key, err := vault.GenerateKey()
		if err != nil {
			return err
		}
		res.Key = base64.StdEncoding.EncodeToString(key)
		vault.Zero(key)
	}
	return output.NewFormatter(flags.Output).Format(c.App.Writer, res)
}
