package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/threema-gateway/go-msgapi/pkg/config"
	"github.com/threema-gateway/go-msgapi/pkg/crypto"
	"github.com/threema-gateway/go-msgapi/pkg/datautil"
	"github.com/threema-gateway/go-msgapi/pkg/e2e"
	"github.com/threema-gateway/go-msgapi/pkg/gateway"
	"github.com/threema-gateway/go-msgapi/pkg/keystore"
	"github.com/threema-gateway/go-msgapi/pkg/logging"
	"github.com/threema-gateway/go-msgapi/pkg/protocol"
)

var (
	flagConfig   string
	flagIdentity string
	flagSecret   string
	flagURL      string
)

var rootCmd = &cobra.Command{
	Use:           "threema-gateway",
	Short:         "Message gateway client tool",
	Long:          "A CLI tool for the end-to-end encrypted message gateway: key management, identity lookups and sending and receiving encrypted messages.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to TOML config file")
	rootCmd.PersistentFlags().StringVarP(&flagIdentity, "identity", "i", "", "gateway sender identity")
	rootCmd.PersistentFlags().StringVarP(&flagSecret, "secret", "s", "", "API secret (prompted when omitted)")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "gateway base URL")

	rootCmd.AddCommand(
		generateKeyPairCmd,
		derivePublicKeyCmd,
		hashEmailCmd,
		hashPhoneCmd,
		encryptCmd,
		decryptCmd,
		sendSimpleCmd,
		sendTextCmd,
		sendFileCmd,
		sendImageCmd,
		lookupEmailCmd,
		lookupPhoneCmd,
		pubkeyCmd,
		capabilitiesCmd,
		creditsCmd,
		uploadCmd,
		downloadCmd,
		receiveCmd,
		versionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges the config file (if any) with the command line flags;
// flags win.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if flagConfig != "" {
		loaded, err := config.LoadFile(flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flagIdentity != "" {
		cfg.Account.Identity = flagIdentity
	}
	if flagSecret != "" {
		cfg.Account.Secret = flagSecret
	}
	if flagURL != "" {
		cfg.Gateway.APIURL = flagURL
	}
	if cfg.Account.Secret == "" {
		secret, err := promptSecret()
		if err != nil {
			return nil, err
		}
		cfg.Account.Secret = secret
	}
	return cfg, nil
}

func promptSecret() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no API secret given and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "API secret: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

func newGatewayClient() (*gateway.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return clientFromConfig(cfg)
}

func clientFromConfig(cfg *config.Config) (*gateway.Client, error) {
	opts := &gateway.Options{BaseURL: cfg.Gateway.APIURL}

	if cfg.Logging != nil && !cfg.Logging.Disable {
		backend, err := logging.New(cfg.Logging.File, cfg.Logging.Level, false)
		if err != nil {
			return nil, err
		}
		opts.LogBackend = backend
	}

	if cfg.Gateway.KeyStorePath != "" {
		store, err := keystore.NewSQLiteStore(cfg.Gateway.KeyStorePath)
		if err != nil {
			return nil, err
		}
		opts.KeyFetch = store.Load
		opts.KeySave = store.Save
	}

	return gateway.NewClient(protocol.Identity(cfg.Account.Identity), cfg.Account.Secret, opts)
}

func newHelper(privateKeyFile string) (*e2e.Helper, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if privateKeyFile == "" {
		privateKeyFile = cfg.Account.PrivateKeyFile
	}
	if privateKeyFile == "" {
		return nil, fmt.Errorf("no private key file configured")
	}
	privateKey, err := datautil.ReadKeyFile(privateKeyFile, datautil.KeyTypePrivate)
	if err != nil {
		return nil, err
	}
	client, err := clientFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return e2e.NewHelper(client, privateKey)
}

func readStdinText() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

var generateKeyPairCmd = &cobra.Command{
	Use:   "generate-keypair <private-key-file> <public-key-file>",
	Short: "Generate a new key pair and write both halves to files",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		publicKey, privateKey, err := crypto.GenerateKeyPair()
		if err != nil {
			return err
		}
		if err := datautil.WriteKeyFile(args[0], datautil.KeyTypePrivate, privateKey); err != nil {
			return err
		}
		return datautil.WriteKeyFile(args[1], datautil.KeyTypePublic, publicKey)
	},
}

var derivePublicKeyCmd = &cobra.Command{
	Use:   "derive-public-key <private-key-file>",
	Short: "Print the public key belonging to a private key file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := datautil.ReadKeyFile(args[0], datautil.KeyTypePrivate)
		if err != nil {
			return err
		}
		publicKey, err := crypto.DerivePublicKey(privateKey)
		if err != nil {
			return err
		}
		fmt.Println(datautil.EncodeHex(publicKey))
		return nil
	},
}

var hashEmailCmd = &cobra.Command{
	Use:   "hash-email <email>",
	Short: "Print the lookup hash of an email address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(datautil.EncodeHex(crypto.HashEmail(args[0])))
		return nil
	},
}

var hashPhoneCmd = &cobra.Command{
	Use:   "hash-phone <phone>",
	Short: "Print the lookup hash of a phone number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(datautil.EncodeHex(crypto.HashPhone(args[0])))
		return nil
	},
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt <private-key-file> <recipient-public-key-hex>",
	Short: "Encrypt text from stdin; prints nonce and box as hex",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := datautil.ReadKeyFile(args[0], datautil.KeyTypePrivate)
		if err != nil {
			return err
		}
		publicKey, err := datautil.DecodeHex(args[1])
		if err != nil {
			return err
		}
		text, err := readStdinText()
		if err != nil {
			return err
		}
		box, nonce, err := crypto.EncryptMessage(&protocol.TextMessage{Text: text}, privateKey, publicKey)
		if err != nil {
			return err
		}
		fmt.Println(datautil.EncodeHex(nonce))
		fmt.Println(datautil.EncodeHex(box))
		return nil
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt <private-key-file> <sender-public-key-hex> <nonce-hex>",
	Short: "Decrypt a hex box from stdin and print the decoded message",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		privateKey, err := datautil.ReadKeyFile(args[0], datautil.KeyTypePrivate)
		if err != nil {
			return err
		}
		publicKey, err := datautil.DecodeHex(args[1])
		if err != nil {
			return err
		}
		nonce, err := datautil.DecodeHex(args[2])
		if err != nil {
			return err
		}
		boxHex, err := readStdinText()
		if err != nil {
			return err
		}
		box, err := datautil.DecodeHex(boxHex)
		if err != nil {
			return err
		}
		msg, err := crypto.DecryptMessage(box, nonce, privateKey, publicKey)
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case *protocol.TextMessage:
			fmt.Println(m.Text)
		default:
			fmt.Printf("%#v\n", msg)
		}
		return nil
	},
}

var sendSimpleCmd = &cobra.Command{
	Use:   "send-simple <to>",
	Short: "Send text from stdin in basic mode (server-side encryption)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGatewayClient()
		if err != nil {
			return err
		}
		text, err := readStdinText()
		if err != nil {
			return err
		}
		id, err := client.SendSimple(protocol.Identity(args[0]), text)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var sendTextCmd = &cobra.Command{
	Use:   "send-text <to>",
	Short: "Send end-to-end encrypted text from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		helper, err := newHelper(keyFileFlag(cmd))
		if err != nil {
			return err
		}
		text, err := readStdinText()
		if err != nil {
			return err
		}
		id, err := helper.SendText(protocol.Identity(args[0]), text)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var sendFileCmd = &cobra.Command{
	Use:   "send-file <to> <file>",
	Short: "Encrypt, upload and send a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		helper, err := newHelper(keyFileFlag(cmd))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		att := e2e.FileAttachment{
			Data:     data,
			FileName: fileBase(args[1]),
			MimeType: flagMimeType,
			Caption:  flagCaption,
		}
		if flagThumbnail != "" {
			if att.Thumbnail, err = os.ReadFile(flagThumbnail); err != nil {
				return err
			}
		}
		id, err := helper.SendFile(protocol.Identity(args[0]), att)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var sendImageCmd = &cobra.Command{
	Use:   "send-image <to> <image-file>",
	Short: "Send a legacy image message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		helper, err := newHelper(keyFileFlag(cmd))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		id, err := helper.SendImage(protocol.Identity(args[0]), data)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var lookupEmailCmd = &cobra.Command{
	Use:   "lookup-email <email>",
	Short: "Resolve an email address to an identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGatewayClient()
		if err != nil {
			return err
		}
		id, err := client.LookupEmail(args[0])
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var lookupPhoneCmd = &cobra.Command{
	Use:   "lookup-phone <phone>",
	Short: "Resolve a phone number to an identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGatewayClient()
		if err != nil {
			return err
		}
		id, err := client.LookupPhone(args[0])
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var pubkeyCmd = &cobra.Command{
	Use:   "pubkey <identity>",
	Short: "Fetch the public key of an identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGatewayClient()
		if err != nil {
			return err
		}
		key, err := client.LookupPublicKey(protocol.Identity(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(datautil.EncodeHex(key))
		return nil
	},
}

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities <identity>",
	Short: "List the capabilities of an identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGatewayClient()
		if err != nil {
			return err
		}
		caps, err := client.LookupCapabilities(protocol.Identity(args[0]))
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(caps, ","))
		return nil
	},
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Print the remaining message credits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGatewayClient()
		if err != nil {
			return err
		}
		credits, err := client.Credits()
		if err != nil {
			return err
		}
		fmt.Println(credits)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an already encrypted blob and print its id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGatewayClient()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		persist, _ := cmd.Flags().GetBool("persist")
		id, err := client.UploadBlob(data, persist)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <blob-id> <output-file>",
	Short: "Download a blob (still encrypted) to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newGatewayClient()
		if err != nil {
			return err
		}
		id, err := protocol.ParseBlobID(args[0])
		if err != nil {
			return err
		}
		data, err := client.DownloadBlob(id)
		if err != nil {
			return err
		}
		return os.WriteFile(args[1], data, 0o600)
	},
}

var receiveCmd = &cobra.Command{
	Use:   "receive <from> <message-id> <nonce-hex>",
	Short: "Decrypt an incoming hex box from stdin, fetching any blobs",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		helper, err := newHelper(keyFileFlag(cmd))
		if err != nil {
			return err
		}
		nonce, err := datautil.DecodeHex(args[2])
		if err != nil {
			return err
		}
		boxHex, err := readStdinText()
		if err != nil {
			return err
		}
		box, err := datautil.DecodeHex(boxHex)
		if err != nil {
			return err
		}
		outDir, _ := cmd.Flags().GetString("outdir")
		result, err := helper.ReceiveMessage(protocol.Identity(args[0]), args[1], box, nonce, outDir)
		if err != nil {
			return err
		}
		switch m := result.Message.(type) {
		case *protocol.TextMessage:
			fmt.Println(m.Text)
		default:
			fmt.Printf("%#v\n", result.Message)
		}
		for _, path := range result.Files {
			fmt.Fprintf(os.Stderr, "wrote %s\n", path)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(versioninfo.Short())
	},
}

var (
	flagMimeType  string
	flagCaption   string
	flagThumbnail string
)

func init() {
	for _, c := range []*cobra.Command{sendTextCmd, sendFileCmd, sendImageCmd, receiveCmd} {
		c.Flags().StringP("key", "k", "", "private key file (overrides config)")
	}
	sendFileCmd.Flags().StringVar(&flagMimeType, "mime-type", "application/octet-stream", "MIME type of the file")
	sendFileCmd.Flags().StringVar(&flagCaption, "caption", "", "file caption")
	sendFileCmd.Flags().StringVar(&flagThumbnail, "thumbnail", "", "JPEG thumbnail file")
	uploadCmd.Flags().Bool("persist", false, "keep the blob after the first download")
	receiveCmd.Flags().String("outdir", ".", "directory for downloaded blob contents")
}

func keyFileFlag(cmd *cobra.Command) string {
	key, _ := cmd.Flags().GetString("key")
	return key
}

func fileBase(path string) string {
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		return path[i+1:]
	}
	return path
}
