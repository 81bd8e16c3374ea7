package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/xellDart/ERC721-IP/attest"
	"github.com/xellDart/ERC721-IP/cidutil"
	"github.com/xellDart/ERC721-IP/config"
	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/pkc/ecrecover"
	"github.com/xellDart/ERC721-IP/service"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "checksum":
		return cmdChecksum(args[1:], out, errOut)
	case "keygen":
		return cmdKeygen(args[1:], out, errOut)
	case "address":
		return cmdAddress(args[1:], out, errOut)
	case "digest":
		return cmdDigest(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "recover":
		return cmdRecover(args[1:], out, errOut)
	case "mint":
		return cmdMint(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "ippctl: IPPBlock certification tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ippctl checksum <file> [<file> ...]")
	fmt.Fprintln(w, "  ippctl keygen")
	fmt.Fprintln(w, "  ippctl address --key <64hex>")
	fmt.Fprintln(w, "  ippctl digest  <claim flags>")
	fmt.Fprintln(w, "  ippctl sign    --key <64hex> <claim flags>")
	fmt.Fprintln(w, "  ippctl recover --sig <130hex> <claim flags>")
	fmt.Fprintln(w, "  ippctl mint    --key <64hex> [--server URL] <claim flags>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Claim flags:")
	fmt.Fprintln(w, "  --title <t> [--owner 0x..] [--owner-name <n>] [--creation <ms>]")
	fmt.Fprintln(w, "  (--content <128hex> | --file <path>) ...   order is significant")
	fmt.Fprintln(w, "  [--config <ipp.json>]   domain, issuer and schema; IPP_* env vars apply")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - --owner defaults to the address of --key")
	fmt.Fprintln(w, "  - digest, sign and recover run offline; mint posts to the daemon")
}

type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

type claimFlags struct {
	configPath string
	owner      string
	ownerName  string
	title      string
	creation   int64
	contents   stringList
	files      stringList
}

func (c *claimFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "JSON config file")
	fs.StringVar(&c.owner, "owner", "", "owner address")
	fs.StringVar(&c.ownerName, "owner-name", "", "owner name (bytes32)")
	fs.StringVar(&c.title, "title", "", "work title")
	fs.Int64Var(&c.creation, "creation", 0, "creation time, ms since epoch")
	fs.Var(&c.contents, "content", "SHA-512 hex checksum (repeatable)")
	fs.Var(&c.files, "file", "file to checksum (repeatable, appended after --content)")
}

// build resolves the flags into registry options and a claim. key, when
// non-nil, supplies the owner if --owner is absent.
func (c *claimFlags) build(key *btcec.PrivateKey) (service.Options, service.Claim, error) {
	// only the signing parameters matter here, so the backend is not validated
	cfg := config.Default()
	if c.configPath != "" {
		if err := config.ReadConfigFromFile(cfg, c.configPath); err != nil {
			return service.Options{}, service.Claim{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return service.Options{}, service.Claim{}, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return service.Options{}, service.Claim{}, err
	}

	claim := service.Claim{
		OwnerName: c.ownerName,
		Title:     c.title,
		Creation:  c.creation,
		Contents:  append([]string(nil), c.contents...),
	}
	for _, path := range c.files {
		sum, err := checksumFile(path)
		if err != nil {
			return opts, claim, err
		}
		claim.Contents = append(claim.Contents, sum)
	}
	switch {
	case c.owner != "":
		if claim.Owner, err = model.ParseAddress(c.owner); err != nil {
			return opts, claim, err
		}
	case key != nil:
		claim.Owner = ecrecover.PubkeyToAddress(key.PubKey())
	}
	return opts, claim, nil
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return attest.Checksum(f)
}

func cmdChecksum(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("checksum", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: ippctl checksum <file> [<file> ...]")
		return 2
	}
	for _, path := range fs.Args() {
		sum, err := checksumFile(path)
		if err != nil {
			fmt.Fprintf(errOut, "checksum %s: %v\n", path, err)
			return 1
		}
		fmt.Fprintf(out, "%s  %s\n", sum, path)
	}
	return 0
}

func cmdKeygen(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	priv, addr, err := ecrecover.GenerateKey()
	if err != nil {
		fmt.Fprintf(errOut, "keygen: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "key     %s\n", hex.EncodeToString(priv.Serialize()))
	fmt.Fprintf(out, "address %s\n", addr)
	return 0
}

func cmdAddress(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	fs.SetOutput(errOut)
	keyHex := fs.String("key", "", "secp256k1 private key hex")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	priv, err := ecrecover.ParsePrivateKeyHex(*keyHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --key: %v\n", err)
		return 2
	}
	fmt.Fprintln(out, ecrecover.PubkeyToAddress(priv.PubKey()))
	return 0
}

func cmdDigest(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("digest", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cf claimFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	opts, claim, err := cf.build(nil)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	att := opts.Attestation(claim)
	if err := att.Validate(); err != nil {
		fmt.Fprintf(errOut, "digest: %v\n", err)
		return 1
	}
	d, err := att.Digest()
	if err != nil {
		fmt.Fprintf(errOut, "digest: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "digest %s\n", d)
	fmt.Fprintf(out, "cid    %s\n", cidutil.String(d))
	return 0
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	keyHex := fs.String("key", "", "secp256k1 private key hex")
	var cf claimFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	priv, err := ecrecover.ParsePrivateKeyHex(*keyHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --key: %v\n", err)
		return 2
	}
	opts, claim, err := cf.build(priv)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	sig, err := signClaim(opts, claim, priv)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintln(out, "0x"+hex.EncodeToString(sig))
	return 0
}

func signClaim(opts service.Options, claim service.Claim, priv *btcec.PrivateKey) ([]byte, error) {
	hash, err := opts.SigningHash(claim)
	if err != nil {
		return nil, err
	}
	return ecrecover.Sign(hash, priv), nil
}

func cmdRecover(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	fs.SetOutput(errOut)
	sigHex := fs.String("sig", "", "signature hex, r||s||v")
	var cf claimFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	sig, err := ecrecover.ParseSignatureHex(*sigHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --sig: %v\n", err)
		return 2
	}
	opts, claim, err := cf.build(nil)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	hash, err := opts.SigningHash(claim)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	signer, err := ecrecover.Recover(hash, sig)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintln(out, signer)
	return 0
}

func cmdMint(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("mint", flag.ContinueOnError)
	fs.SetOutput(errOut)
	keyHex := fs.String("key", "", "secp256k1 private key hex")
	server := fs.String("server", "http://127.0.0.1:8080", "registry base URL")
	timeout := fs.Duration("timeout", 15*time.Second, "HTTP timeout")
	var cf claimFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	priv, err := ecrecover.ParsePrivateKeyHex(*keyHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --key: %v\n", err)
		return 2
	}
	opts, claim, err := cf.build(priv)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	sig, err := signClaim(opts, claim, priv)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	body, err := json.Marshal(map[string]any{
		"owner":     claim.Owner,
		"ownerName": claim.OwnerName,
		"title":     claim.Title,
		"creation":  claim.Creation,
		"contents":  claim.Contents,
		"signature": "0x" + hex.EncodeToString(sig),
	})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	client := &http.Client{Timeout: *timeout}
	resp, err := client.Post(strings.TrimRight(*server, "/")+"/ipp/v1/mint", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(errOut, "mint: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	reply, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(errOut, "mint: %v\n", err)
		return 1
	}
	if resp.StatusCode != http.StatusCreated {
		fmt.Fprintf(errOut, "mint: %s: %s", resp.Status, reply)
		if resp.StatusCode == http.StatusConflict {
			return 3
		}
		return 1
	}
	_, _ = out.Write(reply)
	return 0
}
