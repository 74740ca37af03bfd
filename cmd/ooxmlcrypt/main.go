// Command ooxmlcrypt encrypts or decrypts an OOXML document under the
// MS-OFFCRYPTO envelope.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fcwoknhenuxdfiyv/ooxmlcrypt"
)

func main() {
	if err := Main(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func Main() error {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "USAGE: %s -password P [encrypt|decrypt] in.xlsx out.xlsx\n", os.Args[0])
	}
	password := flag.String("password", "", "document password (empty uses the legacy default)")
	agile := flag.Bool("agile", true, "use the Agile profile when encrypting (Standard AES-256 otherwise)")
	flag.Parse()

	if flag.NArg() != 3 {
		flag.Usage()
		return errors.New("expected: [encrypt|decrypt] in.xlsx out.xlsx")
	}
	mode, inPath, outPath := flag.Arg(0), flag.Arg(1), flag.Arg(2)

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", inPath, err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", outPath, err)
	}
	defer out.Close()

	switch mode {
	case "encrypt":
		opts := ooxmlcrypt.EncryptOptions{Profile: ooxmlcrypt.ProfileStandard, Standard: ooxmlcrypt.AES256}
		if *agile {
			opts = ooxmlcrypt.EncryptOptions{Profile: ooxmlcrypt.ProfileAgile, Agile: ooxmlcrypt.DefaultAgileOptions()}
		}
		if err := ooxmlcrypt.Encrypt(out, in, *password, opts); err != nil {
			return fmt.Errorf("encrypt %q: %w", inPath, err)
		}
	case "decrypt":
		if err := ooxmlcrypt.Decrypt(out, in, *password); err != nil {
			return fmt.Errorf("decrypt %q: %w", inPath, err)
		}
	default:
		flag.Usage()
		return fmt.Errorf("unknown mode %q", mode)
	}
	return nil
}
