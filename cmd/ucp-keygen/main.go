// Command ucp-keygen creates an agent signing key and prints its public
// half in the forms stores accept.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/facebookgo/flagenv"
	"github.com/ucp-commerce/ucp/lib/identity"
)

var (
	out  = flag.String("out", "", "if set, write the private key as PKCS#8 PEM to this file (it must not exist)")
	seed = flag.String("seed-hex", "", "derive the key from this hex seed instead of generating one")
)

func main() {
	flagenv.Parse()
	flag.Parse()

	priv, err := loadOrGenerate(*seed)
	if err != nil {
		log.Fatal(err)
	}

	if *out != "" {
		if err := writePEM(*out, priv); err != nil {
			log.Fatal(err)
		}
	}

	pub := priv.Public().(ed25519.PublicKey)
	spki, err := identity.PublicKeySPKI(pub)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("ED25519_PRIVATE_KEY_HEX=%s\n", identity.SeedHex(priv))
	fmt.Printf("AGENT_PUBLIC_KEY=%s\n", identity.PublicKeyHex(pub))
	fmt.Printf("# SPKI: %s\n", spki)
}

func loadOrGenerate(seedHex string) (ed25519.PrivateKey, error) {
	if seedHex != "" {
		return identity.KeyFromHex(seedHex)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("can't generate key: %w", err)
	}

	return priv, nil
}

func writePEM(fname string, priv ed25519.PrivateKey) error {
	data, err := identity.EncodePEM(priv)
	if err != nil {
		return err
	}

	fout, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("can't create %s: %w", fname, err)
	}

	if _, err := fout.Write(data); err != nil {
		fout.Close()
		return fmt.Errorf("can't write %s: %w", fname, err)
	}

	return fout.Close()
}
