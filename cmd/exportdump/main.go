// Command exportdump prints the keys and signatures of a published export
// archive as JSON.
//
//	exportdump -f 2020071600.zip [-k public-key.pem]
package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/dmitrijs2005/exposurekeys/internal/export"
	"github.com/dmitrijs2005/exposurekeys/internal/signer"
)

func main() {
	var file, keyFile string

	flag.StringVar(&file, "f", "", "export zip archive")
	flag.StringVar(&keyFile, "k", "", "PEM public or private key to verify signatures with")
	flag.Parse()

	if file == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		log.Fatalf("%v", err)
	}

	var pub *ecdsa.PublicKey
	if keyFile != "" {
		b, err := os.ReadFile(keyFile)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if pub, err = signer.ParsePublicKey(b); err != nil {
			log.Fatalf("%v", err)
		}
	}

	summary, err := export.Inspect(data, pub)
	if err != nil {
		log.Fatalf("%v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatalf("%v", err)
	}
}
