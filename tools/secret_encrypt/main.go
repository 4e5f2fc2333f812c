package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"pasarela/internal/crypto"
)

// Encrypts one provider secret for COMPANIES_JSON provisioning.
func main() {
	if len(os.Args) != 2 {
		fmt.Println("usage: go run tools/secret_encrypt <plaintext>")
		os.Exit(1)
	}
	key := mustKey()
	enc, err := crypto.EncryptString(key, os.Args[1])
	if err != nil {
		panic(err)
	}
	fmt.Println(enc)
}

func mustKey() []byte {
	keyB64 := os.Getenv("AES_256_KEY_BASE64")
	if keyB64 == "" {
		fmt.Println("AES_256_KEY_BASE64 is not set")
		os.Exit(1)
	}
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil || len(key) != 32 {
		fmt.Println("AES_256_KEY_BASE64 must be valid base64 of 32 bytes")
		os.Exit(1)
	}
	return key
}
