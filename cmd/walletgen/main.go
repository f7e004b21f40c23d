package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"solSniperBot/internal/adapters/solanarpc"
)

// walletgen prints a fresh Solana keypair in the PRIVATE_KEY format.
func main() {
	envOut := flag.Bool("env", false, "print as .env lines")
	flag.Parse()

	account := solana.NewWallet()
	private := base58.Encode(account.PrivateKey)
	public := account.PublicKey().String()

	parsed, err := solanarpc.ParsePrivateKey(private)
	if err != nil || parsed.PublicKey().String() != public {
		log.Fatalf("FATAL: generated key does not parse back to %s: %v", public, err)
	}

	if *envOut {
		fmt.Printf("# wallet %s\nPRIVATE_KEY=%s\n", public, private)
		return
	}
	fmt.Println("New Solana wallet")
	fmt.Printf("  Public key:  %s\n", public)
	fmt.Printf("  Private key: %s\n", private)
	fmt.Fprintln(os.Stderr, "Store the private key as PRIVATE_KEY in .env and fund the public key with SOL before trading.")
}
