package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"tailtrail/internal/files"
	"tailtrail/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "Config file")
	out := flag.String("out", "", "Key file to write (default: keychain.master_key_file)")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	keyFile := *out
	if keyFile == "" {
		keyFile = masterKeyPath(cfg.Keychain)
	}

	if _, err := files.GenerateMasterKey(keyFile); err != nil {
		if errors.Is(err, files.ErrMasterKeyExists) {
			fmt.Fprintf(os.Stderr, "Error: %s already exists. Refusing to overwrite.\n", keyFile)
		} else {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", keyFile, err)
		}
		os.Exit(1)
	}
	fmt.Printf("Master key written to %s\n", keyFile)
}

func masterKeyPath(kc utils.KeychainConfig) string {
	if filepath.IsAbs(kc.MasterKeyFile) {
		return kc.MasterKeyFile
	}
	return filepath.Join(kc.Dir, kc.MasterKeyFile)
}
