package cmd

import (
	"fmt"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"

	"haz.cat/sshovel/internal/cipher"
	"haz.cat/sshovel/internal/configs"
	logger "haz.cat/sshovel/internal/logging"
	"haz.cat/sshovel/internal/utils"
)

var (
	verbose bool
	debug   bool

	cipherFlag     string
	keyFlag        string
	hashFlag       string
	editFlag       string
	scryptArgsFlag []string

	Logger logger.Logger

	RootCmd = &cobra.Command{
		Use:   "sshovel [IN [OUT]]",
		Short: "Encrypt files with ssh keys, via ssh-agent",
		Long: `sshovel encrypts and decrypts files with a passphrase derived from an
ssh-agent signature. Your private key never leaves the agent: the agent
signs a per-file random nonce, and the signature is digested into the
passphrase handed to an external cipher tool.

IN and OUT default to stdin and stdout; "-" selects them explicitly.
A stream that starts with the shovel magic is decrypted, anything else
is encrypted, so the same invocation works in both directions.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			Logger = logger.Logger{
				Verbose: verbose,
				Debug:   debug,
			}
			Logger.Debugf("starting with verbose=%t, debug=%t", verbose, debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := configs.Load()
			if err != nil {
				return err
			}

			if editFlag != "" {
				if len(args) != 0 {
					return fmt.Errorf("--edit takes no positional arguments")
				}
				return runEdit(settings, editFlag)
			}

			// Interactive invocation with nothing to do: show who we are
			// rather than silently waiting on a terminal read.
			if len(args) == 0 && utils.StdinIsTerminal() {
				figure.NewColorFigure("sshovel", "", "cyan", true).Print()
				return cmd.Help()
			}

			return runStreams(settings, args)
		},
	}
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")

	RootCmd.Flags().StringVar(&cipherFlag, "cipher", "",
		"cipher for new encryptions ("+strings.Join(cipher.Names(), ", ")+"); default $"+configs.EnvCipher+" else scrypt")
	RootCmd.Flags().StringVar(&keyFlag, "key", "",
		"use the ssh key whose comment contains MATCH")
	RootCmd.Flags().StringVar(&hashFlag, "fingerprint-hash", "",
		"fingerprint display hash (md5, sha256)")
	RootCmd.Flags().StringVar(&editFlag, "edit", "",
		"decrypt FILE, run $EDITOR on it, and re-encrypt it in place")
	RootCmd.Flags().StringArrayVar(&scryptArgsFlag, "scrypt-arg", nil,
		"extra argument for scrypt encryption, repeatable (e.g. --scrypt-arg=-t --scrypt-arg=5)")
}

// effective merges a flag value over the configured default.
func effective(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}

// scryptArgs merges the repeatable flag over the configured default.
func scryptArgs(settings *configs.Settings) []string {
	if len(scryptArgsFlag) > 0 {
		return scryptArgsFlag
	}
	return settings.ScryptArgs
}
