package ethereum

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/console/prompt"
)

// PassphraseEnv overrides the interactive passphrase prompt, for scripts and
// CI.
const PassphraseEnv = "CHAINTASK_PASSPHRASE"

// PromptPassphrase is the default PassphraseFunc: the environment variable
// when set, otherwise a no-echo terminal prompt.
func PromptPassphrase(address string) (string, error) {
	if pass, ok := os.LookupEnv(PassphraseEnv); ok {
		return pass, nil
	}
	return prompt.Stdin.PromptPassword(fmt.Sprintf("Passphrase for %s: ", address))
}

// StaticPassphrase returns a PassphraseFunc that always yields pass.
func StaticPassphrase(pass string) PassphraseFunc {
	return func(string) (string, error) { return pass, nil }
}
