// Package commands defines the securechat CLI and wires dependencies for subcommands.
//
// Commands
//
//   - keygen       Create (or load) the device key pair and print it
//   - fingerprint  Print the device key fingerprint
//   - chat         Interactive conversation with a peer
//   - send         Send one message and wait until it is delivered encrypted
//   - history      Print the decrypted conversation with a peer
//   - list         List chats with unread counts
//
// # Implementation
//
// The root command loads SECURECHAT_* settings (and an optional .env file),
// applies flag overrides and builds the app before any subcommand runs. The
// passphrase guarding the device key can come from a flag, the environment
// or an interactive prompt.
package commands
