// Package config holds the vodpipe settings tree.
//
// Load reads a TOML file over the built-in defaults and rejects unknown
// keys. VODPIPE_API_BASE and VODPIPE_API_TOKEN fill in settings the file
// leaves empty, VODPIPE_SCORING_SHADOW always wins, and ~ is expanded in
// paths. A Config returned by Load has been normalized and
// validated. Encode writes it back out with the API token redacted, which is
// what `vodpipe config show` prints.
package config
