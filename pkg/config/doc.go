/*
Package config builds the single configuration value object consumed by
every Stackpilot component.

Configuration is layered with koanf: built-in defaults for the
identity-provider stack, then the optional YAML stack file, then
STACKPILOT_ environment overrides (double underscore separating nesting
levels). The result is validated once and passed by parameter; no
component reads ambient process state after Load returns.

The secrets env file consumed by the deployed stack is handled
separately: LoadSecrets/WriteSecrets parse and render it, and
MaskSecret redacts credential values everywhere they would otherwise be
echoed.
*/
package config
