// Package configs resolves sshovel's defaults from the optional per-user
// config file and the environment.
package configs
