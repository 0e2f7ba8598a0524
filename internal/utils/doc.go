// Package utils provides small terminal helpers shared by commands.
package utils
