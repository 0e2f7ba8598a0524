// Package ui provides semantic text formatting for CLI output.
//
// Formatters adapt to the environment: colored when the terminal supports
// it, plain-text markers when color is disabled via NO_COLOR or output
// redirection.
package ui
