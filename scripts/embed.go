// Package scripts embeds the Risor rule scripts shipped with refit.
//
// Rule scripts live under rules/, one rule per file. Files at the root are
// shared modules that rules import by name.
package scripts

import "embed"

//go:embed *.risor rules/*.risor
var FS embed.FS
