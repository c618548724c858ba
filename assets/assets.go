// Package assets embeds static files shipped with the binaries: email templates
// and the common passwords list used by the password policy.
package assets

import "embed"

//go:embed all:templates common-passwords.txt.gz
var FS embed.FS
