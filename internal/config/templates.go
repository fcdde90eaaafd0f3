package config

import (
	"fmt"
	"os"
)

// Template returns the starter manifest written by `nativectl config init`.
func Template() string {
	return manifestTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("manifest already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(manifestTemplate), 0o600)
}

const manifestTemplate = `[repository]
# Empty dir creates a private temporary repository under temp_root.
dir = ""
temp_root = ""
resources = "resources"
parallelism = 4

[loader]
kind = "system"

[server]
name = "nativectl"
addr = ":9300"
# Bearer token for POST routes; NATIVEBOX_SERVER_TOKEN overrides it.
token = ""
tls_cert = ""
tls_key = ""

[[artifacts]]
namespace = "com.acme.codec"
name = "libcodec.so"

[[artifacts]]
namespace = "com.acme.crypto"
name = "libsodium.so"
source = "vendor/libsodium.so"
load = false
`
