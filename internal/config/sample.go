package config

import "strings"

// Sample returns a commented YAML file documenting every recognized key.
// Loading it yields the defaults.
func Sample() string {
	return strings.TrimSpace(sampleYAML) + "\n"
}

const sampleYAML = `# yapi2zod configuration (YAML)
# All fields are optional. Environment variables (YAPI2ZOD_<FIELD>, e.g.
# YAPI2ZOD_SERVER) override the file; command-line flags override both.

# YAPI server root, used for fetching interfaces and for @see links.
# server: https://yapi.example.com

# Login credentials. Prefer YAPI2ZOD_EMAIL / YAPI2ZOD_PASSWORD.
# email: dev@example.com
# password: ""

# Lines placed above "import z from 'zod';" in every generated file.
# header:
#   - "import { BizRemoteRequestApiDef, BizRemoteRequestObserver, RemoteBaseResponse } from '@/request';"

# Which part of the response body becomes the response model:
#   (empty)  the "data" property of the response
#   all      the whole response body
#   data     the "data" property
#   custom   the property at responseCustomKey (dotted path, "data" when unset)
# responseKey: data
# responseCustomKey: data.list

# Go text/template replacing the built-in request stub. Fields:
#   .Form.Comment .Form.InterfaceName .Form.APIPath
#   .Form.ReqModelName .Form.ResModelName .Form.Resource
#   .Endpoint (the raw YAPI interface)
# requestTemplate: |
#   {{.Form.Comment}}
#   export const {{.Form.InterfaceName}} = request('{{.Form.APIPath}}');

# Output directory for generated .ts files.
# out: ./src/api

# HTTP timeout, as a Go duration or seconds.
# timeout: 30s

# Interfaces fetched and rendered in parallel (1-32).
# concurrency: 4

# Maximum YAPI requests per second. 0 disables limiting.
# rateLimit: 0

# SQLite file holding the YAPI session and generation history.
# stateFile: ~/.yapi2zod/state.db

# trace|debug|info|warn|error
# logLevel: info

# Preview planned writes without touching the filesystem.
# dryRun: false

# Overwrite files that already exist.
# force: false
`
