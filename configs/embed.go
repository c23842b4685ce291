// Package configs provides the embedded configuration template for
// crawlbridge. The template is embedded at build time so it ships with
// every distribution of the binary.
package configs

import _ "embed"

// ConfigTemplate is the annotated starting point for a project
// configuration. Created by `crawlbridge config --init` as
// .crawlbridge.yaml in the working directory.
//
//go:embed config.example.yaml
var ConfigTemplate string
