package assets

import "embed"

// ConfigTemplatePath is the embedded commented config.toml template.
const ConfigTemplatePath = "config/config.toml.tmpl"

// ConfigFS embeds the configuration templates.
//
//go:embed config/*
var ConfigFS embed.FS
