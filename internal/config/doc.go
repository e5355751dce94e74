// Package config provides the runtime configuration of oercrawl.
// It defines crawl politeness, pipeline and output settings, the optional
// YAML configuration file and the XDG directories the tool writes to.
package config
